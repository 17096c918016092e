package wav

import (
	"fmt"
	"io"
	"os"
	"time"

	gowav "github.com/go-audio/wav"
)

// Info describes a container on disk.
type Info struct {
	Path         string        `json:"path"`
	SampleRate   int           `json:"sample_rate"`
	Channels     int           `json:"channels"`
	BitDepth     int           `json:"bit_depth"`
	DeclaredData uint32        `json:"declared_data_bytes"`
	PayloadBytes int64         `json:"payload_bytes"`
	Frames       int64         `json:"frames"`
	Duration     time.Duration `json:"duration"`
}

// Consistent reports whether the header's data size matches the bytes
// actually present after it.
func (i Info) Consistent() bool {
	return int64(i.DeclaredData) == i.PayloadBytes
}

// Inspect reads the header of path and cross-checks it with go-audio's
// decoder. A file still being captured without checkpoints reports a
// DeclaredData smaller than PayloadBytes.
func Inspect(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return Info{}, fmt.Errorf("stat %s: %w", path, err)
	}

	h, err := DecodeHeader(f)
	if err != nil {
		return Info{}, err
	}

	info := Info{
		Path:         path,
		SampleRate:   int(h.SampleRate),
		Channels:     int(h.Channels),
		BitDepth:     int(h.BitsPerSample),
		DeclaredData: h.DataSize,
		PayloadBytes: st.Size() - HeaderSize,
	}
	if h.BlockAlign > 0 {
		info.Frames = info.PayloadBytes / int64(h.BlockAlign)
	}
	if h.SampleRate > 0 {
		info.Duration = time.Duration(info.Frames) * time.Second / time.Duration(h.SampleRate)
	}

	if h.DataSize == 0 {
		return info, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return info, fmt.Errorf("rewind %s: %w", path, err)
	}
	dec := gowav.NewDecoder(f)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return info, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	if dec.WavAudioFormat != formatPCM || dec.BitDepth != BitsPerSample {
		return info, ErrUnsupportedFormat
	}
	if int(dec.SampleRate) != info.SampleRate || int(dec.NumChans) != info.Channels {
		return info, fmt.Errorf("%w: header fields disagree with decoder", ErrNotWAV)
	}

	return info, nil
}
