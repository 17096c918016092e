package sound

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	gowav "github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"

	"github.com/sjawhar/soundman/internal/audio"
)

// Clip is a fully decoded sound held as interleaved s16 samples.
type Clip struct {
	Format  audio.Format
	Samples []int16
}

func (c *Clip) Frames() int {
	if c.Format.Channels == 0 {
		return 0
	}
	return len(c.Samples) / c.Format.Channels
}

func (c *Clip) Duration() float64 {
	if c.Format.SampleRate == 0 {
		return 0
	}
	return float64(c.Frames()) / float64(c.Format.SampleRate)
}

type decodeFunc func(f *os.File) (*Clip, error)

var decoders = map[string]decodeFunc{
	".wav":  decodeWAV,
	".wave": decodeWAV,
	".mp3":  decodeMP3,
	".ogg":  decodeVorbis,
	".oga":  decodeVorbis,
}

// Supported reports whether path has an extension LoadTable can decode.
func Supported(path string) bool {
	_, ok := decoders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// DecodeFile decodes path by extension.
func DecodeFile(path string) (*Clip, error) {
	decode, ok := decoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sound: %w", err)
	}
	defer f.Close()

	clip, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if len(clip.Samples) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyClip, filepath.Base(path))
	}
	return clip, nil
}

func decodeWAV(f *os.File) (*Clip, error) {
	dec := gowav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}

	depth := int(dec.BitDepth)
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		switch {
		case depth == 8:
			samples[i] = int16((v - 128) << 8)
		case depth > 16:
			samples[i] = int16(v >> (depth - 16))
		default:
			samples[i] = int16(v)
		}
	}

	return &Clip{
		Format:  audio.Format{SampleRate: buf.Format.SampleRate, Channels: buf.Format.NumChannels},
		Samples: samples,
	}, nil
}

// decodeMP3 relies on go-mp3 always producing 16-bit stereo.
func decodeMP3(f *os.File) (*Clip, error) {
	dec, err := gomp3.NewDecoder(f)
	if err != nil {
		return nil, err
	}

	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return nil, err
	}

	b := raw.Bytes()
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
	}

	return &Clip{
		Format:  audio.Format{SampleRate: dec.SampleRate(), Channels: 2},
		Samples: samples,
	}, nil
}

func decodeVorbis(f *os.File) (*Clip, error) {
	data, format, err := oggvorbis.ReadAll(f)
	if err != nil {
		return nil, err
	}

	samples := make([]int16, len(data))
	for i, v := range data {
		samples[i] = floatToInt16(v)
	}

	return &Clip{
		Format:  audio.Format{SampleRate: format.SampleRate, Channels: format.Channels},
		Samples: samples,
	}, nil
}

func floatToInt16(v float32) int16 {
	s := math.Round(float64(v) * 32767)
	if s > math.MaxInt16 {
		return math.MaxInt16
	}
	if s < math.MinInt16 {
		return math.MinInt16
	}
	return int16(s)
}
