package audio

import (
	"encoding/binary"
	"math"

	goaudio "github.com/go-audio/audio"
)

// SilenceFloor is reported for digital silence instead of -Inf.
const SilenceFloor = -96.0

// Level summarises one block of captured audio in dBFS.
type Level struct {
	RMS      float64 `json:"rms_dbfs"`
	Peak     float64 `json:"peak_dbfs"`
	Clipping bool    `json:"clipping"`
}

// PCMBuffer wraps interleaved s16le bytes as a go-audio IntBuffer.
func PCMBuffer(pcm []byte, f Format) *goaudio.IntBuffer {
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(pcm)/BytesPerSample),
	}
	for i := range buf.Data {
		buf.Data[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return buf
}

// MeasureLevel computes RMS and peak over every sample in pcm.
func MeasureLevel(pcm []byte, f Format) Level {
	buf := PCMBuffer(pcm, f)
	if buf.NumFrames() == 0 {
		return Level{RMS: SilenceFloor, Peak: SilenceFloor}
	}

	var sum float64
	var peak int
	clipping := false
	for _, s := range buf.Data {
		sum += float64(s) * float64(s)
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
		if s >= math.MaxInt16 {
			clipping = true
		}
	}

	rms := math.Sqrt(sum / float64(len(buf.Data)))
	return Level{
		RMS:      toDBFS(rms),
		Peak:     toDBFS(float64(peak)),
		Clipping: clipping,
	}
}

func toDBFS(v float64) float64 {
	if v <= 0 {
		return SilenceFloor
	}
	db := 20 * math.Log10(v/32768.0)
	if db < SilenceFloor {
		return SilenceFloor
	}
	return db
}
