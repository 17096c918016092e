package audio

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func pcm(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestMeasureLevel(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		rms      float64
		peak     float64
		clipping bool
	}{
		{name: "empty", data: nil, rms: SilenceFloor, peak: SilenceFloor},
		{name: "silence", data: pcm(0, 0, 0, 0), rms: SilenceFloor, peak: SilenceFloor},
		{name: "half scale square", data: pcm(16384, -16384, 16384, -16384), rms: -6.02, peak: -6.02},
		{name: "full scale", data: pcm(math.MaxInt16, math.MinInt16), rms: 0, peak: 0, clipping: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MeasureLevel(tt.data, DefaultFormat)
			assert.InDelta(t, tt.rms, got.RMS, 0.01)
			assert.InDelta(t, tt.peak, got.Peak, 0.01)
			assert.Equal(t, tt.clipping, got.Clipping)
		})
	}
}

func TestFormatArithmetic(t *testing.T) {
	f := Format{SampleRate: 44100, Channels: 2}
	assert.Equal(t, 4, f.BytesPerFrame())
	assert.Equal(t, 11025, f.FramesIn(250_000_000))
	assert.Equal(t, 1, f.FramesIn(0))
	assert.NoError(t, f.Validate())
	assert.Error(t, Format{SampleRate: 44100, Channels: 6}.Validate())
}
