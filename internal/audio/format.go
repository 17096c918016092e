package audio

import (
	"fmt"
	"time"
)

// BytesPerSample is fixed: every stream is 16-bit signed little-endian PCM.
const BytesPerSample = 2

// Format is the capture stream layout.
type Format struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
}

// DefaultFormat is 44.1 kHz stereo.
var DefaultFormat = Format{SampleRate: 44100, Channels: 2}

func (f Format) BytesPerFrame() int { return f.Channels * BytesPerSample }

// FramesIn converts a duration into a whole number of frames, at least one.
func (f Format) FramesIn(d time.Duration) int {
	n := int(int64(f.SampleRate) * int64(d) / int64(time.Second))
	if n < 1 {
		n = 1
	}
	return n
}

// Duration is the playing time of frames.
func (f Format) Duration(frames int64) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("invalid channel count %d: mono or stereo only", f.Channels)
	}
	return nil
}

func (f Format) String() string {
	return fmt.Sprintf("%d Hz x %d ch s16le", f.SampleRate, f.Channels)
}
