package sound

import "github.com/sjawhar/soundman/internal/audio"

// Convert returns c in format f. Channels are duplicated or averaged and the
// rate is changed by linear interpolation; c itself is not modified.
func (c *Clip) Convert(f audio.Format) *Clip {
	out := c
	if out.Format.Channels != f.Channels {
		out = remix(out, f.Channels)
	}
	if out.Format.SampleRate != f.SampleRate {
		out = resample(out, f.SampleRate)
	}
	return out
}

func remix(c *Clip, channels int) *Clip {
	frames := c.Frames()
	src := c.Format.Channels
	samples := make([]int16, frames*channels)

	for i := 0; i < frames; i++ {
		frame := c.Samples[i*src : (i+1)*src]
		if channels == 1 {
			sum := 0
			for _, s := range frame {
				sum += int(s)
			}
			samples[i] = int16(sum / src)
			continue
		}
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = frame[ch%src]
		}
	}

	return &Clip{
		Format:  audio.Format{SampleRate: c.Format.SampleRate, Channels: channels},
		Samples: samples,
	}
}

func resample(c *Clip, rate int) *Clip {
	ch := c.Format.Channels
	srcFrames := c.Frames()
	ratio := float64(c.Format.SampleRate) / float64(rate)
	dstFrames := int(float64(srcFrames) / ratio)
	samples := make([]int16, dstFrames*ch)

	for i := 0; i < dstFrames; i++ {
		pos := float64(i) * ratio
		j := int(pos)
		frac := pos - float64(j)
		k := j + 1
		if k >= srcFrames {
			k = srcFrames - 1
		}
		for n := 0; n < ch; n++ {
			a := float64(c.Samples[j*ch+n])
			b := float64(c.Samples[k*ch+n])
			samples[i*ch+n] = int16(a + (b-a)*frac)
		}
	}

	return &Clip{
		Format:  audio.Format{SampleRate: rate, Channels: ch},
		Samples: samples,
	}
}
