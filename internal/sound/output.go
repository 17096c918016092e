package sound

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

const outputFramesPerBuffer = 512

// Output drives a Player from the default PortAudio output device.
type Output struct {
	stream *portaudio.Stream
}

func OpenOutput(p *Player) (*Output, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}

	f := p.Table().Format()
	stream, err := portaudio.OpenDefaultStream(0, f.Channels, float64(f.SampleRate), outputFramesPerBuffer, func(out []int16) {
		p.Mix(out)
	})
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open output stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("start output stream: %w", err)
	}

	return &Output{stream: stream}, nil
}

func (o *Output) Close() error {
	if o == nil || o.stream == nil {
		return nil
	}
	_ = o.stream.Stop()
	err := o.stream.Close()
	if termErr := portaudio.Terminate(); err == nil {
		err = termErr
	}
	return err
}
