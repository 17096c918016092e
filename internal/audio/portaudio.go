package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"
)

// PortAudioBackend opens blocking PortAudio input streams. The stream's
// host buffer is the only queue between the hardware and the worker.
type PortAudioBackend struct{}

func (PortAudioBackend) Name() string { return "portaudio" }

func (PortAudioBackend) Devices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	defer func() { _ = portaudio.Terminate() }()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio devices: %w", err)
	}

	var defaultName string
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultName = def.Name
	}

	out := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels < 1 {
			continue
		}
		info := DeviceInfo{
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			Default:           d.Name == defaultName,
		}
		if d.HostApi != nil {
			info.HostAPI = d.HostApi.Name
		}
		out = append(out, info)
	}
	return out, nil
}

func (PortAudioBackend) Open(name string, f Format, bufferFrames int) (Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: portaudio init: %v", ErrDeviceUnavailable, err)
	}

	dev, err := findInputDevice(name)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}

	params := portaudio.HighLatencyParameters(dev, nil)
	params.Input.Channels = f.Channels
	params.SampleRate = float64(f.SampleRate)
	params.Input.Latency = time.Duration(bufferFrames) * time.Second / time.Duration(f.SampleRate)

	d := &portAudioDevice{
		channels: f.Channels,
		buf:      make([]int16, bufferFrames*f.Channels),
	}
	stream, err := portaudio.OpenStream(params, &d.buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, driverError("open "+dev.Name, ErrDeviceOpenFailed, err)
	}
	d.stream = stream

	return d, nil
}

func findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil || dev == nil {
			return nil, fmt.Errorf("%w: no default input device: %v", ErrDeviceUnavailable, err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: list devices: %v", ErrDeviceUnavailable, err)
	}
	for _, d := range devices {
		if d.Name == name && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: input device %q not found", ErrDeviceOpenFailed, name)
}

type portAudioDevice struct {
	stream   *portaudio.Stream
	channels int
	buf      []int16
}

func (d *portAudioDevice) Start() error { return d.stream.Start() }
func (d *portAudioDevice) Stop() error  { return d.stream.Stop() }

func (d *portAudioDevice) Available() (int, error) {
	return d.stream.AvailableToRead()
}

func (d *portAudioDevice) Read(frames int) ([]byte, error) {
	if limit := cap(d.buf) / d.channels; frames > limit {
		frames = limit
	}
	d.buf = d.buf[:frames*d.channels]

	var overrun error
	if err := d.stream.Read(); err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return nil, err
		}
		overrun = ErrOverrun
	}

	out := make([]byte, len(d.buf)*BytesPerSample)
	for i, s := range d.buf {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out, overrun
}

func (d *portAudioDevice) Close() error {
	err := d.stream.Close()
	if termErr := portaudio.Terminate(); err == nil {
		err = termErr
	}
	return err
}
