package audio

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// DeviceInfo describes a capture endpoint as reported by a backend.
type DeviceInfo struct {
	Name              string  `json:"name"`
	HostAPI           string  `json:"host_api,omitempty"`
	MaxInputChannels  int     `json:"max_input_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate,omitempty"`
	Default           bool    `json:"default"`
}

// Backend is a hardware capture API.
type Backend interface {
	Name() string
	// Devices lists capture endpoints. Backends that cannot enumerate
	// return an error; callers treat enumeration as diagnostic only.
	Devices() ([]DeviceInfo, error)
	// Open opens name, or the default device when name is empty, with a
	// driver-side ring buffer of bufferFrames frames.
	Open(name string, f Format, bufferFrames int) (Device, error)
}

// Device is one open capture handle. Available and Read never block past
// what the driver already holds.
type Device interface {
	Start() error
	Stop() error
	// Available reports how many whole frames are buffered.
	Available() (int, error)
	// Read returns up to frames whole frames of interleaved s16le data.
	// It may return ErrOverrun together with valid data.
	Read(frames int) ([]byte, error)
	Close() error
}

// BackendNames lists the names accepted by NewBackend.
var BackendNames = []string{"portaudio", "malgo"}

// NewBackend resolves a configured backend name. Empty means portaudio.
func NewBackend(name string, log *logrus.Entry) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "portaudio":
		return PortAudioBackend{}, nil
	case "malgo", "miniaudio":
		return MalgoBackend{Log: log}, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q (want one of %s)", ErrDeviceUnavailable, name, strings.Join(BackendNames, ", "))
	}
}
