package audio

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sjawhar/soundman/internal/logger"
)

// Session owns one open capture handle for the lifetime of a capture.
type Session struct {
	device              Device
	format              Format
	bytesPerFrame       int
	bufferFrameCapacity int

	overruns     uint64
	deviceErrors uint64

	log *logrus.Entry
}

// OpenSession lists devices for diagnostics, then opens deviceName (or the
// default device) on backend. Enumeration failures are logged and ignored.
func OpenSession(backend Backend, deviceName string, f Format, bufferFrames int, log *logrus.Entry) (*Session, error) {
	log = logger.OrDiscard(log)

	if backend == nil {
		return nil, ErrDeviceUnavailable
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceOpenFailed, err)
	}
	if bufferFrames <= 0 {
		bufferFrames = f.FramesIn(defaultDeviceBuffer)
	}

	if devices, err := backend.Devices(); err != nil {
		log.WithError(err).Debug("device enumeration unsupported")
	} else {
		for _, d := range devices {
			log.WithFields(logrus.Fields{
				"device":   d.Name,
				"channels": d.MaxInputChannels,
				"default":  d.Default,
			}).Debug("capture device")
		}
	}

	dev, err := backend.Open(deviceName, f, bufferFrames)
	if err != nil {
		if errors.Is(err, ErrDeviceUnavailable) || errors.Is(err, ErrDeviceOpenFailed) {
			return nil, err
		}
		return nil, driverError("open "+displayName(deviceName), ErrDeviceOpenFailed, err)
	}

	return &Session{
		device:              dev,
		format:              f,
		bytesPerFrame:       f.BytesPerFrame(),
		bufferFrameCapacity: bufferFrames,
		log:                 log.WithField("device", displayName(deviceName)),
	}, nil
}

func (s *Session) Format() Format           { return s.format }
func (s *Session) BytesPerFrame() int       { return s.bytesPerFrame }
func (s *Session) BufferFrameCapacity() int { return s.bufferFrameCapacity }
func (s *Session) Overruns() uint64         { return s.overruns }
func (s *Session) DeviceErrors() uint64     { return s.deviceErrors }

// Start begins hardware capture. A failure is logged and capture carries on
// degraded; the error is returned for callers that care.
func (s *Session) Start() error {
	if err := s.device.Start(); err != nil {
		s.deviceErrors++
		s.log.WithError(err).Warn("capture start failed")
		return driverError("start", ErrDeviceError, err)
	}
	return nil
}

// Stop ends hardware capture. Failures are logged, never fatal.
func (s *Session) Stop() error {
	if err := s.device.Stop(); err != nil {
		s.deviceErrors++
		s.log.WithError(err).Warn("capture stop failed")
		return driverError("stop", ErrDeviceError, err)
	}
	return nil
}

// AvailableFrames asks the driver how many frames are buffered.
func (s *Session) AvailableFrames() (int, error) {
	n, err := s.device.Available()
	if err != nil {
		s.deviceErrors++
		return 0, driverError("query available", ErrDeviceError, err)
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}

// Drain reads up to maxFrames frames. The result is always a whole number of
// frames; an overrun is counted and logged and its data kept.
func (s *Session) Drain(maxFrames int) ([]byte, error) {
	if maxFrames <= 0 {
		return nil, nil
	}

	data, err := s.device.Read(maxFrames)
	if err != nil {
		if !errors.Is(err, ErrOverrun) {
			s.deviceErrors++
			return nil, driverError("read", ErrDeviceError, err)
		}
		s.overruns++
		s.log.WithField("overruns", s.overruns).Warn("capture buffer overrun, frames were dropped")
	}

	if limit := maxFrames * s.bytesPerFrame; len(data) > limit {
		data = data[:limit]
	}
	if extra := len(data) % s.bytesPerFrame; extra != 0 {
		data = data[:len(data)-extra]
	}
	return data, nil
}

// Close releases the handle. Call once, after Stop.
func (s *Session) Close() error {
	if err := s.device.Close(); err != nil {
		s.log.WithError(err).Warn("capture close failed")
		return driverError("close", ErrDeviceError, err)
	}
	return nil
}

func displayName(name string) string {
	if name == "" {
		return "default"
	}
	return name
}
