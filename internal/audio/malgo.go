package audio

import (
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
	"github.com/sirupsen/logrus"

	"github.com/sjawhar/soundman/internal/logger"
)

// MalgoBackend captures through miniaudio. miniaudio pushes audio from its
// own thread, so each device parks frames in a captureRing sized to the
// requested buffer and the worker drains the ring.
type MalgoBackend struct {
	Log *logrus.Entry
}

func (MalgoBackend) Name() string { return "malgo" }

func (b MalgoBackend) initContext() (*malgo.AllocatedContext, error) {
	log := logger.OrDiscard(b.Log)
	return malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		log.Debug(strings.TrimSpace(msg))
	})
}

func (b MalgoBackend) Devices() ([]DeviceInfo, error) {
	ctx, err := b.initContext()
	if err != nil {
		return nil, fmt.Errorf("malgo context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}

	out := make([]DeviceInfo, 0, len(infos))
	for i := range infos {
		out = append(out, DeviceInfo{
			Name:    infos[i].Name(),
			HostAPI: "miniaudio",
			Default: infos[i].IsDefault != 0,
		})
	}
	return out, nil
}

func (b MalgoBackend) Open(name string, f Format, bufferFrames int) (Device, error) {
	ctx, err := b.initContext()
	if err != nil {
		return nil, fmt.Errorf("%w: malgo context: %v", ErrDeviceUnavailable, err)
	}
	release := func() {
		_ = ctx.Uninit()
		ctx.Free()
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(f.Channels)
	cfg.SampleRate = uint32(f.SampleRate)

	if name != "" {
		infos, err := ctx.Devices(malgo.Capture)
		if err != nil {
			release()
			return nil, fmt.Errorf("%w: list devices: %v", ErrDeviceUnavailable, err)
		}
		found := false
		for i := range infos {
			if infos[i].Name() == name {
				cfg.Capture.DeviceID = infos[i].ID.Pointer()
				found = true
				break
			}
		}
		if !found {
			release()
			return nil, fmt.Errorf("%w: input device %q not found", ErrDeviceOpenFailed, name)
		}
	}

	d := &malgoDevice{
		ring:    newCaptureRing(bufferFrames, f.BytesPerFrame()),
		release: release,
	}
	dev, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			d.ring.push(input)
		},
	})
	if err != nil {
		release()
		return nil, driverError("open "+displayName(name), ErrDeviceOpenFailed, err)
	}
	d.device = dev

	return d, nil
}

type malgoDevice struct {
	device  *malgo.Device
	ring    *captureRing
	release func()
}

func (d *malgoDevice) Start() error {
	d.ring.reset()
	return d.device.Start()
}

func (d *malgoDevice) Stop() error { return d.device.Stop() }

func (d *malgoDevice) Available() (int, error) { return d.ring.available(), nil }

func (d *malgoDevice) Read(frames int) ([]byte, error) { return d.ring.read(frames) }

func (d *malgoDevice) Close() error {
	d.device.Uninit()
	d.release()
	return nil
}
