package audio

import (
	"encoding/binary"
	"errors"
	"sync"
)

// fakeBackend hands out one scripted device.
type fakeBackend struct {
	dev     *fakeDevice
	openErr error

	mu     sync.Mutex
	opened []string
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Devices() ([]DeviceInfo, error) {
	return nil, errors.New("enumeration unsupported")
}

func (b *fakeBackend) Open(name string, f Format, bufferFrames int) (Device, error) {
	b.mu.Lock()
	b.opened = append(b.opened, name)
	b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.dev.bytesPerFrame = f.BytesPerFrame()
	b.dev.capacity = bufferFrames
	return b.dev, nil
}

// fakeDevice simulates a driver buffer. Each Available call first lets the
// next scripted number of frames "arrive", then falls back to steady.
type fakeDevice struct {
	mu            sync.Mutex
	bytesPerFrame int
	capacity      int

	arrivals []int
	steady   int
	buffered int
	next     uint16

	// readErrs are returned by successive Read calls before any data.
	readErrs []error
	// overrunOnce makes the next successful Read also report ErrOverrun.
	overrunOnce bool
	// block, when set, stalls Available until closed.
	block chan struct{}

	started, stopped, closed int
	reads                    []int
	emitted                  []byte
}

func (d *fakeDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started++
	return nil
}

func (d *fakeDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped++
	return nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

func (d *fakeDevice) Available() (int, error) {
	if d.block != nil {
		<-d.block
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	arrive := d.steady
	if len(d.arrivals) > 0 {
		arrive = d.arrivals[0]
		d.arrivals = d.arrivals[1:]
	}
	d.buffered += arrive
	if d.capacity > 0 && d.buffered > d.capacity {
		d.buffered = d.capacity
	}
	return d.buffered, nil
}

func (d *fakeDevice) Read(frames int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.readErrs) > 0 {
		err := d.readErrs[0]
		d.readErrs = d.readErrs[1:]
		return nil, err
	}

	if frames > d.buffered {
		frames = d.buffered
	}
	d.buffered -= frames

	out := make([]byte, frames*d.bytesPerFrame)
	for i := 0; i < len(out); i += 2 {
		binary.LittleEndian.PutUint16(out[i:], d.next)
		d.next++
	}
	d.reads = append(d.reads, frames)
	d.emitted = append(d.emitted, out...)

	if d.overrunOnce {
		d.overrunOnce = false
		return out, ErrOverrun
	}
	return out, nil
}

func (d *fakeDevice) snapshot() (reads []int, emitted []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.reads...), append([]byte(nil), d.emitted...)
}

func (d *fakeDevice) counts() (started, stopped, closed int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started, d.stopped, d.closed
}
