package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceUnavailable means there is no capture capability at all.
	ErrDeviceUnavailable = errors.New("no audio capture device available")
	// ErrDeviceOpenFailed means the named or default device refused to open.
	ErrDeviceOpenFailed = errors.New("capture device could not be opened")
	// ErrDeviceError is a transient read or control failure on an open device.
	ErrDeviceError = errors.New("capture device error")
	// ErrIO is a filesystem failure on the destination container.
	ErrIO = errors.New("capture file i/o error")
	// ErrAlreadyCapturing is returned by Start while a capture is running.
	ErrAlreadyCapturing = errors.New("capture already in progress")
	// ErrOverrun reports that the device buffer wrapped and frames were lost.
	// Data returned alongside it is still valid.
	ErrOverrun = errors.New("capture buffer overrun")
	// ErrStopTimeout is returned when a bounded stop gives up waiting.
	ErrStopTimeout = errors.New("timed out waiting for capture worker")
)

// DriverError carries the backend's own error for an operation.
type DriverError struct {
	Op   string
	Kind error
	Err  error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *DriverError) Unwrap() []error { return []error{e.Kind, e.Err} }

func driverError(op string, kind, err error) error {
	return &DriverError{Op: op, Kind: kind, Err: err}
}
