package audio

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sjawhar/soundman/internal/wav"
)

const (
	defaultDeviceBuffer   = 4 * time.Second
	defaultDrainThreshold = 250 * time.Millisecond
	defaultPollInterval   = 50 * time.Microsecond
)

type workerState int

const (
	statePolling workerState = iota
	stateDraining
	stateFinishing
	stateDone
)

// DrainEvent is reported after every successful append.
type DrainEvent struct {
	Frames     int    `json:"frames"`
	Bytes      int    `json:"bytes"`
	TotalBytes uint64 `json:"total_bytes"`
	Overruns   uint64 `json:"overruns"`
	Level      Level  `json:"level"`
}

// worker owns the session and the file from spawn until it returns.
type worker struct {
	session   *Session
	file      *wav.Writer
	running   func() bool
	onDrain   func(DrainEvent)
	threshold int
	poll      time.Duration
	// checkpoint rewrites the header sizes after each drain.
	checkpoint bool
	priority   bool

	drains uint64
	log    *logrus.Entry
}

// run drives Polling → Draining → Finishing → Done and returns the first
// file error, if any. Device errors never end the loop.
func (w *worker) run() error {
	if w.priority {
		raiseThreadPriority(w.log)
	}

	var fileErr error
	pending := 0
	state := statePolling
	for state != stateDone {
		switch state {
		case statePolling:
			if !w.running() {
				state = stateFinishing
				continue
			}
			n, err := w.session.AvailableFrames()
			if err != nil {
				w.log.WithError(err).Warn("capture poll failed")
				time.Sleep(w.poll)
				continue
			}
			if n >= w.threshold {
				pending = n
				state = stateDraining
				continue
			}
			time.Sleep(w.poll)

		case stateDraining:
			n := pending
			if limit := w.session.BufferFrameCapacity(); n > limit {
				n = limit
			}
			if _, err := w.drain(n); err != nil {
				fileErr = err
				w.log.WithError(err).Error("capture file write failed, stopping capture")
				state = stateFinishing
				continue
			}
			state = statePolling

		case stateFinishing:
			if fileErr == nil {
				fileErr = w.flush()
			}
			if err := w.file.Finalize(); err != nil && fileErr == nil {
				fileErr = fmt.Errorf("%w: finalize %s: %w", ErrIO, w.file.Path(), err)
			}
			_ = w.session.Stop()
			_ = w.session.Close()
			state = stateDone
		}
	}

	w.log.WithFields(logrus.Fields{
		"bytes":         w.file.DataSize(),
		"drains":        w.drains,
		"overruns":      w.session.Overruns(),
		"device_errors": w.session.DeviceErrors(),
	}).Info("capture finished")

	return fileErr
}

// flush drains whatever is still buffered, below threshold or not. The count
// is taken once so a device that keeps producing cannot hold the stop open.
func (w *worker) flush() error {
	remaining, err := w.session.AvailableFrames()
	if err != nil {
		w.log.WithError(err).Warn("final capture poll failed")
		return nil
	}
	for remaining > 0 {
		chunk := remaining
		if chunk > w.threshold {
			chunk = w.threshold
		}
		got, err := w.drain(chunk)
		if err != nil {
			return err
		}
		if got == 0 {
			break
		}
		remaining -= got
	}
	return nil
}

// drain moves up to frames frames from the device into the file and returns
// how many were written. Only file errors are returned.
func (w *worker) drain(frames int) (int, error) {
	data, err := w.session.Drain(frames)
	if err != nil {
		w.log.WithError(err).Warn("capture read failed")
		return 0, nil
	}
	if len(data) == 0 {
		return 0, nil
	}

	if err := w.file.Append(data); err != nil {
		return 0, fmt.Errorf("%w: append %s: %w", ErrIO, w.file.Path(), err)
	}
	w.drains++

	if w.checkpoint {
		if err := w.file.Checkpoint(); err != nil {
			return 0, fmt.Errorf("%w: checkpoint %s: %w", ErrIO, w.file.Path(), err)
		}
	}

	got := len(data) / w.session.BytesPerFrame()
	if w.onDrain != nil {
		w.onDrain(DrainEvent{
			Frames:     got,
			Bytes:      len(data),
			TotalBytes: w.file.DataSize(),
			Overruns:   w.session.Overruns(),
			Level:      MeasureLevel(data, w.session.Format()),
		})
	}
	return got, nil
}
