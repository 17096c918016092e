package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sjawhar/soundman/internal/logger"
	"github.com/sjawhar/soundman/internal/wav"
)

// Options configures a Recorder. Zero durations take the package defaults.
type Options struct {
	Backend Backend
	Device  string
	Format  Format

	// Buffer is the device-side ring buffer requested at open.
	Buffer time.Duration
	// DrainThreshold is how much audio must be buffered before a drain.
	DrainThreshold time.Duration
	PollInterval   time.Duration

	HeaderCheckpoint bool
	RealtimePriority bool

	// OnDrain runs on the capture worker after every append. Keep it short.
	OnDrain func(DrainEvent)
	// OnAbort runs once the worker has ended a capture on its own after a
	// file error. The file is finalized and the device released by then;
	// Stop still has to be called to collect the result.
	OnAbort func(Result, error)

	Log *logrus.Entry
}

// Result summarises one finished capture.
type Result struct {
	Path         string        `json:"path"`
	Format       Format        `json:"format"`
	DataBytes    uint64        `json:"data_bytes"`
	Frames       uint64        `json:"frames"`
	Duration     time.Duration `json:"duration"`
	Drains       uint64        `json:"drains"`
	Overruns     uint64        `json:"overruns"`
	DeviceErrors uint64        `json:"device_errors"`
	StartedAt    time.Time     `json:"started_at"`
	StoppedAt    time.Time     `json:"stopped_at"`
}

// Recorder captures from one device into one WAV file at a time.
type Recorder struct {
	opts Options
	log  *logrus.Entry

	// mu guards capturing, which is the only state the worker shares.
	mu        sync.Mutex
	capturing bool
	done      chan struct{}
	path      string
	result    Result
	err       error

	createFile func(path string, f Format) (*wav.Writer, error)
}

func NewRecorder(opts Options) *Recorder {
	if opts.Format == (Format{}) {
		opts.Format = DefaultFormat
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultDeviceBuffer
	}
	if opts.DrainThreshold <= 0 {
		opts.DrainThreshold = defaultDrainThreshold
	}
	if opts.DrainThreshold > opts.Buffer {
		opts.DrainThreshold = opts.Buffer
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}

	return &Recorder{opts: opts, log: logger.OrDiscard(opts.Log), createFile: createWAV}
}

func createWAV(path string, f Format) (*wav.Writer, error) {
	return wav.Create(path, f.SampleRate, f.Channels)
}

func (r *Recorder) Format() Format { return r.opts.Format }

// ThresholdFrames is the number of buffered frames that triggers a drain.
func (r *Recorder) ThresholdFrames() int { return r.opts.Format.FramesIn(r.opts.DrainThreshold) }

// Start opens the device and then path, and spawns the capture worker. Any
// open failure is returned before a worker exists; a missing device leaves
// no file behind.
func (r *Recorder) Start(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done != nil {
		select {
		case <-r.done:
			// The previous worker stopped itself on a file error and
			// nobody called Stop.
			r.log.WithError(r.err).WithField("path", r.path).Warn("discarding result of aborted capture")
			r.done = nil
		default:
			return ErrAlreadyCapturing
		}
	}

	f := r.opts.Format
	session, err := OpenSession(r.opts.Backend, r.opts.Device, f, f.FramesIn(r.opts.Buffer), r.log)
	if err != nil {
		r.log.WithError(err).Error("capture device open failed")
		return err
	}

	file, err := r.createFile(path, f)
	if err != nil {
		_ = session.Close()
		r.log.WithError(err).WithField("path", path).Error("capture file open failed")
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	// Start failures are logged by the session and capture carries on.
	_ = session.Start()

	r.capturing = true
	r.path = path
	r.result = Result{Path: path, Format: f, StartedAt: time.Now()}
	r.err = nil
	done := make(chan struct{})
	r.done = done

	w := &worker{
		session:    session,
		file:       file,
		running:    r.isCapturing,
		onDrain:    r.opts.OnDrain,
		threshold:  r.ThresholdFrames(),
		poll:       r.opts.PollInterval,
		checkpoint: r.opts.HeaderCheckpoint,
		priority:   r.opts.RealtimePriority,
		log:        r.log.WithField("path", path),
	}

	r.log.WithFields(logrus.Fields{
		"path":      path,
		"format":    f.String(),
		"threshold": w.threshold,
	}).Info("capture started")

	onAbort := r.opts.OnAbort
	go func() {
		err := w.run()

		r.mu.Lock()
		r.result.DataBytes = file.DataSize()
		r.result.Frames = file.Frames()
		r.result.Duration = f.Duration(int64(file.Frames()))
		r.result.Drains = w.drains
		r.result.Overruns = session.Overruns()
		r.result.DeviceErrors = session.DeviceErrors()
		r.result.StoppedAt = time.Now()
		r.err = err
		// Still flagged as capturing means nobody asked for the stop.
		aborted := err != nil && r.capturing
		res := r.result
		r.mu.Unlock()

		close(done)
		if aborted && onAbort != nil {
			onAbort(res, err)
		}
	}()

	return nil
}

func (r *Recorder) isCapturing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capturing
}

// Capturing reports whether a worker is live.
func (r *Recorder) Capturing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Stop clears the capture flag and waits for the worker to finalize the file
// and close the device. It has no deadline: a hung driver hangs Stop. Stop
// with nothing running returns a zero Result and no error.
func (r *Recorder) Stop() (Result, error) {
	return r.StopContext(context.Background())
}

// StopContext is Stop with a deadline. On ctx expiry it returns
// ErrStopTimeout; the worker keeps going and a later Stop collects it.
func (r *Recorder) StopContext(ctx context.Context) (Result, error) {
	r.mu.Lock()
	done := r.done
	if done == nil {
		r.mu.Unlock()
		return Result{}, nil
	}
	r.capturing = false
	r.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		r.log.WithError(ctx.Err()).Warn("capture worker did not exit in time")
		return Result{}, fmt.Errorf("%w: %w", ErrStopTimeout, ctx.Err())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	res, err := r.result, r.err
	if r.done == done {
		r.done = nil
	}

	r.log.WithFields(logrus.Fields{
		"path":     res.Path,
		"bytes":    res.DataBytes,
		"duration": res.Duration,
	}).Info("capture stopped")
	return res, err
}
