package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/sjawhar/soundman/internal/audio"
	"github.com/sjawhar/soundman/internal/logger"
	"github.com/sjawhar/soundman/internal/storage"
)

const defaultLevelInterval = 100 * time.Millisecond

// Options wires a Manager. Transcriber, Uploader and Hub are optional.
type Options struct {
	Store       Store
	Recorder    Recorder
	Transcriber Transcriber
	Uploader    Uploader
	Hub         EventBroadcaster

	AudioDir string
	// MaxDuration stops a recording automatically. Zero means unlimited.
	MaxDuration time.Duration
	// StopTimeout bounds the wait for the capture worker. Zero waits forever.
	StopTimeout time.Duration
	// LevelInterval throttles capture_level events.
	LevelInterval time.Duration

	Log *logrus.Entry
}

// Status is a point-in-time view of the capture state.
type Status struct {
	Capturing bool               `json:"capturing"`
	Recording *storage.Recording `json:"recording,omitempty"`
	ElapsedMS int64              `json:"elapsed_ms"`
	Bytes     uint64             `json:"bytes"`
	Overruns  uint64             `json:"overruns"`
	Level     *audio.Level       `json:"level,omitempty"`
}

// Manager owns the recording lifecycle: catalogue row, capture, auto-stop
// and post-processing of the finished file.
type Manager struct {
	store       Store
	recorder    Recorder
	transcriber Transcriber
	uploader    Uploader
	hub         EventBroadcaster
	audioDir    string
	stopTimeout time.Duration
	levelEvery  time.Duration
	timer       *StopTimer
	log         *logrus.Entry
	now         func() time.Time

	// opMu serialises Start and Stop. mu is never held across a recorder
	// stop, since the worker takes it in OnDrain.
	opMu sync.Mutex

	mu        sync.Mutex
	current   *storage.Recording
	lastLevel time.Time
	level     *audio.Level
	bytes     uint64
	overruns  uint64

	post sync.WaitGroup
}

func NewManager(opts Options) *Manager {
	audioDir := strings.TrimSpace(opts.AudioDir)
	if audioDir == "" {
		audioDir = filepath.Join("data", "audio")
	}
	levelEvery := opts.LevelInterval
	if levelEvery <= 0 {
		levelEvery = defaultLevelInterval
	}

	m := &Manager{
		store:       opts.Store,
		recorder:    opts.Recorder,
		transcriber: opts.Transcriber,
		uploader:    opts.Uploader,
		hub:         opts.Hub,
		audioDir:    audioDir,
		stopTimeout: opts.StopTimeout,
		levelEvery:  levelEvery,
		timer:       NewStopTimer(opts.MaxDuration),
		log:         logger.OrDiscard(opts.Log),
		now:         time.Now,
	}

	m.timer.OnExpire(func() {
		// A manual stop and restart may race the timer.
		if elapsed, ok := m.elapsed(); !ok || elapsed < m.timer.Limit() {
			return
		}
		m.log.WithField("limit", m.timer.Limit()).Info("maximum recording duration reached")
		if _, err := m.StopRecording(context.Background()); err != nil && !errors.Is(err, ErrNotRecording) {
			m.log.WithError(err).Error("auto-stop failed")
		}
	})

	return m
}

// StartRecording creates the catalogue row and starts capture into
// <audio_dir>/<date>/<id>.wav.
func (m *Manager) StartRecording(name string) (storage.Recording, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	busy := m.current != nil
	m.mu.Unlock()
	if busy {
		return storage.Recording{}, audio.ErrAlreadyCapturing
	}

	startedAt := m.now().UTC()
	id := xid.NewWithTime(startedAt).String()
	name = strings.TrimSpace(name)
	if name == "" {
		name = startedAt.Format("2006-01-02 15:04:05")
	}

	f := m.recorder.Format()
	rec := storage.Recording{
		ID:               id,
		Name:             name,
		StartedAt:        startedAt,
		Status:           storage.StatusRecording,
		AudioPath:        filepath.Join(m.audioDir, startedAt.Format("2006-01-02"), id+".wav"),
		SampleRate:       f.SampleRate,
		Channels:         f.Channels,
		TranscriptStatus: storage.TranscriptNone,
	}

	if err := m.store.CreateRecording(rec); err != nil {
		return storage.Recording{}, fmt.Errorf("create recording: %w", err)
	}

	if err := m.recorder.Start(rec.AudioPath); err != nil {
		if ferr := m.store.FinishRecording(id, storage.Stats{EndedAt: m.now().UTC()}, err.Error()); ferr != nil {
			m.log.WithError(ferr).WithField("recording", id).Warn("failed to mark recording failed")
		}
		return storage.Recording{}, fmt.Errorf("start capture: %w", err)
	}

	m.mu.Lock()
	m.current = &rec
	m.lastLevel = time.Time{}
	m.level = nil
	m.bytes = 0
	m.overruns = 0
	m.mu.Unlock()

	m.timer.Arm()

	m.log.WithFields(logrus.Fields{"recording": id, "path": rec.AudioPath}).Info("recording started")
	if m.hub != nil {
		m.hub.BroadcastCaptureStarted(rec)
	}
	return rec, nil
}

// StopRecording stops capture, stores the final counters and queues
// post-processing. A timed-out stop leaves the recording current so it can
// be retried.
func (m *Manager) StopRecording(ctx context.Context) (storage.Recording, error) {
	return m.stop(ctx, "")
}

// OnCaptureAbort receives the recorder's notice that capture ended on a file
// error. The recording is finished as failed and capture_stopped is sent.
func (m *Manager) OnCaptureAbort(res audio.Result, err error) {
	log := m.log.WithError(err).WithField("path", res.Path)
	log.Error("capture aborted")

	// The worker has already released its done channel, so the recorder
	// stop below returns at once.
	if _, stopErr := m.stop(context.Background(), res.Path); stopErr != nil &&
		!errors.Is(stopErr, ErrNotRecording) && !errors.Is(stopErr, audio.ErrIO) {
		log.WithError(stopErr).Error("failed to finish aborted recording")
	}
}

// stop finishes the current recording. A non-empty path restricts it to the
// recording capturing into that path.
func (m *Manager) stop(ctx context.Context, path string) (storage.Recording, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	cur := m.current
	m.mu.Unlock()
	if cur == nil || (path != "" && cur.AudioPath != path) {
		return storage.Recording{}, ErrNotRecording
	}

	m.timer.Disarm()

	if m.stopTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.stopTimeout)
		defer cancel()
	}

	res, capErr := m.recorder.StopContext(ctx)
	if errors.Is(capErr, audio.ErrStopTimeout) {
		return storage.Recording{}, capErr
	}

	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	endedAt := res.StoppedAt
	if endedAt.IsZero() {
		endedAt = m.now()
	}
	stats := storage.Stats{
		EndedAt:      endedAt.UTC(),
		DataBytes:    int64(res.DataBytes),
		Duration:     res.Duration,
		Drains:       int64(res.Drains),
		Overruns:     int64(res.Overruns),
		DeviceErrors: int64(res.DeviceErrors),
	}
	errMsg := ""
	if capErr != nil {
		errMsg = capErr.Error()
	}

	log := m.log.WithField("recording", cur.ID)
	if err := m.store.FinishRecording(cur.ID, stats, errMsg); err != nil {
		return storage.Recording{}, fmt.Errorf("finish recording: %w", err)
	}

	rec, err := m.store.GetRecording(cur.ID)
	if err != nil {
		return storage.Recording{}, fmt.Errorf("reload recording: %w", err)
	}

	log.WithFields(logrus.Fields{
		"bytes":    res.DataBytes,
		"duration": res.Duration,
		"overruns": res.Overruns,
		"status":   rec.Status,
	}).Info("recording stopped")

	if m.hub != nil {
		m.hub.BroadcastCaptureStopped(rec)
	}

	if capErr != nil {
		return rec, capErr
	}

	m.post.Add(1)
	go func() {
		defer m.post.Done()
		m.postProcess(context.Background(), rec)
	}()

	return rec, nil
}

// OnDrain receives drain events from the capture worker.
func (m *Manager) OnDrain(ev audio.DrainEvent) {
	m.mu.Lock()
	cur := m.current
	if cur == nil {
		m.mu.Unlock()
		return
	}

	level := ev.Level
	m.level = &level
	m.bytes = ev.TotalBytes

	newOverruns := ev.Overruns > m.overruns
	m.overruns = ev.Overruns

	now := m.now()
	emitLevel := now.Sub(m.lastLevel) >= m.levelEvery
	if emitLevel {
		m.lastLevel = now
	}
	id := cur.ID
	elapsed := now.Sub(cur.StartedAt)
	m.mu.Unlock()

	if m.hub == nil {
		return
	}
	if newOverruns {
		m.hub.BroadcastCaptureOverrun(id, ev.Overruns)
	}
	if emitLevel {
		m.hub.BroadcastCaptureLevel(id, level, elapsed)
	}
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{Capturing: m.recorder.Capturing()}
	if m.current == nil {
		return st
	}

	rec := *m.current
	st.Recording = &rec
	st.ElapsedMS = m.now().Sub(rec.StartedAt).Milliseconds()
	st.Bytes = m.bytes
	st.Overruns = m.overruns
	if m.level != nil {
		level := *m.level
		st.Level = &level
	}
	return st
}

func (m *Manager) elapsed() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return 0, false
	}
	return m.now().Sub(m.current.StartedAt), true
}

// Wait blocks until queued post-processing has finished.
func (m *Manager) Wait() {
	m.post.Wait()
}

func (m *Manager) postProcess(ctx context.Context, rec storage.Recording) {
	log := m.log.WithField("recording", rec.ID)

	if m.uploader != nil {
		fileID, err := m.uploader.Upload(ctx, rec.AudioPath)
		if err != nil {
			log.WithError(err).Warn("drive upload failed")
		} else if err := m.store.SetDriveFileID(rec.ID, fileID); err != nil {
			log.WithError(err).Warn("failed to store drive file id")
		}
	}

	if m.transcriber == nil {
		return
	}

	_ = m.store.UpdateTranscript(rec.ID, "", storage.TranscriptRunning)

	text, err := m.transcriber.Transcribe(ctx, rec.AudioPath)
	if err != nil {
		log.WithError(err).Warn("transcription failed")
		m.finishTranscript(rec.ID, "", storage.TranscriptFailed)
		return
	}

	if err := m.store.UpdateTranscript(rec.ID, text, storage.TranscriptCompleted); err != nil {
		log.WithError(err).Warn("failed to store transcript")
		m.finishTranscript(rec.ID, "", storage.TranscriptFailed)
		return
	}

	if m.hub != nil {
		m.hub.BroadcastTranscriptReady(rec.ID, text, storage.TranscriptCompleted)
	}
}

func (m *Manager) finishTranscript(id, text, status string) {
	_ = m.store.UpdateTranscript(id, text, status)
	if m.hub != nil {
		m.hub.BroadcastTranscriptReady(id, text, status)
	}
}
