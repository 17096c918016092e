package session

import (
	"context"
	"time"

	"github.com/sjawhar/soundman/internal/audio"
	"github.com/sjawhar/soundman/internal/storage"
)

type Store interface {
	CreateRecording(rec storage.Recording) error
	FinishRecording(id string, st storage.Stats, errMsg string) error
	UpdateTranscript(id, transcript, status string) error
	SetDriveFileID(id, fileID string) error
	GetRecording(id string) (storage.Recording, error)
}

type Recorder interface {
	Start(path string) error
	StopContext(ctx context.Context) (audio.Result, error)
	Capturing() bool
	Format() audio.Format
}

type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

type EventBroadcaster interface {
	BroadcastCaptureStarted(rec storage.Recording)
	BroadcastCaptureStopped(rec storage.Recording)
	BroadcastCaptureLevel(recordingID string, level audio.Level, elapsed time.Duration)
	BroadcastCaptureOverrun(recordingID string, overruns uint64)
	BroadcastTranscriptReady(recordingID, transcript, status string)
}
