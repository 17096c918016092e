package server

import (
	"time"

	"github.com/sjawhar/soundman/internal/audio"
	"github.com/sjawhar/soundman/internal/storage"
)

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type CaptureStartedEvent struct {
	Event
	Recording storage.Recording `json:"recording"`
}

type CaptureStoppedEvent struct {
	Event
	Recording storage.Recording `json:"recording"`
}

type CaptureLevelEvent struct {
	Event
	RecordingID string      `json:"recording_id"`
	Level       audio.Level `json:"level"`
	Elapsed     float64     `json:"elapsed"`
}

type CaptureOverrunEvent struct {
	Event
	RecordingID string `json:"recording_id"`
	Overruns    uint64 `json:"overruns"`
}

type TranscriptReadyEvent struct {
	Event
	RecordingID string `json:"recording_id"`
	Transcript  string `json:"transcript"`
	Status      string `json:"status"`
}

type SoundPlayedEvent struct {
	Event
	Name  string  `json:"name"`
	Pitch float64 `json:"pitch"`
	Gain  float64 `json:"gain"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
