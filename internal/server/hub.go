package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sjawhar/soundman/internal/audio"
	"github.com/sjawhar/soundman/internal/logger"
	"github.com/sjawhar/soundman/internal/storage"
)

// Hub fans events out to websocket subscribers. Slow subscribers drop
// messages rather than stall the capture path.
type Hub struct {
	log *logrus.Entry

	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub(log *logrus.Entry) *Hub {
	return &Hub{log: logger.OrDiscard(log), clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastCaptureStarted(rec storage.Recording) {
	h.broadcastEvent(CaptureStartedEvent{
		Event:     newEvent("capture_started", rec.StartedAt),
		Recording: rec,
	})
}

func (h *Hub) BroadcastCaptureStopped(rec storage.Recording) {
	h.broadcastEvent(CaptureStoppedEvent{
		Event:     newEvent("capture_stopped", time.Now().UTC()),
		Recording: rec,
	})
}

func (h *Hub) BroadcastCaptureLevel(recordingID string, level audio.Level, elapsed time.Duration) {
	h.broadcastEvent(CaptureLevelEvent{
		Event:       newEvent("capture_level", time.Now().UTC()),
		RecordingID: recordingID,
		Level:       level,
		Elapsed:     elapsed.Seconds(),
	})
}

func (h *Hub) BroadcastCaptureOverrun(recordingID string, overruns uint64) {
	h.broadcastEvent(CaptureOverrunEvent{
		Event:       newEvent("capture_overrun", time.Now().UTC()),
		RecordingID: recordingID,
		Overruns:    overruns,
	})
}

func (h *Hub) BroadcastTranscriptReady(recordingID, transcript, status string) {
	h.broadcastEvent(TranscriptReadyEvent{
		Event:       newEvent("transcript_ready", time.Now().UTC()),
		RecordingID: recordingID,
		Transcript:  transcript,
		Status:      status,
	})
}

func (h *Hub) BroadcastSoundPlayed(name string, pitch, gain float64) {
	h.broadcastEvent(SoundPlayedEvent{
		Event: newEvent("sound_played", time.Now().UTC()),
		Name:  name,
		Pitch: pitch,
		Gain:  gain,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Error("event marshal error")
		return
	}
	h.Broadcast(payload)
}
