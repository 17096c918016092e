package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

func writeRecording(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "take.wav")
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write recording: %v", err)
	}
	return path
}

func newTestTranscriber(serverURL string) *OpenAI {
	config := openai.DefaultConfig("test-key")
	config.BaseURL = serverURL + "/v1"
	tr := NewOpenAIWithConfig(config, "")
	tr.sleep = func(_ time.Duration) {}
	return tr
}

func TestTranscribeReturnsText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != openai.Whisper1 {
			t.Errorf("expected default model, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"text": "  testing one two  "})
	}))
	defer server.Close()

	got, err := newTestTranscriber(server.URL).Transcribe(context.Background(), writeRecording(t, 128))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if got != "testing one two" {
		t.Fatalf("unexpected transcript: %q", got)
	}
}

func TestTranscribeRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestTranscriber(server.URL).Transcribe(context.Background(), writeRecording(t, 128))
	if err == nil {
		t.Fatal("expected error after retries")
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestTranscribeRecoversAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"text": "second time lucky"})
	}))
	defer server.Close()

	got, err := newTestTranscriber(server.URL).Transcribe(context.Background(), writeRecording(t, 64))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if got != "second time lucky" {
		t.Fatalf("unexpected transcript: %q", got)
	}
}

func TestTranscribeRejectsOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huge.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.Truncate(maxUploadBytes + 1); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	_ = f.Close()

	_, err = NewOpenAI("key", "").Transcribe(context.Background(), path)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}
