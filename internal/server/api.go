package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sjawhar/soundman/internal/audio"
	"github.com/sjawhar/soundman/internal/session"
	"github.com/sjawhar/soundman/internal/sound"
	"github.com/sjawhar/soundman/internal/storage"
)

var recordingIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type RecordingStore interface {
	GetRecordingsByDate(date string) ([]storage.Recording, error)
	GetRecording(id string) (storage.Recording, error)
	GetDates() ([]string, error)
}

type CaptureControl interface {
	StartRecording(name string) (storage.Recording, error)
	StopRecording(ctx context.Context) (storage.Recording, error)
	Status() session.Status
}

type SoundPlayer interface {
	List() []sound.Info
	PlayWith(name string, pitch, gain float64) bool
}

type startRequest struct {
	Name string `json:"name"`
}

func registerAPIRoutes(mux *http.ServeMux, deps Deps) {
	store := deps.Store

	mux.HandleFunc("POST /api/capture/start", func(w http.ResponseWriter, r *http.Request) {
		var req startRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
			return
		}

		rec, err := deps.Capture.StartRecording(req.Name)
		if err != nil {
			writeJSONError(w, startErrorStatus(err), fmt.Sprintf("start capture: %v", err))
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	})

	mux.HandleFunc("POST /api/capture/stop", func(w http.ResponseWriter, r *http.Request) {
		rec, err := deps.Capture.StopRecording(r.Context())
		switch {
		case errors.Is(err, session.ErrNotRecording):
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, audio.ErrStopTimeout):
			writeJSONError(w, http.StatusGatewayTimeout, fmt.Sprintf("stop capture: %v", err))
		case err != nil && rec.ID != "":
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error":     fmt.Sprintf("stop capture: %v", err),
				"recording": rec,
			})
		case err != nil:
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("stop capture: %v", err))
		default:
			writeJSON(w, http.StatusOK, rec)
		}
	})

	mux.HandleFunc("GET /api/capture/status", func(w http.ResponseWriter, r *http.Request) {
		var warnings []string
		if deps.Warnings != nil {
			warnings = deps.Warnings()
		}
		if warnings == nil {
			warnings = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"capture":  deps.Capture.Status(),
			"warnings": warnings,
		})
	})

	mux.HandleFunc("GET /api/recordings", func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date != "" {
			if _, err := time.Parse("2006-01-02", date); err != nil {
				writeJSONError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
				return
			}
		}

		recordings, err := store.GetRecordingsByDate(date)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list recordings: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, recordings)
	})

	mux.HandleFunc("GET /api/recordings/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !validRecordingID(id) {
			writeJSONError(w, http.StatusForbidden, "invalid recording id")
			return
		}

		rec, err := store.GetRecording(id)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, os.ErrNotExist) || errors.Is(err, sql.ErrNoRows) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, fmt.Sprintf("get recording: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, rec)
	})

	mux.HandleFunc("GET /api/recordings/{id}/audio", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !validRecordingID(id) {
			writeJSONError(w, http.StatusForbidden, "invalid recording id")
			return
		}

		rec, err := store.GetRecording(id)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "recording not found")
			return
		}

		if rec.AudioPath == "" {
			writeJSONError(w, http.StatusNotFound, "audio not available")
			return
		}

		cleanPath := filepath.Clean(rec.AudioPath)
		if cleanPath == "" || cleanPath == "." || cleanPath == ".." || strings.Contains(cleanPath, "..") {
			writeJSONError(w, http.StatusForbidden, "invalid audio path")
			return
		}

		f, err := os.Open(cleanPath)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "audio file not found")
			return
		}
		defer func() { _ = f.Close() }()

		info, err := f.Stat()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("stat audio: %v", err))
			return
		}

		w.Header().Set("Accept-Ranges", "bytes")
		// A recording still in progress keeps growing.
		if rec.Status == storage.StatusRecording {
			w.Header().Set("Cache-Control", "no-cache")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		}
		w.Header().Set("Content-Type", "audio/wav")
		http.ServeContent(w, r, filepath.Base(cleanPath), info.ModTime(), f)
	})

	mux.HandleFunc("GET /api/dates", func(w http.ResponseWriter, r *http.Request) {
		dates, err := store.GetDates()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get dates: %v", err))
			return
		}
		if dates == nil {
			dates = []string{}
		}
		writeJSON(w, http.StatusOK, dates)
	})

	mux.HandleFunc("GET /api/devices", func(w http.ResponseWriter, r *http.Request) {
		if deps.Devices == nil {
			writeJSON(w, http.StatusOK, []audio.DeviceInfo{})
			return
		}
		devices, err := deps.Devices()
		if err != nil {
			writeJSONError(w, http.StatusServiceUnavailable, fmt.Sprintf("list devices: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, devices)
	})

	mux.HandleFunc("GET /api/sounds", func(w http.ResponseWriter, r *http.Request) {
		if deps.Sounds == nil {
			writeJSON(w, http.StatusOK, []sound.Info{})
			return
		}
		writeJSON(w, http.StatusOK, deps.Sounds.List())
	})

	mux.HandleFunc("POST /api/sounds/{name}/play", func(w http.ResponseWriter, r *http.Request) {
		if deps.Sounds == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "playback is not available")
			return
		}

		name := r.PathValue("name")
		pitch, err := queryFloat(r, "pitch", 1)
		if err != nil || pitch <= 0 {
			writeJSONError(w, http.StatusBadRequest, "pitch must be a positive number")
			return
		}
		gain, err := queryFloat(r, "gain", 1)
		if err != nil || gain < 0 {
			writeJSONError(w, http.StatusBadRequest, "gain must be a non-negative number")
			return
		}

		if !deps.Sounds.PlayWith(name, pitch, gain) {
			writeJSONError(w, http.StatusNotFound, fmt.Sprintf("unknown sound %q", name))
			return
		}
		if deps.Hub != nil {
			deps.Hub.BroadcastSoundPlayed(name, pitch, gain)
		}
		w.WriteHeader(http.StatusAccepted)
	})
}

func startErrorStatus(err error) int {
	switch {
	case errors.Is(err, audio.ErrAlreadyCapturing):
		return http.StatusConflict
	case errors.Is(err, audio.ErrDeviceUnavailable), errors.Is(err, audio.ErrDeviceOpenFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func queryFloat(r *http.Request, key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func validRecordingID(id string) bool {
	return recordingIDPattern.MatchString(id)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
