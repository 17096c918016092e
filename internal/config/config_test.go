package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sjawhar/soundman/internal/audio"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DB_PATH", "AUDIO_DIR", "SOUNDS_DIR", "LISTEN_ADDR",
		"TRANSCRIPTION_MODEL", "GDRIVE_FOLDER_ID", "GOOGLE_CREDENTIALS_FILE",
		"CAPTURE_BACKEND", "CAPTURE_DEVICE", "CAPTURE_SAMPLE_RATE", "CAPTURE_CHANNELS",
		"CAPTURE_BUFFER", "CAPTURE_DRAIN_THRESHOLD", "CAPTURE_POLL_INTERVAL",
		"CAPTURE_STOP_TIMEOUT", "CAPTURE_MAX_DURATION",
		"CAPTURE_HEADER_CHECKPOINT", "CAPTURE_REALTIME_PRIORITY",
		"PLAYBACK_VOICES", "LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
		"OPENAI_API_KEY", "CONFIG",
	} {
		t.Setenv(EnvPrefix+key, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "data/soundman.db" {
		t.Fatalf("expected default db_path, got %q", cfg.DBPath)
	}
	if cfg.AudioDir != "data/audio" {
		t.Fatalf("expected default audio_dir, got %q", cfg.AudioDir)
	}
	if got := cfg.Capture.Format(); got != audio.DefaultFormat {
		t.Fatalf("expected 44.1 kHz stereo, got %v", got)
	}
	if cfg.Capture.ParsedDrainThreshold() != 250*time.Millisecond {
		t.Fatalf("expected 250ms drain threshold, got %v", cfg.Capture.ParsedDrainThreshold())
	}
	if cfg.Capture.ParsedPollInterval() != 50*time.Microsecond {
		t.Fatalf("expected 50us poll interval, got %v", cfg.Capture.ParsedPollInterval())
	}
	if cfg.Capture.ParsedStopTimeout() != 0 {
		t.Fatalf("expected unbounded stop by default, got %v", cfg.Capture.ParsedStopTimeout())
	}
	if !cfg.Capture.HeaderCheckpoint {
		t.Fatal("expected header checkpoints on by default")
	}
	if cfg.Playback.Voices != 8 {
		t.Fatalf("expected 8 voices, got %d", cfg.Playback.Voices)
	}
}

func TestYAMLLoading(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
db_path: /custom/db.sqlite
audio_dir: /custom/audio
sounds_dir: /custom/sounds
listen_addr: 127.0.0.1:9000
capture:
  backend: malgo
  device: USB Mic
  sample_rate: 48000
  channels: 1
  drain_threshold: 100ms
  stop_timeout: 5s
  max_duration: 1h
  header_checkpoint: false
playback:
  voices: 4
log:
  level: debug
  format: json
gdrive_folder_id: my-folder
google_credentials_file: /path/to/creds.json
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "/custom/db.sqlite" {
		t.Fatalf("expected yaml db_path, got %q", cfg.DBPath)
	}
	if cfg.SoundsDir != "/custom/sounds" {
		t.Fatalf("expected yaml sounds_dir, got %q", cfg.SoundsDir)
	}
	if cfg.Capture.Backend != "malgo" || cfg.Capture.Device != "USB Mic" {
		t.Fatalf("expected yaml capture device, got %+v", cfg.Capture)
	}
	if got := cfg.Capture.Format(); got != (audio.Format{SampleRate: 48000, Channels: 1}) {
		t.Fatalf("expected yaml format, got %v", got)
	}
	if cfg.Capture.ParsedDrainThreshold() != 100*time.Millisecond {
		t.Fatalf("expected yaml drain threshold, got %v", cfg.Capture.ParsedDrainThreshold())
	}
	if cfg.Capture.ParsedStopTimeout() != 5*time.Second {
		t.Fatalf("expected yaml stop timeout, got %v", cfg.Capture.ParsedStopTimeout())
	}
	if cfg.Capture.ParsedMaxDuration() != time.Hour {
		t.Fatalf("expected yaml max duration, got %v", cfg.Capture.ParsedMaxDuration())
	}
	if cfg.Capture.HeaderCheckpoint {
		t.Fatal("expected yaml to disable header checkpoints")
	}
	if !cfg.Capture.RealtimePriority {
		t.Fatal("expected unset realtime_priority to keep its default")
	}
	if cfg.Playback.Voices != 4 {
		t.Fatalf("expected yaml voices, got %d", cfg.Playback.Voices)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("expected yaml log config, got %+v", cfg.Log)
	}
	if cfg.GDriveFolderID != "my-folder" {
		t.Fatalf("expected yaml gdrive_folder_id, got %q", cfg.GDriveFolderID)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
db_path: /from/yaml
capture:
  sample_rate: 22050
  header_checkpoint: true
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	clearEnv(t)
	t.Setenv(EnvPrefix+"DB_PATH", "/from/env")
	t.Setenv(EnvPrefix+"CAPTURE_SAMPLE_RATE", "16000")
	t.Setenv(EnvPrefix+"CAPTURE_HEADER_CHECKPOINT", "false")
	t.Setenv(EnvPrefix+"CAPTURE_DEVICE", "hw:1")
	t.Setenv(EnvPrefix+"PLAYBACK_VOICES", "not-a-number")

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "/from/env" {
		t.Fatalf("expected env override for db_path, got %q", cfg.DBPath)
	}
	if cfg.Capture.SampleRate != 16000 {
		t.Fatalf("expected env override for sample rate, got %d", cfg.Capture.SampleRate)
	}
	if cfg.Capture.HeaderCheckpoint {
		t.Fatal("expected env override to disable header checkpoints")
	}
	if cfg.Capture.Device != "hw:1" {
		t.Fatalf("expected env override for device, got %q", cfg.Capture.Device)
	}
	if cfg.Playback.Voices != 8 {
		t.Fatalf("expected invalid voices override to be ignored, got %d", cfg.Playback.Voices)
	}
}

func TestSecretsFromEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"OPENAI_API_KEY", "oai-secret")

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.OpenAIAPIKey != "oai-secret" {
		t.Fatalf("expected openai key from env, got %q", cfg.OpenAIAPIKey)
	}
}

func TestSecretsIgnoredInYAML(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("openai_api_key: should-be-ignored\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.OpenAIAPIKey != "" {
		t.Fatalf("expected empty openai key (yaml should be ignored), got %q", cfg.OpenAIAPIKey)
	}
}

func TestValidationWarnings(t *testing.T) {
	clearEnv(t)

	_, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(warnings) != 1 || !strings.Contains(warnings[0], "OpenAI") {
		t.Fatalf("expected only the OpenAI warning, got: %v", warnings)
	}
}

func TestValidationNoWarningsWhenConfigured(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"OPENAI_API_KEY", "key")

	_, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(warnings) != 0 {
		t.Fatalf("expected no warnings when fully configured, got: %v", warnings)
	}
}

func TestInvalidCaptureSettingsWarn(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"OPENAI_API_KEY", "key")
	t.Setenv(EnvPrefix+"CAPTURE_POLL_INTERVAL", "fast")
	t.Setenv(EnvPrefix+"CAPTURE_CHANNELS", "6")
	t.Setenv(EnvPrefix+"CAPTURE_BACKEND", "alsa")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	joined := strings.Join(warnings, "\n")
	for _, want := range []string{"capture.poll_interval", "capture format", "capture backend"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected warning mentioning %q, got: %v", want, warnings)
		}
	}

	if cfg.Capture.ParsedPollInterval() != 50*time.Microsecond {
		t.Fatalf("expected fallback poll interval, got %v", cfg.Capture.ParsedPollInterval())
	}
	if cfg.Capture.Format() != audio.DefaultFormat {
		t.Fatalf("expected fallback format, got %v", cfg.Capture.Format())
	}
}

func TestMissingConfigFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Load should not fail for missing config file, got: %v", err)
	}

	if cfg.DBPath != "data/soundman.db" {
		t.Fatalf("expected defaults when config file missing, got db_path=%q", cfg.DBPath)
	}
}

func TestInvalidConfigFileReturnsError(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(configPath, []byte(":::invalid yaml"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	clearEnv(t)

	_, _, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for invalid yaml, got nil")
	}
}
