package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sjawhar/soundman/internal/audio"
	"github.com/sjawhar/soundman/internal/logger"
)

// EnvPrefix is the namespace prefix for all soundman environment variables.
const EnvPrefix = "SOUNDMAN_"

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	DBPath                string `yaml:"db_path"`
	AudioDir              string `yaml:"audio_dir"`
	SoundsDir             string `yaml:"sounds_dir"`
	ListenAddr            string `yaml:"listen_addr"`
	TranscriptionModel    string `yaml:"transcription_model"`
	GDriveFolderID        string `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`

	Capture  CaptureConfig  `yaml:"capture"`
	Playback PlaybackConfig `yaml:"playback"`
	Log      logger.Config  `yaml:"log"`

	// Secrets: env vars only, never serialized to YAML.
	OpenAIAPIKey string `yaml:"-"`
}

// CaptureConfig describes the capture device and worker tuning. Durations
// are Go duration strings.
type CaptureConfig struct {
	Backend          string `yaml:"backend"`
	Device           string `yaml:"device"`
	SampleRate       int    `yaml:"sample_rate"`
	Channels         int    `yaml:"channels"`
	Buffer           string `yaml:"buffer"`
	DrainThreshold   string `yaml:"drain_threshold"`
	PollInterval     string `yaml:"poll_interval"`
	StopTimeout      string `yaml:"stop_timeout"`
	MaxDuration      string `yaml:"max_duration"`
	HeaderCheckpoint bool   `yaml:"header_checkpoint"`
	RealtimePriority bool   `yaml:"realtime_priority"`
}

type PlaybackConfig struct {
	Voices int `yaml:"voices"`
}

const (
	defaultBuffer         = 4 * time.Second
	defaultDrainThreshold = 250 * time.Millisecond
	defaultPollInterval   = 50 * time.Microsecond
)

func defaults() Config {
	return Config{
		DBPath:                "data/soundman.db",
		AudioDir:              "data/audio",
		SoundsDir:             "data/sounds",
		ListenAddr:            ":8080",
		TranscriptionModel:    "whisper-1",
		GoogleCredentialsFile: "./service-account.json",
		Capture: CaptureConfig{
			Backend:          "portaudio",
			SampleRate:       44100,
			Channels:         2,
			Buffer:           "4s",
			DrainThreshold:   "250ms",
			PollInterval:     "50us",
			StopTimeout:      "0s",
			MaxDuration:      "0s",
			HeaderCheckpoint: true,
			RealtimePriority: true,
		},
		Playback: PlaybackConfig{Voices: 8},
		Log:      logger.Config{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// Format is the capture stream layout. Invalid values fall back to 44.1 kHz
// stereo.
func (c CaptureConfig) Format() audio.Format {
	f := audio.Format{SampleRate: c.SampleRate, Channels: c.Channels}
	if f.Validate() != nil {
		return audio.DefaultFormat
	}
	return f
}

func (c CaptureConfig) ParsedBuffer() time.Duration {
	return positiveDuration(c.Buffer, defaultBuffer)
}

func (c CaptureConfig) ParsedDrainThreshold() time.Duration {
	return positiveDuration(c.DrainThreshold, defaultDrainThreshold)
}

func (c CaptureConfig) ParsedPollInterval() time.Duration {
	return positiveDuration(c.PollInterval, defaultPollInterval)
}

// ParsedStopTimeout is zero when stop should wait indefinitely.
func (c CaptureConfig) ParsedStopTimeout() time.Duration {
	return nonNegativeDuration(c.StopTimeout)
}

// ParsedMaxDuration is zero when recordings are unlimited.
func (c CaptureConfig) ParsedMaxDuration() time.Duration {
	return nonNegativeDuration(c.MaxDuration)
}

func positiveDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func nonNegativeDuration(raw string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d < 0 {
		return 0
	}
	return d
}

func applyEnvOverrides(cfg *Config) {
	str := map[string]*string{
		"DB_PATH":                 &cfg.DBPath,
		"AUDIO_DIR":               &cfg.AudioDir,
		"SOUNDS_DIR":              &cfg.SoundsDir,
		"LISTEN_ADDR":             &cfg.ListenAddr,
		"TRANSCRIPTION_MODEL":     &cfg.TranscriptionModel,
		"GDRIVE_FOLDER_ID":        &cfg.GDriveFolderID,
		"GOOGLE_CREDENTIALS_FILE": &cfg.GoogleCredentialsFile,
		"CAPTURE_BACKEND":         &cfg.Capture.Backend,
		"CAPTURE_DEVICE":          &cfg.Capture.Device,
		"CAPTURE_BUFFER":          &cfg.Capture.Buffer,
		"CAPTURE_DRAIN_THRESHOLD": &cfg.Capture.DrainThreshold,
		"CAPTURE_POLL_INTERVAL":   &cfg.Capture.PollInterval,
		"CAPTURE_STOP_TIMEOUT":    &cfg.Capture.StopTimeout,
		"CAPTURE_MAX_DURATION":    &cfg.Capture.MaxDuration,
		"LOG_LEVEL":               &cfg.Log.Level,
		"LOG_FORMAT":              &cfg.Log.Format,
		"LOG_FILE":                &cfg.Log.File,
	}
	for key, dst := range str {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CAPTURE_SAMPLE_RATE": &cfg.Capture.SampleRate,
		"CAPTURE_CHANNELS":    &cfg.Capture.Channels,
		"PLAYBACK_VOICES":     &cfg.Playback.Voices,
	}
	for key, dst := range ints {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
				*dst = n
			}
		}
	}

	bools := map[string]*bool{
		"CAPTURE_HEADER_CHECKPOINT": &cfg.Capture.HeaderCheckpoint,
		"CAPTURE_REALTIME_PRIORITY": &cfg.Capture.RealtimePriority,
	}
	for key, dst := range bools {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				*dst = b
			}
		}
	}
}

func loadSecrets(cfg *Config) {
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.OpenAIAPIKey == "" {
		warnings = append(warnings, "OpenAI API key not configured, transcription is disabled. Set "+EnvPrefix+"OPENAI_API_KEY.")
	}

	c := cfg.Capture
	if err := (audio.Format{SampleRate: c.SampleRate, Channels: c.Channels}).Validate(); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid capture format (%v), using %s.", err, audio.DefaultFormat))
	}
	if !validBackend(c.Backend) {
		warnings = append(warnings, fmt.Sprintf("Unknown capture backend %q, expected one of %s.", c.Backend, strings.Join(audio.BackendNames, ", ")))
	}

	checks := []struct {
		key, raw string
		positive bool
	}{
		{"capture.buffer", c.Buffer, true},
		{"capture.drain_threshold", c.DrainThreshold, true},
		{"capture.poll_interval", c.PollInterval, true},
		{"capture.stop_timeout", c.StopTimeout, false},
		{"capture.max_duration", c.MaxDuration, false},
	}
	for _, chk := range checks {
		d, err := time.ParseDuration(strings.TrimSpace(chk.raw))
		if err != nil || d < 0 || (chk.positive && d == 0) {
			warnings = append(warnings, fmt.Sprintf("Invalid %s %q, using default.", chk.key, chk.raw))
		}
	}
	if c.ParsedDrainThreshold() > c.ParsedBuffer() {
		warnings = append(warnings, "capture.drain_threshold exceeds capture.buffer, drains will happen only when the buffer is full.")
	}

	return warnings
}

func validBackend(name string) bool {
	for _, n := range audio.BackendNames {
		if strings.EqualFold(strings.TrimSpace(name), n) {
			return true
		}
	}
	return strings.EqualFold(name, "miniaudio")
}
