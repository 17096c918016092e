package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sjawhar/soundman/internal/audio"
	"github.com/sjawhar/soundman/internal/config"
	"github.com/sjawhar/soundman/internal/logger"
)

// app carries state shared by every subcommand once the config is loaded.
type app struct {
	configPath string
	cfg        config.Config
	warnings   []string
	log        *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "soundman",
		Short:        "Capture audio to WAV files and trigger sound effects",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	defaultConfig := os.Getenv(config.EnvPrefix + "CONFIG")
	if defaultConfig == "" {
		defaultConfig = "config.yaml"
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", defaultConfig, "path to the YAML config file")

	root.AddCommand(
		newServeCmd(a),
		newRecordCmd(a),
		newDevicesCmd(a),
		newInspectCmd(a),
		newPlayCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, warnings, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.warnings = warnings
	a.log = logger.New(cfg.Log)

	for _, w := range warnings {
		a.log.Warn(w)
	}
	return nil
}

func (a *app) component(name string) *logrus.Entry {
	return logger.Component(a.log, name)
}

func (a *app) backend() (audio.Backend, error) {
	return audio.NewBackend(a.cfg.Capture.Backend, a.component("capture"))
}

// newRecorder builds a capture controller from the capture config.
func (a *app) newRecorder(onDrain func(audio.DrainEvent), onAbort func(audio.Result, error)) (*audio.Recorder, error) {
	backend, err := a.backend()
	if err != nil {
		return nil, err
	}

	c := a.cfg.Capture
	return audio.NewRecorder(audio.Options{
		Backend:          backend,
		Device:           c.Device,
		Format:           c.Format(),
		Buffer:           c.ParsedBuffer(),
		DrainThreshold:   c.ParsedDrainThreshold(),
		PollInterval:     c.ParsedPollInterval(),
		HeaderCheckpoint: c.HeaderCheckpoint,
		RealtimePriority: c.RealtimePriority,
		OnDrain:          onDrain,
		OnAbort:          onAbort,
		Log:              a.component("capture"),
	}), nil
}
