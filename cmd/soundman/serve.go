package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sjawhar/soundman/internal/audio"
	"github.com/sjawhar/soundman/internal/gdrive"
	"github.com/sjawhar/soundman/internal/server"
	"github.com/sjawhar/soundman/internal/session"
	"github.com/sjawhar/soundman/internal/sound"
	"github.com/sjawhar/soundman/internal/storage"
	"github.com/sjawhar/soundman/internal/transcribe"
)

const shutdownStopTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control API, event stream and sound playback",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := a.component("serve")
	log.Info("soundman: starting")

	store, err := storage.NewSQLiteStore(a.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("storage init failed: %w", err)
	}
	defer func() { _ = store.Close() }()

	if n, err := store.MarkInterrupted(time.Now()); err != nil {
		log.WithError(err).Warn("could not mark interrupted recordings")
	} else if n > 0 {
		log.WithField("count", n).Warn("recordings left open by a previous run marked interrupted")
	}

	hub := server.NewHub(a.component("hub"))

	var manager *session.Manager
	recorder, err := a.newRecorder(
		func(ev audio.DrainEvent) { manager.OnDrain(ev) },
		func(res audio.Result, err error) { manager.OnCaptureAbort(res, err) },
	)
	if err != nil {
		return err
	}

	opts := session.Options{
		Store:       store,
		Recorder:    recorder,
		Hub:         hub,
		AudioDir:    a.cfg.AudioDir,
		MaxDuration: a.cfg.Capture.ParsedMaxDuration(),
		StopTimeout: a.cfg.Capture.ParsedStopTimeout(),
		Log:         a.component("session"),
	}
	if a.cfg.OpenAIAPIKey != "" {
		opts.Transcriber = transcribe.NewOpenAI(a.cfg.OpenAIAPIKey, a.cfg.TranscriptionModel)
	}
	if a.cfg.GDriveFolderID != "" {
		syncer, err := gdrive.NewSyncer(ctx, a.cfg.GoogleCredentialsFile, a.cfg.GDriveFolderID)
		if err != nil {
			log.WithError(err).Warn("gdrive upload disabled")
		} else {
			opts.Uploader = syncer
		}
	}
	manager = session.NewManager(opts)

	deps := server.Deps{
		Hub:      hub,
		Store:    store,
		Capture:  manager,
		Devices:  recorderDevices(a),
		Warnings: func() []string { return a.warnings },
		Log:      a.component("http"),
	}

	player, output := a.openPlayback()
	if player != nil {
		deps.Sounds = player
	}
	defer func() { _ = output.Close() }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(gctx, a.cfg.ListenAddr, deps)
	})

	err = g.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownStopTimeout)
	defer cancel()
	if _, stopErr := manager.StopRecording(stopCtx); stopErr != nil && !errors.Is(stopErr, session.ErrNotRecording) {
		log.WithError(stopErr).Error("failed to stop recording on shutdown")
	}
	manager.Wait()

	log.Info("soundman: stopped")
	return err
}

// openPlayback loads the sound table and opens the output stream. Playback
// is optional: failures are logged and the API runs without it.
func (a *app) openPlayback() (*sound.Player, *sound.Output) {
	log := a.component("sound")

	table, err := sound.LoadTable(a.cfg.SoundsDir, audio.DefaultFormat, log)
	if err != nil {
		log.WithError(err).Warn("sound table unavailable")
		return nil, nil
	}
	player := sound.NewPlayer(table, a.cfg.Playback.Voices)

	output, err := sound.OpenOutput(player)
	if err != nil {
		log.WithError(err).Warn("playback output unavailable, sounds will not be heard")
		return player, nil
	}
	log.WithField("sounds", table.Len()).Info("playback ready")
	return player, output
}

func recorderDevices(a *app) func() ([]audio.DeviceInfo, error) {
	return func() ([]audio.DeviceInfo, error) {
		backend, err := a.backend()
		if err != nil {
			return nil, err
		}
		return backend.Devices()
	}
}
