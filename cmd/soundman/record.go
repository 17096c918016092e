package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sjawhar/soundman/internal/audio"
)

func newRecordCmd(a *app) *cobra.Command {
	var (
		out      string
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Capture from the configured device into a WAV file",
		Long:  "Capture from the configured device into a WAV file until Ctrl-C or until --duration elapses.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.record(cmd.Context(), cmd.OutOrStdout(), out, duration)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "destination WAV file (default <audio_dir>/<timestamp>.wav)")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "stop after this long; 0 waits for Ctrl-C")
	return cmd
}

func (a *app) record(parent context.Context, w io.Writer, out string, duration time.Duration) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	ctx, abort := context.WithCancel(ctx)
	defer abort()

	if out == "" {
		out = filepath.Join(a.cfg.AudioDir, time.Now().Format("20060102-150405")+".wav")
	}

	log := a.component("record")
	recorder, err := a.newRecorder(func(ev audio.DrainEvent) {
		log.WithFields(logrus.Fields{
			"frames":   ev.Frames,
			"total":    ev.TotalBytes,
			"rms_dbfs": ev.Level.RMS,
			"overruns": ev.Overruns,
		}).Debug("drain")
	}, func(_ audio.Result, err error) {
		log.WithError(err).Error("capture aborted")
		abort()
	})
	if err != nil {
		return err
	}

	if err := recorder.Start(out); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "Recording %s to %s, press Ctrl-C to stop\n", recorder.Format(), out)

	<-ctx.Done()

	stopCtx := context.Background()
	if timeout := a.cfg.Capture.ParsedStopTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		stopCtx, cancel = context.WithTimeout(stopCtx, timeout)
		defer cancel()
	}

	res, err := recorder.StopContext(stopCtx)
	if res.Path != "" {
		_, _ = fmt.Fprintf(w, "Wrote %d bytes (%s) to %s\n", res.DataBytes, res.Duration.Round(time.Millisecond), res.Path)
		if res.Overruns > 0 || res.DeviceErrors > 0 {
			_, _ = fmt.Fprintf(w, "Overruns: %d, device errors: %d\n", res.Overruns, res.DeviceErrors)
		}
	}
	return err
}
