package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/sjawhar/soundman/internal/audio"
	"github.com/sjawhar/soundman/internal/sound"
)

func newPlayCmd(a *app) *cobra.Command {
	var (
		pitch float64
		gain  float64
		list  bool
	)

	cmd := &cobra.Command{
		Use:   "play [NAME]",
		Short: "Play a sound from the sounds directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := sound.LoadTable(a.cfg.SoundsDir, audio.DefaultFormat, a.component("sound"))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if list || len(args) == 0 {
				for _, info := range table.List() {
					_, _ = fmt.Fprintf(w, "%s\t%.2fs\n", info.Name, info.Duration)
				}
				return nil
			}

			if pitch <= 0 || gain < 0 {
				return fmt.Errorf("pitch must be positive and gain non-negative")
			}

			player := sound.NewPlayer(table, 1)
			output, err := sound.OpenOutput(player)
			if err != nil {
				return err
			}
			defer func() { _ = output.Close() }()

			if !player.PlayWith(args[0], pitch, gain) {
				return fmt.Errorf("unknown sound %q", args[0])
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			ticker := time.NewTicker(20 * time.Millisecond)
			defer ticker.Stop()
			for player.Active() > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&pitch, "pitch", 1, "playback rate multiplier")
	cmd.Flags().Float64Var(&gain, "gain", 1, "linear gain")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list available sounds")
	return cmd
}
