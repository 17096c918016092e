package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sjawhar/soundman/internal/wav"
)

var errInconsistent = errors.New("declared data size does not match payload")

func newInspectCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Validate WAV files and report their header against the payload",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			var failed error

			for _, path := range args {
				info, err := wav.Inspect(path)
				if err != nil {
					failed = errors.Join(failed, fmt.Errorf("%s: %w", path, err))
					continue
				}
				if !info.Consistent() {
					failed = errors.Join(failed, fmt.Errorf("%s: %w", path, errInconsistent))
				}

				if asJSON {
					if err := json.NewEncoder(w).Encode(info); err != nil {
						return err
					}
					continue
				}
				_, _ = fmt.Fprintf(w, "%s: %d Hz, %d ch, %d-bit, %d frames, %s, declared %d / payload %d bytes\n",
					info.Path, info.SampleRate, info.Channels, info.BitDepth, info.Frames, info.Duration,
					info.DeclaredData, info.PayloadBytes)
			}
			return failed
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON object per file")
	return cmd
}
