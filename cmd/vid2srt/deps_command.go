package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"vid2srt/internal/config"
	"vid2srt/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check availability of external tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			statuses := deps.CheckBinaries(requirements(cfg))
			if asJSON {
				return writeJSON(cmd, statuses)
			}

			rows := make([][]string, 0, len(statuses))
			missingRequired := false
			for _, status := range statuses {
				state := "ok"
				if !status.Available {
					state = "missing"
					if !status.Optional {
						missingRequired = true
					}
				}
				rows = append(rows, []string{
					status.Name,
					status.Command,
					state,
					yesNo(status.Optional),
					status.Detail,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Tool", "Command", "Status", "Optional", "Detail"},
				rows,
				nil,
			))
			if missingRequired {
				return errors.New("required external tools are missing")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}

func requirements(cfg *config.Config) []deps.Requirement {
	return []deps.Requirement{
		{Name: "ffmpeg", Command: "ffmpeg", Description: "audio extraction"},
		{Name: "whisper runner", Command: cfg.Runners.Whisper, Description: "direct transcription engine"},
		{Name: "funasr runner", Command: cfg.Runners.FunASR, Description: "segmented transcription engine (Chinese)", Optional: true},
		{Name: "align runner", Command: cfg.Runners.Align, Description: "word-level forced alignment"},
		{Name: "diarize runner", Command: cfg.Runners.Diarize, Description: "speaker labeling", Optional: true},
	}
}
