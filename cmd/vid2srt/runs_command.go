package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"vid2srt/internal/runlog"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent transcription runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.RunLogPath == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Run history is disabled (run_log_path is empty).")
				return nil
			}

			store, err := runlog.Open(cfg.RunLogPath)
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs.")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.ID),
					run.CreatedAt.Local().Format("2006-01-02 15:04"),
					run.Language,
					run.Status,
					runDetail(run),
					run.InputPath,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Started", "Lang", "Status", "Detail", "Input"},
				rows,
				nil,
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runDetail(run runlog.Run) string {
	switch run.Status {
	case runlog.StatusFailed:
		return run.ErrorCode
	case runlog.StatusCompleted:
		detail := "alignment " + run.Alignment
		if run.FinishedAt != nil {
			detail += ", " + run.FinishedAt.Sub(run.CreatedAt).Round(time.Second).String()
		}
		return detail
	default:
		return "elapsed " + time.Since(run.CreatedAt).Round(time.Second).String()
	}
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
