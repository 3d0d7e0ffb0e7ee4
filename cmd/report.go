package cmd

import (
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/sheenazien8/mysql2mongo/storage"
	"github.com/sheenazien8/mysql2mongo/ui/report"
	"github.com/sheenazien8/mysql2mongo/ui/theme"
)

var (
	asJSON     bool
	copyReport bool
	runsLimit  int
	deleteRun  string
)

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Print a recorded run, the latest one by default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openJournal(); err != nil {
			return err
		}

		var run *storage.Run
		var err error
		if len(args) == 1 {
			run, err = storage.GetRun(args[0])
		} else {
			run, err = storage.LatestRun()
		}
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		outcomes, err := storage.GetOutcomes(ctx, run.ID)
		if err != nil {
			return fmt.Errorf("failed to load outcomes: %w", err)
		}
		diffs, err := storage.GetDiffs(ctx, run.ID)
		if err != nil {
			return fmt.Errorf("failed to load diffs: %w", err)
		}
		summary, err := report.FromJournal(run, outcomes, diffs)
		if err != nil {
			return err
		}

		var out string
		if asJSON {
			b, err := report.JSON(summary)
			if err != nil {
				return err
			}
			out = string(b) + "\n"
		} else {
			out = report.Render(summary)
		}
		fmt.Fprint(cmd.OutOrStdout(), out)

		if copyReport {
			text := out
			if !asJSON {
				// The clipboard gets the uncolored rendering.
				prev := theme.Current
				theme.SetTheme(theme.Plain())
				text = report.Render(summary)
				theme.SetTheme(prev)
			}
			if err := clipboard.WriteAll(text); err != nil {
				return fmt.Errorf("failed to copy report: %w", err)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), theme.Current.Muted.Render("report copied to clipboard"))
		}
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openJournal(); err != nil {
			return err
		}
		if deleteRun != "" {
			if _, err := storage.GetRun(deleteRun); err != nil {
				return err
			}
			if err := storage.DeleteRun(deleteRun); err != nil {
				return fmt.Errorf("failed to delete run: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted run "+deleteRun)
			return nil
		}

		runs, err := storage.GetRuns(runsLimit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), report.Runs(runs, time.Now()))
		return nil
	},
}

func init() {
	reportCmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	reportCmd.Flags().BoolVar(&copyReport, "copy", false, "Copy the report to the clipboard")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Number of runs to list")
	runsCmd.Flags().StringVar(&deleteRun, "delete", "", "Delete the run with this id")
	rootCmd.AddCommand(reportCmd, runsCmd)
}
