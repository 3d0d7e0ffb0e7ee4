package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sheenazien8/mysql2mongo/app"
	"github.com/sheenazien8/mysql2mongo/logger"
	"github.com/sheenazien8/mysql2mongo/pipeline"
	"github.com/sheenazien8/mysql2mongo/storage"
	"github.com/sheenazien8/mysql2mongo/ui/report"
	"github.com/sheenazien8/mysql2mongo/ui/theme"
)

var (
	workers      int
	retries      int
	batchSize    int
	timeout      time.Duration
	withValidate bool
	dropTarget   bool
	useTUI       bool
)

// errTablesFailed marks a run that finished with failed tables.
var errTablesFailed = errors.New("some tables failed")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the whole migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd, nil)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy every table into its collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd, []string{pipeline.StageForward})
	},
}

var referencesCmd = &cobra.Command{
	Use:   "references",
	Short: "Add DBRef fields for every foreign key",
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd, []string{pipeline.StageReference})
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Rebuild the source from MongoDB and diff it against MySQL",
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd, []string{pipeline.StageValidate})
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, migrateCmd, referencesCmd, validateCmd, translateCmd} {
		c.Flags().IntVarP(&workers, "workers", "w", 0, "Tables processed concurrently (overrides pipeline.workers)")
		c.Flags().IntVar(&retries, "retries", 0, "Retries for a store that is unavailable (overrides pipeline.retries)")
		c.Flags().DurationVar(&timeout, "timeout", 0, "Limit for the whole run (overrides pipeline.timeout)")
		c.Flags().BoolVar(&useTUI, "tui", false, "Show the interactive progress view")
	}
	for _, c := range []*cobra.Command{runCmd, migrateCmd} {
		c.Flags().IntVar(&batchSize, "batch-size", 0, "Documents per insert, 0 writes a table at once (overrides pipeline.batch_size)")
	}
	runCmd.Flags().BoolVar(&withValidate, "validate", false, "Run the validation round trip (overrides pipeline.validate)")
	for _, c := range []*cobra.Command{runCmd, translateCmd} {
		c.Flags().BoolVar(&dropTarget, "drop-target", false, "Drop the MongoDB database first")
	}

	rootCmd.AddCommand(runCmd, migrateCmd, referencesCmd, validateCmd)
}

// options merges the pipeline config with the flags set on cmd.
func options(cmd *cobra.Command, phases []string) pipeline.Options {
	opts := pipeline.Options{
		Workers:    cfg.Pipeline.Workers,
		Retries:    cfg.Pipeline.Retries,
		BatchSize:  cfg.Pipeline.BatchSize,
		Timeout:    cfg.Pipeline.Timeout,
		Validate:   cfg.Pipeline.Validate,
		DropTarget: dropTarget,
		Phases:     phases,
	}
	flags := cmd.Flags()
	if flags.Changed("workers") {
		opts.Workers = workers
	}
	if flags.Changed("retries") {
		opts.Retries = retries
	}
	if flags.Changed("batch-size") {
		opts.BatchSize = batchSize
	}
	if flags.Changed("timeout") {
		opts.Timeout = timeout
	}
	if flags.Changed("validate") {
		opts.Validate = withValidate
	}
	return opts
}

func opener() pipeline.URLOpener {
	return pipeline.URLOpener{
		MySQL:    cfg.MySQLURL(""),
		Mongo:    cfg.MongoURL(),
		Database: cfg.TargetDatabase(),
	}
}

func execute(cmd *cobra.Command, phases []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	doc, err := os.ReadFile(cfg.Schema.File)
	if err != nil {
		return fmt.Errorf("failed to read schema document: %w", err)
	}
	opts := options(cmd, phases)

	if err := openJournal(); err != nil {
		return err
	}
	runID, err := storage.CreateRun(cfg.MySQL.Database, cfg.TargetDatabase())
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	logger.Info("Migration started", map[string]any{
		"run":    runID,
		"phases": strings.Join(pipeline.Phases(opts), ","),
	})

	var rep *pipeline.Report
	var runErr error
	if useTUI {
		rep, runErr = app.Run(ctx, opener(), doc, opts)
	} else {
		out := cmd.ErrOrStderr()
		opts.Progress = func(ev pipeline.Event) {
			line := fmt.Sprintf("%-10s %d/%d %s", ev.Phase, ev.Done, ev.Total, ev.Table)
			if ev.Err != nil {
				line += " failed"
			}
			fmt.Fprintln(out, theme.Current.Muted.Render(line))
		}
		rep, runErr = pipeline.New(opener(), doc, opts).Run(ctx)
	}

	if rep == nil {
		if err := storage.FinishRun(runID, storage.StatusFailed); err != nil {
			logger.Warn("Failed to finish run", map[string]any{"run": runID, "error": err.Error()})
		}
		return runErr
	}

	summary := report.FromPipeline(rep)
	summary.RunID = runID
	if err := persist(runID, summary); err != nil {
		logger.Error("Failed to journal run", map[string]any{"run": runID, "error": err.Error()})
	}
	fmt.Fprint(cmd.OutOrStdout(), report.Render(summary))

	if runErr != nil {
		return runErr
	}
	if failed := rep.FailedTables(); len(failed) > 0 {
		return fmt.Errorf("%w: %s", errTablesFailed, strings.Join(failed, ", "))
	}
	return nil
}

// persist stores the outcomes and diffs of a run and closes it.
func persist(runID string, s report.Summary) error {
	for _, o := range s.Outcomes(runID) {
		if err := storage.AddOutcome(o); err != nil {
			return err
		}
	}
	diffs, err := s.DiffSummaries(runID)
	if err != nil {
		return err
	}
	for _, d := range diffs {
		if err := storage.AddDiff(d); err != nil {
			return err
		}
	}
	return storage.FinishRun(runID, s.Status)
}

