// Package cmd is the mysql2mongo command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sheenazien8/mysql2mongo/config"
	"github.com/sheenazien8/mysql2mongo/logger"
	"github.com/sheenazien8/mysql2mongo/storage"
	"github.com/sheenazien8/mysql2mongo/ui/theme"
)

var (
	configPath string
	schemaFile string
	noColor    bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mysql2mongo",
	Short: "Migrate a MySQL database to MongoDB and validate the result",
	Long: `mysql2mongo translates a MySQL schema into MongoDB collections with validators and
indexes, copies every table, turns foreign keys into DBRefs and can rebuild the source
from the migrated documents to prove nothing was lost.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.config/mysql2mongo/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&schemaFile, "schema", "s", "", "Schema crawler JSON document (overrides schema.file)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	if schemaFile != "" {
		cfg.Schema.File = schemaFile
	}

	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return err
	}
	if cfg.Log.File != "" {
		if err := logger.SetFile(cfg.Log.File); err != nil {
			return err
		}
	}

	if noColor || !isTerminal(os.Stdout) {
		theme.SetTheme(theme.Plain())
	} else {
		theme.SetTheme(theme.GetThemeByName(cfg.Theme))
	}

	logger.Debug("Command started", map[string]any{
		"command": cmd.CommandPath(),
		"config":  configPath,
	})
	return nil
}

func teardown(cmd *cobra.Command, args []string) {
	if err := storage.Close(); err != nil {
		logger.Warn("Failed to close journal", map[string]any{"error": err.Error()})
	}
	_ = logger.Close()
}

// openJournal opens the run journal configured for this invocation.
func openJournal() error {
	if err := storage.Init(cfg.Journal.Path); err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	return nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
