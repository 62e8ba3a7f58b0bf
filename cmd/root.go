package cmd

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/healthpulse/healthpulse/config"
	"github.com/healthpulse/healthpulse/logger"
	"github.com/healthpulse/healthpulse/warehouse"
)

var (
	// Default values may be set at compile time.
	version          = "0.1.0"
	buildDate        = "2026-01-02T03:04+0500"
	cfgFile          string
	logLevel         string
	stackDumpOnPanic bool
)

var rootCmd = &cobra.Command{
	Use: "healthpulse",
	Long: `
HealthPulse pulls CDC PLACES county health data from the Socrata Open Data API,
lands it in a local DuckDB warehouse and builds a layered set of analytical
tables: cleaned staging data, per-state county rankings and profiles, and an
enriched county health mart. Run the stages individually or end-to-end, check
the results with built-in quality gates, and browse them in a web dashboard.`,
}

func init() {
	cobra.EnableCommandSorting = false
	// Global flags.
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", switches["config"].desc)
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", switches["log-level"].desc)
	rootCmd.PersistentFlags().BoolVar(&stackDumpOnPanic, "print-stack", false, "Print a stack dump if there is a panic")
	_ = rootCmd.PersistentFlags().MarkHidden("print-stack")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Execute() prints the error.
		os.Exit(1)
	}
}

// loadConfig reads the config file (or defaults when none is supplied) and
// applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) logger.Logger {
	return logger.NewLogger("healthpulse", cfg.LogLevel, stackDumpOnPanic)
}

// openWarehouse connects to the DuckDB file named in config, creating parent
// directories and the schema layout on first use.
func openWarehouse(log logger.Logger, cfg *config.Config) (*warehouse.Connection, error) {
	if dir := filepath.Dir(cfg.Warehouse.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "error creating warehouse directory")
		}
	}
	db, err := warehouse.OpenConnection(log, cfg.Warehouse.Path)
	if err != nil {
		return nil, err
	}
	if err := warehouse.EnsureSchemas(log, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
