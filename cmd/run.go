package cmd

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/healthpulse/healthpulse/extract"
	"github.com/healthpulse/healthpulse/quality"
	"github.com/healthpulse/healthpulse/transform"
	"github.com/healthpulse/healthpulse/warehouse"
)

var runFlags = struct {
	states      string
	skipQuality bool
}{}

// runCmd represents the run command.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: extract, load, transform and quality checks",
	Long: `Run the full pipeline: extract, load, transform and quality checks.
Equivalent to running the individual commands in order against one config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("states") {
			cfg.Extract.States = splitStates(runFlags.states)
		}
		log := newLogger(cfg)
		ctx := context.Background()
		result, err := extract.NewExtractor(log, &cfg.Extract).Run(ctx)
		if err != nil {
			return err
		}
		db, err := openWarehouse(log, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		rows, err := warehouse.NewLoader(log, db, cfg.Warehouse.BatchSize).LoadJsonFile(result.FilePath)
		if err != nil {
			return err
		}
		log.Info("loaded ", rows, " rows from ", result.FilePath)
		if _, err := transform.NewPipeline(log, db).Run(ctx); err != nil {
			return err
		}
		if runFlags.skipQuality {
			log.Warn("skipping quality checks")
			return nil
		}
		report, err := quality.NewRunner(log, db, &cfg.Quality).Run(ctx)
		if err != nil {
			return err
		}
		if err := report.Save(cfg.Quality.ReportPath); err != nil {
			return err
		}
		report.Print(os.Stdout)
		if !report.Passed {
			return errors.New("quality checks failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().SortFlags = false
	switches.addFlag(runCmd, &runFlags.states, "states", "", false, "")
	switches.addFlag(runCmd, &runFlags.skipQuality, "skip-quality", "false", false, "")
}
