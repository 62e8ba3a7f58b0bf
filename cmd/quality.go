package cmd

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/healthpulse/healthpulse/quality"
)

var qualityFlags = struct {
	reportPath  string
	maxAgeHours int
}{}

// qualityCmd represents the quality command.
var qualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Run data quality checks against the warehouse and write a report",
	Long: `Run data quality checks against the warehouse and write a report.
Built-in checks cover extract freshness, row conservation, identity columns,
rank validity, disparity ranges and prevalence bounds. Add your own rules in
config as SQL paired with a JsonLogic expression. The command exits non-zero
when any check fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("report") {
			cfg.Quality.ReportPath = qualityFlags.reportPath
		}
		if cmd.Flags().Changed("max-age-hours") {
			cfg.Quality.FreshnessMaxHours = qualityFlags.maxAgeHours
		}
		log := newLogger(cfg)
		db, err := openWarehouse(log, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		report, err := quality.NewRunner(log, db, &cfg.Quality).Run(context.Background())
		if err != nil {
			return err
		}
		if err := report.Save(cfg.Quality.ReportPath); err != nil {
			return err
		}
		report.Print(os.Stdout)
		log.Info("quality report written to ", cfg.Quality.ReportPath)
		if !report.Passed {
			return errors.New("quality checks failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(qualityCmd)
	qualityCmd.Flags().SortFlags = false
	switches.addFlag(qualityCmd, &qualityFlags.reportPath, "report", "", false, "")
	switches.addFlag(qualityCmd, &qualityFlags.maxAgeHours, "max-age-hours", "24", false, "")
}
