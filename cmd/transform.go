package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/healthpulse/healthpulse/transform"
)

var transformFlags = struct {
	dbPath string
}{}

// transformCmd represents the transform command.
var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Build the staging, intermediate and mart tables from the raw data",
	Long: `Build the staging, intermediate and mart tables from the raw data.
All stages run inside one transaction and each table is swapped in atomically,
so a failed run leaves the previously published tables untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("warehouse") {
			cfg.Warehouse.Path = transformFlags.dbPath
		}
		log := newLogger(cfg)
		db, err := openWarehouse(log, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		results, err := transform.NewPipeline(log, db).Run(context.Background())
		if err != nil {
			return err
		}
		log.Info("transform complete: ", len(results), " stages built")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(transformCmd)
	transformCmd.Flags().SortFlags = false
	switches.addFlag(transformCmd, &transformFlags.dbPath, "warehouse", "", false, "")
}
