package cmd

import (
	"github.com/spf13/cobra"

	"github.com/healthpulse/healthpulse/warehouse"
)

var loadFlags = struct {
	file      string
	rawDir    string
	batchSize int
}{}

// loadCmd represents the load command.
var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load raw JSON extract files into the warehouse",
	Long: `Load raw JSON extract files into the warehouse.
The table schema is inferred from the records, preserving source column order,
and the data lands in batched inserts inside one transaction per file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("raw-dir") {
			cfg.Extract.RawDir = loadFlags.rawDir
		}
		if cmd.Flags().Changed("batch-size") {
			cfg.Warehouse.BatchSize = loadFlags.batchSize
		}
		log := newLogger(cfg)
		db, err := openWarehouse(log, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		loader := warehouse.NewLoader(log, db, cfg.Warehouse.BatchSize)
		var rows int64
		if loadFlags.file != "" {
			rows, err = loader.LoadJsonFile(loadFlags.file)
		} else {
			rows, err = loader.LoadRawDirectory(cfg.Extract.RawDir)
		}
		if err != nil {
			return err
		}
		log.Info("load complete: ", rows, " rows")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().SortFlags = false
	switches.addFlag(loadCmd, &loadFlags.file, "file", "", false, "")
	switches.addFlag(loadCmd, &loadFlags.rawDir, "raw-dir", "", false, "")
	switches.addFlag(loadCmd, &loadFlags.batchSize, "batch-size", "500", false, "")
}
