package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/healthpulse/healthpulse/extract"
)

var extractFlags = struct {
	states string
	rawDir string
}{}

// extractCmd represents the extract command.
var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Fetch CDC PLACES county data from the Socrata API into raw JSON files",
	Long: `Fetch CDC PLACES county data from the Socrata API into raw JSON files.
Pages through the dataset until it is exhausted and stamps each record with
extract metadata. Set ` + "HEALTHPULSE_APP_TOKEN" + ` to raise the API rate limits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("states") {
			cfg.Extract.States = splitStates(extractFlags.states)
		}
		if cmd.Flags().Changed("raw-dir") {
			cfg.Extract.RawDir = extractFlags.rawDir
		}
		log := newLogger(cfg)
		result, err := extract.NewExtractor(log, &cfg.Extract).Run(context.Background())
		if err != nil {
			return err
		}
		log.Info("extract complete: ", result.Rows, " rows over ", result.Pages, " pages -> ", result.FilePath)
		return nil
	},
}

func splitStates(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	states := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			states = append(states, strings.ToUpper(s))
		}
	}
	return states
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().SortFlags = false
	switches.addFlag(extractCmd, &extractFlags.states, "states", "", false, "")
	switches.addFlag(extractCmd, &extractFlags.rawDir, "raw-dir", "", false, "")
}
