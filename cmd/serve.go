package cmd

import (
	"github.com/spf13/cobra"

	"github.com/healthpulse/healthpulse/dashboard"
)

var serveFlags = struct {
	addr string
	port int
}{}

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard web server over the published mart tables",
	Long: `Start the dashboard web server over the published mart tables.
Serves a browsable county health view plus a JSON API: /api/counties,
/api/states and /api/status.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("address") {
			cfg.Serve.Addr = serveFlags.addr
		}
		if cmd.Flags().Changed("port") {
			cfg.Serve.Port = serveFlags.port
		}
		log := newLogger(cfg)
		db, err := openWarehouse(log, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		return dashboard.RunWebServer(&dashboard.WebServerConfig{
			LogLevel:         cfg.LogLevel,
			Addr:             cfg.Serve.Addr,
			Port:             cfg.Serve.Port,
			Db:               db,
			StackDumpOnPanic: stackDumpOnPanic,
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().SortFlags = false
	switches.addFlag(serveCmd, &serveFlags.addr, "address", "0.0.0.0", false, "")
	switches.addFlag(serveCmd, &serveFlags.port, "port", "8080", false, "")
}
