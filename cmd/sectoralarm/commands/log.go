package commands

import (
	"os"
	"sectoralarm/internal/components/telemetry"
	"sectoralarm/pkg/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(logCmd)
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Prints the event log of the alarm, most recent event first.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			serviceutil.Fatal("failed to load config", err)
		}
		client, err := newClient(cfg, telemetry.SlogAPI{})
		if err != nil {
			serviceutil.Fatal("failed to create client", err)
		}

		items, err := client.EventLog(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to get event log", err)
		}

		err = printLog(os.Stdout, outputFormat, items)
		if err != nil {
			serviceutil.Fatal("failed to print event log", err)
		}
	},
}
