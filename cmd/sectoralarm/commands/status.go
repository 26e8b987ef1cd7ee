package commands

import (
	"os"
	"sectoralarm/internal/components/telemetry"
	"sectoralarm/pkg/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Prints the current status of the alarm.",
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

		record, err := client.Status(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to get status", err)
		}

		err = printStatus(os.Stdout, outputFormat, record)
		if err != nil {
			serviceutil.Fatal("failed to print status", err)
		}
	},
}
