package commands

import (
	"context"
	"fmt"
	"os"
	"sectoralarm/internal/components/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath   string
	verbose      bool
	dumpHttpDir  string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "sectoralarm",
	Short: "sectoralarm reads the status and event log of a Sector Alarm system.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_, debug := os.LookupEnv("DEBUG")
		telemetry.InitSlog(os.Stderr, verbose || debug)
	},
	SilenceUsage: true,
}

func init() {
	defaultConfig, ok := os.LookupEnv("SECTORALARM_CONFIG")
	if !ok {
		defaultConfig = "config.json5"
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", defaultConfig, "The config file to read, defaults to $SECTORALARM_CONFIG.")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging (also enabled by setting $DEBUG).")
	flags.StringVar(&dumpHttpDir, "dump-http", "", "Write every http exchange to a file in this directory.")
	flags.StringVarP(&outputFormat, "output", "o", outputJSON, "Output format, one of json, yaml or table.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
