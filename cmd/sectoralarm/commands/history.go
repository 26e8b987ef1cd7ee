package commands

import (
	"context"
	"io"
	"os"
	"sectoralarm/internal/archive"
	"sectoralarm/internal/components/chrono"
	"sectoralarm/internal/components/telemetry"
	"sectoralarm/pkg/serviceutil"

	"github.com/spf13/cobra"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "The number of events to print.")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(ctx context.Context, w io.Writer, cfg Config, format string, limit int) error {
	history, err := archive.OpenHistory(cfg.HistoryDb, chrono.NewStandardTime(), telemetry.SlogAPI{})
	if err != nil {
		return err
	}
	defer history.Close()

	entries, err := history.Recent(ctx, limit)
	if err != nil {
		return err
	}
	return printHistory(w, format, entries)
}

var historyCmd = &cobra.Command{
	Use:   "history [--limit <n>]",
	Short: "Prints the most recent archived events without contacting the portal.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := readConfig(configPath)
		if err != nil {
			serviceutil.Fatal("failed to load config", err)
		}
		err = runHistory(cmd.Context(), os.Stdout, cfg, outputFormat, historyLimit)
		if err != nil {
			serviceutil.Fatal("failed to print history", err)
		}
	},
}
