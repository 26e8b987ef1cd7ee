package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sectoralarm/internal/archive"
	"sectoralarm/internal/components/chrono"
	"sectoralarm/internal/components/telemetry"
	"sectoralarm/internal/sectoralarm"
	"sectoralarm/pkg/serviceutil"

	"github.com/spf13/cobra"
)

var archiveSchedule string

func init() {
	archiveCmd.Flags().StringVar(&archiveSchedule, "schedule", "", "A cron spec (ex. \"*/30 * * * *\"), keeps running and archives on this schedule.")
	rootCmd.AddCommand(archiveCmd)
}

type archiver struct {
	client  *sectoralarm.Client
	history archive.History
	dir     string
	time    chrono.TimeAPI
}

func (a archiver) run(ctx context.Context) error {
	items, err := a.client.EventLog(ctx)
	if err != nil {
		return fmt.Errorf("get event log: %w", err)
	}
	path, hash, err := archive.WriteLogFile(a.dir, a.time.Now(), items)
	if err != nil {
		return err
	}
	added, err := a.history.Record(ctx, items)
	if err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	slog.Info("archived event log", "path", path, "hash", hash, "entries", len(items), "new", added)
	return nil
}

// runArchive archives once, or on `schedule` until ctx is done when it is
// not empty.
func runArchive(ctx context.Context, cfg Config, schedule string) error {
	tel := telemetry.SlogAPI{}
	time := chrono.NewStandardTime()

	client, err := newClient(cfg, tel)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	history, err := archive.OpenHistory(cfg.HistoryDb, time, tel)
	if err != nil {
		return err
	}
	defer history.Close()

	a := archiver{
		client:  client,
		history: history,
		dir:     cfg.ArchiveDir,
		time:    time,
	}

	if schedule == "" {
		return a.run(ctx)
	}

	cron := chrono.NewStandardCron(tel)
	err = cron.Cron(schedule, func() {
		err := a.run(ctx)
		if err != nil {
			slog.Error("failed to archive event log", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	slog.Info("archiving on schedule", "schedule", schedule)
	cron.Run(ctx)
	return nil
}

var archiveCmd = &cobra.Command{
	Use:   "archive [--schedule <cron spec>]",
	Short: "Writes the event log to a file and records new events in the history database.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			serviceutil.Fatal("failed to load config", err)
		}
		err = runArchive(cmd.Context(), cfg, archiveSchedule)
		if err != nil {
			serviceutil.Fatal("failed to archive event log", err)
		}
	},
}
