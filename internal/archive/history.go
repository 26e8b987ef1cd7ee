package archive

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sectoralarm/internal/archive/db"
	"sectoralarm/internal/components/assert"
	"sectoralarm/internal/components/chrono"
	"sectoralarm/internal/components/telemetry"
	"sectoralarm/internal/sectoralarm"
	"strings"
)

const (
	report_history_record = "history.record"
	report_history_recent = "history.recent"
)

// History is the deduplicated set of every well-formed event ever archived.
type History struct {
	db     *sql.DB
	qry    *db.Queries
	makeTx db.MakeTx
	time   chrono.TimeAPI
	tel    telemetry.API
}

// OpenHistory opens (creating if needed) the sqlite history at `path`.
// ":memory:" opens a throwaway database.
func OpenHistory(path string, time chrono.TimeAPI, tel telemetry.API) (History, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0700)
		if err != nil {
			return History{}, fmt.Errorf("create history dir: %w", err)
		}
	}

	database, err := sql.Open("sqlite", path)
	if err != nil {
		return History{}, fmt.Errorf("open history: %w", err)
	}
	// sqlite allows a single writer, this also keeps ":memory:" databases
	// from being split across connections
	database.SetMaxOpenConns(1)

	_, err = database.Exec(db.Schema)
	if err != nil {
		database.Close()
		return History{}, fmt.Errorf("apply history schema: %w", err)
	}

	return NewHistory(database, time, tel), nil
}

func NewHistory(database *sql.DB, time chrono.TimeAPI, tel telemetry.API) History {
	assert.NotNil(database)
	assert.NotNil(time)
	assert.NotNil(tel)

	return History{
		db:     database,
		qry:    db.New(database),
		makeTx: db.NewMakeTx(database),
		time:   time,
		tel:    telemetry.NewScopedAPI("archive", tel),
	}
}

func (h History) Close() error {
	return h.db.Close()
}

// EventKey identifies an event across fetches, the portal gives events no
// id of their own.
func EventKey(entry sectoralarm.LogEntry) string {
	joined := strings.Join([]string{
		entry.Event,
		entry.Timestamp.String(),
		entry.User,
		entry.Lock,
		entry.Channel,
	}, "\x00")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}

// Record stores the well-formed entries of `items` that are not in the
// history yet and returns how many were added. Malformed entries cannot be
// keyed reliably and are skipped.
func (h History) Record(ctx context.Context, items []sectoralarm.LogItem) (int, error) {
	txqry, discard, commit, err := h.makeTx(ctx)
	if err != nil {
		h.tel.ReportBroken(report_history_record, err)
		return 0, err
	}
	defer discard()

	recordedAt := h.time.Now().Unix()
	added := 0
	for _, item := range items {
		entry, ok := item.(sectoralarm.LogEntry)
		if !ok {
			h.tel.ReportWarning(report_history_record, "skipping malformed entry", item)
			continue
		}

		res, err := txqry.InsertEvent(ctx, db.InsertEventParams{
			Key:   EventKey(entry),
			Event: entry.Event,
			Timestamp: sql.NullString{
				String: entry.Timestamp.String(),
				Valid:  entry.Timestamp.IsSet(),
			},
			User:       entry.User,
			Lock:       entry.Lock,
			Channel:    entry.Channel,
			RecordedAt: recordedAt,
		})
		if err != nil {
			h.tel.ReportBroken(report_history_record, err)
			return 0, fmt.Errorf("insert event: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			h.tel.ReportBroken(report_history_record, err)
			return 0, fmt.Errorf("insert event: %w", err)
		}
		added += int(affected)
	}

	err = commit()
	if err != nil {
		h.tel.ReportBroken(report_history_record, err)
		return 0, err
	}
	return added, nil
}

// Recent returns at most `limit` events, most recent first. Events without
// a date come last.
func (h History) Recent(ctx context.Context, limit int) ([]sectoralarm.LogEntry, error) {
	rows, err := h.qry.RecentEvents(ctx, int64(limit))
	if err != nil {
		h.tel.ReportBroken(report_history_recent, err)
		return nil, err
	}

	entries := make([]sectoralarm.LogEntry, len(rows))
	for i, row := range rows {
		timestamp, err := sectoralarm.ParseTimestamp(row.Timestamp.String, chrono.Stockholm())
		if err != nil {
			h.tel.ReportWarning(report_history_recent, fmt.Errorf("parse timestamp of %s: %w", row.Key, err))
		}
		entries[i] = sectoralarm.LogEntry{
			Event:     row.Event,
			Timestamp: timestamp,
			User:      row.User,
			Lock:      row.Lock,
			Channel:   row.Channel,
		}
	}
	return entries, nil
}

func (h History) Count(ctx context.Context) (int64, error) {
	return h.qry.CountEvents(ctx)
}
