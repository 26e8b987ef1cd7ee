package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunHistory(t *testing.T) {
	cfg := Config{HistoryDb: filepath.Join(t.TempDir(), "data", "history.db")}

	var out bytes.Buffer
	require.NoError(t, runHistory(context.Background(), &out, cfg, outputJSON, 10))
	require.Equal(t, "[]\n", out.String())

	// errors come back to the caller so the database is closed before exiting
	err := runHistory(context.Background(), &out, cfg, "xml", 10)
	require.Error(t, err)
	require.NoError(t, os.Remove(cfg.HistoryDb))
}

func TestRunArchiveInvalidSchedule(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Email:      "anna@example.com",
		Password:   "hunter2",
		SiteId:     "12345",
		Format:     "html",
		CookieFile: filepath.Join(dir, "cookies.jar"),
		ArchiveDir: dir,
		HistoryDb:  filepath.Join(dir, "history.db"),
	}

	err := runArchive(context.Background(), cfg, "not a schedule")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid schedule")

	_, err = os.Stat(cfg.HistoryDb)
	require.NoError(t, err)
}
