// Package archive keeps the event log of the alarm beyond what the portal
// shows: every fetch is written to its own content-addressed file and the
// events are collected in a sqlite history.
package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sectoralarm/internal/sectoralarm"
	"time"
)

const fileTimeLayout = "20060102_150405"

// LogFileName returns the name of the archive file for a log fetched at
// `now` whose contents hash to `hash`.
func LogFileName(now time.Time, hash string) string {
	return fmt.Sprintf("log_%s_%s.log", now.Format(fileTimeLayout), hash)
}

// HashLog returns the hex sha256 of the compact json form of `items`.
func HashLog(items []sectoralarm.LogItem) (string, error) {
	compact, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal log: %w", err)
	}
	sum := sha256.Sum256(compact)
	return hex.EncodeToString(sum[:]), nil
}

// WriteLogFile writes `items` as indented json into `dir` and returns the
// path of the file and the hash of the log.
func WriteLogFile(dir string, now time.Time, items []sectoralarm.LogItem) (string, string, error) {
	if items == nil {
		items = []sectoralarm.LogItem{}
	}

	hash, err := HashLog(items)
	if err != nil {
		return "", "", err
	}
	indented, err := json.MarshalIndent(items, "", "    ")
	if err != nil {
		return "", "", fmt.Errorf("marshal log: %w", err)
	}

	err = os.MkdirAll(dir, 0700)
	if err != nil {
		return "", "", fmt.Errorf("create archive dir: %w", err)
	}

	path := filepath.Join(dir, LogFileName(now, hash))
	err = os.WriteFile(path, indented, 0600)
	if err != nil {
		return "", "", fmt.Errorf("write log file: %w", err)
	}
	return path, hash, nil
}
