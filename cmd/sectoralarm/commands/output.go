package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sectoralarm/internal/sectoralarm"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

const (
	outputJSON  = "json"
	outputYAML  = "yaml"
	outputTable = "table"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func printStructured(w io.Writer, format string, value any) error {
	switch format {
	case outputJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "    ")
		return encoder.Encode(value)
	case outputYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		err := encoder.Encode(value)
		if err != nil {
			return err
		}
		return encoder.Close()
	}
	return fmt.Errorf("unknown output format %q", format)
}

func printStatus(w io.Writer, format string, record sectoralarm.StatusRecord) error {
	if format != outputTable {
		return printStructured(w, format, record)
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Event", "Time", "User", "Armed state"})
	t.AppendRow(table.Row{
		record.Event,
		record.Timestamp.String(),
		record.User,
		string(record.ArmedState),
	})
	if len(record.Errors) > 0 {
		t.AppendFooter(table.Row{"Errors", strings.Join(record.Errors, "; ")})
	}
	t.Render()
	return nil
}

var logHeader = table.Row{"Event", "Time", "User", "Lock", "Channel"}

func entryRow(entry sectoralarm.LogEntry) table.Row {
	return table.Row{
		entry.Event,
		entry.Timestamp.String(),
		entry.User,
		entry.Lock,
		entry.Channel,
	}
}

func printLog(w io.Writer, format string, items []sectoralarm.LogItem) error {
	if items == nil {
		items = []sectoralarm.LogItem{}
	}
	if format != outputTable {
		return printStructured(w, format, items)
	}

	t := newTable(w)
	t.AppendHeader(logHeader)
	for _, item := range items {
		switch item := item.(type) {
		case sectoralarm.LogEntry:
			t.AppendRow(entryRow(item))
		case sectoralarm.MalformedLogEntry:
			t.AppendRow(table.Row{
				strings.Join(item.RawEvent, " | "),
				"",
				"",
				"",
				item.ErrorMessage,
			})
		}
	}
	t.Render()
	return nil
}

func printHistory(w io.Writer, format string, entries []sectoralarm.LogEntry) error {
	if entries == nil {
		entries = []sectoralarm.LogEntry{}
	}
	if format != outputTable {
		return printStructured(w, format, entries)
	}

	t := newTable(w)
	t.AppendHeader(logHeader)
	for _, entry := range entries {
		t.AppendRow(entryRow(entry))
	}
	t.Render()
	return nil
}
