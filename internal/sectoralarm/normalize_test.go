package sectoralarm

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var timestampComparer = cmp.Comparer(func(a, b Timestamp) bool {
	return a.Time().Equal(b.Time())
})

func mustPortalDate(t *testing.T, n Normalizer, text string) Timestamp {
	t.Helper()
	timestamp, err := n.PortalDate(text)
	require.NoError(t, err)
	return timestamp
}

func TestCleanUser(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{input: "(av Alice)", expected: "Alice"},
		{input: "Bob", expected: "Bob"},
		{input: "(av Anna Andersson)", expected: "Anna Andersson"},
		{input: "(av (av Alice))", expected: "Alice"},
		{input: "", expected: ""},
		// without the wrapper nothing is touched
		{input: "Anna (admin)", expected: "Anna (admin)"},
		{input: "Kod (1234)", expected: "Kod (1234)"},
		{input: " Bob ", expected: " Bob "},
		{input: "(av Alice", expected: "(av Alice"},
		{input: "Alice)", expected: "Alice)"},
	}

	for _, test := range testCases {
		cleaned := CleanUser(test.input)
		require.Equal(t, test.expected, cleaned)
		require.Equal(t, cleaned, CleanUser(cleaned), "CleanUser must be idempotent")
	}
}

func TestNormalizeLogRow(t *testing.T) {
	n := testNormalizer()

	testCases := []struct {
		name     string
		cells    []string
		expected LogItem
	}{
		{
			name:  "well formed",
			cells: []string{"Frånkopplat", "Idag 07:15", "(av Anna)"},
			expected: LogEntry{
				Event:     "Frånkopplat",
				Timestamp: mustPortalDate(t, n, "Idag 07:15"),
				User:      "Anna",
			},
		},
		{
			name:  "extra cells are ignored",
			cells: []string{"Tillkopplat", "14/3 22:30", "Bertil", "Hallen"},
			expected: LogEntry{
				Event:     "Tillkopplat",
				Timestamp: mustPortalDate(t, n, "14/3 22:30"),
				User:      "Bertil",
			},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			diff := cmp.Diff(test.expected, normalizeLogRow(test.cells, n), timestampComparer)
			if diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestNormalizeLogRowMalformed(t *testing.T) {
	n := testNormalizer()

	item := normalizeLogRow([]string{"Larm", "12/3 03:00"}, n)
	malformed, ok := item.(MalformedLogEntry)
	require.True(t, ok)
	require.Equal(t, []string{"Larm", "12/3 03:00"}, malformed.RawEvent)
	require.Contains(t, malformed.ErrorMessage, ErrMalformedRow.Error())

	item = normalizeLogRow([]string{"Larm", "sometime", "Bertil"}, n)
	malformed, ok = item.(MalformedLogEntry)
	require.True(t, ok)
	require.Equal(t, []string{"Larm", "sometime", "Bertil"}, malformed.RawEvent)
	require.Contains(t, malformed.ErrorMessage, ErrUnparseableDate.Error())

	item = normalizeLogRow([]string{}, n)
	_, ok = item.(MalformedLogEntry)
	require.True(t, ok)
}

func TestNormalizeStatus(t *testing.T) {
	n := testNormalizer()

	record := normalizeStatus(map[statusKey]string{
		statusKeyEvent: "Disarmed",
		statusKeyTime:  "Idag 10:42",
		statusKeyUser:  "(av Anna)",
	}, nil, n)
	require.Equal(t, "Disarmed", record.Event)
	require.Equal(t, "2026-03-15 10:42:00", record.Timestamp.String())
	require.Equal(t, "Anna", record.User)
	require.Empty(t, record.Errors)

	record = normalizeStatus(map[statusKey]string{
		statusKeyEvent: "Armed",
		statusKeyTime:  "whenever",
	}, []error{errors.New("unknown status key: \"zone\"")}, n)
	require.Equal(t, "Armed", record.Event)
	require.False(t, record.Timestamp.IsSet())
	require.Len(t, record.Errors, 2)
	require.Contains(t, record.Errors[1], ErrUnparseableDate.Error())
}

func TestNormalizeArmedState(t *testing.T) {
	raw := func(s string) *string { return &s }

	state, err := normalizeArmedState(nil)
	require.NoError(t, err)
	require.Equal(t, ArmedStateUnset, state)

	state, err = normalizeArmedState(raw("Armed"))
	require.NoError(t, err)
	require.Equal(t, ArmedStateArmed, state)

	state, err = normalizeArmedState(raw("partialarmed"))
	require.NoError(t, err)
	require.Equal(t, ArmedStatePartialArmed, state)

	_, err = normalizeArmedState(raw("sleeping"))
	require.ErrorIs(t, err, ErrUnknownStatusKey)
}

func TestRecordSerialization(t *testing.T) {
	n := testNormalizer()

	out, err := json.Marshal([]LogItem{
		LogEntry{
			Event:     "Frånkopplat",
			Timestamp: mustPortalDate(t, n, "Idag 07:15"),
			User:      "Anna",
		},
		MalformedLogEntry{
			RawEvent:     []string{"Larm"},
			ErrorMessage: "malformed log row",
		},
	})
	require.NoError(t, err)
	require.JSONEq(t, `[
		{"event": "Frånkopplat", "timestamp": "2026-03-15 07:15:00", "user": "Anna"},
		{"raw_event": ["Larm"], "error_message": "malformed log row"}
	]`, string(out))

	out, err = json.Marshal(StatusRecord{ArmedState: ArmedStateDisarmed})
	require.NoError(t, err)
	require.JSONEq(t, `{"timestamp": null, "armed_state": "disarmed"}`, string(out))
	require.False(t, strings.Contains(string(out), "errors"))
}
