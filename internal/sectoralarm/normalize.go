package sectoralarm

import (
	"fmt"
	"strings"
)

const (
	userWrapperPrefix = "(av "
	userWrapperSuffix = ")"
)

// CleanUser removes the "(av <name>)" wrapper the portal puts around user
// names. Strings without the wrapper are returned unchanged.
func CleanUser(user string) string {
	for {
		inner, ok := strings.CutPrefix(user, userWrapperPrefix)
		if !ok {
			return user
		}
		inner, ok = strings.CutSuffix(inner, userWrapperSuffix)
		if !ok {
			return user
		}
		user = inner
	}
}

// normalizeLogRow maps the positional cells of a log table row to a LogItem,
// rows that do not decompose become a MalformedLogEntry.
func normalizeLogRow(cells []string, n Normalizer) LogItem {
	if len(cells) < 3 {
		return MalformedLogEntry{
			RawEvent:     cells,
			ErrorMessage: fmt.Sprintf("%s: expected 3 cells, got %d", ErrMalformedRow, len(cells)),
		}
	}

	timestamp, err := n.PortalDate(cells[1])
	if err != nil {
		return MalformedLogEntry{
			RawEvent:     cells,
			ErrorMessage: err.Error(),
		}
	}

	return LogEntry{
		Event:     cells[0],
		Timestamp: timestamp,
		User:      CleanUser(cells[2]),
	}
}

// normalizeStatus maps the extracted status panel fields to a StatusRecord.
// Problems are collected in the record instead of failing it.
func normalizeStatus(fields map[statusKey]string, problems []error, n Normalizer) StatusRecord {
	var record StatusRecord
	for _, err := range problems {
		record.Errors = append(record.Errors, err.Error())
	}

	record.Event = fields[statusKeyEvent]
	record.User = CleanUser(fields[statusKeyUser])

	if text, ok := fields[statusKeyTime]; ok {
		timestamp, err := n.PortalDate(text)
		if err != nil {
			record.Errors = append(record.Errors, err.Error())
		} else {
			record.Timestamp = timestamp
		}
	}

	return record
}

var armedStates = map[string]ArmedState{
	"armed":        ArmedStateArmed,
	"partialarmed": ArmedStatePartialArmed,
	"disarmed":     ArmedStateDisarmed,
}

// normalizeArmedState maps the api's armed status onto ArmedState, an
// absent value is the unset state.
func normalizeArmedState(raw *string) (ArmedState, error) {
	if raw == nil || *raw == "" {
		return ArmedStateUnset, nil
	}
	state, ok := armedStates[strings.ToLower(strings.TrimSpace(*raw))]
	if !ok {
		return ArmedStateUnset, fmt.Errorf("%w: armed status %q", ErrUnknownStatusKey, *raw)
	}
	return state, nil
}
