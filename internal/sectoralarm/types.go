package sectoralarm

import (
	"encoding/json"
	"time"
)

// TimestampLayout is the single textual form of every timestamp this package produces.
const TimestampLayout = "2006-01-02 15:04:05"

// Timestamp is an absolute point in time that may be unset, it serializes
// to TimestampLayout or to null.
type Timestamp struct {
	t time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t: t}
}

// ParseTimestamp parses text in TimestampLayout, an empty string yields an unset timestamp.
func ParseTimestamp(text string, loc *time.Location) (Timestamp, error) {
	if text == "" {
		return Timestamp{}, nil
	}
	t, err := time.ParseInLocation(TimestampLayout, text, loc)
	if err != nil {
		return Timestamp{}, err
	}
	return Timestamp{t: t}, nil
}

func (t Timestamp) Time() time.Time {
	return t.t
}

func (t Timestamp) IsSet() bool {
	return !t.t.IsZero()
}

func (t Timestamp) String() string {
	if !t.IsSet() {
		return ""
	}
	return t.t.Format(TimestampLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.IsSet() {
		return []byte("null"), nil
	}
	return json.Marshal(t.String())
}

func (t Timestamp) MarshalYAML() (any, error) {
	if !t.IsSet() {
		return nil, nil
	}
	return t.String(), nil
}

// ArmedState is the arm state reported by the json api.
type ArmedState string

const (
	ArmedStateUnset        ArmedState = ""
	ArmedStateArmed        ArmedState = "armed"
	ArmedStatePartialArmed ArmedState = "partialarmed"
	ArmedStateDisarmed     ArmedState = "disarmed"
)

// StatusRecord is the normalized current status of the alarm. The html
// formats fill Event, Timestamp and User, the json format fills ArmedState.
// Errors lists the problems met while normalizing, a record with errors is
// degraded but still usable.
type StatusRecord struct {
	Event      string     `json:"event,omitempty" yaml:"event,omitempty"`
	Timestamp  Timestamp  `json:"timestamp" yaml:"timestamp"`
	User       string     `json:"user,omitempty" yaml:"user,omitempty"`
	ArmedState ArmedState `json:"armed_state,omitempty" yaml:"armed_state,omitempty"`
	Errors     []string   `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// LogItem is one row of the event log, it is either a LogEntry or a MalformedLogEntry.
type LogItem interface {
	isLogItem()
}

// LogEntry is a well-formed event log row.
type LogEntry struct {
	Event     string    `json:"event" yaml:"event"`
	Timestamp Timestamp `json:"timestamp" yaml:"timestamp"`
	User      string    `json:"user" yaml:"user"`
	Lock      string    `json:"lock,omitempty" yaml:"lock,omitempty"`
	Channel   string    `json:"channel,omitempty" yaml:"channel,omitempty"`
}

// MalformedLogEntry keeps a log row that could not be normalized together
// with the reason, so no history is lost.
type MalformedLogEntry struct {
	RawEvent     []string `json:"raw_event" yaml:"raw_event"`
	ErrorMessage string   `json:"error_message" yaml:"error_message"`
}

func (LogEntry) isLogItem()          {}
func (MalformedLogEntry) isLogItem() {}
