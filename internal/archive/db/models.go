package db

import (
	"database/sql"
)

type Event struct {
	Key        string
	Event      string
	Timestamp  sql.NullString
	User       string
	Lock       string
	Channel    string
	RecordedAt int64
}
