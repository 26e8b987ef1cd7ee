package db

import (
	"context"
	"database/sql"
)

const countEvents = `-- name: CountEvents :one
select count(*) from event
`

func (q *Queries) CountEvents(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countEvents)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const insertEvent = `-- name: InsertEvent :execresult
insert into event (key, event, timestamp, user, lock, channel, recorded_at)
values (?, ?, ?, ?, ?, ?, ?)
on conflict (key) do nothing
`

type InsertEventParams struct {
	Key        string
	Event      string
	Timestamp  sql.NullString
	User       string
	Lock       string
	Channel    string
	RecordedAt int64
}

func (q *Queries) InsertEvent(ctx context.Context, arg InsertEventParams) (sql.Result, error) {
	return q.db.ExecContext(ctx, insertEvent,
		arg.Key,
		arg.Event,
		arg.Timestamp,
		arg.User,
		arg.Lock,
		arg.Channel,
		arg.RecordedAt,
	)
}

const recentEvents = `-- name: RecentEvents :many
select "key", event, timestamp, user, lock, channel, recorded_at from event
order by timestamp desc, rowid asc
limit ?
`

func (q *Queries) RecentEvents(ctx context.Context, limit int64) ([]Event, error) {
	rows, err := q.db.QueryContext(ctx, recentEvents, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Event
	for rows.Next() {
		var i Event
		if err := rows.Scan(
			&i.Key,
			&i.Event,
			&i.Timestamp,
			&i.User,
			&i.Lock,
			&i.Channel,
			&i.RecordedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
