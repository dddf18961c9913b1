package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

var _ Store = (*PGStore)(nil)

// PGStore persists audit events in the audit_events table.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Append(ctx context.Context, event *Event) error {
	meta, err := json.Marshal(event.Metadata)
	if err != nil {
		meta = []byte("{}")
	}
	var actor sql.NullString
	if event.ActorID != "" {
		actor = sql.NullString{String: event.ActorID, Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`insert into audit_events(id, actor_id, action, category, severity, metadata, created_at)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		event.ID, actor, event.Action, event.Category, string(event.Severity), meta, event.CreatedAt,
	)
	return err
}

func (s *PGStore) ListRecent(ctx context.Context, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`select id, actor_id, action, category, severity, metadata, created_at
		 from audit_events order by created_at desc limit $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			event Event
			actor sql.NullString
			meta  []byte
			sev   string
			ts    time.Time
		)
		if err := rows.Scan(&event.ID, &actor, &event.Action, &event.Category, &sev, &meta, &ts); err != nil {
			return nil, err
		}
		event.ActorID = actor.String
		event.Severity = Severity(sev)
		event.CreatedAt = ts
		_ = json.Unmarshal(meta, &event.Metadata)
		events = append(events, &event)
	}
	return events, rows.Err()
}
