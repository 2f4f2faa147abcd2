package events

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// SQLitePersister writes feed entries through to the shared game
// database.
type SQLitePersister struct {
	db *sql.DB
}

func NewSQLitePersister(db *sql.DB) *SQLitePersister {
	return &SQLitePersister{db: db}
}

func (p *SQLitePersister) Append(e Entry) error {
	detail := e.Detail
	if e.Payload != nil {
		b, err := json.Marshal(e.Payload)
		if err == nil {
			detail = detail + " " + string(b)
		}
	}
	_, err := p.db.Exec(`
		INSERT INTO feed_events (id, timestamp, kind, detail)
		VALUES (?, ?, ?, ?)
	`, e.ID, e.Timestamp.UnixMilli(), string(e.Kind), detail)
	if err != nil {
		return fmt.Errorf("append feed event: %w", err)
	}
	return nil
}
