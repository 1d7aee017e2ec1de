// Package journal persists an append-only record of every signal the bridge
// processed and how it ended, backed by SQLite.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"mtbridge/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS signal_log (
	id          TEXT PRIMARY KEY,
	received_at TIMESTAMP NOT NULL,
	symbol      TEXT NOT NULL,
	action      TEXT NOT NULL,
	volume      REAL NOT NULL,
	state       TEXT NOT NULL,
	ticket      INTEGER NOT NULL DEFAULT 0,
	retcode     INTEGER NOT NULL DEFAULT 0,
	message     TEXT NOT NULL DEFAULT '',
	payload     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_signal_log_received_at ON signal_log(received_at);
CREATE INDEX IF NOT EXISTS idx_signal_log_symbol ON signal_log(symbol);
`

// Entry is one processed signal and its outcome.
type Entry struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
	Symbol     string    `json:"symbol"`
	Action     string    `json:"action"`
	Volume     float64   `json:"volume"`
	State      string    `json:"state"`
	Ticket     int64     `json:"ticket,omitempty"`
	Retcode    int       `json:"retcode,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// Journal writes processed signals to a SQLite database.
type Journal struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal database at path and applies
// the schema.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal db: %w", err)
	}
	// SQLite allows one writer; constrain the pool so concurrent records
	// queue instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record appends one signal outcome. The raw payload is stored as JSON for
// later inspection.
func (j *Journal) Record(ctx context.Context, sym, action string, volume float64, outcome domain.ExecutionOutcome, raw any) error {
	payload, err := json.Marshal(raw)
	if err != nil {
		payload = []byte("{}")
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO signal_log (id, received_at, symbol, action, volume, state, ticket, retcode, message, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), time.Now().UTC(), sym, action, volume,
		string(outcome.State), outcome.Ticket, outcome.Retcode, outcome.Message, string(payload))
	if err != nil {
		return fmt.Errorf("recording signal: %w", err)
	}
	return nil
}

// Count returns the total number of recorded signals.
func (j *Journal) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM signal_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting signals: %w", err)
	}
	return n, nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, received_at, symbol, action, volume, state, ticket, retcode, message
		FROM signal_log ORDER BY received_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying signals: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ReceivedAt, &e.Symbol, &e.Action, &e.Volume, &e.State, &e.Ticket, &e.Retcode, &e.Message); err != nil {
			return nil, fmt.Errorf("scanning signal row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}
