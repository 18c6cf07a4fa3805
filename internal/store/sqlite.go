package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/robalobadob/tradle/internal/game"
)

// SQLite is a Store backed by the guesses and modes tables.
type SQLite struct{ db *sql.DB }

// NewSQLiteStore wraps a migrated database.
func NewSQLiteStore(db *sql.DB) *SQLite { return &SQLite{db: db} }

// Load returns the stored guesses, or an empty list.
func (s *SQLite) Load(ctx context.Context, clientID, day string) ([]game.Guess, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM guesses WHERE client_id=? AND day=?`, clientID, day,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return []game.Guess{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := []game.Guess{}
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return nil, fmt.Errorf("decode guesses: %w", err)
	}
	return out, nil
}

// Save overwrites the guess list for (clientID, day).
func (s *SQLite) Save(ctx context.Context, clientID, day string, guesses []game.Guess) error {
	if guesses == nil {
		guesses = []game.Guess{}
	}
	payload, err := json.Marshal(guesses)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO guesses (client_id, day, payload, updated_at)
        VALUES (?, ?, ?, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
        ON CONFLICT (client_id, day) DO UPDATE
            SET payload = excluded.payload, updated_at = excluded.updated_at`,
		clientID, day, string(payload),
	)
	return err
}

// LoadMode reports the stored flag; found is false when never saved.
func (s *SQLite) LoadMode(ctx context.Context, clientID, day, mode string) (bool, bool, error) {
	var enabled bool
	err := s.db.QueryRowContext(ctx,
		`SELECT enabled FROM modes WHERE client_id=? AND day=? AND mode=?`, clientID, day, mode,
	).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return enabled, true, nil
}

// SaveMode stores a flag. Unknown modes yield ErrUnknownMode.
func (s *SQLite) SaveMode(ctx context.Context, clientID, day, mode string, enabled bool) error {
	if !ValidMode(mode) {
		return ErrUnknownMode
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO modes (client_id, day, mode, enabled) VALUES (?, ?, ?, ?)
        ON CONFLICT (client_id, day, mode) DO UPDATE SET enabled = excluded.enabled`,
		clientID, day, mode, enabled,
	)
	return err
}
