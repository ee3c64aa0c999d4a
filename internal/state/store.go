// Package state persists per-workspace simulator state: opaque
// key-value slots (the simstate blob the page saves and restores
// across panel lifetimes) and the serial output history.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/simview/simview/internal/db"
)

// SlotSimState is the slot holding the simulator's opaque state blob.
const SlotSimState = "simstate"

// SerialLine is one persisted line of serial output.
type SerialLine struct {
	ID       string    `json:"id"`
	Line     string    `json:"line"`
	SimTime  float64   `json:"sim_time"`
	LoggedAt time.Time `json:"logged_at"`
}

// Store manages persisted workspace state for one workspace root.
type Store struct {
	db        *db.DB
	workspace string
}

// NewStore creates a store scoped to the given workspace root.
func NewStore(database *db.DB, workspace string) *Store {
	return &Store{db: database, workspace: workspace}
}

// GetSlot returns the value of a KV slot, or nil when the slot is
// unset.
func (s *Store) GetSlot(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM workspace_state WHERE workspace = ? AND key = ?`,
		s.workspace, key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading slot %s: %w", key, err)
	}
	return value, nil
}

// SetSlot writes a KV slot, replacing any previous value.
func (s *Store) SetSlot(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workspace_state (workspace, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(workspace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.workspace, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing slot %s: %w", key, err)
	}
	return nil
}

// DeleteSlot removes a KV slot. Deleting an absent slot is not an
// error.
func (s *Store) DeleteSlot(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM workspace_state WHERE workspace = ? AND key = ?`,
		s.workspace, key,
	)
	if err != nil {
		return fmt.Errorf("deleting slot %s: %w", key, err)
	}
	return nil
}

// AppendSerial records a batch of serial lines in order.
func (s *Store) AppendSerial(ctx context.Context, lines []SerialLine) error {
	if len(lines) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning serial append: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, line := range lines {
		id := line.ID
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO serial_log (id, workspace, line, sim_time, logged_at) VALUES (?, ?, ?, ?, ?)`,
			id, s.workspace, line.Line, line.SimTime, now,
		); err != nil {
			return fmt.Errorf("inserting serial line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing serial append: %w", err)
	}
	return nil
}

// RecentSerial returns up to limit recent serial lines, oldest first.
func (s *Store) RecentSerial(ctx context.Context, limit int) ([]SerialLine, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, line, sim_time, logged_at FROM serial_log
		 WHERE workspace = ?
		 ORDER BY logged_at DESC, rowid DESC LIMIT ?`,
		s.workspace, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying serial log: %w", err)
	}
	defer rows.Close()

	var lines []SerialLine
	for rows.Next() {
		var l SerialLine
		if err := rows.Scan(&l.ID, &l.Line, &l.SimTime, &l.LoggedAt); err != nil {
			return nil, fmt.Errorf("scanning serial line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating serial log: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return lines, nil
}

// ClearSerial removes all serial history for the workspace.
func (s *Store) ClearSerial(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM serial_log WHERE workspace = ?`, s.workspace,
	)
	if err != nil {
		return fmt.Errorf("clearing serial log: %w", err)
	}
	return nil
}
