package store

import (
	"context"
	"fmt"
	"time"
)

// Slot is one named value of durable station storage.
type Slot struct {
	Name      string
	Value     string
	UpdatedAt time.Time
}

// GetSlot returns the named slot. A missing slot yields sql.ErrNoRows.
func (db *DB) GetSlot(ctx context.Context, name string) (*Slot, error) {
	var s Slot
	var updatedAt any
	err := db.QueryRowContext(ctx, db.Q(`SELECT name, value, updated_at FROM session_slots WHERE name = ?`), name).
		Scan(&s.Name, &s.Value, &updatedAt)
	if err != nil {
		return nil, err
	}
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

// SetSlots writes all given slots in one transaction.
func (db *DB) SetSlots(ctx context.Context, values map[string]string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	q := db.Q(`INSERT INTO session_slots (name, value, updated_at) VALUES (?, ?, datetime('now','localtime'))
		ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	for name, value := range values {
		if _, err := tx.ExecContext(ctx, q, name, value); err != nil {
			return fmt.Errorf("set slot %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// DeleteSlots removes the named slots in one transaction. Missing slots are ignored.
func (db *DB) DeleteSlots(ctx context.Context, names ...string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	q := db.Q(`DELETE FROM session_slots WHERE name = ?`)
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, q, name); err != nil {
			return fmt.Errorf("delete slot %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// ListSlots returns every stored slot ordered by name.
func (db *DB) ListSlots(ctx context.Context) ([]*Slot, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, value, updated_at FROM session_slots ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var slots []*Slot
	for rows.Next() {
		var s Slot
		var updatedAt any
		if err := rows.Scan(&s.Name, &s.Value, &updatedAt); err != nil {
			return nil, err
		}
		s.UpdatedAt = parseTime(updatedAt)
		slots = append(slots, &s)
	}
	return slots, rows.Err()
}
