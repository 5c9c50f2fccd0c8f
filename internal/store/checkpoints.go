package store

import (
	"database/sql"
	"errors"
	"time"
)

// SetCheckpoint stores a sync_state value.
func (db *DB) SetCheckpoint(key, value string) error { return setCheckpoint(db, key, value) }

// SetCheckpoint is the transactional variant of DB.SetCheckpoint.
func (tx *Tx) SetCheckpoint(key, value string) error { return setCheckpoint(tx, key, value) }

func setCheckpoint(q queryer, key, value string) error {
	_, err := q.Exec(`
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	return err
}

// Checkpoint returns a sync_state value, or "" when unset.
func (db *DB) Checkpoint(key string) (string, error) { return checkpoint(db, key) }

// Checkpoint is the transactional variant of DB.Checkpoint.
func (tx *Tx) Checkpoint(key string) (string, error) { return checkpoint(tx, key) }

func checkpoint(q queryer, key string) (string, error) {
	var value string
	err := q.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// DeleteCheckpoints removes sync_state values.
func (tx *Tx) DeleteCheckpoints(keys ...string) error {
	for _, key := range keys {
		if _, err := tx.Exec(`DELETE FROM sync_state WHERE key = ?`, key); err != nil {
			return err
		}
	}
	return nil
}
