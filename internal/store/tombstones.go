package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecordTombstone stores an m.room.tombstone pointing at the replacement room.
func (tx *Tx) RecordTombstone(t *Tombstone) error {
	_, err := tx.Exec(`
		INSERT INTO tombstones (room_id, replacement_room_id, body, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(room_id) DO UPDATE SET
			replacement_room_id = excluded.replacement_room_id,
			body = excluded.body`,
		t.RoomID, t.ReplacementRoomID, t.Body, time.Now().UnixMilli())
	return err
}

// GetTombstone returns the tombstone of a room, or nil.
func (db *DB) GetTombstone(roomID string) (*Tombstone, error) {
	var t Tombstone
	err := db.QueryRow(`SELECT room_id, replacement_room_id, body FROM tombstones WHERE room_id = ?`, roomID).
		Scan(&t.RoomID, &t.ReplacementRoomID, &t.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ReconcileUpgrades hides every tombstoned room whose replacement the user
// has joined, carrying the direct-chat flag over to the replacement.
// Returns the number of rooms newly hidden.
func (tx *Tx) ReconcileUpgrades() (int64, error) {
	if _, err := tx.Exec(`
		UPDATE rooms SET is_direct = 1
		WHERE is_direct = 0 AND room_id IN (
			SELECT t.replacement_room_id FROM tombstones t
			JOIN rooms old ON old.room_id = t.room_id
			WHERE old.is_direct = 1
		)`); err != nil {
		return 0, fmt.Errorf("carry direct flag: %w", err)
	}

	result, err := tx.Exec(`
		UPDATE rooms SET hidden = 1, updated_at = ?
		WHERE hidden = 0 AND room_id IN (
			SELECT t.room_id FROM tombstones t
			JOIN rooms r ON r.room_id = t.replacement_room_id
			WHERE r.membership = 'join'
		)`, time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("hide upgraded rooms: %w", err)
	}
	return result.RowsAffected()
}
