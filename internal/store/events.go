package store

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"slices"
	"strings"
	"time"
)

const eventColumns = `id, room_id, event_id, txn_id, sender, sender_name, event_type, state_key,
	kind, msgtype, body, formatted_body, membership, prev_membership, display_name, prev_display_name,
	avatar_changed, file_name, file_size, thread_root, reply_to, redacted, from_me, status, timestamp`

// UpsertEvent inserts or updates an event (idempotent on room_id + event_id).
// A server event carrying a transaction id replaces the matching local echo.
func (db *DB) UpsertEvent(e *Event) error { return upsertEvent(db, e) }

// UpsertEvent is the transactional variant of DB.UpsertEvent.
func (tx *Tx) UpsertEvent(e *Event) error { return upsertEvent(tx, e) }

func upsertEvent(q queryer, e *Event) error {
	if e.TxnID != "" && !strings.HasPrefix(e.EventID, "~") {
		if _, err := q.Exec(`
			UPDATE events SET event_id = ?
			WHERE room_id = ? AND txn_id = ? AND event_id != ?
				AND NOT EXISTS (SELECT 1 FROM events WHERE room_id = ? AND event_id = ?)`,
			e.EventID, e.RoomID, e.TxnID, e.EventID, e.RoomID, e.EventID); err != nil {
			return err
		}
	}

	status := e.Status
	if status == "" {
		status = StatusReceived
	}
	kind := e.Kind
	if kind == "" {
		kind = KindUnknown
	}
	_, err := q.Exec(`
		INSERT INTO events (room_id, event_id, txn_id, sender, sender_name, event_type, state_key,
			kind, msgtype, body, formatted_body, membership, prev_membership, display_name, prev_display_name,
			avatar_changed, file_name, file_size, thread_root, reply_to, redacted, from_me, status, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(room_id, event_id) DO UPDATE SET
			txn_id = CASE WHEN excluded.txn_id != '' THEN excluded.txn_id ELSE events.txn_id END,
			sender_name = excluded.sender_name,
			kind = excluded.kind,
			msgtype = excluded.msgtype,
			body = excluded.body,
			formatted_body = excluded.formatted_body,
			membership = excluded.membership,
			prev_membership = excluded.prev_membership,
			display_name = excluded.display_name,
			prev_display_name = excluded.prev_display_name,
			avatar_changed = excluded.avatar_changed,
			file_name = excluded.file_name,
			file_size = excluded.file_size,
			thread_root = excluded.thread_root,
			reply_to = excluded.reply_to,
			redacted = excluded.redacted,
			status = excluded.status,
			timestamp = excluded.timestamp`,
		e.RoomID, e.EventID, e.TxnID, e.Sender, e.SenderName, e.Type, e.StateKey,
		kind, e.MsgType, e.Body, e.FormattedBody, e.Membership, e.PrevMembership, e.DisplayName, e.PrevDisplayName,
		e.AvatarChanged, e.FileName, e.FileSize, e.ThreadRoot, e.ReplyTo, e.Redacted, e.FromMe, status, e.Timestamp,
		time.Now().UnixMilli())
	return err
}

// Cursor is a position in a room's timeline. Events sharing a timestamp are
// ordered by row id. The zero Cursor means "after the newest event".
type Cursor struct {
	Timestamp int64
	ID        int64
}

// CursorOf returns the position of e.
func CursorOf(e Event) Cursor { return Cursor{Timestamp: e.Timestamp, ID: e.ID} }

// ListEvents returns up to limit events of a room positioned before the
// cursor, in chronological order. A cursor without an ID excludes every
// event at its timestamp.
func (db *DB) ListEvents(roomID string, before Cursor, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	if before.Timestamp <= 0 {
		before = Cursor{Timestamp: math.MaxInt64}
	}
	rows, err := db.Query(`
		SELECT `+eventColumns+`
		FROM events
		WHERE room_id = ? AND (timestamp < ? OR (timestamp = ? AND id < ?))
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, roomID, before.Timestamp, before.Timestamp, before.ID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(events)
	return events, nil
}

// GetEvent returns one event, or nil if unknown.
func (db *DB) GetEvent(roomID, eventID string) (*Event, error) {
	e, err := scanEvent(db.QueryRow(`SELECT `+eventColumns+` FROM events WHERE room_id = ? AND event_id = ?`, roomID, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// RedactEvent strips the content of a redacted event, keeping its place in the timeline.
func (tx *Tx) RedactEvent(roomID, eventID string) error {
	_, err := tx.Exec(`
		UPDATE events SET
			kind = 'redacted', redacted = 1, msgtype = '', body = '', formatted_body = '',
			file_name = '', file_size = 0
		WHERE room_id = ? AND event_id = ?`, roomID, eventID)
	return err
}

// EditEvent replaces the body of a message after an m.replace edit.
func (tx *Tx) EditEvent(roomID, eventID, body, formattedBody string) error {
	_, err := tx.Exec(`
		UPDATE events SET body = ?, formatted_body = ?
		WHERE room_id = ? AND event_id = ? AND kind = 'message'`, body, formattedBody, roomID, eventID)
	return err
}

// SetEchoStatus moves a local echo through its delivery states. A non-empty
// eventID replaces the placeholder id unless the server echo already arrived.
func (db *DB) SetEchoStatus(ctx context.Context, roomID, txnID, status, eventID string) error {
	if eventID == "" {
		_, err := db.ExecContext(ctx, `UPDATE events SET status = ? WHERE room_id = ? AND txn_id = ?`, status, roomID, txnID)
		return err
	}
	return db.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.Exec(`
			UPDATE events SET event_id = ?, status = ?
			WHERE room_id = ? AND txn_id = ?
				AND NOT EXISTS (SELECT 1 FROM events WHERE room_id = ? AND event_id = ?)`,
			eventID, status, roomID, txnID, roomID, eventID); err != nil {
			return err
		}
		// Server echo already stored under the real id.
		if _, err := tx.Exec(`DELETE FROM events WHERE room_id = ? AND event_id = ?`, roomID, LocalEchoID(txnID)); err != nil {
			return err
		}
		_, err := tx.Exec(`UPDATE events SET status = ?, txn_id = ? WHERE room_id = ? AND event_id = ?`,
			status, txnID, roomID, eventID)
		return err
	})
}

// EventCount returns the total number of stored events.
func (db *DB) EventCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count)
	return count, err
}

func scanEvent(s rowScanner) (*Event, error) {
	var e Event
	if err := s.Scan(&e.ID, &e.RoomID, &e.EventID, &e.TxnID, &e.Sender, &e.SenderName, &e.Type, &e.StateKey,
		&e.Kind, &e.MsgType, &e.Body, &e.FormattedBody, &e.Membership, &e.PrevMembership, &e.DisplayName, &e.PrevDisplayName,
		&e.AvatarChanged, &e.FileName, &e.FileSize, &e.ThreadRoot, &e.ReplyTo, &e.Redacted, &e.FromMe, &e.Status, &e.Timestamp); err != nil {
		return nil, err
	}
	return &e, nil
}
