package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotRetryable is returned when retrying an outbox entry that has not failed.
var ErrNotRetryable = errors.New("outbox entry is not in failed state")

// QueueOutbox adds a message to the send outbox together with its local
// echo, so the timeline shows it before the server acknowledges it.
func (db *DB) QueueOutbox(ctx context.Context, entry *OutboxEntry, echo *Event) error {
	now := time.Now().UnixMilli()
	return db.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO outbox (client_msg_id, room_id, body, formatted_body, thread_root, reply_to, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, 'queued', ?, ?)`,
			entry.ClientMsgID, entry.RoomID, entry.Body, entry.FormattedBody, entry.ThreadRoot, entry.ReplyTo, now, now); err != nil {
			return fmt.Errorf("insert outbox: %w", err)
		}
		if echo == nil {
			return nil
		}
		echo.EventID = LocalEchoID(entry.ClientMsgID)
		echo.TxnID = entry.ClientMsgID
		echo.Status = StatusQueued
		echo.FromMe = true
		if err := tx.UpsertEvent(echo); err != nil {
			return fmt.Errorf("insert local echo: %w", err)
		}
		return tx.TouchRoomLastMessage(entry.RoomID, echo.Timestamp, echo.Body)
	})
}

// MarkOutboxSending updates an outbox entry to 'sending' status.
func (db *DB) MarkOutboxSending(clientMsgID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'sending', attempts = attempts + 1, updated_at = ? WHERE client_msg_id = ?`, now, clientMsgID)
	return err
}

// MarkOutboxSent updates an outbox entry to 'sent' with the server event ID.
func (db *DB) MarkOutboxSent(clientMsgID, serverEventID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'sent', server_event_id = ?, error_message = '', updated_at = ? WHERE client_msg_id = ?`, serverEventID, now, clientMsgID)
	return err
}

// MarkOutboxFailed updates an outbox entry to 'failed' with an error message.
func (db *DB) MarkOutboxFailed(clientMsgID, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE client_msg_id = ?`, errMsg, now, clientMsgID)
	return err
}

// RetryOutbox puts a failed entry back in the queue. The transaction id is
// kept, so a send that reached the server before failing is not duplicated.
func (db *DB) RetryOutbox(ctx context.Context, clientMsgID string) (*OutboxEntry, error) {
	var entry *OutboxEntry
	err := db.WithTx(ctx, func(tx *Tx) error {
		e, err := getOutbox(tx, clientMsgID)
		if err != nil {
			return err
		}
		if e == nil || e.Status != StatusFailed {
			return ErrNotRetryable
		}
		if _, err := tx.Exec(`UPDATE outbox SET status = 'queued', error_message = '', updated_at = ? WHERE client_msg_id = ?`,
			time.Now().UnixMilli(), clientMsgID); err != nil {
			return err
		}
		if _, err := tx.Exec(`UPDATE events SET status = 'queued' WHERE room_id = ? AND txn_id = ?`, e.RoomID, clientMsgID); err != nil {
			return err
		}
		e.Status = StatusQueued
		e.ErrorMessage = ""
		entry = e
		return nil
	})
	return entry, err
}

// GetOutbox returns an outbox entry by client message id, or nil.
func (db *DB) GetOutbox(clientMsgID string) (*OutboxEntry, error) { return getOutbox(db, clientMsgID) }

func getOutbox(q queryer, clientMsgID string) (*OutboxEntry, error) {
	var e OutboxEntry
	err := q.QueryRow(`
		SELECT id, client_msg_id, room_id, body, formatted_body, thread_root, reply_to, status, error_message, server_event_id, attempts
		FROM outbox WHERE client_msg_id = ?`, clientMsgID).
		Scan(&e.ID, &e.ClientMsgID, &e.RoomID, &e.Body, &e.FormattedBody, &e.ThreadRoot, &e.ReplyTo, &e.Status, &e.ErrorMessage, &e.ServerEventID, &e.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// PendingOutbox returns outbox entries that are still queued.
func (db *DB) PendingOutbox() ([]OutboxEntry, error) {
	return db.listOutbox(`WHERE status = 'queued' ORDER BY created_at ASC, id ASC`)
}

// FailedOutbox returns failed entries, optionally limited to one room.
func (db *DB) FailedOutbox(roomID string) ([]OutboxEntry, error) {
	if roomID == "" {
		return db.listOutbox(`WHERE status = 'failed' ORDER BY created_at ASC, id ASC`)
	}
	return db.listOutbox(`WHERE status = 'failed' AND room_id = ? ORDER BY created_at ASC, id ASC`, roomID)
}

func (db *DB) listOutbox(where string, args ...any) ([]OutboxEntry, error) {
	rows, err := db.Query(`
		SELECT id, client_msg_id, room_id, body, formatted_body, thread_root, reply_to, status, error_message, server_event_id, attempts
		FROM outbox `+where, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.ClientMsgID, &e.RoomID, &e.Body, &e.FormattedBody, &e.ThreadRoot, &e.ReplyTo, &e.Status, &e.ErrorMessage, &e.ServerEventID, &e.Attempts); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
