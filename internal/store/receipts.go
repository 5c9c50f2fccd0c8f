package store

// UpsertReceipt moves a user's read receipt forward. Receipts older than the
// stored one are ignored.
func (tx *Tx) UpsertReceipt(r *Receipt) error {
	_, err := tx.Exec(`
		INSERT INTO receipts (room_id, user_id, event_id, timestamp)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(room_id, user_id) DO UPDATE SET
			event_id = CASE WHEN excluded.timestamp >= receipts.timestamp THEN excluded.event_id ELSE receipts.event_id END,
			timestamp = MAX(receipts.timestamp, excluded.timestamp)`,
		r.RoomID, r.UserID, r.EventID, r.Timestamp)
	return err
}

// ReceiptsByEvent returns the room's receipts keyed by the event they point at.
func (db *DB) ReceiptsByEvent(roomID string) (map[string][]Receipt, error) {
	rows, err := db.Query(`
		SELECT room_id, user_id, event_id, timestamp
		FROM receipts WHERE room_id = ?
		ORDER BY timestamp DESC`, roomID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]Receipt)
	for rows.Next() {
		var r Receipt
		if err := rows.Scan(&r.RoomID, &r.UserID, &r.EventID, &r.Timestamp); err != nil {
			return nil, err
		}
		out[r.EventID] = append(out[r.EventID], r)
	}
	return out, rows.Err()
}
