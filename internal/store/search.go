package store

// SearchEvents performs a full-text search on message bodies, optionally
// limited to one room. Redacted events never match.
func (db *DB) SearchEvents(query string, roomID string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT e.id, e.room_id, e.event_id, e.txn_id, e.sender, e.sender_name, e.event_type, e.state_key,
		       e.kind, e.msgtype, e.body, e.formatted_body, e.membership, e.prev_membership, e.display_name, e.prev_display_name,
		       e.avatar_changed, e.file_name, e.file_size, e.thread_root, e.reply_to, e.redacted, e.from_me, e.status, e.timestamp,
		       snippet(events_fts, 0, '<<', '>>', '...', 32)
		FROM events_fts f
		JOIN events e ON e.id = f.rowid
		WHERE events_fts MATCH ? AND e.kind = 'message'`

	args := []any{query}
	if roomID != "" {
		q += " AND e.room_id = ?"
		args = append(args, roomID)
	}
	q += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		e := &r.Event
		if err := rows.Scan(
			&e.ID, &e.RoomID, &e.EventID, &e.TxnID, &e.Sender, &e.SenderName, &e.Type, &e.StateKey,
			&e.Kind, &e.MsgType, &e.Body, &e.FormattedBody, &e.Membership, &e.PrevMembership, &e.DisplayName, &e.PrevDisplayName,
			&e.AvatarChanged, &e.FileName, &e.FileSize, &e.ThreadRoot, &e.ReplyTo, &e.Redacted, &e.FromMe, &e.Status, &e.Timestamp,
			&r.Snippet,
		); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
