package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

const roomColumns = `room_id, name, display_name, avatar_url, topic, canonical_alias,
	is_direct, is_encrypted, membership, unread_count, notification_count, highlight_count,
	last_message_at, last_message_preview, heroes, prev_batch, fully_read, has_more_history, hidden`

// UpsertRoom inserts or replaces a room's metadata. The last message columns
// only move forward in time, and empty pagination/read-marker values never
// overwrite stored ones.
func (db *DB) UpsertRoom(r *Room) error { return upsertRoom(db, r) }

// UpsertRoom is the transactional variant of DB.UpsertRoom.
func (tx *Tx) UpsertRoom(r *Room) error { return upsertRoom(tx, r) }

func upsertRoom(q queryer, r *Room) error {
	now := time.Now().UnixMilli()
	_, err := q.Exec(`
		INSERT INTO rooms (`+roomColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(room_id) DO UPDATE SET
			name = excluded.name,
			display_name = excluded.display_name,
			avatar_url = excluded.avatar_url,
			topic = excluded.topic,
			canonical_alias = excluded.canonical_alias,
			is_direct = excluded.is_direct,
			is_encrypted = excluded.is_encrypted,
			membership = excluded.membership,
			unread_count = excluded.unread_count,
			notification_count = excluded.notification_count,
			highlight_count = excluded.highlight_count,
			last_message_at = MAX(rooms.last_message_at, excluded.last_message_at),
			last_message_preview = CASE WHEN excluded.last_message_at >= rooms.last_message_at THEN excluded.last_message_preview ELSE rooms.last_message_preview END,
			heroes = excluded.heroes,
			prev_batch = CASE WHEN excluded.prev_batch != '' THEN excluded.prev_batch ELSE rooms.prev_batch END,
			fully_read = CASE WHEN excluded.fully_read != '' THEN excluded.fully_read ELSE rooms.fully_read END,
			has_more_history = excluded.has_more_history,
			hidden = excluded.hidden,
			updated_at = excluded.updated_at`,
		r.ID, r.Name, r.DisplayName, r.AvatarURL, r.Topic, r.CanonicalAlias,
		r.IsDirect, r.IsEncrypted, membershipOrJoin(r.Membership), r.UnreadCount, r.NotificationCount, r.HighlightCount,
		r.LastMessageAt, r.LastMessagePreview, strings.Join(r.Heroes, ","), r.PrevBatch, r.FullyRead, r.HasMoreHistory, r.Hidden,
		now)
	return err
}

// TouchRoomLastMessage advances a room's last message if ts is newer.
func (tx *Tx) TouchRoomLastMessage(roomID string, ts int64, preview string) error {
	_, err := tx.Exec(`
		UPDATE rooms SET
			last_message_preview = CASE WHEN ? >= last_message_at THEN ? ELSE last_message_preview END,
			last_message_at = MAX(last_message_at, ?),
			updated_at = ?
		WHERE room_id = ?`,
		ts, truncate(preview, 100), ts, time.Now().UnixMilli(), roomID)
	return err
}

// ListRooms returns visible joined and invited rooms, most recent first.
// Rooms hidden by an upgrade and rooms the user left are excluded.
func (db *DB) ListRooms(limit, offset int) ([]Room, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := db.Query(`
		SELECT `+roomColumns+`
		FROM rooms
		WHERE hidden = 0 AND membership IN ('join', 'invite')
		ORDER BY last_message_at DESC, room_id ASC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var rooms []Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *r)
	}
	return rooms, rows.Err()
}

// GetRoom returns a single room by id, or nil if it is unknown.
func (db *DB) GetRoom(roomID string) (*Room, error) { return getRoom(db, roomID) }

// GetRoom is the transactional variant of DB.GetRoom.
func (tx *Tx) GetRoom(roomID string) (*Room, error) { return getRoom(tx, roomID) }

func getRoom(q queryer, roomID string) (*Room, error) {
	r, err := scanRoom(q.QueryRow(`SELECT `+roomColumns+` FROM rooms WHERE room_id = ?`, roomID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// FindRoomByAlias resolves a canonical alias to a known room id.
func (db *DB) FindRoomByAlias(alias string) (string, error) {
	var roomID string
	err := db.QueryRow(`SELECT room_id FROM rooms WHERE canonical_alias = ? LIMIT 1`, alias).Scan(&roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return roomID, err
}

// SetRoomMembership records the user's own membership in a room.
func (tx *Tx) SetRoomMembership(roomID, membership string) error {
	_, err := tx.Exec(`
		INSERT INTO rooms (room_id, membership, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(room_id) DO UPDATE SET membership = excluded.membership, updated_at = excluded.updated_at`,
		roomID, membership, time.Now().UnixMilli())
	return err
}

// SetDirectRooms makes exactly the given rooms direct chats, mirroring m.direct.
func (tx *Tx) SetDirectRooms(roomIDs []string) error {
	if _, err := tx.Exec(`UPDATE rooms SET is_direct = 0 WHERE is_direct = 1`); err != nil {
		return err
	}
	for _, id := range roomIDs {
		if _, err := tx.Exec(`UPDATE rooms SET is_direct = 1 WHERE room_id = ?`, id); err != nil {
			return err
		}
	}
	return nil
}

// SetPrevBatch stores the back-pagination token and whether history remains.
func (db *DB) SetPrevBatch(roomID, token string, hasMore bool) error {
	_, err := db.Exec(`UPDATE rooms SET prev_batch = ?, has_more_history = ?, updated_at = ? WHERE room_id = ?`,
		token, hasMore, time.Now().UnixMilli(), roomID)
	return err
}

// MarkRoomRead clears unread counters and moves the fully-read marker.
func (db *DB) MarkRoomRead(roomID, eventID string) error {
	_, err := db.Exec(`
		UPDATE rooms SET
			unread_count = 0, notification_count = 0, highlight_count = 0,
			fully_read = CASE WHEN ? != '' THEN ? ELSE fully_read END,
			updated_at = ?
		WHERE room_id = ?`,
		eventID, eventID, time.Now().UnixMilli(), roomID)
	return err
}

// RoomCount returns the number of visible rooms.
func (db *DB) RoomCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM rooms WHERE hidden = 0 AND membership IN ('join', 'invite')`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(s rowScanner) (*Room, error) {
	var r Room
	var heroes string
	if err := s.Scan(&r.ID, &r.Name, &r.DisplayName, &r.AvatarURL, &r.Topic, &r.CanonicalAlias,
		&r.IsDirect, &r.IsEncrypted, &r.Membership, &r.UnreadCount, &r.NotificationCount, &r.HighlightCount,
		&r.LastMessageAt, &r.LastMessagePreview, &heroes, &r.PrevBatch, &r.FullyRead, &r.HasMoreHistory, &r.Hidden); err != nil {
		return nil, err
	}
	if heroes != "" {
		r.Heroes = strings.Split(heroes, ",")
	}
	return &r, nil
}

func membershipOrJoin(m string) string {
	if m == "" {
		return MembershipJoin
	}
	return m
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}
