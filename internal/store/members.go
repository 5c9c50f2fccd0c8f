package store

import (
	"database/sql"
	"errors"
	"time"
)

// UpsertMember inserts or updates a member. Empty profile fields keep the
// previously known value.
func (db *DB) UpsertMember(m *Member) error { return upsertMember(db, m) }

// UpsertMember is the transactional variant of DB.UpsertMember.
func (tx *Tx) UpsertMember(m *Member) error { return upsertMember(tx, m) }

func upsertMember(q queryer, m *Member) error {
	_, err := q.Exec(`
		INSERT INTO members (room_id, user_id, display_name, avatar_url, membership, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(room_id, user_id) DO UPDATE SET
			display_name = CASE WHEN excluded.display_name != '' THEN excluded.display_name ELSE members.display_name END,
			avatar_url = CASE WHEN excluded.avatar_url != '' THEN excluded.avatar_url ELSE members.avatar_url END,
			membership = excluded.membership,
			updated_at = excluded.updated_at`,
		m.RoomID, m.UserID, m.DisplayName, m.AvatarURL, membershipOrJoin(m.Membership), time.Now().UnixMilli())
	return err
}

// GetMember returns a member of a room, or nil if unknown.
func (db *DB) GetMember(roomID, userID string) (*Member, error) { return getMember(db, roomID, userID) }

// GetMember is the transactional variant of DB.GetMember.
func (tx *Tx) GetMember(roomID, userID string) (*Member, error) { return getMember(tx, roomID, userID) }

func getMember(q queryer, roomID, userID string) (*Member, error) {
	var m Member
	err := q.QueryRow(`SELECT room_id, user_id, display_name, avatar_url, membership FROM members WHERE room_id = ? AND user_id = ?`,
		roomID, userID).Scan(&m.RoomID, &m.UserID, &m.DisplayName, &m.AvatarURL, &m.Membership)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MemberName resolves a user's display name in a room, falling back to the user id.
func (tx *Tx) MemberName(roomID, userID string) (string, error) {
	m, err := getMember(tx, roomID, userID)
	if err != nil {
		return "", err
	}
	if m == nil || m.DisplayName == "" {
		return userID, nil
	}
	return m.DisplayName, nil
}

// ListMembers returns joined and invited members of a room sorted by name.
func (db *DB) ListMembers(roomID string) ([]Member, error) {
	rows, err := db.Query(`
		SELECT room_id, user_id, display_name, avatar_url, membership
		FROM members
		WHERE room_id = ? AND membership IN ('join', 'invite')
		ORDER BY COALESCE(NULLIF(display_name, ''), user_id) COLLATE NOCASE`, roomID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.RoomID, &m.UserID, &m.DisplayName, &m.AvatarURL, &m.Membership); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// MemberCount returns the number of joined members in a room.
func (db *DB) MemberCount(roomID string) (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM members WHERE room_id = ? AND membership = 'join'`, roomID).Scan(&count)
	return count, err
}
