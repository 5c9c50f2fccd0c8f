// Package roomlist projects rooms into list summaries and keeps a UI copy of
// that list in step with the daemon through versioned, incremental diffs.
package roomlist

import "github.com/matheus3301/mxt/internal/store"

// RoomSummary is the read-model projection of one row in the room list.
// It is a comparable value: two summaries are equal when every field is.
type RoomSummary struct {
	ID                string `json:"id"`
	DisplayName       string `json:"display_name"`
	AvatarURL         string `json:"avatar_url,omitempty"`
	Topic             string `json:"topic,omitempty"`
	CanonicalAlias    string `json:"canonical_alias,omitempty"`
	LastMessage       string `json:"last_message,omitempty"`
	LastMessageAt     int64  `json:"last_message_at,omitempty"`
	UnreadCount       int    `json:"unread_count,omitempty"`
	NotificationCount int    `json:"notification_count,omitempty"`
	HighlightCount    int    `json:"highlight_count,omitempty"`
	IsDirect          bool   `json:"is_direct,omitempty"`
	Membership        string `json:"membership"`
	IsPlaceholder     bool   `json:"is_placeholder,omitempty"`
}

// IsInvite reports whether the user is invited but has not joined yet.
func (s RoomSummary) IsInvite() bool {
	return s.Membership == store.MembershipInvite
}

// HasUnread reports whether the room has anything the user has not seen.
func (s RoomSummary) HasUnread() bool {
	return s.UnreadCount > 0 || s.NotificationCount > 0 || s.HighlightCount > 0
}

// FromRoom projects a stored room.
func FromRoom(r store.Room) RoomSummary {
	name := r.DisplayName
	if name == "" {
		name = r.ID
	}
	return RoomSummary{
		ID:                r.ID,
		DisplayName:       name,
		AvatarURL:         r.AvatarURL,
		Topic:             r.Topic,
		CanonicalAlias:    r.CanonicalAlias,
		LastMessage:       r.LastMessagePreview,
		LastMessageAt:     r.LastMessageAt,
		UnreadCount:       r.UnreadCount,
		NotificationCount: r.NotificationCount,
		HighlightCount:    r.HighlightCount,
		IsDirect:          r.IsDirect,
		Membership:        r.Membership,
	}
}

// FromRooms projects stored rooms, keeping their order.
func FromRooms(rooms []store.Room) []RoomSummary {
	out := make([]RoomSummary, len(rooms))
	for i, r := range rooms {
		out[i] = FromRoom(r)
	}
	return out
}

// Placeholders returns n placeholder rows shown while the first snapshot loads.
func Placeholders(n int) []RoomSummary {
	out := make([]RoomSummary, n)
	for i := range out {
		out[i] = RoomSummary{IsPlaceholder: true}
	}
	return out
}
