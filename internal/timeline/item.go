// Package timeline turns a room's events into renderable rows: event items,
// virtual rows such as day separators, and collapsible groups of state noise.
package timeline

import (
	"slices"

	"github.com/matheus3301/mxt/internal/store"
)

// Item is one renderable row: *EventItem, *VirtualItem or *GroupedEvents.
type Item interface {
	// Key identifies the row across re-renders.
	Key() string
	isItem()
}

// SendState tracks delivery of the user's own messages.
type SendState string

const (
	SendNone    SendState = ""
	SendQueued  SendState = store.StatusQueued
	SendSending SendState = store.StatusSending
	SendSent    SendState = store.StatusSent
	SendFailed  SendState = store.StatusFailed
)

// Receipt is a read receipt attached to the event a user read up to.
type Receipt struct {
	UserID    string `json:"user_id"`
	Timestamp int64  `json:"ts"`
}

// EventItem is a single timeline event.
type EventItem struct {
	ID         string    `json:"id"`
	Seq        int64     `json:"seq,omitempty"`
	EventID    string    `json:"event_id,omitempty"`
	TxnID      string    `json:"txn_id,omitempty"`
	Type       string    `json:"type"`
	Sender     string    `json:"sender"`
	SenderName string    `json:"sender_name,omitempty"`
	Timestamp  int64     `json:"ts"`
	IsMine     bool      `json:"is_mine,omitempty"`
	SendState  SendState `json:"send_state,omitempty"`
	ThreadRoot string    `json:"thread_root,omitempty"`
	ReplyTo    string    `json:"reply_to,omitempty"`
	Content    Content   `json:"content"`
	Receipts   []Receipt `json:"receipts,omitempty"`
}

func (e *EventItem) Key() string { return e.ID }
func (*EventItem) isItem()       {}

// Groupable reports whether the event can be folded into a group.
func (e *EventItem) Groupable() bool { return e.Content.Groupable() }

// Name returns the sender's display name, falling back to the user id.
func (e *EventItem) Name() string {
	if e.SenderName != "" {
		return e.SenderName
	}
	return e.Sender
}

// Text renders the event as one line.
func (e *EventItem) Text() string {
	return e.Content.Text(e.Name(), e.Sender)
}

// Sent reports whether the event reached the server.
func (e *EventItem) Sent() bool {
	return e.SendState == SendNone || e.SendState == SendSent
}

// VirtualKind names a synthetic row.
type VirtualKind string

const (
	DaySeparator     VirtualKind = "day_separator"
	ReadMarker       VirtualKind = "read_marker"
	RoomBeginning    VirtualKind = "room_beginning"
	LoadingIndicator VirtualKind = "loading_indicator"
)

// VirtualItem is a row that does not correspond to an event.
type VirtualItem struct {
	Kind VirtualKind
	// Timestamp is the start of the day for DaySeparator rows.
	Timestamp int64
	key       string
}

func (v *VirtualItem) Key() string { return v.key }
func (*VirtualItem) isItem()       {}

// GroupedEvents is a collapsible run of consecutive groupable events.
type GroupedEvents struct {
	ID     string
	Events []*EventItem
}

func (g *GroupedEvents) Key() string { return g.ID }
func (*GroupedEvents) isItem()       {}

// ReadReceipts aggregates the receipts of all grouped events: one per user,
// the newest one, newest first.
func (g *GroupedEvents) ReadReceipts() []Receipt {
	newest := make(map[string]Receipt)
	for _, e := range g.Events {
		for _, r := range e.Receipts {
			if cur, ok := newest[r.UserID]; !ok || r.Timestamp > cur.Timestamp {
				newest[r.UserID] = r
			}
		}
	}
	out := make([]Receipt, 0, len(newest))
	for _, r := range newest {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Receipt) int {
		if a.Timestamp != b.Timestamp {
			if a.Timestamp > b.Timestamp {
				return -1
			}
			return 1
		}
		if a.UserID < b.UserID {
			return -1
		}
		if a.UserID > b.UserID {
			return 1
		}
		return 0
	})
	return out
}

// FromStore converts a stored event. Receipts are attached by the caller.
func FromStore(e store.Event) *EventItem {
	item := &EventItem{
		ID:         e.EventID,
		Seq:        e.ID,
		Type:       e.Type,
		Sender:     e.Sender,
		SenderName: e.SenderName,
		Timestamp:  e.Timestamp,
		IsMine:     e.FromMe,
		ThreadRoot: e.ThreadRoot,
		ReplyTo:    e.ReplyTo,
		TxnID:      e.TxnID,
		Content:    contentFromStore(e),
	}
	if e.FromMe {
		item.SendState = SendState(e.Status)
	}
	if e.EventID != store.LocalEchoID(e.TxnID) {
		item.EventID = e.EventID
	}
	return item
}
