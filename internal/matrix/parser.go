package matrix

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matheus3301/mxt/internal/store"
	"github.com/microcosm-cc/bluemonday"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// SyncBatch is one /sync response reduced to what the read-model needs.
type SyncBatch struct {
	Since     string
	NextBatch string
	Rooms     []*RoomUpdate
	// DirectRooms is set only when m.direct changed; it lists every direct room.
	DirectRooms map[string]bool
}

// Initial reports whether the batch came from a sync without a since token.
func (b *SyncBatch) Initial() bool { return b.Since == "" }

// RoomUpdate is everything a batch says about one room. Nil pointers mean
// "unchanged".
type RoomUpdate struct {
	RoomID         string
	Membership     string
	Name           *string
	Topic          *string
	AvatarURL      *string
	CanonicalAlias *string
	Encrypted      bool
	IsDirect       bool
	Heroes         []string
	Counts         *Counts
	Members        []store.Member
	Events         []*store.Event
	Edits          []Edit
	Redactions     []string
	Receipts       []store.Receipt
	Tombstone      *store.Tombstone
	PrevBatch      string
	Limited        bool
	FullyRead      string
}

// Counts are the server-side unread counters of a joined room.
type Counts struct {
	Notification int
	Highlight    int
}

// Edit replaces the content of an earlier message.
type Edit struct {
	EventID       string
	Body          string
	FormattedBody string
}

// HistoryBatch is one page of back-pagination.
type HistoryBatch struct {
	RoomID  string
	Events  []*store.Event
	Members []store.Member
	End     string
	HasMore bool
}

// Parser converts SDK events into store rows for one logged-in user.
type Parser struct {
	me     id.UserID
	policy *bluemonday.Policy
}

// NewParser creates a parser; me identifies the user's own events.
func NewParser(me id.UserID) *Parser {
	return &Parser{me: me, policy: bluemonday.UGCPolicy()}
}

// ParseSync reduces a sync response. Rooms are ordered by id.
func (p *Parser) ParseSync(resp *mautrix.RespSync, since string) *SyncBatch {
	batch := &SyncBatch{Since: since, NextBatch: resp.NextBatch}

	for roomID, room := range resp.Rooms.Join {
		u := &RoomUpdate{
			RoomID:     string(roomID),
			Membership: store.MembershipJoin,
			PrevBatch:  room.Timeline.PrevBatch,
			Limited:    room.Timeline.Limited,
		}
		for _, evt := range room.State.Events {
			p.applyState(u, evt)
		}
		for _, evt := range room.Timeline.Events {
			if evt.StateKey != nil {
				p.applyState(u, evt)
			}
			p.applyTimeline(u, evt)
		}
		for _, evt := range room.Ephemeral.Events {
			p.applyEphemeral(u, evt)
		}
		for _, evt := range room.AccountData.Events {
			p.applyRoomAccountData(u, evt)
		}
		if room.UnreadNotifications != nil {
			u.Counts = &Counts{
				Notification: room.UnreadNotifications.NotificationCount,
				Highlight:    room.UnreadNotifications.HighlightCount,
			}
		}
		for _, hero := range room.Summary.Heroes {
			u.Heroes = append(u.Heroes, string(hero))
		}
		batch.Rooms = append(batch.Rooms, u)
	}

	for roomID, room := range resp.Rooms.Invite {
		u := &RoomUpdate{RoomID: string(roomID), Membership: store.MembershipInvite}
		for _, evt := range room.State.Events {
			p.applyState(u, evt)
		}
		batch.Rooms = append(batch.Rooms, u)
	}

	for roomID, room := range resp.Rooms.Leave {
		u := &RoomUpdate{RoomID: string(roomID), Membership: store.MembershipLeave}
		for _, evt := range room.Timeline.Events {
			if evt.StateKey != nil {
				p.applyState(u, evt)
			}
			p.applyTimeline(u, evt)
		}
		batch.Rooms = append(batch.Rooms, u)
	}

	for _, evt := range resp.AccountData.Events {
		if evt.Type.Type != event.AccountDataDirectChats.Type {
			continue
		}
		evt.Type.Class = event.AccountDataEventType
		_ = evt.Content.ParseRaw(evt.Type)
		batch.DirectRooms = make(map[string]bool)
		if direct := evt.Content.AsDirectChats(); direct != nil {
			for _, rooms := range *direct {
				for _, roomID := range rooms {
					batch.DirectRooms[string(roomID)] = true
				}
			}
		}
	}

	slices.SortFunc(batch.Rooms, func(a, b *RoomUpdate) int { return strings.Compare(a.RoomID, b.RoomID) })
	return batch
}

// ParseMessages converts a /messages page fetched backwards from a room.
func (p *Parser) ParseMessages(roomID string, resp *mautrix.RespMessages) *HistoryBatch {
	h := &HistoryBatch{RoomID: roomID, End: resp.End, HasMore: resp.End != "" && len(resp.Chunk) > 0}
	u := &RoomUpdate{RoomID: roomID}
	for _, evt := range resp.State {
		p.applyState(u, evt)
	}
	for _, evt := range resp.Chunk {
		p.applyTimeline(u, evt)
	}
	h.Members = u.Members
	// /messages returns newest first when paginating backwards.
	h.Events = u.Events
	slices.Reverse(h.Events)
	return h
}

func classify(evt *event.Event) {
	if evt.StateKey != nil {
		evt.Type.Class = event.StateEventType
	} else if evt.Type.Class == event.UnknownEventType {
		evt.Type.Class = event.MessageEventType
	}
	_ = evt.Content.ParseRaw(evt.Type)
}

func (p *Parser) applyState(u *RoomUpdate, evt *event.Event) {
	classify(evt)
	switch evt.Type.Type {
	case event.StateRoomName.Type:
		name := evt.Content.AsRoomName().Name
		u.Name = &name
	case event.StateTopic.Type:
		topic := evt.Content.AsTopic().Topic
		u.Topic = &topic
	case event.StateRoomAvatar.Type:
		url := string(evt.Content.AsRoomAvatar().URL)
		u.AvatarURL = &url
	case event.StateCanonicalAlias.Type:
		alias := string(evt.Content.AsCanonicalAlias().Alias)
		u.CanonicalAlias = &alias
	case event.StateEncryption.Type:
		u.Encrypted = true
	case event.StateTombstone.Type:
		t := evt.Content.AsTombstone()
		if t.ReplacementRoom != "" {
			u.Tombstone = &store.Tombstone{RoomID: u.RoomID, ReplacementRoomID: string(t.ReplacementRoom), Body: t.Body}
		}
	case event.StateMember.Type:
		if evt.StateKey == nil {
			return
		}
		m := evt.Content.AsMember()
		u.Members = append(u.Members, store.Member{
			RoomID:      u.RoomID,
			UserID:      *evt.StateKey,
			DisplayName: m.Displayname,
			AvatarURL:   string(m.AvatarURL),
			Membership:  string(m.Membership),
		})
		if *evt.StateKey == string(p.me) && m.Membership == event.MembershipInvite && m.IsDirect {
			u.IsDirect = true
		}
	}
}

func (p *Parser) applyEphemeral(u *RoomUpdate, evt *event.Event) {
	if evt.Type.Type != event.EphemeralEventReceipt.Type {
		return
	}
	evt.Type.Class = event.EphemeralEventType
	_ = evt.Content.ParseRaw(evt.Type)
	receipts := evt.Content.AsReceipt()
	if receipts == nil {
		return
	}
	for eventID, byType := range *receipts {
		for userID, r := range byType[event.ReceiptTypeRead] {
			u.Receipts = append(u.Receipts, store.Receipt{
				RoomID:    u.RoomID,
				UserID:    string(userID),
				EventID:   string(eventID),
				Timestamp: r.Timestamp.UnixMilli(),
			})
		}
	}
	slices.SortFunc(u.Receipts, func(a, b store.Receipt) int { return strings.Compare(a.UserID, b.UserID) })
}

func (p *Parser) applyRoomAccountData(u *RoomUpdate, evt *event.Event) {
	if evt.Type.Type != event.AccountDataFullyRead.Type {
		return
	}
	evt.Type.Class = event.AccountDataEventType
	_ = evt.Content.ParseRaw(evt.Type)
	u.FullyRead = string(evt.Content.AsFullyRead().EventID)
}

func (p *Parser) applyTimeline(u *RoomUpdate, evt *event.Event) {
	classify(evt)
	switch evt.Type.Type {
	case event.EventRedaction.Type:
		target := evt.Redacts
		if target == "" {
			target = evt.Content.AsRedaction().Redacts
		}
		if target != "" {
			u.Redactions = append(u.Redactions, string(target))
		}
		return
	case event.EventReaction.Type:
		return
	case event.EventMessage.Type:
		if rel := evt.Content.AsMessage().RelatesTo; rel != nil && rel.Type == event.RelReplace && evt.Unsigned.RedactedBecause == nil {
			u.Edits = append(u.Edits, p.parseEdit(evt))
			return
		}
	}
	u.Events = append(u.Events, p.ParseEvent(u.RoomID, evt))
}

// ParseEvent converts one timeline event. The sender's display name is left
// empty except for the user's own membership events; callers resolve it
// from room members.
func (p *Parser) ParseEvent(roomID string, evt *event.Event) *store.Event {
	classify(evt)
	e := &store.Event{
		RoomID:    roomID,
		EventID:   string(evt.ID),
		TxnID:     evt.Unsigned.TransactionID,
		Sender:    string(evt.Sender),
		Type:      evt.Type.Type,
		FromMe:    evt.Sender == p.me,
		Status:    store.StatusReceived,
		Timestamp: evt.Timestamp,
		Kind:      store.KindUnknown,
	}
	if e.FromMe {
		e.Status = store.StatusSent
	}
	if evt.StateKey != nil {
		e.StateKey = *evt.StateKey
	}
	if evt.Unsigned.RedactedBecause != nil {
		e.Kind = store.KindRedacted
		e.Redacted = true
		return e
	}

	switch evt.Type.Type {
	case event.EventMessage.Type, event.EventSticker.Type:
		p.fillMessage(e, evt.Content.AsMessage())
	case event.EventEncrypted.Type:
		e.Kind = store.KindUnableToDecrypt
	case event.StateMember.Type:
		p.fillMember(e, evt)
	default:
		if evt.StateKey != nil {
			e.Kind = store.KindState
			e.Body = stateSummary(evt)
		}
	}
	return e
}

func (p *Parser) fillMessage(e *store.Event, c *event.MessageEventContent) {
	e.Kind = store.KindMessage
	c.RemoveReplyFallback()
	e.MsgType = string(c.MsgType)
	if e.MsgType == "" {
		e.MsgType = string(event.MsgText)
	}
	e.Body = c.Body
	if c.Format == event.FormatHTML && c.FormattedBody != "" {
		e.FormattedBody = p.policy.Sanitize(c.FormattedBody)
	}
	switch c.MsgType {
	case event.MsgImage, event.MsgFile, event.MsgAudio, event.MsgVideo:
		e.FileName = c.FileName
		if e.FileName == "" {
			e.FileName = c.Body
		}
		if c.Info != nil {
			e.FileSize = int64(c.Info.Size)
		}
	}
	if c.RelatesTo != nil {
		e.ThreadRoot = string(c.RelatesTo.GetThreadParent())
		e.ReplyTo = string(c.RelatesTo.GetNonFallbackReplyTo())
	}
}

func (p *Parser) fillMember(e *store.Event, evt *event.Event) {
	cur := evt.Content.AsMember()
	var prev *event.MemberEventContent
	if evt.Unsigned.PrevContent != nil {
		_ = evt.Unsigned.PrevContent.ParseRaw(evt.Type)
		prev = evt.Unsigned.PrevContent.AsMember()
	} else {
		prev = &event.MemberEventContent{}
	}

	e.Membership = string(cur.Membership)
	e.PrevMembership = string(prev.Membership)
	e.DisplayName = cur.Displayname
	e.PrevDisplayName = prev.Displayname
	if e.StateKey == e.Sender && cur.Displayname != "" {
		e.SenderName = cur.Displayname
	}

	if cur.Membership == event.MembershipJoin && prev.Membership == event.MembershipJoin {
		e.Kind = store.KindProfileChange
		e.AvatarChanged = cur.AvatarURL != prev.AvatarURL
		return
	}
	e.Kind = store.KindMembership
}

func (p *Parser) parseEdit(evt *event.Event) Edit {
	c := evt.Content.AsMessage()
	edit := Edit{EventID: string(c.RelatesTo.EventID)}
	if nc := c.NewContent; nc != nil {
		edit.Body = nc.Body
		if nc.Format == event.FormatHTML && nc.FormattedBody != "" {
			edit.FormattedBody = p.policy.Sanitize(nc.FormattedBody)
		}
		return edit
	}
	edit.Body = strings.TrimPrefix(c.Body, "* ")
	return edit
}

func stateSummary(evt *event.Event) string {
	c := evt.Content
	switch evt.Type.Type {
	case event.StateRoomName.Type:
		if name := c.AsRoomName().Name; name != "" {
			return fmt.Sprintf("changed the room name to %q", name)
		}
		return "removed the room name"
	case event.StateTopic.Type:
		if topic := c.AsTopic().Topic; topic != "" {
			return fmt.Sprintf("changed the topic to %q", topic)
		}
		return "removed the topic"
	case event.StateRoomAvatar.Type:
		return "changed the room avatar"
	case event.StateCanonicalAlias.Type:
		if alias := c.AsCanonicalAlias().Alias; alias != "" {
			return "set the main address to " + string(alias)
		}
		return "removed the main address"
	case event.StateCreate.Type:
		return "created the room"
	case event.StateEncryption.Type:
		return "enabled end-to-end encryption"
	case event.StatePowerLevels.Type:
		return "changed the power levels"
	case event.StateJoinRules.Type:
		return "changed the join rule to " + string(c.AsJoinRules().JoinRule)
	case event.StateHistoryVisibility.Type:
		return "made history visible to " + string(c.AsHistoryVisibility().HistoryVisibility)
	case event.StateTombstone.Type:
		return "upgraded this room"
	case event.StatePinnedEvents.Type:
		return "changed the pinned messages"
	}
	return "changed " + evt.Type.Type
}
