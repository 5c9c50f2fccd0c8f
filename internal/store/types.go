package store

// Room membership values mirrored from m.room.member.
const (
	MembershipJoin   = "join"
	MembershipInvite = "invite"
	MembershipLeave  = "leave"
	MembershipBan    = "ban"
	MembershipKnock  = "knock"
)

// Event kinds stored in events.kind.
const (
	KindMessage         = "message"
	KindMembership      = "membership"
	KindProfileChange   = "profile_change"
	KindState           = "state"
	KindRedacted        = "redacted"
	KindUnableToDecrypt = "unable_to_decrypt"
	KindUnknown         = "unknown"
)

// Delivery states of events and outbox entries.
const (
	StatusQueued   = "queued"
	StatusSending  = "sending"
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusReceived = "received"
)

// Room is the read-model row for a joined or invited room.
type Room struct {
	ID                 string
	Name               string
	DisplayName        string
	AvatarURL          string
	Topic              string
	CanonicalAlias     string
	IsDirect           bool
	IsEncrypted        bool
	Membership         string
	UnreadCount        int
	NotificationCount  int
	HighlightCount     int
	LastMessageAt      int64
	LastMessagePreview string
	Heroes             []string
	PrevBatch          string
	FullyRead          string
	HasMoreHistory     bool
	Hidden             bool
}

// Member is a room member with its room-scoped profile.
type Member struct {
	RoomID      string
	UserID      string
	DisplayName string
	AvatarURL   string
	Membership  string
}

// Event is a timeline event projected for display.
type Event struct {
	ID              int64
	RoomID          string
	EventID         string
	TxnID           string
	Sender          string
	SenderName      string
	Type            string
	StateKey        string
	Kind            string
	MsgType         string
	Body            string
	FormattedBody   string
	Membership      string
	PrevMembership  string
	DisplayName     string
	PrevDisplayName string
	AvatarChanged   bool
	FileName        string
	FileSize        int64
	ThreadRoot      string
	ReplyTo         string
	Redacted        bool
	FromMe          bool
	Status          string
	Timestamp       int64
}

// LocalEchoID is the placeholder event id used until the server assigns one.
func LocalEchoID(txnID string) string {
	return "~" + txnID
}

// OutboxEntry represents a pending outgoing message.
type OutboxEntry struct {
	ID            int64
	ClientMsgID   string
	RoomID        string
	Body          string
	FormattedBody string
	ThreadRoot    string
	ReplyTo       string
	Status        string // queued, sending, sent, failed
	ErrorMessage  string
	ServerEventID string
	Attempts      int
}

// SearchResult holds an event with a search snippet.
type SearchResult struct {
	Event   Event
	Snippet string
}

// Receipt is a user's public read receipt in a room.
type Receipt struct {
	RoomID    string
	UserID    string
	EventID   string
	Timestamp int64
}

// Tombstone records that a room was upgraded to a replacement room.
type Tombstone struct {
	RoomID            string
	ReplacementRoomID string
	Body              string
}
