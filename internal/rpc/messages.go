package rpc

import (
	"github.com/matheus3301/mxt/internal/intent"
	"github.com/matheus3301/mxt/internal/navigation"
	"github.com/matheus3301/mxt/internal/roomlist"
	"github.com/matheus3301/mxt/internal/timeline"
)

// Session service.

type StatusRequest struct{}

type StatusResponse struct {
	Session       string `json:"session"`
	State         string `json:"state"`
	SinceUnixMs   int64  `json:"since_unix_ms"`
	UptimeMs      int64  `json:"uptime_ms"`
	UserID        string `json:"user_id,omitempty"`
	DeviceID      string `json:"device_id,omitempty"`
	Homeserver    string `json:"homeserver,omitempty"`
	Syncing       bool   `json:"syncing"`
	RoomCount     int64  `json:"room_count"`
	EventCount    int64  `json:"event_count"`
	DroppedEvents uint64 `json:"dropped_events,omitempty"`
	OIDCEnabled   bool   `json:"oidc_enabled,omitempty"`
}

type LoginRequest struct {
	// Homeserver is a URL, a server name or empty to use the configured one.
	Homeserver string `json:"homeserver,omitempty"`
	User       string `json:"user"`
	Password   string `json:"password"`
}

type LoginResponse struct {
	UserID     string `json:"user_id"`
	DeviceID   string `json:"device_id"`
	Homeserver string `json:"homeserver"`
}

type StartOIDCRequest struct{}

type StartOIDCResponse struct {
	AuthURL string `json:"auth_url"`
}

type LogoutRequest struct{}

type LogoutResponse struct{}

type ListSessionsRequest struct{}

type SessionInfo struct {
	Name          string `json:"name"`
	Path          string `json:"path"`
	DaemonRunning bool   `json:"daemon_running"`
	Current       bool   `json:"current,omitempty"`
}

type ListSessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

type WatchStatusRequest struct{}

type StatusEvent struct {
	From      string `json:"from,omitempty"`
	To        string `json:"to"`
	AtUnixMs  int64  `json:"at_unix_ms"`
	LoggedOut bool   `json:"logged_out,omitempty"`
}

// Sync service.

type SyncRequest struct{}

type SyncResponse struct {
	Syncing bool   `json:"syncing"`
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

type SyncStatusResponse struct {
	Syncing   bool   `json:"syncing"`
	State     string `json:"state"`
	NextBatch string `json:"next_batch,omitempty"`
}

type WatchSyncRequest struct{}

type SyncEvent struct {
	Kind      string `json:"kind"`
	AtUnixMs  int64  `json:"at_unix_ms"`
	NextBatch string `json:"next_batch,omitempty"`
	Rooms     int    `json:"rooms,omitempty"`
	Events    int    `json:"events,omitempty"`
	Attempt   int    `json:"attempt,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Room service.

type ListRoomsRequest struct {
	Filter string `json:"filter,omitempty"`
	Query  string `json:"query,omitempty"`
}

type ListRoomsResponse struct {
	Version uint64                 `json:"version"`
	Rooms   []roomlist.RoomSummary `json:"rooms"`
}

type WatchRoomsRequest struct{}

type GetRoomRequest struct {
	RoomID string `json:"room_id"`
}

type RoomInfo struct {
	Summary        roomlist.RoomSummary `json:"summary"`
	Encrypted      bool                 `json:"encrypted,omitempty"`
	MemberCount    int64                `json:"member_count"`
	Permalink      string               `json:"permalink"`
	HasMoreHistory bool                 `json:"has_more_history"`
	FullyRead      string               `json:"fully_read,omitempty"`
	ReplacedBy     string               `json:"replaced_by,omitempty"`
}

type Member struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	Membership  string `json:"membership"`
}

type ListMembersRequest struct {
	RoomID string `json:"room_id"`
}

type ListMembersResponse struct {
	Members []Member `json:"members"`
}

type JoinRoomRequest struct {
	RoomIDOrAlias string   `json:"room_id_or_alias"`
	Via           []string `json:"via,omitempty"`
}

type JoinRoomResponse struct {
	RoomID string `json:"room_id"`
}

type MarkReadRequest struct {
	RoomID  string `json:"room_id"`
	EventID string `json:"event_id"`
}

type MarkReadResponse struct{}

// Timeline service.

type ListEventsRequest struct {
	RoomID   string `json:"room_id"`
	BeforeTs int64  `json:"before_ts,omitempty"`
	BeforeID int64  `json:"before_id,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type ListEventsResponse struct {
	Events []*timeline.EventItem `json:"events"`
	// HasMore is true while older events exist locally or on the server.
	HasMore bool `json:"has_more"`
}

type PaginateRequest struct {
	RoomID string `json:"room_id"`
	Limit  int    `json:"limit,omitempty"`
}

type PaginateResponse struct {
	Fetched int  `json:"fetched"`
	HasMore bool `json:"has_more"`
}

type SendRequest struct {
	RoomID     string `json:"room_id"`
	Body       string `json:"body"`
	ThreadRoot string `json:"thread_root,omitempty"`
	ReplyTo    string `json:"reply_to,omitempty"`
	// Markdown overrides the configured default when set.
	Markdown *bool `json:"markdown,omitempty"`
}

type SendResponse struct {
	ClientMsgID string `json:"client_msg_id"`
}

type RetryRequest struct {
	ClientMsgID string `json:"client_msg_id"`
}

type RetryResponse struct {
	Status string `json:"status"`
}

type SearchRequest struct {
	Query  string `json:"query"`
	RoomID string `json:"room_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type SearchHit struct {
	RoomID  string              `json:"room_id"`
	Snippet string              `json:"snippet"`
	Event   *timeline.EventItem `json:"event"`
}

type SearchResponse struct {
	Results []SearchHit `json:"results"`
}

type WatchTimelineRequest struct {
	// RoomID restricts the stream to one room when set.
	RoomID string `json:"room_id,omitempty"`
}

type TimelineEvent struct {
	Kind        string   `json:"kind"`
	RoomID      string   `json:"room_id"`
	EventIDs    []string `json:"event_ids,omitempty"`
	ClientMsgID string   `json:"client_msg_id,omitempty"`
	EventID     string   `json:"event_id,omitempty"`
	Status      string   `json:"status,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// Intent service.

type OpenRequest struct {
	// URI is opened as a VIEW intent. Intent is used when URI is empty.
	URI    string         `json:"uri,omitempty"`
	Intent *intent.Intent `json:"intent,omitempty"`
}

type OpenResponse struct {
	Destination navigation.Destination `json:"destination"`
}
