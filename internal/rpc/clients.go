package rpc

import (
	"context"

	"github.com/matheus3301/mxt/internal/roomlist"
	"google.golang.org/grpc"
)

type SessionClient struct{ cc grpc.ClientConnInterface }

func NewSessionClient(cc grpc.ClientConnInterface) *SessionClient { return &SessionClient{cc: cc} }

func (c *SessionClient) Status(ctx context.Context, in *StatusRequest) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c.cc, method(SessionService, "Status"), in)
}

func (c *SessionClient) Login(ctx context.Context, in *LoginRequest) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, method(SessionService, "Login"), in)
}

func (c *SessionClient) StartOIDC(ctx context.Context, in *StartOIDCRequest) (*StartOIDCResponse, error) {
	return invoke[StartOIDCResponse](ctx, c.cc, method(SessionService, "StartOIDC"), in)
}

func (c *SessionClient) Logout(ctx context.Context, in *LogoutRequest) (*LogoutResponse, error) {
	return invoke[LogoutResponse](ctx, c.cc, method(SessionService, "Logout"), in)
}

func (c *SessionClient) ListSessions(ctx context.Context, in *ListSessionsRequest) (*ListSessionsResponse, error) {
	return invoke[ListSessionsResponse](ctx, c.cc, method(SessionService, "ListSessions"), in)
}

func (c *SessionClient) WatchStatus(ctx context.Context, in *WatchStatusRequest) (*Receiver[StatusEvent], error) {
	return openStream[StatusEvent](ctx, c.cc, &SessionServiceDesc.Streams[0], method(SessionService, "WatchStatus"), in)
}

type SyncClient struct{ cc grpc.ClientConnInterface }

func NewSyncClient(cc grpc.ClientConnInterface) *SyncClient { return &SyncClient{cc: cc} }

func (c *SyncClient) Start(ctx context.Context, in *SyncRequest) (*SyncResponse, error) {
	return invoke[SyncResponse](ctx, c.cc, method(SyncService, "Start"), in)
}

func (c *SyncClient) Stop(ctx context.Context, in *SyncRequest) (*SyncResponse, error) {
	return invoke[SyncResponse](ctx, c.cc, method(SyncService, "Stop"), in)
}

func (c *SyncClient) Status(ctx context.Context, in *SyncRequest) (*SyncStatusResponse, error) {
	return invoke[SyncStatusResponse](ctx, c.cc, method(SyncService, "Status"), in)
}

func (c *SyncClient) Watch(ctx context.Context, in *WatchSyncRequest) (*Receiver[SyncEvent], error) {
	return openStream[SyncEvent](ctx, c.cc, &SyncServiceDesc.Streams[0], method(SyncService, "Watch"), in)
}

type RoomClient struct{ cc grpc.ClientConnInterface }

func NewRoomClient(cc grpc.ClientConnInterface) *RoomClient { return &RoomClient{cc: cc} }

func (c *RoomClient) List(ctx context.Context, in *ListRoomsRequest) (*ListRoomsResponse, error) {
	return invoke[ListRoomsResponse](ctx, c.cc, method(RoomService, "List"), in)
}

func (c *RoomClient) Get(ctx context.Context, in *GetRoomRequest) (*RoomInfo, error) {
	return invoke[RoomInfo](ctx, c.cc, method(RoomService, "Get"), in)
}

func (c *RoomClient) Members(ctx context.Context, in *ListMembersRequest) (*ListMembersResponse, error) {
	return invoke[ListMembersResponse](ctx, c.cc, method(RoomService, "Members"), in)
}

func (c *RoomClient) Join(ctx context.Context, in *JoinRoomRequest) (*JoinRoomResponse, error) {
	return invoke[JoinRoomResponse](ctx, c.cc, method(RoomService, "Join"), in)
}

func (c *RoomClient) MarkRead(ctx context.Context, in *MarkReadRequest) (*MarkReadResponse, error) {
	return invoke[MarkReadResponse](ctx, c.cc, method(RoomService, "MarkRead"), in)
}

func (c *RoomClient) Watch(ctx context.Context, in *WatchRoomsRequest) (*Receiver[roomlist.Update], error) {
	return openStream[roomlist.Update](ctx, c.cc, &RoomServiceDesc.Streams[0], method(RoomService, "Watch"), in)
}

type TimelineClient struct{ cc grpc.ClientConnInterface }

func NewTimelineClient(cc grpc.ClientConnInterface) *TimelineClient { return &TimelineClient{cc: cc} }

func (c *TimelineClient) List(ctx context.Context, in *ListEventsRequest) (*ListEventsResponse, error) {
	return invoke[ListEventsResponse](ctx, c.cc, method(TimelineService, "List"), in)
}

func (c *TimelineClient) Paginate(ctx context.Context, in *PaginateRequest) (*PaginateResponse, error) {
	return invoke[PaginateResponse](ctx, c.cc, method(TimelineService, "Paginate"), in)
}

func (c *TimelineClient) Send(ctx context.Context, in *SendRequest) (*SendResponse, error) {
	return invoke[SendResponse](ctx, c.cc, method(TimelineService, "Send"), in)
}

func (c *TimelineClient) Retry(ctx context.Context, in *RetryRequest) (*RetryResponse, error) {
	return invoke[RetryResponse](ctx, c.cc, method(TimelineService, "Retry"), in)
}

func (c *TimelineClient) Search(ctx context.Context, in *SearchRequest) (*SearchResponse, error) {
	return invoke[SearchResponse](ctx, c.cc, method(TimelineService, "Search"), in)
}

func (c *TimelineClient) Watch(ctx context.Context, in *WatchTimelineRequest) (*Receiver[TimelineEvent], error) {
	return openStream[TimelineEvent](ctx, c.cc, &TimelineServiceDesc.Streams[0], method(TimelineService, "Watch"), in)
}

type IntentClient struct{ cc grpc.ClientConnInterface }

func NewIntentClient(cc grpc.ClientConnInterface) *IntentClient { return &IntentClient{cc: cc} }

func (c *IntentClient) Open(ctx context.Context, in *OpenRequest) (*OpenResponse, error) {
	return invoke[OpenResponse](ctx, c.cc, method(IntentService, "Open"), in)
}
