package rpc

import (
	"context"

	"github.com/matheus3301/mxt/internal/roomlist"
	"google.golang.org/grpc"
)

// Fully qualified service names.
const (
	SessionService  = "mxt.v1.Session"
	SyncService     = "mxt.v1.Sync"
	RoomService     = "mxt.v1.Room"
	TimelineService = "mxt.v1.Timeline"
	IntentService   = "mxt.v1.Intent"
)

func method(service, name string) string { return "/" + service + "/" + name }

// SessionServer is implemented by the daemon's session service.
type SessionServer interface {
	Status(context.Context, *StatusRequest) (*StatusResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	StartOIDC(context.Context, *StartOIDCRequest) (*StartOIDCResponse, error)
	Logout(context.Context, *LogoutRequest) (*LogoutResponse, error)
	ListSessions(context.Context, *ListSessionsRequest) (*ListSessionsResponse, error)
	WatchStatus(*WatchStatusRequest, Stream[StatusEvent]) error
}

var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionService,
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(SessionService, "Status", SessionServer.Status),
		unary(SessionService, "Login", SessionServer.Login),
		unary(SessionService, "StartOIDC", SessionServer.StartOIDC),
		unary(SessionService, "Logout", SessionServer.Logout),
		unary(SessionService, "ListSessions", SessionServer.ListSessions),
	},
	Streams: []grpc.StreamDesc{
		serverStreaming("WatchStatus", SessionServer.WatchStatus),
	},
	Metadata: "mxt/v1/session",
}

func RegisterSessionServer(s grpc.ServiceRegistrar, srv SessionServer) {
	s.RegisterService(&SessionServiceDesc, srv)
}

// SyncServer is implemented by the daemon's sync service.
type SyncServer interface {
	Start(context.Context, *SyncRequest) (*SyncResponse, error)
	Stop(context.Context, *SyncRequest) (*SyncResponse, error)
	Status(context.Context, *SyncRequest) (*SyncStatusResponse, error)
	Watch(*WatchSyncRequest, Stream[SyncEvent]) error
}

var SyncServiceDesc = grpc.ServiceDesc{
	ServiceName: SyncService,
	HandlerType: (*SyncServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(SyncService, "Start", SyncServer.Start),
		unary(SyncService, "Stop", SyncServer.Stop),
		unary(SyncService, "Status", SyncServer.Status),
	},
	Streams: []grpc.StreamDesc{
		serverStreaming("Watch", SyncServer.Watch),
	},
	Metadata: "mxt/v1/sync",
}

func RegisterSyncServer(s grpc.ServiceRegistrar, srv SyncServer) {
	s.RegisterService(&SyncServiceDesc, srv)
}

// RoomServer is implemented by the daemon's room service.
type RoomServer interface {
	List(context.Context, *ListRoomsRequest) (*ListRoomsResponse, error)
	Get(context.Context, *GetRoomRequest) (*RoomInfo, error)
	Members(context.Context, *ListMembersRequest) (*ListMembersResponse, error)
	Join(context.Context, *JoinRoomRequest) (*JoinRoomResponse, error)
	MarkRead(context.Context, *MarkReadRequest) (*MarkReadResponse, error)
	Watch(*WatchRoomsRequest, Stream[roomlist.Update]) error
}

var RoomServiceDesc = grpc.ServiceDesc{
	ServiceName: RoomService,
	HandlerType: (*RoomServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(RoomService, "List", RoomServer.List),
		unary(RoomService, "Get", RoomServer.Get),
		unary(RoomService, "Members", RoomServer.Members),
		unary(RoomService, "Join", RoomServer.Join),
		unary(RoomService, "MarkRead", RoomServer.MarkRead),
	},
	Streams: []grpc.StreamDesc{
		serverStreaming("Watch", RoomServer.Watch),
	},
	Metadata: "mxt/v1/room",
}

func RegisterRoomServer(s grpc.ServiceRegistrar, srv RoomServer) {
	s.RegisterService(&RoomServiceDesc, srv)
}

// TimelineServer is implemented by the daemon's timeline service.
type TimelineServer interface {
	List(context.Context, *ListEventsRequest) (*ListEventsResponse, error)
	Paginate(context.Context, *PaginateRequest) (*PaginateResponse, error)
	Send(context.Context, *SendRequest) (*SendResponse, error)
	Retry(context.Context, *RetryRequest) (*RetryResponse, error)
	Search(context.Context, *SearchRequest) (*SearchResponse, error)
	Watch(*WatchTimelineRequest, Stream[TimelineEvent]) error
}

var TimelineServiceDesc = grpc.ServiceDesc{
	ServiceName: TimelineService,
	HandlerType: (*TimelineServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(TimelineService, "List", TimelineServer.List),
		unary(TimelineService, "Paginate", TimelineServer.Paginate),
		unary(TimelineService, "Send", TimelineServer.Send),
		unary(TimelineService, "Retry", TimelineServer.Retry),
		unary(TimelineService, "Search", TimelineServer.Search),
	},
	Streams: []grpc.StreamDesc{
		serverStreaming("Watch", TimelineServer.Watch),
	},
	Metadata: "mxt/v1/timeline",
}

func RegisterTimelineServer(s grpc.ServiceRegistrar, srv TimelineServer) {
	s.RegisterService(&TimelineServiceDesc, srv)
}

// IntentServer is implemented by the daemon's intent service.
type IntentServer interface {
	Open(context.Context, *OpenRequest) (*OpenResponse, error)
}

var IntentServiceDesc = grpc.ServiceDesc{
	ServiceName: IntentService,
	HandlerType: (*IntentServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(IntentService, "Open", IntentServer.Open),
	},
	Metadata: "mxt/v1/intent",
}

func RegisterIntentServer(s grpc.ServiceRegistrar, srv IntentServer) {
	s.RegisterService(&IntentServiceDesc, srv)
}
