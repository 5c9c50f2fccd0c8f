package api

import (
	"context"
	"strings"

	"github.com/matheus3301/mxt/internal/bus"
	"github.com/matheus3301/mxt/internal/intent"
	"github.com/matheus3301/mxt/internal/outbox"
	"github.com/matheus3301/mxt/internal/roomlist"
	"github.com/matheus3301/mxt/internal/rpc"
	"github.com/matheus3301/mxt/internal/store"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// RoomActions are the homeserver calls the room service makes.
type RoomActions interface {
	JoinRoom(ctx context.Context, roomIDOrAlias string, via []string) (string, error)
	MarkRead(ctx context.Context, roomID, eventID string) error
}

// RoomService implements rpc.RoomServer.
type RoomService struct {
	db      *store.DB
	rooms   *roomlist.Publisher
	refresh outbox.RoomListRefresher
	actions RoomActions
	bus     *bus.Bus
	logger  *zap.Logger
}

// NewRoomService creates a room service over the read-model. actions may be nil.
func NewRoomService(db *store.DB, rooms *roomlist.Publisher, refresh outbox.RoomListRefresher, actions RoomActions, b *bus.Bus, logger *zap.Logger) *RoomService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomService{db: db, rooms: rooms, refresh: refresh, actions: actions, bus: b, logger: logger}
}

func (s *RoomService) List(_ context.Context, req *rpc.ListRoomsRequest) (*rpc.ListRoomsResponse, error) {
	f := roomlist.Filter{Query: req.Query}
	if req.Filter != "" {
		kind, err := roomlist.ParseFilterKind(req.Filter)
		if err != nil {
			return nil, grpcstatus.Error(codes.InvalidArgument, err.Error())
		}
		f.Kind = kind
	}
	version, list := s.rooms.Snapshot()
	return &rpc.ListRoomsResponse{Version: version, Rooms: f.Select(list)}, nil
}

func (s *RoomService) Get(_ context.Context, req *rpc.GetRoomRequest) (*rpc.RoomInfo, error) {
	if req.RoomID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "room_id is required")
	}
	r, err := s.db.GetRoom(req.RoomID)
	if err != nil {
		return nil, toStatus("get room", err)
	}
	if r == nil {
		return nil, grpcstatus.Errorf(codes.NotFound, "room %q not found", req.RoomID)
	}
	members, err := s.db.MemberCount(r.ID)
	if err != nil {
		return nil, toStatus("count members", err)
	}
	info := &rpc.RoomInfo{
		Summary:        roomlist.FromRoom(*r),
		Encrypted:      r.IsEncrypted,
		MemberCount:    members,
		Permalink:      intent.RoomPermalink(r.ID, r.CanonicalAlias, viaOf(r.ID)...),
		HasMoreHistory: r.HasMoreHistory,
		FullyRead:      r.FullyRead,
	}
	tomb, err := s.db.GetTombstone(r.ID)
	if err != nil {
		return nil, toStatus("get tombstone", err)
	}
	if tomb != nil {
		info.ReplacedBy = tomb.ReplacementRoomID
	}
	return info, nil
}

func (s *RoomService) Members(_ context.Context, req *rpc.ListMembersRequest) (*rpc.ListMembersResponse, error) {
	members, err := s.db.ListMembers(req.RoomID)
	if err != nil {
		return nil, toStatus("list members", err)
	}
	resp := &rpc.ListMembersResponse{Members: make([]rpc.Member, 0, len(members))}
	for _, m := range members {
		resp.Members = append(resp.Members, rpc.Member{UserID: m.UserID, DisplayName: m.DisplayName, Membership: m.Membership})
	}
	return resp, nil
}

func (s *RoomService) Join(ctx context.Context, req *rpc.JoinRoomRequest) (*rpc.JoinRoomResponse, error) {
	if s.actions == nil {
		return nil, grpcstatus.Error(codes.Unavailable, "matrix client not initialized")
	}
	if req.RoomIDOrAlias == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "room_id_or_alias is required")
	}
	roomID, err := s.actions.JoinRoom(ctx, req.RoomIDOrAlias, req.Via)
	if err != nil {
		return nil, toStatus("join room", err)
	}
	return &rpc.JoinRoomResponse{RoomID: roomID}, nil
}

// MarkRead clears the room's unread counters locally and moves the read
// markers on the server.
func (s *RoomService) MarkRead(ctx context.Context, req *rpc.MarkReadRequest) (*rpc.MarkReadResponse, error) {
	if req.RoomID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "room_id is required")
	}
	if err := s.db.MarkRoomRead(req.RoomID, req.EventID); err != nil {
		return nil, toStatus("mark read", err)
	}
	if s.refresh != nil {
		if err := s.refresh.PublishRoomList(); err != nil {
			s.logger.Warn("failed to publish room list", zap.Error(err))
		}
	}
	if s.actions != nil && req.EventID != "" {
		if err := s.actions.MarkRead(ctx, req.RoomID, req.EventID); err != nil {
			return nil, toStatus("send read markers", err)
		}
	}
	return &rpc.MarkReadResponse{}, nil
}

// Watch streams room list updates, starting with a Reset of the current
// list. Subscribing before taking the snapshot means no update is lost;
// updates older than the snapshot are ignored by the consumer.
func (s *RoomService) Watch(_ *rpc.WatchRoomsRequest, stream rpc.Stream[roomlist.Update]) error {
	ch, unsub := s.bus.Subscribe(bus.NamespaceRoomList, 256)
	defer unsub()

	reset := s.rooms.ResetUpdate()
	if err := stream.Send(&reset); err != nil {
		return err
	}
	for {
		select {
		case evt := <-ch:
			u, ok := evt.Payload.(roomlist.Update)
			if !ok {
				continue
			}
			if err := stream.Send(&u); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

// viaOf routes a room id permalink through the server that created the room.
func viaOf(roomID string) []string {
	if _, server, ok := strings.Cut(roomID, ":"); ok && server != "" {
		return []string{server}
	}
	return nil
}
