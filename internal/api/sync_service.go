package api

import (
	"context"
	"errors"

	"github.com/matheus3301/mxt/internal/bus"
	"github.com/matheus3301/mxt/internal/matrix"
	"github.com/matheus3301/mxt/internal/rpc"
	"github.com/matheus3301/mxt/internal/status"
	"github.com/matheus3301/mxt/internal/store"
	intsync "github.com/matheus3301/mxt/internal/sync"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// SyncLoop starts and stops the /sync loop.
type SyncLoop interface {
	IsSyncing() bool
	StartSync(ctx context.Context) error
	StopSync()
}

// SyncService implements rpc.SyncServer.
type SyncService struct {
	loop    SyncLoop
	bus     *bus.Bus
	machine *status.Machine
	db      *store.DB
	// loopCtx outlives requests so the loop keeps running after Start returns.
	loopCtx context.Context
}

// NewSyncService creates a new sync service. loop and db may be nil.
func NewSyncService(loopCtx context.Context, loop SyncLoop, b *bus.Bus, machine *status.Machine, db *store.DB) *SyncService {
	return &SyncService{loop: loop, bus: b, machine: machine, db: db, loopCtx: loopCtx}
}

func (s *SyncService) Status(_ context.Context, _ *rpc.SyncRequest) (*rpc.SyncStatusResponse, error) {
	resp := &rpc.SyncStatusResponse{State: string(s.machine.Current())}
	if s.loop != nil {
		resp.Syncing = s.loop.IsSyncing()
	}
	if s.db != nil {
		token, err := s.db.Checkpoint(intsync.KeyNextBatch)
		if err != nil {
			return nil, toStatus("read sync token", err)
		}
		resp.NextBatch = token
	}
	return resp, nil
}

func (s *SyncService) Start(_ context.Context, _ *rpc.SyncRequest) (*rpc.SyncResponse, error) {
	if s.loop == nil {
		return nil, grpcstatus.Error(codes.Unavailable, "matrix client not initialized")
	}
	if s.loop.IsSyncing() {
		return &rpc.SyncResponse{Syncing: true, State: string(s.machine.Current()), Message: "already syncing"}, nil
	}
	if err := s.loop.StartSync(s.loopCtx); err != nil {
		if errors.Is(err, matrix.ErrNotLoggedIn) {
			return nil, grpcstatus.Error(codes.FailedPrecondition, "not logged in")
		}
		return nil, toStatus("start sync", err)
	}
	return &rpc.SyncResponse{Syncing: true, State: string(s.machine.Current()), Message: "sync started"}, nil
}

func (s *SyncService) Stop(_ context.Context, _ *rpc.SyncRequest) (*rpc.SyncResponse, error) {
	if s.loop == nil {
		return nil, grpcstatus.Error(codes.Unavailable, "matrix client not initialized")
	}
	s.loop.StopSync()
	return &rpc.SyncResponse{Syncing: false, State: string(s.machine.Current()), Message: "sync stopped"}, nil
}

func (s *SyncService) Watch(_ *rpc.WatchSyncRequest, stream rpc.Stream[rpc.SyncEvent]) error {
	ch, unsub := s.bus.Subscribe(bus.NamespaceSync, 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			if err := stream.Send(syncEvent(evt)); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func syncEvent(evt bus.Event) *rpc.SyncEvent {
	msg := &rpc.SyncEvent{Kind: evt.Kind, AtUnixMs: evt.Timestamp.UnixMilli()}
	switch p := evt.Payload.(type) {
	case intsync.BatchStats:
		msg.NextBatch = p.NextBatch
		msg.Rooms = p.Rooms
		msg.Events = p.Events
	case matrix.SyncFailure:
		msg.Attempt = p.Attempt
		msg.Error = p.Err
	}
	return msg
}
