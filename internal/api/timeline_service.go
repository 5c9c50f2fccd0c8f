package api

import (
	"context"

	"github.com/matheus3301/mxt/internal/bus"
	"github.com/matheus3301/mxt/internal/matrix"
	"github.com/matheus3301/mxt/internal/outbox"
	"github.com/matheus3301/mxt/internal/rpc"
	"github.com/matheus3301/mxt/internal/store"
	intsync "github.com/matheus3301/mxt/internal/sync"
	"github.com/matheus3301/mxt/internal/timeline"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Pager fetches history from the homeserver.
type Pager interface {
	Paginate(ctx context.Context, roomID, from string, limit int) (*matrix.HistoryBatch, error)
}

// HistoryIngester stores fetched history.
type HistoryIngester interface {
	IngestHistory(ctx context.Context, h *matrix.HistoryBatch) error
}

// Outbox queues and retries outgoing messages.
type Outbox interface {
	Enqueue(ctx context.Context, d outbox.Draft) (*store.OutboxEntry, error)
	Retry(ctx context.Context, clientMsgID string) (*store.OutboxEntry, error)
}

// TimelineService implements rpc.TimelineServer.
type TimelineService struct {
	db       *store.DB
	pager    Pager
	history  HistoryIngester
	outbox   Outbox
	bus      *bus.Bus
	markdown bool
}

// NewTimelineService creates a timeline service. markdown is the default
// for sends that do not choose. pager may be nil.
func NewTimelineService(db *store.DB, pager Pager, history HistoryIngester, ob Outbox, b *bus.Bus, markdown bool) *TimelineService {
	return &TimelineService{db: db, pager: pager, history: history, outbox: ob, bus: b, markdown: markdown}
}

func pageSize(n int) int {
	switch {
	case n <= 0:
		return defaultPageSize
	case n > maxPageSize:
		return maxPageSize
	}
	return n
}

func (s *TimelineService) List(_ context.Context, req *rpc.ListEventsRequest) (*rpc.ListEventsResponse, error) {
	if req.RoomID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "room_id is required")
	}
	limit := pageSize(req.Limit)
	events, err := s.db.ListEvents(req.RoomID, store.Cursor{Timestamp: req.BeforeTs, ID: req.BeforeID}, limit)
	if err != nil {
		return nil, toStatus("list events", err)
	}
	receipts, err := s.db.ReceiptsByEvent(req.RoomID)
	if err != nil {
		return nil, toStatus("list receipts", err)
	}

	resp := &rpc.ListEventsResponse{Events: make([]*timeline.EventItem, 0, len(events))}
	for _, e := range events {
		item := timeline.FromStore(e)
		for _, r := range receipts[e.EventID] {
			item.Receipts = append(item.Receipts, timeline.Receipt{UserID: r.UserID, Timestamp: r.Timestamp})
		}
		resp.Events = append(resp.Events, item)
	}

	resp.HasMore = len(events) == limit
	if !resp.HasMore {
		room, err := s.db.GetRoom(req.RoomID)
		if err != nil {
			return nil, toStatus("get room", err)
		}
		resp.HasMore = room != nil && room.HasMoreHistory
	}
	return resp, nil
}

// Paginate fetches the next page of history from the homeserver into the
// read-model. The caller re-lists to see it.
func (s *TimelineService) Paginate(ctx context.Context, req *rpc.PaginateRequest) (*rpc.PaginateResponse, error) {
	if s.pager == nil {
		return nil, grpcstatus.Error(codes.Unavailable, "matrix client not initialized")
	}
	room, err := s.db.GetRoom(req.RoomID)
	if err != nil {
		return nil, toStatus("get room", err)
	}
	if room == nil {
		return nil, grpcstatus.Errorf(codes.NotFound, "room %q not found", req.RoomID)
	}
	if !room.HasMoreHistory {
		return &rpc.PaginateResponse{}, nil
	}
	batch, err := s.pager.Paginate(ctx, room.ID, room.PrevBatch, pageSize(req.Limit))
	if err != nil {
		return nil, toStatus("paginate", err)
	}
	if err := s.history.IngestHistory(ctx, batch); err != nil {
		return nil, toStatus("store history", err)
	}
	return &rpc.PaginateResponse{Fetched: len(batch.Events), HasMore: batch.HasMore}, nil
}

func (s *TimelineService) Send(ctx context.Context, req *rpc.SendRequest) (*rpc.SendResponse, error) {
	if req.RoomID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "room_id is required")
	}
	markdown := s.markdown
	if req.Markdown != nil {
		markdown = *req.Markdown
	}
	entry, err := s.outbox.Enqueue(ctx, outbox.Draft{
		RoomID:     req.RoomID,
		Body:       req.Body,
		ThreadRoot: req.ThreadRoot,
		ReplyTo:    req.ReplyTo,
		Markdown:   markdown,
	})
	if err != nil {
		return nil, toStatus("queue message", err)
	}
	return &rpc.SendResponse{ClientMsgID: entry.ClientMsgID}, nil
}

func (s *TimelineService) Retry(ctx context.Context, req *rpc.RetryRequest) (*rpc.RetryResponse, error) {
	entry, err := s.outbox.Retry(ctx, req.ClientMsgID)
	if err != nil {
		return nil, toStatus("retry", err)
	}
	return &rpc.RetryResponse{Status: entry.Status}, nil
}

func (s *TimelineService) Search(_ context.Context, req *rpc.SearchRequest) (*rpc.SearchResponse, error) {
	if req.Query == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "query is required")
	}
	results, err := s.db.SearchEvents(req.Query, req.RoomID, pageSize(req.Limit))
	if err != nil {
		return nil, toStatus("search", err)
	}
	resp := &rpc.SearchResponse{Results: make([]rpc.SearchHit, 0, len(results))}
	for _, r := range results {
		resp.Results = append(resp.Results, rpc.SearchHit{
			RoomID:  r.Event.RoomID,
			Snippet: r.Snippet,
			Event:   timeline.FromStore(r.Event),
		})
	}
	return resp, nil
}

func (s *TimelineService) Watch(req *rpc.WatchTimelineRequest, stream rpc.Stream[rpc.TimelineEvent]) error {
	ch, unsub := s.bus.Subscribe(bus.NamespaceTimeline, 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			msg := timelineEvent(evt)
			if msg == nil || (req.RoomID != "" && msg.RoomID != req.RoomID) {
				continue
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func timelineEvent(evt bus.Event) *rpc.TimelineEvent {
	switch p := evt.Payload.(type) {
	case intsync.TimelineChanged:
		return &rpc.TimelineEvent{Kind: evt.Kind, RoomID: p.RoomID, EventIDs: p.EventIDs}
	case outbox.Delivery:
		return &rpc.TimelineEvent{
			Kind:        evt.Kind,
			RoomID:      p.RoomID,
			ClientMsgID: p.ClientMsgID,
			EventID:     p.EventID,
			Status:      p.Status,
			Error:       p.Error,
		}
	}
	return nil
}
