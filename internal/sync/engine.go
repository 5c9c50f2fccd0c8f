package sync

import (
	"context"
	"fmt"
	"strings"
	gosync "sync"

	"github.com/matheus3301/mxt/internal/bus"
	"github.com/matheus3301/mxt/internal/matrix"
	"github.com/matheus3301/mxt/internal/roomlist"
	"github.com/matheus3301/mxt/internal/store"
	"github.com/matheus3301/mxt/internal/timeline"
	"go.uber.org/zap"
)

// TimelineChanged is the payload of bus.KindEventUpserted.
type TimelineChanged struct {
	RoomID   string
	EventIDs []string
}

// BatchStats is the payload of bus.KindSyncBatchDone.
type BatchStats struct {
	NextBatch string
	Rooms     int
	Events    int
	Hidden    int64
}

// Engine handles idempotent ingestion of sync and history batches into the
// store, then republishes the room list. It subscribes to "mx." events on
// the bus and processes them.
type Engine struct {
	db     *store.DB
	bus    *bus.Bus
	rooms  *roomlist.Publisher
	logger *zap.Logger
	cancel context.CancelFunc

	// publishMu orders room list reads, publishes and emits.
	publishMu gosync.Mutex
}

// NewEngine creates a new sync engine.
func NewEngine(db *store.DB, b *bus.Bus, rooms *roomlist.Publisher, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:     db,
		bus:    b,
		rooms:  rooms,
		logger: logger,
	}
}

// Start subscribes to inbound Matrix events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe(bus.NamespaceMatrix, 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handleEvent(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case bus.KindSyncBatch:
		batch, ok := evt.Payload.(*matrix.SyncBatch)
		if !ok {
			return
		}
		if err := e.IngestSync(ctx, batch); err != nil {
			e.logger.Error("failed to ingest sync batch", zap.Error(err), zap.String("next_batch", batch.NextBatch))
		}
	case bus.KindHistoryBatch:
		h, ok := evt.Payload.(*matrix.HistoryBatch)
		if !ok {
			return
		}
		if err := e.IngestHistory(ctx, h); err != nil {
			e.logger.Error("failed to ingest history batch", zap.Error(err), zap.String("room_id", h.RoomID))
		}
	}
}

// IngestSync applies one sync batch in a single transaction. The next-batch
// token is committed with the data it belongs to, so a crash never skips a
// batch.
func (e *Engine) IngestSync(ctx context.Context, batch *matrix.SyncBatch) error {
	var changed []TimelineChanged
	stats := BatchStats{NextBatch: batch.NextBatch, Rooms: len(batch.Rooms)}

	err := e.db.WithTx(ctx, func(tx *store.Tx) error {
		for _, u := range batch.Rooms {
			ids, err := ingestRoom(tx, u)
			if err != nil {
				return fmt.Errorf("room %s: %w", u.RoomID, err)
			}
			stats.Events += len(ids)
			if len(ids) > 0 || len(u.Redactions) > 0 || len(u.Edits) > 0 {
				changed = append(changed, TimelineChanged{RoomID: u.RoomID, EventIDs: ids})
			}
		}
		if batch.DirectRooms != nil {
			ids := make([]string, 0, len(batch.DirectRooms))
			for id := range batch.DirectRooms {
				ids = append(ids, id)
			}
			if err := tx.SetDirectRooms(ids); err != nil {
				return fmt.Errorf("set direct rooms: %w", err)
			}
		}
		hidden, err := tx.ReconcileUpgrades()
		if err != nil {
			return err
		}
		stats.Hidden = hidden
		if batch.NextBatch != "" {
			return tx.SetCheckpoint(KeyNextBatch, batch.NextBatch)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, c := range changed {
		e.bus.Emit(bus.KindEventUpserted, c)
	}
	e.bus.Emit(bus.KindSyncBatchDone, stats)
	e.logger.Debug("sync batch ingested",
		zap.Int("rooms", stats.Rooms), zap.Int("events", stats.Events), zap.Int64("hidden", stats.Hidden))
	return e.PublishRoomList()
}

// IngestHistory stores one page of back-pagination and the token for the
// next page.
func (e *Engine) IngestHistory(ctx context.Context, h *matrix.HistoryBatch) error {
	var ids []string
	err := e.db.WithTx(ctx, func(tx *store.Tx) error {
		for i := range h.Members {
			if err := tx.UpsertMember(&h.Members[i]); err != nil {
				return fmt.Errorf("upsert member: %w", err)
			}
		}
		for _, ev := range h.Events {
			if err := upsertEvent(tx, ev); err != nil {
				return err
			}
			ids = append(ids, ev.EventID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := e.db.SetPrevBatch(h.RoomID, h.End, h.HasMore); err != nil {
		return fmt.Errorf("set prev batch: %w", err)
	}
	e.bus.Emit(bus.KindEventUpserted, TimelineChanged{RoomID: h.RoomID, EventIDs: ids})
	return nil
}

// PublishRoomList projects the stored rooms and publishes the diff against
// the previous projection. Concurrent callers are serialised so updates
// reach the bus in version order and never regress to an older read.
func (e *Engine) PublishRoomList() error {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	rooms, err := e.db.ListRooms(0, 0)
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}
	if update, ok := e.rooms.Publish(roomlist.FromRooms(rooms)); ok {
		e.bus.Emit(bus.KindRoomListDiff, update)
	}
	return nil
}

func ingestRoom(tx *store.Tx, u *matrix.RoomUpdate) ([]string, error) {
	existing, err := tx.GetRoom(u.RoomID)
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	r := &store.Room{ID: u.RoomID, HasMoreHistory: true}
	if existing != nil {
		r = existing
	}
	r.Membership = u.Membership
	mergeRoom(r, u, existing == nil)

	if u.Tombstone != nil {
		if err := tx.RecordTombstone(u.Tombstone); err != nil {
			return nil, fmt.Errorf("record tombstone: %w", err)
		}
	}
	for i := range u.Members {
		if err := tx.UpsertMember(&u.Members[i]); err != nil {
			return nil, fmt.Errorf("upsert member: %w", err)
		}
	}

	name, err := displayName(tx, r)
	if err != nil {
		return nil, err
	}
	r.DisplayName = name
	if err := tx.UpsertRoom(r); err != nil {
		return nil, fmt.Errorf("upsert room: %w", err)
	}

	var ids []string
	for _, ev := range u.Events {
		if err := upsertEvent(tx, ev); err != nil {
			return nil, err
		}
		ids = append(ids, ev.EventID)
		if preview, ok := previewOf(ev); ok {
			if err := tx.TouchRoomLastMessage(u.RoomID, ev.Timestamp, preview); err != nil {
				return nil, fmt.Errorf("touch room: %w", err)
			}
		}
	}
	for _, edit := range u.Edits {
		if err := tx.EditEvent(u.RoomID, edit.EventID, edit.Body, edit.FormattedBody); err != nil {
			return nil, fmt.Errorf("edit event: %w", err)
		}
	}
	for _, id := range u.Redactions {
		if err := tx.RedactEvent(u.RoomID, id); err != nil {
			return nil, fmt.Errorf("redact event: %w", err)
		}
	}
	for i := range u.Receipts {
		if err := tx.UpsertReceipt(&u.Receipts[i]); err != nil {
			return nil, fmt.Errorf("upsert receipt: %w", err)
		}
	}
	return ids, nil
}

func mergeRoom(r *store.Room, u *matrix.RoomUpdate, isNew bool) {
	if u.Name != nil {
		r.Name = *u.Name
	}
	if u.Topic != nil {
		r.Topic = *u.Topic
	}
	if u.AvatarURL != nil {
		r.AvatarURL = *u.AvatarURL
	}
	if u.CanonicalAlias != nil {
		r.CanonicalAlias = *u.CanonicalAlias
	}
	if u.Encrypted {
		r.IsEncrypted = true
	}
	if u.IsDirect {
		r.IsDirect = true
	}
	if len(u.Heroes) > 0 {
		r.Heroes = u.Heroes
	}
	if u.Counts != nil {
		r.NotificationCount = u.Counts.Notification
		r.HighlightCount = u.Counts.Highlight
		r.UnreadCount = u.Counts.Notification
	}
	if u.FullyRead != "" {
		r.FullyRead = u.FullyRead
	}
	// A gapped timeline restarts back-pagination from the new window.
	if u.PrevBatch != "" && (isNew || u.Limited) {
		r.PrevBatch = u.PrevBatch
		r.HasMoreHistory = true
	}
	for _, ev := range u.Events {
		if ev.Type == "m.room.create" {
			r.HasMoreHistory = false
		}
	}
}

// displayName follows the Matrix room naming order: explicit name,
// canonical alias, then the heroes' names.
func displayName(tx *store.Tx, r *store.Room) (string, error) {
	if r.Name != "" {
		return r.Name, nil
	}
	if r.CanonicalAlias != "" {
		return r.CanonicalAlias, nil
	}
	if len(r.Heroes) == 0 {
		if r.Membership == store.MembershipJoin {
			return "Empty room", nil
		}
		return "", nil
	}
	const shown = 3
	var names []string
	for i, hero := range r.Heroes {
		if i == shown {
			break
		}
		name, err := tx.MemberName(r.ID, hero)
		if err != nil {
			return "", fmt.Errorf("hero name: %w", err)
		}
		names = append(names, name)
	}
	switch {
	case len(r.Heroes) > shown:
		return fmt.Sprintf("%s and %d others", strings.Join(names, ", "), len(r.Heroes)-shown), nil
	case len(names) == 1:
		return names[0], nil
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1], nil
	}
}

func upsertEvent(tx *store.Tx, ev *store.Event) error {
	if ev.SenderName == "" && ev.Sender != "" {
		name, err := tx.MemberName(ev.RoomID, ev.Sender)
		if err != nil {
			return fmt.Errorf("sender name: %w", err)
		}
		if name != ev.Sender {
			ev.SenderName = name
		}
	}
	if err := tx.UpsertEvent(ev); err != nil {
		return fmt.Errorf("upsert event %s: %w", ev.EventID, err)
	}
	return nil
}

// previewOf renders the room list preview of an event. Events that do not
// move a room up the list return false.
func previewOf(ev *store.Event) (string, bool) {
	switch ev.Kind {
	case store.KindMessage, store.KindUnableToDecrypt:
		item := timeline.FromStore(*ev)
		return item.Name() + ": " + item.Text(), true
	case store.KindMembership:
		return timeline.FromStore(*ev).Text(), true
	}
	return "", false
}
