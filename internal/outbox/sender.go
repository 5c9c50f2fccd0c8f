package outbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/mxt/internal/bus"
	"github.com/matheus3301/mxt/internal/matrix"
	"github.com/matheus3301/mxt/internal/store"
	"go.uber.org/zap"
)

// ErrEmptyMessage is returned when queueing a message without text.
var ErrEmptyMessage = errors.New("message is empty")

// TextSender sends text messages to the homeserver.
type TextSender interface {
	SendText(ctx context.Context, msg matrix.Message) (eventID string, err error)
	UserID() string
}

// RoomListRefresher republishes the room list after a local change.
type RoomListRefresher interface {
	PublishRoomList() error
}

// Draft is a message composed by the user.
type Draft struct {
	RoomID     string
	Body       string
	ThreadRoot string
	ReplyTo    string
	Markdown   bool
}

// Delivery is the payload of the timeline.send_* bus events.
type Delivery struct {
	RoomID      string
	ClientMsgID string
	EventID     string
	Status      string
	Error       string
}

// Sender drains the outbox and sends messages via the Matrix adapter.
type Sender struct {
	db     *store.DB
	sender TextSender
	bus    *bus.Bus
	rooms  RoomListRefresher
	logger *zap.Logger
	cancel context.CancelFunc
	wake   chan struct{}
}

// NewSender creates a new outbox sender. rooms may be nil.
func NewSender(db *store.DB, sender TextSender, b *bus.Bus, rooms RoomListRefresher, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		db:     db,
		sender: sender,
		bus:    b,
		rooms:  rooms,
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Enqueue stores a draft with its local echo and wakes the send loop. The
// client message id doubles as the Matrix transaction id.
func (s *Sender) Enqueue(ctx context.Context, d Draft) (*store.OutboxEntry, error) {
	if strings.TrimSpace(d.Body) == "" {
		return nil, ErrEmptyMessage
	}
	entry := &store.OutboxEntry{
		ClientMsgID: uuid.NewString(),
		RoomID:      d.RoomID,
		Body:        d.Body,
		ThreadRoot:  d.ThreadRoot,
		ReplyTo:     d.ReplyTo,
		Status:      store.StatusQueued,
	}
	if d.Markdown {
		html, err := matrix.RenderMarkdown(d.Body)
		if err != nil {
			return nil, err
		}
		entry.FormattedBody = html
	}
	echo := &store.Event{
		RoomID:        d.RoomID,
		Sender:        s.sender.UserID(),
		Type:          "m.room.message",
		Kind:          store.KindMessage,
		MsgType:       "m.text",
		Body:          d.Body,
		FormattedBody: entry.FormattedBody,
		ThreadRoot:    d.ThreadRoot,
		ReplyTo:       d.ReplyTo,
		Timestamp:     time.Now().UnixMilli(),
	}
	if err := s.db.QueueOutbox(ctx, entry, echo); err != nil {
		return nil, fmt.Errorf("queue outbox: %w", err)
	}
	s.publish(bus.KindSendQueued, Delivery{RoomID: d.RoomID, ClientMsgID: entry.ClientMsgID, Status: store.StatusQueued})
	s.refreshRooms()
	s.poke()
	return entry, nil
}

// Retry re-queues a failed entry under its original transaction id.
func (s *Sender) Retry(ctx context.Context, clientMsgID string) (*store.OutboxEntry, error) {
	entry, err := s.db.RetryOutbox(ctx, clientMsgID)
	if err != nil {
		return nil, err
	}
	s.publish(bus.KindSendQueued, Delivery{RoomID: entry.RoomID, ClientMsgID: clientMsgID, Status: store.StatusQueued})
	s.poke()
	return entry, nil
}

// Start begins polling the outbox for pending messages.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the sender loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sender) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.ProcessPending(ctx)
		case <-s.wake:
			s.ProcessPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// ProcessPending sends every queued entry once, oldest first.
func (s *Sender) ProcessPending(ctx context.Context) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if ctx.Err() != nil {
			return
		}
		s.send(ctx, entry)
	}
}

func (s *Sender) send(ctx context.Context, entry store.OutboxEntry) {
	log := s.logger.With(zap.String("client_msg_id", entry.ClientMsgID), zap.String("room_id", entry.RoomID))

	if err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
		log.Error("failed to mark sending", zap.Error(err))
		return
	}
	if err := s.db.SetEchoStatus(ctx, entry.RoomID, entry.ClientMsgID, store.StatusSending, ""); err != nil {
		log.Warn("failed to update local echo", zap.Error(err))
	}
	s.publish(bus.KindSendQueued, Delivery{RoomID: entry.RoomID, ClientMsgID: entry.ClientMsgID, Status: store.StatusSending})

	eventID, err := s.sender.SendText(ctx, matrix.Message{
		RoomID:        entry.RoomID,
		TxnID:         entry.ClientMsgID,
		Body:          entry.Body,
		FormattedBody: entry.FormattedBody,
		ThreadRoot:    entry.ThreadRoot,
		ReplyTo:       entry.ReplyTo,
	})
	if err != nil {
		log.Error("failed to send message", zap.Error(err))
		if err := s.db.MarkOutboxFailed(entry.ClientMsgID, err.Error()); err != nil {
			log.Error("failed to mark failed", zap.Error(err))
		}
		if err := s.db.SetEchoStatus(ctx, entry.RoomID, entry.ClientMsgID, store.StatusFailed, ""); err != nil {
			log.Warn("failed to update local echo", zap.Error(err))
		}
		s.publish(bus.KindSendFailed, Delivery{
			RoomID: entry.RoomID, ClientMsgID: entry.ClientMsgID, Status: store.StatusFailed, Error: err.Error(),
		})
		return
	}

	if err := s.db.MarkOutboxSent(entry.ClientMsgID, eventID); err != nil {
		log.Error("failed to mark sent", zap.Error(err))
	}
	if err := s.db.SetEchoStatus(ctx, entry.RoomID, entry.ClientMsgID, store.StatusSent, eventID); err != nil {
		log.Warn("failed to reconcile local echo", zap.Error(err))
	}

	log.Info("message sent", zap.String("event_id", eventID))
	s.publish(bus.KindSendAck, Delivery{
		RoomID: entry.RoomID, ClientMsgID: entry.ClientMsgID, EventID: eventID, Status: store.StatusSent,
	})
}

func (s *Sender) publish(kind string, d Delivery) {
	s.bus.Emit(kind, d)
}

func (s *Sender) refreshRooms() {
	if s.rooms == nil {
		return
	}
	if err := s.rooms.PublishRoomList(); err != nil {
		s.logger.Warn("failed to refresh room list", zap.Error(err))
	}
}
