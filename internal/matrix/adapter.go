package matrix

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/mxt/internal/bus"
	"go.uber.org/zap"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// ErrNotLoggedIn is returned by operations that need an access token.
var ErrNotLoggedIn = errors.New("not logged in")

// Options configure an Adapter.
type Options struct {
	// DeviceName is the initial display name of devices created by login.
	DeviceName string
}

// Message is an outgoing text message.
type Message struct {
	RoomID        string
	TxnID         string
	Body          string
	FormattedBody string
	ThreadRoot    string
	ReplyTo       string
}

// Adapter wraps the mautrix client and manages the /sync loop of one session.
type Adapter struct {
	mu        sync.Mutex
	client    *mautrix.Client
	creds     CredentialStore
	syncStore mautrix.SyncStore
	handler   *EventHandler
	bus       *bus.Bus
	logger    *zap.Logger
	opts      Options

	syncCancel context.CancelFunc
	syncDone   chan struct{}

	discover   func(ctx context.Context, serverName string) (*mautrix.ClientWellKnown, error)
	retryDelay time.Duration
}

// NewAdapter creates an adapter, restoring the stored login if there is one.
func NewAdapter(ctx context.Context, opts Options, creds CredentialStore, syncStore mautrix.SyncStore, handler *EventHandler, b *bus.Bus, logger *zap.Logger) (*Adapter, error) {
	a := &Adapter{
		creds:      creds,
		syncStore:  syncStore,
		handler:    handler,
		bus:        b,
		logger:     logger,
		opts:       opts,
		discover:   mautrix.DiscoverClientAPI,
		retryDelay: 500 * time.Millisecond,
	}

	c, err := creds.LoadCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if c != nil {
		if err := a.setClient(c); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Adapter) setClient(c *Credentials) error {
	client, err := mautrix.NewClient(c.Homeserver, id.UserID(c.UserID), c.AccessToken)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	client.DeviceID = id.DeviceID(c.DeviceID)
	client.Store = a.syncStore
	a.client = client
	a.handler.SetUser(client.UserID)
	return nil
}

func (a *Adapter) current() (*mautrix.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == nil {
		return nil, ErrNotLoggedIn
	}
	return a.client, nil
}

// IsLoggedIn returns whether the adapter has an access token.
func (a *Adapter) IsLoggedIn() bool {
	_, err := a.current()
	return err == nil
}

// UserID returns the logged-in user, or "".
func (a *Adapter) UserID() string {
	if c, err := a.current(); err == nil {
		return string(c.UserID)
	}
	return ""
}

// DeviceID returns the logged-in device, or "".
func (a *Adapter) DeviceID() string {
	if c, err := a.current(); err == nil {
		return string(c.DeviceID)
	}
	return ""
}

// Homeserver returns the homeserver base URL, or "".
func (a *Adapter) Homeserver() string {
	if c, err := a.current(); err == nil {
		return c.HomeserverURL.String()
	}
	return ""
}

// IsSyncing reports whether the sync loop is running.
func (a *Adapter) IsSyncing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.syncCancel != nil
}

// StartSync launches the /sync loop. It is a no-op when already running.
func (a *Adapter) StartSync(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == nil {
		return ErrNotLoggedIn
	}
	if a.syncCancel != nil {
		return nil
	}

	a.client.Syncer = newSyncer(a.handler)
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.syncCancel, a.syncDone = cancel, done
	a.handler.Connecting()
	a.logger.Info("starting sync", zap.String("user_id", string(a.client.UserID)))

	client := a.client
	go func() {
		defer close(done)
		err := client.SyncWithContext(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("sync loop stopped", zap.Error(err))
		}
		a.mu.Lock()
		if a.syncDone == done {
			a.syncCancel, a.syncDone = nil, nil
		}
		a.mu.Unlock()
	}()
	return nil
}

// StopSync stops the /sync loop and waits for it to exit.
func (a *Adapter) StopSync() {
	a.mu.Lock()
	cancel, done := a.syncCancel, a.syncDone
	a.syncCancel, a.syncDone = nil, nil
	a.mu.Unlock()
	if cancel == nil {
		return
	}
	a.logger.Info("stopping sync")
	cancel()
	<-done
}

// SendText sends a text message using the message's transaction id, so a
// retried send of the same entry is deduplicated by the homeserver.
// Returns the server event id.
func (a *Adapter) SendText(ctx context.Context, msg Message) (string, error) {
	client, err := a.current()
	if err != nil {
		return "", err
	}
	content := &event.MessageEventContent{MsgType: event.MsgText, Body: msg.Body}
	if msg.FormattedBody != "" {
		content.Format = event.FormatHTML
		content.FormattedBody = msg.FormattedBody
	}
	if msg.ReplyTo != "" {
		content.GetRelatesTo().SetReplyTo(id.EventID(msg.ReplyTo))
	}
	if msg.ThreadRoot != "" {
		fallback := id.EventID(msg.ReplyTo)
		if fallback == "" {
			fallback = id.EventID(msg.ThreadRoot)
		}
		content.GetRelatesTo().SetThread(id.EventID(msg.ThreadRoot), fallback)
	}

	resp, err := client.SendMessageEvent(ctx, id.RoomID(msg.RoomID), event.EventMessage, content,
		mautrix.ReqSendEvent{TransactionID: msg.TxnID})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return string(resp.EventID), nil
}

// JoinRoom joins a room by id or alias and returns the room id.
func (a *Adapter) JoinRoom(ctx context.Context, roomIDOrAlias string, via []string) (string, error) {
	client, err := a.current()
	if err != nil {
		return "", err
	}
	resp, err := client.JoinRoom(ctx, roomIDOrAlias, &mautrix.ReqJoinRoom{Via: via})
	if err != nil {
		return "", fmt.Errorf("join %s: %w", roomIDOrAlias, err)
	}
	return string(resp.RoomID), nil
}

// Paginate fetches one page of history before the from token.
func (a *Adapter) Paginate(ctx context.Context, roomID, from string, limit int) (*HistoryBatch, error) {
	client, err := a.current()
	if err != nil {
		return nil, err
	}
	resp, err := client.Messages(ctx, id.RoomID(roomID), from, "", mautrix.DirectionBackward, nil, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	return NewParser(client.UserID).ParseMessages(roomID, resp), nil
}

// MarkRead moves the read receipt and fully-read marker to eventID.
func (a *Adapter) MarkRead(ctx context.Context, roomID, eventID string) error {
	client, err := a.current()
	if err != nil {
		return err
	}
	if strings.HasPrefix(eventID, "~") {
		return nil
	}
	err = client.SetReadMarkers(ctx, id.RoomID(roomID), &mautrix.ReqSetReadMarkers{
		Read:      id.EventID(eventID),
		FullyRead: id.EventID(eventID),
	})
	if err != nil {
		return fmt.Errorf("set read markers: %w", err)
	}
	return nil
}
