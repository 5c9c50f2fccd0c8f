// Package model caches daemon state for the TUI views. Methods that talk to
// the daemon block; callers run them off the UI goroutine.
package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/mxt/internal/roomlist"
	"github.com/matheus3301/mxt/internal/rpc"
	"github.com/matheus3301/mxt/internal/timeline"
	"github.com/matheus3301/mxt/internal/tui/client"
)

// ErrNoRoom is returned by room-scoped actions when no room is open.
var ErrNoRoom = errors.New("no room open")

const (
	timelinePage    = 100
	watchBackoff    = time.Second
	resyncBackoff   = 100 * time.Millisecond
	maxWatchBackoff = 30 * time.Second
)

// ViewModel holds the room list, the open room and its timeline.
type ViewModel struct {
	mu sync.RWMutex

	client *client.Client
	status *rpc.StatusResponse
	rooms  *roomlist.Adapter
	filter roomlist.Filter

	active    *rpc.RoomInfo
	events    []*timeline.EventItem
	hasMore   bool
	factory   *timeline.Factory
	grouper   *timeline.Grouper
	expansion *timeline.Expansion
}

// NewViewModel creates a view model connected to the daemon client.
func NewViewModel(c *client.Client) *ViewModel {
	return &ViewModel{
		client:    c,
		rooms:     roomlist.NewAdapter(),
		factory:   timeline.NewFactory(nil),
		grouper:   timeline.NewGrouper(),
		expansion: timeline.NewExpansion(),
	}
}

// LoadStatus fetches the daemon status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.client.Session.Status(ctx, &rpc.StatusRequest{})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = resp
	vm.mu.Unlock()
	return nil
}

// Status returns the last fetched daemon status, or nil.
func (vm *ViewModel) Status() *rpc.StatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// WatchStatus refreshes the status on every state change of the daemon's
// session, then calls onChange with the transition.
func (vm *ViewModel) WatchStatus(ctx context.Context, onChange func(rpc.StatusEvent)) error {
	backoff := watchBackoff
	for {
		recv, err := vm.client.Session.WatchStatus(ctx, &rpc.WatchStatusRequest{})
		for err == nil {
			var evt *rpc.StatusEvent
			if evt, err = recv.Recv(); err != nil {
				break
			}
			backoff = watchBackoff
			_ = vm.LoadStatus(ctx)
			onChange(*evt)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = min(backoff*2, maxWatchBackoff)
	}
}

// LoadRooms replaces the room list with the daemon's current snapshot.
func (vm *ViewModel) LoadRooms(ctx context.Context) error {
	resp, err := vm.client.Room.List(ctx, &rpc.ListRoomsRequest{})
	if err != nil {
		return err
	}
	rooms := resp.Rooms
	if rooms == nil {
		rooms = []roomlist.RoomSummary{}
	}
	return vm.ApplyRooms(roomlist.Update{
		Version: resp.Version,
		Diffs:   []roomlist.Diff{{Op: roomlist.OpReset, Values: rooms}},
	})
}

// ApplyRooms patches the room list with one update from the daemon.
func (vm *ViewModel) ApplyRooms(u roomlist.Update) error {
	return vm.rooms.Apply(u)
}

// WatchRooms keeps the room list in step with the daemon until ctx ends,
// calling onChange after every applied update. A gap in versions drops the
// stream; the next stream starts with a Reset, which resynchronises.
// Repeated gaps without progress past the Reset are spaced out.
func (vm *ViewModel) WatchRooms(ctx context.Context, onChange func()) error {
	backoff := watchBackoff
	resync := resyncBackoff
	onApplied := func(u roomlist.Update) {
		backoff = watchBackoff
		if !u.IsReset() {
			resync = resyncBackoff
		}
	}
	for {
		err := vm.watchRoomsOnce(ctx, onChange, onApplied)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		delay := backoff
		if errors.Is(err, roomlist.ErrResyncNeeded) {
			delay, resync = resync, min(resync*2, maxWatchBackoff)
		} else {
			backoff = min(backoff*2, maxWatchBackoff)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// watchRoomsOnce runs one room list stream. The stream is cancelled on
// return so the daemon releases its side.
func (vm *ViewModel) watchRoomsOnce(ctx context.Context, onChange func(), onApplied func(roomlist.Update)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	recv, err := vm.client.Room.Watch(ctx, &rpc.WatchRoomsRequest{})
	if err != nil {
		return err
	}
	for {
		u, err := recv.Recv()
		if err != nil {
			return err
		}
		if err := vm.ApplyRooms(*u); err != nil {
			return err
		}
		onApplied(*u)
		onChange()
	}
}

// Rooms returns the room list rows that pass the current filter.
func (vm *ViewModel) Rooms() []roomlist.RoomSummary {
	vm.mu.RLock()
	f := vm.filter
	vm.mu.RUnlock()
	if !vm.rooms.Synced() && vm.rooms.Version() == 0 {
		return roomlist.Placeholders(3)
	}
	return vm.rooms.Filtered(f)
}

// RoomCount returns the size of the unfiltered room list.
func (vm *ViewModel) RoomCount() int {
	return len(vm.rooms.Rooms())
}

// SetFilter changes the room list filter.
func (vm *ViewModel) SetFilter(f roomlist.Filter) {
	vm.mu.Lock()
	vm.filter = f
	vm.mu.Unlock()
}

// Filter returns the room list filter.
func (vm *ViewModel) Filter() roomlist.Filter {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.filter
}

// FindRoom looks a room up by id or canonical alias in the full list.
func (vm *ViewModel) FindRoom(idOrAlias string) (roomlist.RoomSummary, bool) {
	if r, ok := vm.rooms.Find(idOrAlias); ok {
		return r, true
	}
	for _, r := range vm.rooms.Rooms() {
		if r.CanonicalAlias != "" && r.CanonicalAlias == idOrAlias {
			return r, true
		}
	}
	return roomlist.RoomSummary{}, false
}

// OpenRoom makes roomID the active room and loads its latest events.
func (vm *ViewModel) OpenRoom(ctx context.Context, roomID string) (*rpc.RoomInfo, error) {
	info, err := vm.client.Room.Get(ctx, &rpc.GetRoomRequest{RoomID: roomID})
	if err != nil {
		return nil, err
	}
	list, err := vm.client.Timeline.List(ctx, &rpc.ListEventsRequest{RoomID: roomID, Limit: timelinePage})
	if err != nil {
		return nil, err
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.active == nil || vm.active.Summary.ID != roomID {
		vm.grouper = timeline.NewGrouper()
		vm.expansion = timeline.NewExpansion()
	}
	vm.active = info
	vm.events = list.Events
	vm.hasMore = list.HasMore
	return info, nil
}

// RoomInfo fetches the details of any room.
func (vm *ViewModel) RoomInfo(ctx context.Context, roomID string) (*rpc.RoomInfo, error) {
	return vm.client.Room.Get(ctx, &rpc.GetRoomRequest{RoomID: roomID})
}

// CloseRoom forgets the active room.
func (vm *ViewModel) CloseRoom() {
	vm.mu.Lock()
	vm.active = nil
	vm.events = nil
	vm.hasMore = false
	vm.mu.Unlock()
}

// ActiveRoom returns the open room, or nil.
func (vm *ViewModel) ActiveRoom() *rpc.RoomInfo {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.active
}

func (vm *ViewModel) activeID() (string, error) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.active == nil {
		return "", ErrNoRoom
	}
	return vm.active.Summary.ID, nil
}

// ReloadTimeline re-lists the newest events of the active room, keeping as
// many already loaded events as it had.
func (vm *ViewModel) ReloadTimeline(ctx context.Context) error {
	roomID, err := vm.activeID()
	if err != nil {
		return err
	}
	vm.mu.RLock()
	limit := max(len(vm.events)+1, timelinePage)
	vm.mu.RUnlock()

	list, err := vm.client.Timeline.List(ctx, &rpc.ListEventsRequest{RoomID: roomID, Limit: limit})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	if vm.active != nil && vm.active.Summary.ID == roomID {
		vm.events = list.Events
		vm.hasMore = list.HasMore
	}
	vm.mu.Unlock()
	return nil
}

// LoadOlder prepends the page before the oldest loaded event, asking the
// daemon to back-paginate from the homeserver when local history runs out.
// It reports how many events were added.
func (vm *ViewModel) LoadOlder(ctx context.Context) (int, error) {
	roomID, err := vm.activeID()
	if err != nil {
		return 0, err
	}
	vm.mu.RLock()
	hasMore := vm.hasMore
	var before rpc.ListEventsRequest
	if len(vm.events) > 0 {
		before.BeforeTs, before.BeforeID = vm.events[0].Timestamp, vm.events[0].Seq
	}
	vm.mu.RUnlock()
	if !hasMore {
		return 0, nil
	}

	older, err := vm.listBefore(ctx, roomID, before)
	if err != nil {
		return 0, err
	}
	if len(older.Events) == 0 {
		if _, err := vm.client.Timeline.Paginate(ctx, &rpc.PaginateRequest{RoomID: roomID, Limit: timelinePage}); err != nil {
			return 0, fmt.Errorf("paginate: %w", err)
		}
		if older, err = vm.listBefore(ctx, roomID, before); err != nil {
			return 0, err
		}
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.active == nil || vm.active.Summary.ID != roomID {
		return 0, nil
	}
	vm.events = append(older.Events, vm.events...)
	vm.hasMore = older.HasMore
	return len(older.Events), nil
}

func (vm *ViewModel) listBefore(ctx context.Context, roomID string, before rpc.ListEventsRequest) (*rpc.ListEventsResponse, error) {
	before.RoomID, before.Limit = roomID, timelinePage
	return vm.client.Timeline.List(ctx, &before)
}

// WatchTimeline reloads the active room whenever the daemon reports a change
// in it, then calls onEvent. Events of other rooms are passed through
// without a reload.
func (vm *ViewModel) WatchTimeline(ctx context.Context, onEvent func(*rpc.TimelineEvent)) error {
	backoff := watchBackoff
	for {
		recv, err := vm.client.Timeline.Watch(ctx, &rpc.WatchTimelineRequest{})
		for err == nil {
			var evt *rpc.TimelineEvent
			if evt, err = recv.Recv(); err != nil {
				break
			}
			backoff = watchBackoff
			// A failed reload is repaired by the next event.
			if id, _ := vm.activeID(); id == evt.RoomID {
				_ = vm.ReloadTimeline(ctx)
			}
			onEvent(evt)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = min(backoff*2, maxWatchBackoff)
	}
}

// Rows renders the active timeline: events with day separators and read
// marker, runs of room noise grouped, expanded groups flattened.
func (vm *ViewModel) Rows() []timeline.Row {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	var opts timeline.Options
	if vm.active != nil {
		opts.FullyReadEventID = vm.active.FullyRead
	}
	opts.HasMoreHistory = vm.hasMore
	items := vm.grouper.Group(vm.factory.Create(vm.events, opts))
	vm.expansion.Prune(items)
	return vm.expansion.Flatten(items)
}

// ToggleGroup expands or collapses a group and reports its new state.
func (vm *ViewModel) ToggleGroup(groupID string) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.expansion.Toggle(groupID)
}

// Send queues a message in the active room and returns its client id.
func (vm *ViewModel) Send(ctx context.Context, body string) (string, error) {
	roomID, err := vm.activeID()
	if err != nil {
		return "", err
	}
	resp, err := vm.client.Timeline.Send(ctx, &rpc.SendRequest{RoomID: roomID, Body: body})
	if err != nil {
		return "", err
	}
	return resp.ClientMsgID, nil
}

// LastFailed returns the client id of the newest own message that failed
// to send in the active room.
func (vm *ViewModel) LastFailed() (string, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for i := len(vm.events) - 1; i >= 0; i-- {
		e := vm.events[i]
		if e.IsMine && e.SendState == timeline.SendFailed && e.TxnID != "" {
			return e.TxnID, true
		}
	}
	return "", false
}

// Retry re-queues a failed message.
func (vm *ViewModel) Retry(ctx context.Context, clientMsgID string) error {
	_, err := vm.client.Timeline.Retry(ctx, &rpc.RetryRequest{ClientMsgID: clientMsgID})
	return err
}

// MarkRead marks the active room read up to its newest event.
func (vm *ViewModel) MarkRead(ctx context.Context) error {
	roomID, err := vm.activeID()
	if err != nil {
		return err
	}
	var eventID string
	vm.mu.RLock()
	for i := len(vm.events) - 1; i >= 0 && eventID == ""; i-- {
		eventID = vm.events[i].EventID
	}
	vm.mu.RUnlock()
	_, err = vm.client.Room.MarkRead(ctx, &rpc.MarkReadRequest{RoomID: roomID, EventID: eventID})
	return err
}

// Join joins a room by id or alias and returns its id.
func (vm *ViewModel) Join(ctx context.Context, idOrAlias string, via []string) (string, error) {
	resp, err := vm.client.Room.Join(ctx, &rpc.JoinRoomRequest{RoomIDOrAlias: idOrAlias, Via: via})
	if err != nil {
		return "", err
	}
	return resp.RoomID, nil
}

// Search runs a full-text search, scoped to roomID when set.
func (vm *ViewModel) Search(ctx context.Context, query, roomID string) ([]rpc.SearchHit, error) {
	resp, err := vm.client.Timeline.Search(ctx, &rpc.SearchRequest{Query: query, RoomID: roomID, Limit: 50})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Open hands a URI to the daemon's navigation router.
func (vm *ViewModel) Open(ctx context.Context, uri string) (*rpc.OpenResponse, error) {
	return vm.client.Intent.Open(ctx, &rpc.OpenRequest{URI: uri})
}

// Login signs in with a password.
func (vm *ViewModel) Login(ctx context.Context, homeserver, user, password string) (*rpc.LoginResponse, error) {
	return vm.client.Session.Login(ctx, &rpc.LoginRequest{Homeserver: homeserver, User: user, Password: password})
}

// StartOIDC begins a single sign-on login and returns the URL to open.
func (vm *ViewModel) StartOIDC(ctx context.Context) (string, error) {
	resp, err := vm.client.Session.StartOIDC(ctx, &rpc.StartOIDCRequest{})
	if err != nil {
		return "", err
	}
	return resp.AuthURL, nil
}

// Logout signs out and forgets the open room.
func (vm *ViewModel) Logout(ctx context.Context) error {
	if _, err := vm.client.Session.Logout(ctx, &rpc.LogoutRequest{}); err != nil {
		return err
	}
	vm.CloseRoom()
	return nil
}

// Sessions lists the local sessions.
func (vm *ViewModel) Sessions(ctx context.Context) ([]rpc.SessionInfo, error) {
	resp, err := vm.client.Session.ListSessions(ctx, &rpc.ListSessionsRequest{})
	if err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}
