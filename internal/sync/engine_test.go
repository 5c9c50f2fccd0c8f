package sync

import (
	"context"
	"fmt"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/matheus3301/mxt/internal/bus"
	"github.com/matheus3301/mxt/internal/matrix"
	"github.com/matheus3301/mxt/internal/roomlist"
	"github.com/matheus3301/mxt/internal/store"
	"go.uber.org/zap"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func message(roomID, eventID, sender, body string, ts int64) *store.Event {
	return &store.Event{
		RoomID: roomID, EventID: eventID, Sender: sender, Type: "m.room.message",
		Kind: store.KindMessage, MsgType: "m.text", Body: body, Timestamp: ts,
	}
}

func TestEngineIngestSync(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	pub := roomlist.NewPublisher()
	e := NewEngine(db, b, pub, zap.NewNop())

	ch, unsub := b.Subscribe(bus.NamespaceRoomList, 10)
	defer unsub()

	batch := &matrix.SyncBatch{
		NextBatch: "s1",
		Rooms: []*matrix.RoomUpdate{
			{
				RoomID:     "!a:s",
				Membership: store.MembershipJoin,
				Name:       ptr("Alpha"),
				PrevBatch:  "p1",
				Counts:     &matrix.Counts{Notification: 3, Highlight: 1},
				Members:    []store.Member{{RoomID: "!a:s", UserID: "@bob:s", DisplayName: "Bob", Membership: "join"}},
				Events:     []*store.Event{message("!a:s", "$1", "@bob:s", "hi", 1000)},
			},
			{
				RoomID:     "!b:s",
				Membership: store.MembershipJoin,
				Heroes:     []string{"@carol:s"},
				Members:    []store.Member{{RoomID: "!b:s", UserID: "@carol:s", DisplayName: "Carol", Membership: "join"}},
				Events:     []*store.Event{message("!b:s", "$2", "@carol:s", "later", 2000)},
			},
		},
		DirectRooms: map[string]bool{"!b:s": true},
	}
	if err := e.IngestSync(context.Background(), batch); err != nil {
		t.Fatal(err)
	}

	rooms, err := db.ListRooms(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	got := roomlist.FromRooms(rooms)
	want := []roomlist.RoomSummary{
		{ID: "!b:s", DisplayName: "Carol", LastMessage: "Carol: later", LastMessageAt: 2000, IsDirect: true, Membership: "join"},
		{ID: "!a:s", DisplayName: "Alpha", LastMessage: "Bob: hi", LastMessageAt: 1000, UnreadCount: 3, NotificationCount: 3, HighlightCount: 1, Membership: "join"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("room list mismatch (-want +got):\n%s", diff)
	}

	ev, err := db.GetEvent("!a:s", "$1")
	if err != nil || ev == nil {
		t.Fatalf("event not stored: %v", err)
	}
	if ev.SenderName != "Bob" {
		t.Errorf("SenderName = %q, want Bob", ev.SenderName)
	}

	token, _ := db.Checkpoint(KeyNextBatch)
	if token != "s1" {
		t.Errorf("next batch = %q, want s1", token)
	}

	select {
	case evt := <-ch:
		update, ok := evt.Payload.(roomlist.Update)
		if !ok {
			t.Fatalf("payload type %T", evt.Payload)
		}
		if update.Version != 1 {
			t.Errorf("version = %d, want 1", update.Version)
		}
		applied, err := roomlist.Apply(nil, update.Diffs)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(want, applied); diff != "" {
			t.Errorf("published list mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for roomlist.diff")
	}
}

func TestEngineIngestSyncIdempotent(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), roomlist.NewPublisher(), nil)

	batch := &matrix.SyncBatch{
		NextBatch: "s1",
		Rooms: []*matrix.RoomUpdate{{
			RoomID:     "!a:s",
			Membership: store.MembershipJoin,
			Events:     []*store.Event{message("!a:s", "$1", "@bob:s", "hi", 1000)},
		}},
	}
	for range 2 {
		if err := e.IngestSync(context.Background(), batch); err != nil {
			t.Fatal(err)
		}
	}
	count, _ := db.EventCount()
	if count != 1 {
		t.Errorf("event count = %d, want 1", count)
	}
}

func TestEngineEditsAndRedactions(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), roomlist.NewPublisher(), nil)
	ctx := context.Background()

	if err := e.IngestSync(ctx, &matrix.SyncBatch{Rooms: []*matrix.RoomUpdate{{
		RoomID: "!a:s", Membership: store.MembershipJoin,
		Events: []*store.Event{
			message("!a:s", "$1", "@bob:s", "helo", 1000),
			message("!a:s", "$2", "@bob:s", "oops", 1001),
		},
	}}}); err != nil {
		t.Fatal(err)
	}
	if err := e.IngestSync(ctx, &matrix.SyncBatch{Rooms: []*matrix.RoomUpdate{{
		RoomID: "!a:s", Membership: store.MembershipJoin,
		Edits:      []matrix.Edit{{EventID: "$1", Body: "hello"}},
		Redactions: []string{"$2"},
	}}}); err != nil {
		t.Fatal(err)
	}

	edited, _ := db.GetEvent("!a:s", "$1")
	if edited.Body != "hello" {
		t.Errorf("edited body = %q, want hello", edited.Body)
	}
	redacted, _ := db.GetEvent("!a:s", "$2")
	if !redacted.Redacted || redacted.Kind != store.KindRedacted {
		t.Errorf("redacted = %+v", redacted)
	}
}

func TestEngineRoomUpgrade(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), roomlist.NewPublisher(), nil)
	ctx := context.Background()

	if err := e.IngestSync(ctx, &matrix.SyncBatch{Rooms: []*matrix.RoomUpdate{{
		RoomID: "!old:s", Membership: store.MembershipJoin, Name: ptr("Old"),
		Tombstone: &store.Tombstone{RoomID: "!old:s", ReplacementRoomID: "!new:s"},
	}}}); err != nil {
		t.Fatal(err)
	}
	if n, _ := db.RoomCount(); n != 1 {
		t.Fatalf("room count before joining replacement = %d, want 1", n)
	}

	if err := e.IngestSync(ctx, &matrix.SyncBatch{Rooms: []*matrix.RoomUpdate{{
		RoomID: "!new:s", Membership: store.MembershipJoin, Name: ptr("New"),
	}}}); err != nil {
		t.Fatal(err)
	}
	rooms, _ := db.ListRooms(0, 0)
	if len(rooms) != 1 || rooms[0].ID != "!new:s" {
		t.Errorf("rooms = %+v, want only !new:s", rooms)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		room store.Room
		want string
	}{
		{"explicit name", store.Room{ID: "!r", Name: "Team", CanonicalAlias: "#team:s"}, "Team"},
		{"alias", store.Room{ID: "!r", CanonicalAlias: "#team:s"}, "#team:s"},
		{"one hero", store.Room{ID: "!r", Heroes: []string{"@bob:s"}}, "Bob"},
		{"two heroes", store.Room{ID: "!r", Heroes: []string{"@bob:s", "@eve:s"}}, "Bob and @eve:s"},
		{"many heroes", store.Room{ID: "!r", Heroes: []string{"@bob:s", "@eve:s", "@dan:s", "@amy:s", "@joe:s"}}, "Bob, @eve:s, @dan:s and 2 others"},
		{"empty joined room", store.Room{ID: "!r", Membership: store.MembershipJoin}, "Empty room"},
		{"unnamed invite", store.Room{ID: "!r", Membership: store.MembershipInvite}, ""},
	}

	db := testDB(t)
	if err := db.UpsertMember(&store.Member{RoomID: "!r", UserID: "@bob:s", DisplayName: "Bob", Membership: "join"}); err != nil {
		t.Fatal(err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.WithTx(context.Background(), func(tx *store.Tx) error {
				got, err := displayName(tx, &tt.room)
				if err != nil {
					return err
				}
				if got != tt.want {
					t.Errorf("displayName() = %q, want %q", got, tt.want)
				}
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestEngineIngestHistory(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	e := NewEngine(db, b, roomlist.NewPublisher(), nil)
	ctx := context.Background()

	if err := e.IngestSync(ctx, &matrix.SyncBatch{Rooms: []*matrix.RoomUpdate{{
		RoomID: "!a:s", Membership: store.MembershipJoin, PrevBatch: "p1",
		Events: []*store.Event{message("!a:s", "$3", "@bob:s", "newest", 3000)},
	}}}); err != nil {
		t.Fatal(err)
	}

	ch, unsub := b.Subscribe(bus.NamespaceTimeline, 10)
	defer unsub()

	err := e.IngestHistory(ctx, &matrix.HistoryBatch{
		RoomID:  "!a:s",
		Members: []store.Member{{RoomID: "!a:s", UserID: "@bob:s", DisplayName: "Bob", Membership: "join"}},
		Events: []*store.Event{
			message("!a:s", "$1", "@bob:s", "old", 1000),
			message("!a:s", "$2", "@bob:s", "older", 2000),
		},
		End:     "p0",
		HasMore: false,
	})
	if err != nil {
		t.Fatal(err)
	}

	events, _ := db.ListEvents("!a:s", store.Cursor{}, 10)
	var ids []string
	for _, ev := range events {
		ids = append(ids, ev.EventID)
	}
	if diff := cmp.Diff([]string{"$1", "$2", "$3"}, ids); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if events[0].SenderName != "Bob" {
		t.Errorf("history SenderName = %q, want Bob", events[0].SenderName)
	}
	room, _ := db.GetRoom("!a:s")
	if room.PrevBatch != "p0" || room.HasMoreHistory {
		t.Errorf("room pagination = %q/%v, want p0/false", room.PrevBatch, room.HasMoreHistory)
	}

	select {
	case evt := <-ch:
		if c, ok := evt.Payload.(TimelineChanged); !ok || c.RoomID != "!a:s" || len(c.EventIDs) != 2 {
			t.Errorf("payload = %+v", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for timeline event")
	}
}

func TestEngineStartConsumesBus(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	e := NewEngine(db, b, roomlist.NewPublisher(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)
	defer e.Stop()

	done, unsub := b.Subscribe(bus.KindSyncBatchDone, 1)
	defer unsub()

	b.Emit(bus.KindSyncBatch, &matrix.SyncBatch{NextBatch: "s9", Rooms: []*matrix.RoomUpdate{{
		RoomID: "!a:s", Membership: store.MembershipJoin,
	}}})

	select {
	case evt := <-done:
		if stats, ok := evt.Payload.(BatchStats); !ok || stats.NextBatch != "s9" {
			t.Errorf("payload = %+v", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for batch ingestion")
	}
}

func TestPublishRoomListConcurrentCallersKeepOrder(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	pub := roomlist.NewPublisher()
	e := NewEngine(db, b, pub, zap.NewNop())

	adapter := roomlist.NewAdapter()
	if err := adapter.Apply(pub.ResetUpdate()); err != nil {
		t.Fatal(err)
	}
	ch, unsub := b.Subscribe(bus.NamespaceRoomList, 256)
	defer unsub()

	var wg gosync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			room := &store.Room{ID: fmt.Sprintf("!r%02d:s", i), Name: fmt.Sprintf("Room %d", i), Membership: store.MembershipJoin}
			if err := db.UpsertRoom(room); err != nil {
				t.Error(err)
				return
			}
			if err := e.PublishRoomList(); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	for drained := false; !drained; {
		select {
		case evt := <-ch:
			if err := adapter.Apply(evt.Payload.(roomlist.Update)); err != nil {
				t.Fatalf("apply: %v", err)
			}
		default:
			drained = true
		}
	}

	rooms, err := db.ListRooms(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 20 {
		t.Fatalf("stored %d rooms, want 20", len(rooms))
	}
	if diff := cmp.Diff(roomlist.FromRooms(rooms), adapter.Rooms()); diff != "" {
		t.Errorf("room list after concurrent publishes (-want +got):\n%s", diff)
	}
}
