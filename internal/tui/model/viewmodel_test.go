package model

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/matheus3301/mxt/internal/roomlist"
	"github.com/matheus3301/mxt/internal/rpc"
	"github.com/matheus3301/mxt/internal/timeline"
)

const base = int64(1_700_000_000_000)

func message(id string, ts int64) *timeline.EventItem {
	return &timeline.EventItem{
		ID: id, EventID: id, Type: "m.room.message", Sender: "@a:x", Timestamp: ts,
		Content: timeline.Content{Kind: timeline.KindMessage, MsgType: "m.text", Body: id},
	}
}

func joined(id string, ts int64) *timeline.EventItem {
	return &timeline.EventItem{
		ID: id, EventID: id, Type: "m.room.member", Sender: "@b:x", Timestamp: ts,
		Content: timeline.Content{Kind: timeline.KindMembership, Membership: "join", Target: "@b:x"},
	}
}

func withTimeline(events ...*timeline.EventItem) *ViewModel {
	vm := NewViewModel(nil)
	vm.active = &rpc.RoomInfo{Summary: roomlist.RoomSummary{ID: "!r:x"}}
	vm.events = events
	return vm
}

func rowKeys(rows []timeline.Row) []string {
	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = r.Item.Key()
		if r.Group != nil {
			keys[i] = "  " + keys[i]
		}
	}
	return keys
}

func TestRowsGroupsAndExpands(t *testing.T) {
	vm := withTimeline(
		message("$1", base),
		joined("$2", base+1),
		joined("$3", base+2),
		message("$4", base+3),
	)

	rows := vm.Rows()
	if len(rows) != 4 {
		t.Fatalf("rows = %v", rowKeys(rows))
	}
	if _, ok := rows[0].Item.(*timeline.VirtualItem); !ok {
		t.Errorf("first row = %T, want day separator", rows[0].Item)
	}
	group, ok := rows[2].Item.(*timeline.GroupedEvents)
	if !ok {
		t.Fatalf("row 2 = %T, want group", rows[2].Item)
	}
	if len(group.Events) != 2 {
		t.Errorf("group has %d events, want 2", len(group.Events))
	}

	if !vm.ToggleGroup(group.ID) {
		t.Fatal("toggle did not expand")
	}
	expanded := vm.Rows()
	want := []string{rows[0].Item.Key(), "$1", group.ID, "  $2", "  $3", "$4"}
	if diff := cmp.Diff(want, rowKeys(expanded)); diff != "" {
		t.Errorf("expanded rows (-want +got):\n%s", diff)
	}

	// New events keep the group's id, so it stays expanded.
	vm.events = append(vm.events, message("$5", base+4))
	if got := rowKeys(vm.Rows()); len(got) != 7 || got[2] != group.ID {
		t.Errorf("rows after append = %v", got)
	}
}

func TestRowsReadMarkerAndLoading(t *testing.T) {
	vm := withTimeline(message("$1", base), message("$2", base+1))
	vm.active.FullyRead = "$1"
	vm.hasMore = true

	rows := vm.Rows()
	var kinds []timeline.VirtualKind
	for _, r := range rows {
		if v, ok := r.Item.(*timeline.VirtualItem); ok {
			kinds = append(kinds, v.Kind)
		}
	}
	want := []timeline.VirtualKind{timeline.LoadingIndicator, timeline.DaySeparator, timeline.ReadMarker}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("virtual rows (-want +got):\n%s", diff)
	}
}

func TestLastFailed(t *testing.T) {
	sent := message("$1", base)
	sent.IsMine, sent.SendState = true, timeline.SendSent
	failedOld := message("~a", base+1)
	failedOld.IsMine, failedOld.SendState, failedOld.TxnID = true, timeline.SendFailed, "a"
	failedNew := message("~b", base+2)
	failedNew.IsMine, failedNew.SendState, failedNew.TxnID = true, timeline.SendFailed, "b"

	tests := []struct {
		name   string
		events []*timeline.EventItem
		want   string
		ok     bool
	}{
		{"none", []*timeline.EventItem{sent}, "", false},
		{"newest wins", []*timeline.EventItem{failedOld, sent, failedNew}, "b", true},
		{"empty", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := withTimeline(tt.events...).LastFailed()
			if got != tt.want || ok != tt.ok {
				t.Errorf("LastFailed() = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestRoomsFollowUpdates(t *testing.T) {
	vm := NewViewModel(nil)
	if rooms := vm.Rooms(); len(rooms) == 0 || !rooms[0].IsPlaceholder {
		t.Fatalf("before first snapshot got %+v, want placeholders", rooms)
	}

	a := roomlist.RoomSummary{ID: "!a:x", DisplayName: "Alpha", Membership: "join", UnreadCount: 2}
	b := roomlist.RoomSummary{ID: "!b:x", DisplayName: "Beta", Membership: "invite", CanonicalAlias: "#beta:x"}
	reset := roomlist.Update{Version: 1, Diffs: []roomlist.Diff{{Op: roomlist.OpReset, Values: []roomlist.RoomSummary{a}}}}
	if err := vm.ApplyRooms(reset); err != nil {
		t.Fatal(err)
	}
	if err := vm.ApplyRooms(roomlist.Update{Version: 2, Diffs: []roomlist.Diff{{Op: roomlist.OpPushBack, Value: &b}}}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]roomlist.RoomSummary{a, b}, vm.Rooms()); diff != "" {
		t.Errorf("rooms (-want +got):\n%s", diff)
	}

	vm.SetFilter(roomlist.Filter{Kind: roomlist.FilterInvites})
	if got := vm.Rooms(); len(got) != 1 || got[0].ID != "!b:x" {
		t.Errorf("invites = %+v", got)
	}
	if r, ok := vm.FindRoom("#beta:x"); !ok || r.ID != "!b:x" {
		t.Errorf("FindRoom(alias) = %+v, %v", r, ok)
	}

	// A skipped version asks for a resync.
	err := vm.ApplyRooms(roomlist.Update{Version: 4, Diffs: []roomlist.Diff{{Op: roomlist.OpClear}}})
	if !errors.Is(err, roomlist.ErrResyncNeeded) {
		t.Errorf("gap error = %v, want ErrResyncNeeded", err)
	}
	if err := vm.ApplyRooms(reset); err != nil {
		t.Errorf("reset after gap: %v", err)
	}
	if vm.RoomCount() != 1 {
		t.Errorf("room count = %d after reset", vm.RoomCount())
	}
}

func TestRoomActionsNeedOpenRoom(t *testing.T) {
	vm := NewViewModel(nil)
	if _, err := vm.Send(t.Context(), "hi"); !errors.Is(err, ErrNoRoom) {
		t.Errorf("Send error = %v, want ErrNoRoom", err)
	}
	if _, err := vm.LoadOlder(t.Context()); !errors.Is(err, ErrNoRoom) {
		t.Errorf("LoadOlder error = %v, want ErrNoRoom", err)
	}
}
