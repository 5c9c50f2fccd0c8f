package roomlist

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPublisherVersions(t *testing.T) {
	p := NewPublisher()

	u1, ok := p.Publish(rooms("a", "b"))
	if !ok || u1.Version != 1 {
		t.Fatalf("first publish = %+v, %v; want version 1", u1, ok)
	}
	if _, ok := p.Publish(rooms("a", "b")); ok {
		t.Error("publishing an identical list should report no change")
	}
	u2, ok := p.Publish(rooms("b", "a"))
	if !ok || u2.Version != 2 {
		t.Fatalf("second publish = %+v, %v; want version 2", u2, ok)
	}

	version, list := p.Snapshot()
	if version != 2 {
		t.Errorf("snapshot version = %d, want 2", version)
	}
	if diff := cmp.Diff([]string{"b", "a"}, ids(list)); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	reset := p.ResetUpdate()
	if !reset.IsReset() || reset.Version != 2 {
		t.Errorf("ResetUpdate() = %+v", reset)
	}
}

func TestAdapterFollowsPublisher(t *testing.T) {
	p := NewPublisher()
	a := NewAdapter()

	if err := a.Apply(p.ResetUpdate()); err != nil {
		t.Fatal(err)
	}
	steps := [][]RoomSummary{
		rooms("a", "b", "c"),
		rooms("c", "a", "b"),
		rooms("c", "b"),
		rooms("d", "c", "b"),
	}
	for _, next := range steps {
		u, ok := p.Publish(next)
		if !ok {
			continue
		}
		if err := a.Apply(u); err != nil {
			t.Fatalf("Apply(%+v) error = %v", u, err)
		}
	}

	_, want := p.Snapshot()
	if diff := cmp.Diff(want, a.Rooms()); diff != "" {
		t.Errorf("adapter list mismatch (-want +got):\n%s", diff)
	}
	if a.Version() != 4 {
		t.Errorf("version = %d, want 4", a.Version())
	}
}

func TestAdapterIgnoresStaleUpdates(t *testing.T) {
	a := NewAdapter()
	if err := a.Apply(Update{Version: 5, Diffs: []Diff{{Op: OpReset, Values: rooms("a")}}}); err != nil {
		t.Fatal(err)
	}
	x := rooms("x")[0]
	if err := a.Apply(Update{Version: 4, Diffs: []Diff{{Op: OpPushBack, Value: &x}}}); err != nil {
		t.Fatalf("stale update error = %v, want nil", err)
	}
	if err := a.Apply(Update{Version: 3, Diffs: []Diff{{Op: OpReset, Values: rooms("old")}}}); err != nil {
		t.Fatalf("stale reset error = %v, want nil", err)
	}
	if diff := cmp.Diff([]string{"a"}, ids(a.Rooms())); diff != "" {
		t.Errorf("stale update was applied (-want +got):\n%s", diff)
	}
}

func TestAdapterGapNeedsResync(t *testing.T) {
	a := NewAdapter()
	x := rooms("x")[0]

	if err := a.Apply(Update{Version: 1, Diffs: []Diff{{Op: OpPushBack, Value: &x}}}); !errors.Is(err, ErrResyncNeeded) {
		t.Fatalf("update before first reset: err = %v, want ErrResyncNeeded", err)
	}
	if err := a.Apply(Update{Version: 1, Diffs: []Diff{{Op: OpReset, Values: rooms("a")}}}); err != nil {
		t.Fatal(err)
	}
	if err := a.Apply(Update{Version: 3, Diffs: []Diff{{Op: OpPushBack, Value: &x}}}); !errors.Is(err, ErrResyncNeeded) {
		t.Fatalf("gap: err = %v, want ErrResyncNeeded", err)
	}
	if a.Synced() {
		t.Error("adapter should be unsynced after a gap")
	}
	if err := a.Apply(Update{Version: 4, Diffs: []Diff{{Op: OpPushBack, Value: &x}}}); !errors.Is(err, ErrResyncNeeded) {
		t.Fatalf("update while unsynced: err = %v, want ErrResyncNeeded", err)
	}
	if err := a.Apply(Update{Version: 4, Diffs: []Diff{{Op: OpReset, Values: rooms("a", "x")}}}); err != nil {
		t.Fatalf("reset after gap error = %v", err)
	}
	if !a.Synced() || a.Version() != 4 {
		t.Errorf("synced=%v version=%d, want synced at 4", a.Synced(), a.Version())
	}
}

func TestAdapterBadDiffNeedsResync(t *testing.T) {
	a := NewAdapter()
	if err := a.Apply(Update{Version: 1, Diffs: []Diff{{Op: OpReset, Values: rooms("a")}}}); err != nil {
		t.Fatal(err)
	}
	err := a.Apply(Update{Version: 2, Diffs: []Diff{{Op: OpRemove, Index: 7}}})
	if !errors.Is(err, ErrResyncNeeded) {
		t.Fatalf("err = %v, want ErrResyncNeeded", err)
	}
	if diff := cmp.Diff([]string{"a"}, ids(a.Rooms())); diff != "" {
		t.Errorf("list changed by failed update (-want +got):\n%s", diff)
	}
}

func TestFilter(t *testing.T) {
	list := []RoomSummary{
		{ID: "!dm", DisplayName: "Alice", IsDirect: true, Membership: "join"},
		{ID: "!room", DisplayName: "Go Team", CanonicalAlias: "#golang:s", UnreadCount: 2, Membership: "join"},
		{ID: "!inv", DisplayName: "Party", Membership: "invite"},
		{ID: "!quiet", DisplayName: "Quiet", Membership: "join"},
	}

	tests := []struct {
		filter Filter
		want   []string
	}{
		{Filter{Kind: FilterAll}, []string{"!dm", "!room", "!inv", "!quiet"}},
		{Filter{Kind: FilterUnread}, []string{"!room"}},
		{Filter{Kind: FilterPeople}, []string{"!dm"}},
		{Filter{Kind: FilterRooms}, []string{"!room", "!quiet"}},
		{Filter{Kind: FilterInvites}, []string{"!inv"}},
		{Filter{Kind: FilterAll, Query: "ALI"}, []string{"!dm"}},
		{Filter{Kind: FilterRooms, Query: "golang"}, []string{"!room"}},
	}

	for _, tt := range tests {
		t.Run(tt.filter.Kind.String()+"/"+tt.filter.Query, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ids(tt.filter.Select(list))); diff != "" {
				t.Errorf("Select mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseFilterKind(t *testing.T) {
	k, err := ParseFilterKind("People")
	if err != nil || k != FilterPeople {
		t.Errorf("ParseFilterKind(People) = %v, %v", k, err)
	}
	if _, err := ParseFilterKind("spam"); err == nil {
		t.Error("expected error for unknown filter")
	}
}
