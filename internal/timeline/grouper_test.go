package timeline

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func msg(id string) *EventItem {
	return &EventItem{ID: id, EventID: id, Type: "m.room.message", Content: Content{Kind: KindMessage, Body: id}}
}

func member(id string) *EventItem {
	return &EventItem{ID: id, EventID: id, Type: "m.room.member", Content: Content{Kind: KindMembership, Membership: "join"}}
}

func profile(id string) *EventItem {
	return &EventItem{ID: id, EventID: id, Type: "m.room.member", Content: Content{Kind: KindProfileChange, DisplayName: "x"}}
}

func state(id string) *EventItem {
	return &EventItem{ID: id, EventID: id, Type: "m.room.topic", Content: Content{Kind: KindState, Summary: "changed the topic"}}
}

// shape renders items as a compact string: ids for events, [ids] for groups,
// | for virtual rows.
func shape(items []Item) []string {
	var out []string
	for _, it := range items {
		switch v := it.(type) {
		case *EventItem:
			out = append(out, v.ID)
		case *GroupedEvents:
			s := "["
			for i, e := range v.Events {
				if i > 0 {
					s += " "
				}
				s += e.ID
			}
			out = append(out, s+"]")
		case *VirtualItem:
			out = append(out, "|")
		}
	}
	return out
}

func TestGroup(t *testing.T) {
	sep := &VirtualItem{Kind: DaySeparator, key: "day"}

	tests := []struct {
		name  string
		items []Item
		want  []string
	}{
		{"empty", nil, nil},
		{"messages only", []Item{msg("m1"), msg("m2")}, []string{"m1", "m2"}},
		{"single groupable stays standalone", []Item{msg("m1"), member("j1"), msg("m2")}, []string{"m1", "j1", "m2"}},
		{"run of two", []Item{member("j1"), member("j2")}, []string{"[j1 j2]"}},
		{"mixed groupable kinds", []Item{msg("m1"), member("j1"), profile("p1"), state("s1"), msg("m2")}, []string{"m1", "[j1 p1 s1]", "m2"}},
		{"run at end flushes", []Item{msg("m1"), state("s1"), state("s2")}, []string{"m1", "[s1 s2]"}},
		{"virtual row breaks run", []Item{member("j1"), sep, member("j2")}, []string{"j1", "|", "j2"}},
		{"two runs", []Item{member("j1"), member("j2"), msg("m1"), state("s1"), state("s2")}, []string{"[j1 j2]", "m1", "[s1 s2]"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := shape(NewGrouper().Group(tt.items))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Group() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// Every maximal run of >= 2 groupable events becomes exactly one group, runs
// of 1 stay standalone and events keep their input order.
func TestGroupProperties(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	makers := []func(string) *EventItem{msg, member, profile, state}

	for run := range 100 {
		var items []Item
		var events []*EventItem
		for i := range r.IntN(30) {
			e := makers[r.IntN(len(makers))](fmt.Sprintf("e%d", i))
			items = append(items, e)
			events = append(events, e)
		}

		var wantGroups, wantSingles int
		for i := 0; i < len(events); {
			if !events[i].Groupable() {
				i++
				continue
			}
			j := i
			for j < len(events) && events[j].Groupable() {
				j++
			}
			if j-i >= 2 {
				wantGroups++
			} else {
				wantSingles++
			}
			i = j
		}

		out := NewGrouper().Group(items)
		var flat []*EventItem
		var gotGroups, gotSingles int
		for k, it := range out {
			switch v := it.(type) {
			case *GroupedEvents:
				gotGroups++
				if len(v.Events) < 2 {
					t.Fatalf("run %d: group with %d events", run, len(v.Events))
				}
				if k > 0 {
					if prev, ok := out[k-1].(*EventItem); ok && prev.Groupable() {
						t.Fatalf("run %d: groupable event adjacent to group", run)
					}
				}
				flat = append(flat, v.Events...)
			case *EventItem:
				if v.Groupable() {
					gotSingles++
				}
				flat = append(flat, v)
			}
		}
		if gotGroups != wantGroups || gotSingles != wantSingles {
			t.Fatalf("run %d: groups=%d singles=%d, want %d and %d", run, gotGroups, gotSingles, wantGroups, wantSingles)
		}
		if diff := cmp.Diff(events, flat); diff != "" {
			t.Fatalf("run %d: order changed (-want +got):\n%s", run, diff)
		}
	}
}

func TestGroupIDStableAcrossUpdates(t *testing.T) {
	g := NewGrouper()

	first := g.Group([]Item{msg("m1"), member("j1"), member("j2")})
	id := first[1].(*GroupedEvents).ID

	// A new membership event extends the group and a message arrives.
	second := g.Group([]Item{msg("m1"), member("j1"), member("j2"), member("j3"), msg("m2")})
	grp := second[1].(*GroupedEvents)
	if grp.ID != id {
		t.Errorf("group id changed from %q to %q", id, grp.ID)
	}
	if len(grp.Events) != 3 {
		t.Errorf("group has %d events, want 3", len(grp.Events))
	}

	// A different grouper never shares ids.
	other := NewGrouper().Group([]Item{member("j1"), member("j2")})
	if other[0].(*GroupedEvents).ID == id {
		t.Error("independent groupers produced the same id")
	}
}

func TestGroupIDForgottenWhenGroupDisappears(t *testing.T) {
	g := NewGrouper()
	id := g.Group([]Item{member("j1"), member("j2")})[0].(*GroupedEvents).ID

	g.Group([]Item{msg("m1")})
	again := g.Group([]Item{member("j1"), member("j2")})[0].(*GroupedEvents).ID
	if again == id {
		t.Error("expected a fresh id after the group left the window")
	}
}

func TestReadReceiptsAggregated(t *testing.T) {
	a, b := member("j1"), member("j2")
	a.Receipts = []Receipt{{UserID: "@x", Timestamp: 10}, {UserID: "@y", Timestamp: 30}}
	b.Receipts = []Receipt{{UserID: "@x", Timestamp: 20}}

	got := (&GroupedEvents{Events: []*EventItem{a, b}}).ReadReceipts()
	want := []Receipt{{UserID: "@y", Timestamp: 30}, {UserID: "@x", Timestamp: 20}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadReceipts() mismatch (-want +got):\n%s", diff)
	}
}

func TestExpansion(t *testing.T) {
	g := NewGrouper()
	items := g.Group([]Item{msg("m1"), member("j1"), member("j2")})
	grp := items[1].(*GroupedEvents)

	x := NewExpansion()
	if got := len(x.Flatten(items)); got != 2 {
		t.Errorf("collapsed rows = %d, want 2", got)
	}
	if !x.Toggle(grp.ID) {
		t.Fatal("Toggle() should expand")
	}
	rows := x.Flatten(items)
	if len(rows) != 4 || rows[2].Group != grp {
		t.Errorf("expanded rows = %+v", rows)
	}

	x.Prune([]Item{msg("m1")})
	if x.IsExpanded(grp.ID) {
		t.Error("Prune() kept a group that is gone")
	}
}
