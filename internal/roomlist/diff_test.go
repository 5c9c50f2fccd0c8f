package roomlist

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func rooms(ids ...string) []RoomSummary {
	out := make([]RoomSummary, len(ids))
	for i, id := range ids {
		out[i] = RoomSummary{ID: id, DisplayName: id, Membership: "join"}
	}
	return out
}

func ptr(r RoomSummary) *RoomSummary { return &r }

func ids(list []RoomSummary) []string {
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = r.ID
	}
	return out
}

func TestApplyOps(t *testing.T) {
	base := rooms("a", "b", "c")
	x := rooms("x")[0]

	tests := []struct {
		name string
		diff Diff
		want []string
	}{
		{"append", Diff{Op: OpAppend, Values: rooms("x", "y")}, []string{"a", "b", "c", "x", "y"}},
		{"clear", Diff{Op: OpClear}, []string{}},
		{"push front", Diff{Op: OpPushFront, Value: &x}, []string{"x", "a", "b", "c"}},
		{"push back", Diff{Op: OpPushBack, Value: &x}, []string{"a", "b", "c", "x"}},
		{"pop front", Diff{Op: OpPopFront}, []string{"b", "c"}},
		{"pop back", Diff{Op: OpPopBack}, []string{"a", "b"}},
		{"insert middle", Diff{Op: OpInsert, Index: 1, Value: &x}, []string{"a", "x", "b", "c"}},
		{"insert at end", Diff{Op: OpInsert, Index: 3, Value: &x}, []string{"a", "b", "c", "x"}},
		{"set", Diff{Op: OpSet, Index: 2, Value: &x}, []string{"a", "b", "x"}},
		{"remove", Diff{Op: OpRemove, Index: 0}, []string{"b", "c"}},
		{"move forward", Diff{Op: OpMove, From: 0, Index: 2}, []string{"b", "c", "a"}},
		{"move backward", Diff{Op: OpMove, From: 2, Index: 0}, []string{"c", "a", "b"}},
		{"truncate", Diff{Op: OpTruncate, Length: 1}, []string{"a"}},
		{"reset", Diff{Op: OpReset, Values: rooms("z")}, []string{"z"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(base, []Diff{tt.diff})
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, ids(got)); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff([]string{"a", "b", "c"}, ids(base)); diff != "" {
				t.Errorf("input was mutated (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApplyRejectsBadDiffs(t *testing.T) {
	base := rooms("a", "b")
	x := rooms("x")[0]

	tests := []struct {
		name string
		diff Diff
		want error
	}{
		{"insert past end", Diff{Op: OpInsert, Index: 3, Value: &x}, ErrIndexOutOfRange},
		{"set negative", Diff{Op: OpSet, Index: -1, Value: &x}, ErrIndexOutOfRange},
		{"remove past end", Diff{Op: OpRemove, Index: 2}, ErrIndexOutOfRange},
		{"move from past end", Diff{Op: OpMove, From: 5, Index: 0}, ErrIndexOutOfRange},
		{"truncate longer", Diff{Op: OpTruncate, Length: 3}, ErrIndexOutOfRange},
		{"set without value", Diff{Op: OpSet, Index: 0}, ErrInvalidDiff},
		{"unknown op", Diff{Op: "shuffle"}, ErrInvalidDiff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(base, []Diff{tt.diff})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Apply() error = %v, want %v", err, tt.want)
			}
			if got != nil {
				t.Errorf("Apply() returned %v on error, want nil", got)
			}
		})
	}

	if _, err := Apply(nil, []Diff{{Op: OpPopFront}}); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("pop on empty list: err = %v", err)
	}
}

func TestComputeCases(t *testing.T) {
	changedB := rooms("b")[0]
	changedB.UnreadCount = 3

	tests := []struct {
		name    string
		old     []RoomSummary
		next    []RoomSummary
		wantOps []Op
	}{
		{"both empty", nil, nil, nil},
		{"to empty", rooms("a"), nil, []Op{OpClear}},
		{"from empty", nil, rooms("a", "b"), []Op{OpAppend}},
		{"unchanged", rooms("a", "b"), rooms("a", "b"), nil},
		{"bump to top", rooms("a", "b", "c"), rooms("c", "a", "b"), []Op{OpMove}},
		{"new room at top", rooms("a", "b"), rooms("n", "a", "b"), []Op{OpInsert}},
		{"new room at bottom", rooms("a", "b"), rooms("a", "b", "n"), []Op{OpPushBack}},
		{"left a room", rooms("a", "b", "c"), rooms("a", "c"), []Op{OpRemove}},
		{"update in place", rooms("a", "b"), []RoomSummary{rooms("a")[0], changedB}, []Op{OpSet}},
		{"duplicate ids", rooms("a", "a"), rooms("a"), []Op{OpReset}},
		{"everything replaced", rooms("a", "b"), rooms("c", "d"), []Op{OpReset}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diffs := Compute(tt.old, tt.next)
			var ops []Op
			for _, d := range diffs {
				ops = append(ops, d.Op)
			}
			if diff := cmp.Diff(tt.wantOps, ops); diff != "" {
				t.Errorf("ops mismatch (-want +got):\n%s", diff)
			}
			got, err := Apply(tt.old, diffs)
			if err != nil {
				t.Fatalf("Apply(Compute()) error = %v", err)
			}
			if len(got) == 0 && len(tt.next) == 0 {
				return
			}
			if diff := cmp.Diff(tt.next, got); diff != "" {
				t.Errorf("Apply(old, Compute(old, next)) mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func randomList(r *rand.Rand, pool []string) []RoomSummary {
	perm := r.Perm(len(pool))
	n := r.IntN(len(pool) + 1)
	out := make([]RoomSummary, 0, n)
	for _, i := range perm[:n] {
		out = append(out, RoomSummary{
			ID:          pool[i],
			DisplayName: pool[i],
			UnreadCount: r.IntN(3),
			Membership:  "join",
		})
	}
	return out
}

// Applying the diffs of every step in sequence yields the same list as the
// final full snapshot.
func TestComputeSequenceMatchesSnapshot(t *testing.T) {
	pool := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	r := rand.New(rand.NewPCG(1, 2))

	for run := range 50 {
		t.Run(fmt.Sprintf("run%d", run), func(t *testing.T) {
			var applied, prev []RoomSummary
			for range 20 {
				next := randomList(r, pool)
				var err error
				applied, err = Apply(applied, Compute(prev, next))
				if err != nil {
					t.Fatalf("Apply() error = %v", err)
				}
				prev = next
			}
			if len(applied) == 0 && len(prev) == 0 {
				return
			}
			if diff := cmp.Diff(prev, applied); diff != "" {
				t.Errorf("sequence result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
