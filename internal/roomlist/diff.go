package roomlist

import (
	"errors"
	"fmt"
	"slices"
)

// Op names a list mutation.
type Op string

const (
	OpAppend    Op = "append"
	OpClear     Op = "clear"
	OpPushFront Op = "push_front"
	OpPushBack  Op = "push_back"
	OpPopFront  Op = "pop_front"
	OpPopBack   Op = "pop_back"
	OpInsert    Op = "insert"
	OpSet       Op = "set"
	OpRemove    Op = "remove"
	OpMove      Op = "move"
	OpTruncate  Op = "truncate"
	OpReset     Op = "reset"
)

var (
	// ErrIndexOutOfRange is returned when a diff addresses a position the list does not have.
	ErrIndexOutOfRange = errors.New("roomlist: index out of range")
	// ErrInvalidDiff is returned for diffs missing their payload or with an unknown op.
	ErrInvalidDiff = errors.New("roomlist: invalid diff")
)

// Diff is one mutation of the room list. Which fields are meaningful depends
// on Op: Append and Reset carry Values; PushFront, PushBack, Insert and Set
// carry Value; Insert, Set and Remove address Index; Move relocates the item
// at From to Index (an index into the list after removal); Truncate keeps
// the first Length items.
type Diff struct {
	Op     Op            `json:"op"`
	Index  int           `json:"index,omitempty"`
	From   int           `json:"from,omitempty"`
	Length int           `json:"length,omitempty"`
	Value  *RoomSummary  `json:"value,omitempty"`
	Values []RoomSummary `json:"values,omitempty"`
}

func (d Diff) String() string {
	switch d.Op {
	case OpAppend, OpReset:
		return fmt.Sprintf("%s(%d)", d.Op, len(d.Values))
	case OpMove:
		return fmt.Sprintf("%s(%d->%d)", d.Op, d.From, d.Index)
	case OpTruncate:
		return fmt.Sprintf("%s(%d)", d.Op, d.Length)
	case OpInsert, OpSet, OpRemove:
		return fmt.Sprintf("%s(%d)", d.Op, d.Index)
	default:
		return string(d.Op)
	}
}

// Apply returns list with diffs applied in order. The input slice is never
// modified. On error the returned list is nil.
func Apply(list []RoomSummary, diffs []Diff) ([]RoomSummary, error) {
	out := slices.Clone(list)
	for i, d := range diffs {
		var err error
		if out, err = applyOne(out, d); err != nil {
			return nil, fmt.Errorf("diff %d %s: %w", i, d, err)
		}
	}
	return out, nil
}

func applyOne(l []RoomSummary, d Diff) ([]RoomSummary, error) {
	switch d.Op {
	case OpAppend:
		return append(l, d.Values...), nil
	case OpClear:
		return l[:0], nil
	case OpReset:
		return slices.Clone(d.Values), nil
	case OpPushFront:
		if d.Value == nil {
			return nil, ErrInvalidDiff
		}
		return slices.Insert(l, 0, *d.Value), nil
	case OpPushBack:
		if d.Value == nil {
			return nil, ErrInvalidDiff
		}
		return append(l, *d.Value), nil
	case OpPopFront:
		if len(l) == 0 {
			return nil, ErrIndexOutOfRange
		}
		return slices.Delete(l, 0, 1), nil
	case OpPopBack:
		if len(l) == 0 {
			return nil, ErrIndexOutOfRange
		}
		return l[:len(l)-1], nil
	case OpInsert:
		if d.Value == nil {
			return nil, ErrInvalidDiff
		}
		if d.Index < 0 || d.Index > len(l) {
			return nil, ErrIndexOutOfRange
		}
		return slices.Insert(l, d.Index, *d.Value), nil
	case OpSet:
		if d.Value == nil {
			return nil, ErrInvalidDiff
		}
		if d.Index < 0 || d.Index >= len(l) {
			return nil, ErrIndexOutOfRange
		}
		l[d.Index] = *d.Value
		return l, nil
	case OpRemove:
		if d.Index < 0 || d.Index >= len(l) {
			return nil, ErrIndexOutOfRange
		}
		return slices.Delete(l, d.Index, d.Index+1), nil
	case OpMove:
		if d.From < 0 || d.From >= len(l) || d.Index < 0 || d.Index >= len(l) {
			return nil, ErrIndexOutOfRange
		}
		v := l[d.From]
		l = slices.Delete(l, d.From, d.From+1)
		return slices.Insert(l, d.Index, v), nil
	case OpTruncate:
		if d.Length < 0 || d.Length > len(l) {
			return nil, ErrIndexOutOfRange
		}
		return l[:d.Length], nil
	default:
		return nil, ErrInvalidDiff
	}
}
