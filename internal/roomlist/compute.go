package roomlist

import "slices"

// Compute returns diffs that turn old into next, matching rows by room id.
// Applying the result to old always yields next. Lists with duplicate ids,
// or changes too large to be worth patching, are sent as a single Reset.
func Compute(old, next []RoomSummary) []Diff {
	switch {
	case len(old) == 0 && len(next) == 0:
		return nil
	case len(next) == 0:
		return []Diff{{Op: OpClear}}
	case len(old) == 0:
		return []Diff{{Op: OpAppend, Values: slices.Clone(next)}}
	}

	wanted, ok := indexByID(next)
	if !ok {
		return reset(next)
	}
	if _, ok := indexByID(old); !ok {
		return reset(next)
	}

	cur := slices.Clone(old)
	var diffs []Diff

	// Drop rows that disappeared, back to front so indices stay valid.
	for i := len(cur) - 1; i >= 0; i-- {
		if _, keep := wanted[cur[i].ID]; !keep {
			diffs = append(diffs, Diff{Op: OpRemove, Index: i})
			cur = slices.Delete(cur, i, i+1)
		}
	}

	// Place every wanted row; positions before i are already final.
	for i := range next {
		id := next[i].ID
		if i < len(cur) && cur[i].ID == id {
			continue
		}
		if j := indexOf(cur, id, i+1); j >= 0 {
			diffs = append(diffs, Diff{Op: OpMove, From: j, Index: i})
			v := cur[j]
			cur = slices.Delete(cur, j, j+1)
			cur = slices.Insert(cur, i, v)
			continue
		}
		v := next[i]
		if i == len(cur) {
			diffs = append(diffs, Diff{Op: OpPushBack, Value: &v})
		} else {
			diffs = append(diffs, Diff{Op: OpInsert, Index: i, Value: &v})
		}
		cur = slices.Insert(cur, i, v)
	}

	// Refresh rows whose content changed.
	for i := range next {
		if cur[i] != next[i] {
			v := next[i]
			diffs = append(diffs, Diff{Op: OpSet, Index: i, Value: &v})
		}
	}

	if len(diffs) > len(next) {
		return reset(next)
	}
	return diffs
}

func reset(next []RoomSummary) []Diff {
	return []Diff{{Op: OpReset, Values: slices.Clone(next)}}
}

func indexByID(list []RoomSummary) (map[string]int, bool) {
	m := make(map[string]int, len(list))
	for i, r := range list {
		if _, dup := m[r.ID]; dup {
			return nil, false
		}
		m[r.ID] = i
	}
	return m, true
}

func indexOf(list []RoomSummary, id string, from int) int {
	for j := from; j < len(list); j++ {
		if list[j].ID == id {
			return j
		}
	}
	return -1
}
