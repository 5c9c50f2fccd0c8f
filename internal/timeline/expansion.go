package timeline

// Expansion is the set of groups the user expanded.
type Expansion struct {
	expanded map[string]bool
}

// NewExpansion creates an empty expansion set; all groups start collapsed.
func NewExpansion() *Expansion {
	return &Expansion{expanded: make(map[string]bool)}
}

// Toggle flips a group and returns whether it is now expanded.
func (x *Expansion) Toggle(groupID string) bool {
	if x.expanded[groupID] {
		delete(x.expanded, groupID)
		return false
	}
	x.expanded[groupID] = true
	return true
}

// IsExpanded reports whether a group is expanded.
func (x *Expansion) IsExpanded(groupID string) bool {
	return x.expanded[groupID]
}

// Prune drops groups that are not in items.
func (x *Expansion) Prune(items []Item) {
	present := make(map[string]bool, len(x.expanded))
	for _, it := range items {
		if g, ok := it.(*GroupedEvents); ok {
			present[g.ID] = true
		}
	}
	for id := range x.expanded {
		if !present[id] {
			delete(x.expanded, id)
		}
	}
}

// Row is one line of a flattened timeline.
type Row struct {
	Item Item
	// Group is set for events shown inside an expanded group.
	Group *GroupedEvents
}

// Flatten expands the groups the user opened into their events, keeping
// collapsed groups as a single row.
func (x *Expansion) Flatten(items []Item) []Row {
	rows := make([]Row, 0, len(items))
	for _, it := range items {
		g, ok := it.(*GroupedEvents)
		if !ok {
			rows = append(rows, Row{Item: it})
			continue
		}
		rows = append(rows, Row{Item: g})
		if x.expanded[g.ID] {
			for _, e := range g.Events {
				rows = append(rows, Row{Item: e, Group: g})
			}
		}
	}
	return rows
}
