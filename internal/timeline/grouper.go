package timeline

import (
	"sync"

	"github.com/google/uuid"
)

// Grouper folds runs of groupable events into GroupedEvents. Group ids are
// remembered by the key of each group's first event, so regrouping an
// updated timeline keeps ids stable for the rows that survived.
type Grouper struct {
	mu  sync.Mutex
	ids map[string]string
}

// NewGrouper creates a grouper with no remembered groups.
func NewGrouper() *Grouper {
	return &Grouper{ids: make(map[string]string)}
}

// Group returns items with every maximal run of two or more consecutive
// groupable events replaced by one group. Single groupable events, messages
// and virtual rows are passed through; order is preserved.
func (g *Grouper) Group(items []Item) []Item {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Item, 0, len(items))
	used := make(map[string]string)
	var pending []*EventItem

	flush := func() {
		switch len(pending) {
		case 0:
			return
		case 1:
			out = append(out, pending[0])
		default:
			out = append(out, &GroupedEvents{
				ID:     g.groupID(pending[0].Key(), used),
				Events: pending,
			})
		}
		pending = nil
	}

	for _, item := range items {
		if e, ok := item.(*EventItem); ok && e.Groupable() {
			pending = append(pending, e)
			continue
		}
		flush()
		out = append(out, item)
	}
	flush()

	// Forget groups that are no longer rendered.
	g.ids = used
	return out
}

func (g *Grouper) groupID(firstKey string, used map[string]string) string {
	id, ok := g.ids[firstKey]
	if !ok {
		id = "group-" + uuid.NewString()
	}
	used[firstKey] = id
	return id
}
