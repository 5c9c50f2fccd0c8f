package roomlist

import (
	"slices"
	"sync"
)

// Update is one versioned batch of diffs. Version increases by one for every
// published batch, so a consumer can detect gaps.
type Update struct {
	Version uint64 `json:"version"`
	Diffs   []Diff `json:"diffs"`
}

// IsReset reports whether the update replaces the whole list.
func (u Update) IsReset() bool {
	return len(u.Diffs) == 1 && u.Diffs[0].Op == OpReset
}

// Publisher owns the daemon's current room list and turns each new snapshot
// into a versioned update.
type Publisher struct {
	mu      sync.Mutex
	version uint64
	current []RoomSummary
}

// NewPublisher creates an empty publisher at version 0.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish replaces the current list with next. It reports false when nothing
// changed, in which case no version is consumed.
func (p *Publisher) Publish(next []RoomSummary) (Update, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	diffs := Compute(p.current, next)
	if len(diffs) == 0 {
		return Update{}, false
	}
	p.version++
	p.current = slices.Clone(next)
	return Update{Version: p.version, Diffs: diffs}, true
}

// Snapshot returns the current version and a copy of the list.
func (p *Publisher) Snapshot() (uint64, []RoomSummary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version, slices.Clone(p.current)
}

// ResetUpdate returns the current list as a Reset at the current version,
// used to (re)synchronise a consumer.
func (p *Publisher) ResetUpdate() Update {
	version, list := p.Snapshot()
	if list == nil {
		list = []RoomSummary{}
	}
	return Update{Version: version, Diffs: []Diff{{Op: OpReset, Values: list}}}
}
