package roomlist

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrResyncNeeded is returned when the adapter can no longer patch its list
// and needs a Reset from the publisher.
var ErrResyncNeeded = errors.New("roomlist: resync needed")

// Adapter keeps the UI's copy of the room list in step with a Publisher.
type Adapter struct {
	mu      sync.RWMutex
	version uint64
	rooms   []RoomSummary
	synced  bool
}

// NewAdapter creates an adapter waiting for its first Reset.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Apply patches the list with u. Updates at or below the current version are
// ignored. A Reset is always accepted when newer; any other update must be
// exactly the next version and apply cleanly, otherwise ErrResyncNeeded is
// returned and further updates are refused until a Reset arrives.
func (a *Adapter) Apply(u Update) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.synced && u.Version <= a.version {
		return nil
	}
	if u.IsReset() {
		a.rooms = slices.Clone(u.Diffs[0].Values)
		a.version = u.Version
		a.synced = true
		return nil
	}
	if !a.synced {
		return ErrResyncNeeded
	}
	if u.Version != a.version+1 {
		a.synced = false
		return fmt.Errorf("%w: got version %d after %d", ErrResyncNeeded, u.Version, a.version)
	}
	next, err := Apply(a.rooms, u.Diffs)
	if err != nil {
		a.synced = false
		return fmt.Errorf("%w: %v", ErrResyncNeeded, err)
	}
	a.rooms = next
	a.version = u.Version
	return nil
}

// Rooms returns a copy of the current list.
func (a *Adapter) Rooms() []RoomSummary {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.rooms)
}

// Filtered returns the rows of the current list matching f.
func (a *Adapter) Filtered(f Filter) []RoomSummary {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return f.Select(a.rooms)
}

// Version returns the last applied version.
func (a *Adapter) Version() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.version
}

// Synced reports whether the adapter holds a list it can patch.
func (a *Adapter) Synced() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.synced
}

// Find returns the summary of a room in the current list.
func (a *Adapter) Find(roomID string) (RoomSummary, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, r := range a.rooms {
		if r.ID == roomID {
			return r, true
		}
	}
	return RoomSummary{}, false
}
