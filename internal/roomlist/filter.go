package roomlist

import (
	"fmt"
	"strings"
)

// FilterKind selects a subset of the room list.
type FilterKind int

const (
	FilterAll FilterKind = iota
	FilterUnread
	FilterPeople
	FilterRooms
	FilterInvites
)

var filterNames = []string{"all", "unread", "people", "rooms", "invites"}

func (k FilterKind) String() string {
	if int(k) < len(filterNames) {
		return filterNames[k]
	}
	return fmt.Sprintf("FilterKind(%d)", int(k))
}

// ParseFilterKind parses the name of a filter kind.
func ParseFilterKind(s string) (FilterKind, error) {
	for i, name := range filterNames {
		if strings.EqualFold(s, name) {
			return FilterKind(i), nil
		}
	}
	return FilterAll, fmt.Errorf("unknown room filter %q", s)
}

// Filter combines a kind with an optional case-insensitive name query.
type Filter struct {
	Kind  FilterKind
	Query string
}

// Match reports whether r passes the filter.
func (f Filter) Match(r RoomSummary) bool {
	switch f.Kind {
	case FilterUnread:
		if !r.HasUnread() {
			return false
		}
	case FilterPeople:
		if !r.IsDirect || r.IsInvite() {
			return false
		}
	case FilterRooms:
		if r.IsDirect || r.IsInvite() {
			return false
		}
	case FilterInvites:
		if !r.IsInvite() {
			return false
		}
	}
	if f.Query == "" {
		return true
	}
	q := strings.ToLower(f.Query)
	return strings.Contains(strings.ToLower(r.DisplayName), q) ||
		strings.Contains(strings.ToLower(r.CanonicalAlias), q)
}

// Select returns the rows of list matching f, keeping their order.
func (f Filter) Select(list []RoomSummary) []RoomSummary {
	out := make([]RoomSummary, 0, len(list))
	for _, r := range list {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
