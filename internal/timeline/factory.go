package timeline

import (
	"strconv"
	"time"
)

const eventRoomCreate = "m.room.create"

// Options describe the window being rendered.
type Options struct {
	// FullyReadEventID places a ReadMarker after that event unless it is last.
	FullyReadEventID string
	// HasMoreHistory puts a LoadingIndicator first; otherwise a window that
	// starts at m.room.create gets a RoomBeginning row.
	HasMoreHistory bool
}

// Factory builds timeline rows from events.
type Factory struct {
	loc *time.Location
}

// NewFactory creates a factory that splits days in loc (time.Local if nil).
func NewFactory(loc *time.Location) *Factory {
	if loc == nil {
		loc = time.Local
	}
	return &Factory{loc: loc}
}

// Create returns events, in chronological order, interleaved with virtual rows.
func (f *Factory) Create(events []*EventItem, opts Options) []Item {
	items := make([]Item, 0, len(events)+4)

	if opts.HasMoreHistory {
		items = append(items, &VirtualItem{Kind: LoadingIndicator, key: string(LoadingIndicator)})
	} else if len(events) > 0 && events[0].Type == eventRoomCreate {
		items = append(items, &VirtualItem{Kind: RoomBeginning, key: string(RoomBeginning)})
	}

	var lastDay time.Time
	for i, e := range events {
		day := f.startOfDay(e.Timestamp)
		if !day.Equal(lastDay) {
			items = append(items, &VirtualItem{
				Kind:      DaySeparator,
				Timestamp: day.UnixMilli(),
				key:       "day-" + strconv.FormatInt(day.UnixMilli(), 10),
			})
			lastDay = day
		}
		items = append(items, e)
		if opts.FullyReadEventID != "" && e.EventID == opts.FullyReadEventID && i < len(events)-1 {
			items = append(items, &VirtualItem{Kind: ReadMarker, key: string(ReadMarker)})
		}
	}
	return items
}

func (f *Factory) startOfDay(ms int64) time.Time {
	t := time.UnixMilli(ms).In(f.loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, f.loc)
}
