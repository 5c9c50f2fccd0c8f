package timeline

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/matheus3301/mxt/internal/store"
)

func at(id string, ts time.Time) *EventItem {
	e := msg(id)
	e.Timestamp = ts.UnixMilli()
	return e
}

func kinds(items []Item) []string {
	var out []string
	for _, it := range items {
		switch v := it.(type) {
		case *VirtualItem:
			out = append(out, string(v.Kind))
		default:
			out = append(out, it.Key())
		}
	}
	return out
}

func TestFactoryCreate(t *testing.T) {
	day1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	f := NewFactory(time.UTC)

	create := at("$create", day1)
	create.Type = "m.room.create"

	tests := []struct {
		name   string
		events []*EventItem
		opts   Options
		want   []string
	}{
		{
			name:   "empty",
			events: nil,
			want:   []string{},
		},
		{
			name:   "day separators",
			events: []*EventItem{at("$a", day1), at("$b", day1.Add(time.Hour)), at("$c", day2)},
			want:   []string{"day_separator", "$a", "$b", "day_separator", "$c"},
		},
		{
			name:   "read marker",
			events: []*EventItem{at("$a", day1), at("$b", day1)},
			opts:   Options{FullyReadEventID: "$a"},
			want:   []string{"day_separator", "$a", "read_marker", "$b"},
		},
		{
			name:   "no read marker after last",
			events: []*EventItem{at("$a", day1), at("$b", day1)},
			opts:   Options{FullyReadEventID: "$b"},
			want:   []string{"day_separator", "$a", "$b"},
		},
		{
			name:   "loading indicator",
			events: []*EventItem{at("$a", day1)},
			opts:   Options{HasMoreHistory: true},
			want:   []string{"loading_indicator", "day_separator", "$a"},
		},
		{
			name:   "room beginning",
			events: []*EventItem{create, at("$a", day1)},
			want:   []string{"room_beginning", "day_separator", "$create", "$a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := kinds(f.Create(tt.events, tt.opts))
			if got == nil {
				got = []string{}
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Create() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFromStore(t *testing.T) {
	echo := FromStore(store.Event{
		RoomID: "!r", EventID: store.LocalEchoID("t1"), TxnID: "t1", Sender: "@me:s",
		Kind: store.KindMessage, MsgType: "m.text", Body: "hi", FromMe: true, Status: store.StatusQueued,
	})
	if echo.EventID != "" || echo.ID != "~t1" || echo.SendState != SendQueued || echo.Sent() {
		t.Errorf("local echo = %+v", echo)
	}

	join := FromStore(store.Event{
		EventID: "$j", Sender: "@a:s", SenderName: "Alice", Type: "m.room.member", StateKey: "@a:s",
		Kind: store.KindMembership, Membership: "join", Status: store.StatusReceived,
	})
	if !join.Groupable() || join.SendState != SendNone {
		t.Errorf("membership item = %+v", join)
	}
	if got := join.Text(); got != "@a:s joined" && got != "Alice joined" {
		t.Errorf("Text() = %q", got)
	}
}

func TestContentText(t *testing.T) {
	tests := []struct {
		name    string
		content Content
		want    string
	}{
		{"text", Content{Kind: KindMessage, MsgType: "m.text", Body: "hello"}, "hello"},
		{"emote", Content{Kind: KindMessage, MsgType: "m.emote", Body: "waves"}, "* Alice waves"},
		{"file", Content{Kind: KindMessage, MsgType: "m.file", FileName: "a.pdf", FileSize: 2000}, "[file] a.pdf (2.0 kB)"},
		{"invite", Content{Kind: KindMembership, Membership: "invite", Target: "@b:s", TargetName: "Bob"}, "Alice invited Bob"},
		{"left", Content{Kind: KindMembership, Membership: "leave", PrevMembership: "join", Target: "@a:s"}, "@a:s left"},
		{"kicked", Content{Kind: KindMembership, Membership: "leave", PrevMembership: "join", Target: "@b:s", TargetName: "Bob"}, "Alice removed Bob"},
		{"rejected", Content{Kind: KindMembership, Membership: "leave", PrevMembership: "invite", Target: "@a:s", TargetName: "Alice"}, "Alice rejected the invite"},
		{"rename", Content{Kind: KindProfileChange, PrevDisplayName: "Al", DisplayName: "Alice"}, "Al changed their display name to Alice"},
		{"avatar", Content{Kind: KindProfileChange, PrevDisplayName: "Alice", DisplayName: "Alice", AvatarChanged: true}, "Alice changed their avatar"},
		{"state", Content{Kind: KindState, StateType: "m.room.topic", Summary: "changed the topic to \"go\""}, "Alice changed the topic to \"go\""},
		{"redacted", Content{Kind: KindRedacted}, "Message deleted"},
		{"utd", Content{Kind: KindUnableToDecrypt}, "Unable to decrypt message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.content.Text("Alice", "@a:s"); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}
