package navigation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/matheus3301/mxt/internal/intent"
	"github.com/matheus3301/mxt/internal/matrix"
	"github.com/matheus3301/mxt/internal/outbox"
	"github.com/matheus3301/mxt/internal/store"
	"golang.org/x/oauth2"
)

type fakeRooms map[string]*store.Room

func (f fakeRooms) GetRoom(roomID string) (*store.Room, error) { return f[roomID], nil }

func (f fakeRooms) FindRoomByAlias(alias string) (string, error) {
	for _, r := range f {
		if r.CanonicalAlias == alias {
			return r.ID, nil
		}
	}
	return "", nil
}

type fakeJoiner struct {
	joined []string
	via    []string
}

func (f *fakeJoiner) JoinRoom(_ context.Context, idOrAlias string, via []string) (string, error) {
	f.joined = append(f.joined, idOrAlias)
	f.via = via
	return "!joined:example.org", nil
}

type fakeOIDC struct {
	cancelled bool
	err       error
}

func (f *fakeOIDC) Complete(context.Context, string) (*oauth2.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &oauth2.Token{AccessToken: "tok"}, nil
}

func (f *fakeOIDC) Cancel() { f.cancelled = true }

type fakeAuth struct{ token string }

func (f *fakeAuth) ResolveHomeserver(_ context.Context, server string) (string, error) {
	return "https://" + server, nil
}

func (f *fakeAuth) LoginToken(_ context.Context, hs, token string) (*matrix.Credentials, error) {
	f.token = token
	return &matrix.Credentials{Homeserver: hs, UserID: "@me:example.org", AccessToken: token}, nil
}

type fakeSharer struct{ drafts []outbox.Draft }

func (f *fakeSharer) Enqueue(_ context.Context, d outbox.Draft) (*store.OutboxEntry, error) {
	f.drafts = append(f.drafts, d)
	return &store.OutboxEntry{RoomID: d.RoomID}, nil
}

func newTestRouter() (*Router, *fakeJoiner, *fakeOIDC, *fakeAuth, *fakeSharer) {
	j := &fakeJoiner{}
	o := &fakeOIDC{}
	a := &fakeAuth{}
	s := &fakeSharer{}
	rooms := fakeRooms{
		"!known:example.org": {ID: "!known:example.org", CanonicalAlias: "#known:example.org", Membership: store.MembershipJoin},
		"!left:example.org":  {ID: "!left:example.org", Membership: store.MembershipLeave},
	}
	r := NewRouter(Deps{
		Session:    "default",
		Sessions:   func() ([]string, error) { return []string{"default", "work"}, nil },
		Rooms:      rooms,
		Joiner:     j,
		OIDC:       o,
		Auth:       a,
		Sharer:     s,
		Homeserver: "example.org",
	}, nil)
	return r, j, o, a, s
}

func TestRouteNavigation(t *testing.T) {
	tests := []struct {
		name    string
		in      intent.ResolvedIntent
		want    Destination
		wantErr error
	}{
		{"nil", nil, Destination{Screen: ScreenHome, SessionID: "default"}, nil},
		{"root", intent.Navigation{DeepLink: intent.Root{SessionID: "default"}}, Destination{Screen: ScreenHome, SessionID: "default"}, nil},
		{"invites", intent.Navigation{DeepLink: intent.InviteList{SessionID: "default"}}, Destination{Screen: ScreenInvites, SessionID: "default"}, nil},
		{
			"room with thread",
			intent.Navigation{DeepLink: intent.Room{SessionID: "default", RoomID: "!r:x", ThreadID: "$t", EventID: "$e"}},
			Destination{Screen: ScreenRoom, SessionID: "default", RoomID: "!r:x", ThreadID: "$t", EventID: "$e"},
			nil,
		},
		{"other session", intent.Navigation{DeepLink: intent.Root{SessionID: "work"}}, Destination{Screen: ScreenSession, SessionID: "work"}, nil},
		{"unknown session", intent.Navigation{DeepLink: intent.Root{SessionID: "nope"}}, Destination{}, ErrUnknownSession},
		{"user link", intent.Permalink{Link: intent.UserLink{UserID: "@bob:x"}}, Destination{Screen: ScreenUser, SessionID: "default", UserID: "@bob:x"}, nil},
		{"fallback link", intent.Permalink{Link: intent.FallbackLink{URL: "https://example.com"}}, Destination{}, ErrUnsupportedLink},
		{
			"login",
			intent.Login{Params: intent.LoginParams{AccountProvider: "matrix.org", LoginHint: "mxid:@me:matrix.org"}},
			Destination{Screen: ScreenLogin, SessionID: "default", AccountProvider: "matrix.org", LoginHint: "mxid:@me:matrix.org"},
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _, _, _ := newTestRouter()
			got, err := r.Route(context.Background(), tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("destination mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRoutePermalinkRooms(t *testing.T) {
	tests := []struct {
		name       string
		link       intent.RoomLink
		wantRoom   string
		wantJoined bool
	}{
		{"known id", intent.RoomLink{RoomIDOrAlias: "!known:example.org"}, "!known:example.org", false},
		{"known alias", intent.RoomLink{RoomIDOrAlias: "#known:example.org", EventID: "$e"}, "!known:example.org", false},
		{"left room", intent.RoomLink{RoomIDOrAlias: "!left:example.org"}, "!joined:example.org", true},
		{"unknown alias", intent.RoomLink{RoomIDOrAlias: "#new:example.org", Via: []string{"example.org"}}, "!joined:example.org", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, j, _, _, _ := newTestRouter()
			got, err := r.Route(context.Background(), intent.Permalink{Link: tt.link})
			if err != nil {
				t.Fatalf("Route: %v", err)
			}
			if got.Screen != ScreenRoom || got.RoomID != tt.wantRoom || got.EventID != tt.link.EventID {
				t.Errorf("got %+v, want room %s", got, tt.wantRoom)
			}
			if joined := len(j.joined) > 0; joined != tt.wantJoined {
				t.Errorf("joined = %v, want %v", joined, tt.wantJoined)
			}
			if tt.wantJoined {
				if diff := cmp.Diff(tt.link.Via, j.via); diff != "" {
					t.Errorf("via mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestRouteOIDC(t *testing.T) {
	t.Run("cancel", func(t *testing.T) {
		r, _, o, _, _ := newTestRouter()
		got, err := r.Route(context.Background(), intent.Oidc{Action: intent.GoBack{}})
		if err != nil {
			t.Fatal(err)
		}
		if !o.cancelled || got.Screen != ScreenLogin || got.Message != "Login cancelled" {
			t.Errorf("got %+v cancelled=%v", got, o.cancelled)
		}
	})

	t.Run("failure", func(t *testing.T) {
		r, _, o, _, _ := newTestRouter()
		got, err := r.Route(context.Background(), intent.Oidc{Action: intent.Failure{Error: "access_denied", Description: "nope"}})
		if err != nil {
			t.Fatal(err)
		}
		if want := "Login failed: access_denied (nope)"; got.Message != want || !o.cancelled {
			t.Errorf("message = %q, want %q", got.Message, want)
		}
	})

	t.Run("success", func(t *testing.T) {
		r, _, _, a, _ := newTestRouter()
		started := false
		r.deps.AfterLogin = func(context.Context) error {
			started = true
			return nil
		}
		got, err := r.Route(context.Background(), intent.Oidc{Action: intent.Success{URL: "mxt://oidc?code=c&state=s"}})
		if err != nil {
			t.Fatal(err)
		}
		want := Destination{Screen: ScreenHome, SessionID: "default", UserID: "@me:example.org"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("destination mismatch (-want +got):\n%s", diff)
		}
		if a.token != "tok" || !started {
			t.Errorf("token = %q, started = %v", a.token, started)
		}
	})

	t.Run("exchange error", func(t *testing.T) {
		r, _, o, a, _ := newTestRouter()
		o.err = errors.New("bad state")
		if _, err := r.Route(context.Background(), intent.Oidc{Action: intent.Success{URL: "x"}}); err == nil {
			t.Fatal("expected error")
		}
		if a.token != "" {
			t.Error("login should not run after a failed exchange")
		}
	})

	t.Run("not configured", func(t *testing.T) {
		r := NewRouter(Deps{Session: "default"}, nil)
		if _, err := r.Route(context.Background(), intent.Oidc{Action: intent.GoBack{}}); !errors.Is(err, ErrOIDCUnavailable) {
			t.Errorf("err = %v", err)
		}
	})
}

func TestRouteShare(t *testing.T) {
	r, _, _, _, s := newTestRouter()

	got, err := r.Route(context.Background(), intent.IncomingShare{Intent: intent.Intent{
		Action: intent.ActionSend,
		Extras: map[string]string{intent.ExtraText: "hello"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if got.Screen != ScreenShare || got.Text != "hello" || len(s.drafts) != 0 {
		t.Errorf("got %+v drafts=%d", got, len(s.drafts))
	}

	got, err = r.Route(context.Background(), intent.IncomingShare{Intent: intent.Intent{
		Action: intent.ActionSend,
		Extras: map[string]string{intent.ExtraText: "hello", intent.ExtraRoomID: "!known:example.org"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if got.Screen != ScreenRoom || got.RoomID != "!known:example.org" {
		t.Errorf("got %+v", got)
	}
	want := []outbox.Draft{{RoomID: "!known:example.org", Body: "hello"}}
	if diff := cmp.Diff(want, s.drafts); diff != "" {
		t.Errorf("drafts mismatch (-want +got):\n%s", diff)
	}
}
