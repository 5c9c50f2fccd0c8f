package matrix

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/matheus3301/mxt/internal/bus"
	"github.com/matheus3301/mxt/internal/status"
	"go.uber.org/zap"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

type memCreds struct {
	mu sync.Mutex
	c  *Credentials
}

func (m *memCreds) LoadCredentials(context.Context) (*Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.c, nil
}

func (m *memCreds) SaveCredentials(_ context.Context, c *Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c = c
	return nil
}

func (m *memCreds) ClearCredentials(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c = nil
	return nil
}

type memSyncStore struct{}

func (memSyncStore) SaveFilterID(context.Context, id.UserID, string) error   { return nil }
func (memSyncStore) LoadFilterID(context.Context, id.UserID) (string, error) { return "", nil }
func (memSyncStore) SaveNextBatch(context.Context, id.UserID, string) error  { return nil }
func (memSyncStore) LoadNextBatch(context.Context, id.UserID) (string, error) {
	return "", nil
}

func newTestAdapter(t *testing.T, creds *memCreds) (*Adapter, *bus.Bus) {
	t.Helper()
	b := bus.New()
	h := NewEventHandler(b, status.NewMachine(b), zap.NewNop())
	a, err := NewAdapter(context.Background(), Options{DeviceName: "mxt-test"}, creds, memSyncStore{}, h, b, zap.NewNop())
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	a.retryDelay = time.Millisecond
	return a, b
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestLoginPasswordPersistsCredentials(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_matrix/client/v3/login" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeJSON(w, map[string]any{"user_id": "@me:example.org", "device_id": "DEV", "access_token": "tok"})
	}))
	defer srv.Close()

	creds := &memCreds{}
	a, b := newTestAdapter(t, creds)
	ch, unsub := b.Subscribe(bus.NamespaceSession, 10)
	defer unsub()

	if a.IsLoggedIn() {
		t.Fatal("fresh adapter should not be logged in")
	}
	if _, err := a.LoginPassword(context.Background(), srv.URL, "me", "secret"); err != nil {
		t.Fatalf("LoginPassword: %v", err)
	}

	want := &Credentials{Homeserver: srv.URL, UserID: "@me:example.org", DeviceID: "DEV", AccessToken: "tok"}
	if diff := cmp.Diff(want, creds.c); diff != "" {
		t.Errorf("stored credentials mismatch (-want +got):\n%s", diff)
	}
	if !a.IsLoggedIn() || a.UserID() != "@me:example.org" || a.DeviceID() != "DEV" {
		t.Errorf("adapter state: logged in %v user %q device %q", a.IsLoggedIn(), a.UserID(), a.DeviceID())
	}
	if gotBody["password"] != "secret" || gotBody["initial_device_display_name"] != "mxt-test" {
		t.Errorf("login request body = %v", gotBody)
	}

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindLoggedIn {
			t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindLoggedIn)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for logged in event")
	}
}

func TestLoginTokenUsesWhoami(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_matrix/client/v3/account/whoami" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer oidc-token" {
			w.WriteHeader(http.StatusUnauthorized)
			writeJSON(w, map[string]string{"errcode": "M_UNKNOWN_TOKEN", "error": "bad token"})
			return
		}
		writeJSON(w, map[string]string{"user_id": "@me:example.org", "device_id": "OIDCDEV"})
	}))
	defer srv.Close()

	creds := &memCreds{}
	a, _ := newTestAdapter(t, creds)
	c, err := a.LoginToken(context.Background(), srv.URL, "oidc-token")
	if err != nil {
		t.Fatalf("LoginToken: %v", err)
	}
	if c.UserID != "@me:example.org" || c.DeviceID != "OIDCDEV" {
		t.Errorf("credentials = %+v", c)
	}

	if _, err := a.LoginToken(context.Background(), srv.URL, "wrong"); err == nil {
		t.Error("expected error for rejected token")
	}
}

func TestRestoresStoredLogin(t *testing.T) {
	creds := &memCreds{c: &Credentials{Homeserver: "https://matrix.example.org", UserID: "@me:example.org", DeviceID: "D", AccessToken: "t"}}
	a, _ := newTestAdapter(t, creds)
	if !a.IsLoggedIn() {
		t.Fatal("expected stored login to be restored")
	}
	if a.Homeserver() != "https://matrix.example.org" {
		t.Errorf("Homeserver = %q", a.Homeserver())
	}
}

func TestNotLoggedIn(t *testing.T) {
	a, _ := newTestAdapter(t, &memCreds{})
	ctx := context.Background()

	if err := a.StartSync(ctx); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("StartSync err = %v, want ErrNotLoggedIn", err)
	}
	if _, err := a.SendText(ctx, Message{RoomID: "!r", TxnID: "t", Body: "x"}); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("SendText err = %v, want ErrNotLoggedIn", err)
	}
	if _, err := a.JoinRoom(ctx, "#a:b", nil); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("JoinRoom err = %v, want ErrNotLoggedIn", err)
	}
	if err := a.Logout(ctx); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("Logout err = %v, want ErrNotLoggedIn", err)
	}
}

func TestSendTextUsesTransactionID(t *testing.T) {
	var gotPath string
	var gotContent map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotContent)
		writeJSON(w, map[string]string{"event_id": "$sent"})
	}))
	defer srv.Close()

	creds := &memCreds{c: &Credentials{Homeserver: srv.URL, UserID: "@me:example.org", DeviceID: "D", AccessToken: "t"}}
	a, _ := newTestAdapter(t, creds)

	eventID, err := a.SendText(context.Background(), Message{
		RoomID:        "!room:example.org",
		TxnID:         "txn-42",
		Body:          "**hi**",
		FormattedBody: "<strong>hi</strong>",
		ReplyTo:       "$parent",
	})
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if eventID != "$sent" {
		t.Errorf("eventID = %q, want $sent", eventID)
	}
	if !strings.HasSuffix(gotPath, "/send/m.room.message/txn-42") {
		t.Errorf("path = %q, want transaction id suffix", gotPath)
	}
	if gotContent["format"] != "org.matrix.custom.html" || gotContent["formatted_body"] != "<strong>hi</strong>" {
		t.Errorf("content = %v", gotContent)
	}
	rel, _ := gotContent["m.relates_to"].(map[string]any)
	reply, _ := rel["m.in_reply_to"].(map[string]any)
	if reply["event_id"] != "$parent" {
		t.Errorf("m.relates_to = %v, want reply to $parent", rel)
	}
}

func TestJoinRoomPassesVia(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		writeJSON(w, map[string]string{"room_id": "!joined:example.org"})
	}))
	defer srv.Close()

	creds := &memCreds{c: &Credentials{Homeserver: srv.URL, UserID: "@me:example.org", AccessToken: "t"}}
	a, _ := newTestAdapter(t, creds)

	roomID, err := a.JoinRoom(context.Background(), "#room:example.org", []string{"example.org"})
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if roomID != "!joined:example.org" {
		t.Errorf("roomID = %q", roomID)
	}
	if !strings.Contains(gotQuery, "via=example.org") {
		t.Errorf("query = %q, want via=example.org", gotQuery)
	}
}

func TestLogoutClearsCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{})
	}))
	defer srv.Close()

	creds := &memCreds{c: &Credentials{Homeserver: srv.URL, UserID: "@me:example.org", AccessToken: "t"}}
	a, _ := newTestAdapter(t, creds)
	if err := a.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if a.IsLoggedIn() || creds.c != nil {
		t.Error("credentials should be cleared after logout")
	}
}

func TestLogoutFailureKeepsLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	creds := &memCreds{c: &Credentials{Homeserver: srv.URL, UserID: "@me:example.org", AccessToken: "t"}}
	a, _ := newTestAdapter(t, creds)
	if err := a.Logout(context.Background()); err == nil {
		t.Fatal("expected logout error")
	}
	if !a.IsLoggedIn() || creds.c == nil {
		t.Error("login should survive a failed logout")
	}
}

func TestDiscoverRetries(t *testing.T) {
	tests := []struct {
		name    string
		results []error
		wk      *mautrix.ClientWellKnown
		want    string
		wantErr bool
		calls   int
	}{
		{
			name:  "well-known found",
			wk:    &mautrix.ClientWellKnown{Homeserver: mautrix.HomeserverInfo{BaseURL: "https://matrix.example.org/"}},
			want:  "https://matrix.example.org",
			calls: 1,
		},
		{
			name:  "no well-known",
			want:  "https://example.org",
			calls: 1,
		},
		{
			name:    "recovers after failures",
			results: []error{errors.New("boom"), errors.New("boom")},
			want:    "https://example.org",
			calls:   3,
		},
		{
			name:    "gives up",
			results: []error{errors.New("boom"), errors.New("boom"), errors.New("boom"), nil},
			wantErr: true,
			calls:   discoveryAttempts,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestAdapter(t, &memCreds{})
			calls := 0
			a.discover = func(_ context.Context, server string) (*mautrix.ClientWellKnown, error) {
				calls++
				if server != "example.org" {
					t.Errorf("server = %q", server)
				}
				if calls <= len(tt.results) && tt.results[calls-1] != nil {
					return nil, tt.results[calls-1]
				}
				return tt.wk, nil
			}
			got, err := a.ResolveHomeserver(context.Background(), "@me:example.org")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if calls != tt.calls {
				t.Errorf("calls = %d, want %d", calls, tt.calls)
			}
		})
	}
}

func TestResolveHomeserverExplicitURL(t *testing.T) {
	a, _ := newTestAdapter(t, &memCreds{})
	a.discover = func(context.Context, string) (*mautrix.ClientWellKnown, error) {
		t.Fatal("discovery should be skipped for URLs")
		return nil, nil
	}
	got, err := a.ResolveHomeserver(context.Background(), "https://hs.example.org/")
	if err != nil || got != "https://hs.example.org" {
		t.Errorf("got %q, %v", got, err)
	}
}
