package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/matheus3301/mxt/internal/config"
)

func tokenServer(t *testing.T) (*httptest.Server, *url.Values) {
	t.Helper()
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		got = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "mat_token",
			"refresh_token": "refresh",
			"token_type":    "Bearer",
			"expires_in":    300,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func testFlow(t *testing.T, tokenURL string) *Flow {
	t.Helper()
	f, err := NewFlow(config.OIDC{
		ClientID:    "mxt-client",
		AuthURL:     "https://id.example.org/authorize",
		TokenURL:    tokenURL,
		RedirectURI: "io.mxt.app:/callback",
		Scopes:      []string{"openid"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func stateOf(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	if q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" {
		t.Errorf("auth URL %q lacks a PKCE challenge", authURL)
	}
	if q.Get("client_id") != "mxt-client" || q.Get("redirect_uri") != "io.mxt.app:/callback" {
		t.Errorf("auth URL %q has wrong client or redirect", authURL)
	}
	return q.Get("state")
}

func TestCompleteExchangesCode(t *testing.T) {
	srv, form := tokenServer(t)
	f := testFlow(t, srv.URL)

	state := stateOf(t, f.Start())
	if !f.Pending() {
		t.Fatal("Pending() = false after Start()")
	}

	tok, err := f.Complete(context.Background(), "io.mxt.app:/callback?code=abc&state="+state)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if tok.AccessToken != "mat_token" {
		t.Errorf("access token = %q", tok.AccessToken)
	}
	if form.Get("code") != "abc" || form.Get("code_verifier") == "" {
		t.Errorf("token request form = %v, want code and verifier", *form)
	}
	if f.Pending() {
		t.Error("flow still pending after completion")
	}
}

func TestCompleteErrors(t *testing.T) {
	srv, _ := tokenServer(t)
	ctx := context.Background()

	f := testFlow(t, srv.URL)
	if _, err := f.Complete(ctx, "io.mxt.app:/callback?code=abc&state=x"); !errors.Is(err, ErrNoPendingFlow) {
		t.Errorf("without Start: err = %v, want ErrNoPendingFlow", err)
	}

	state := stateOf(t, f.Start())
	if _, err := f.Complete(ctx, "io.mxt.app:/callback?code=abc&state=forged"); !errors.Is(err, ErrStateMismatch) {
		t.Errorf("forged state: err = %v, want ErrStateMismatch", err)
	}
	if !f.Pending() {
		t.Error("state mismatch must not consume the pending login")
	}
	if _, err := f.Complete(ctx, "io.mxt.app:/callback?state="+state); err == nil {
		t.Error("callback without code should fail")
	}

	f.Start()
	f.now = func() time.Time { return time.Now().Add(pendingTTL + time.Second) }
	if _, err := f.Complete(ctx, "io.mxt.app:/callback?code=abc&state=whatever"); !errors.Is(err, ErrNoPendingFlow) {
		t.Errorf("expired flow: err = %v, want ErrNoPendingFlow", err)
	}
}

func TestNewFlowRequiresConfig(t *testing.T) {
	if _, err := NewFlow(config.OIDC{ClientID: "x"}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}
