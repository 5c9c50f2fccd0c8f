// Package oidc runs the authorization-code flow with PKCE used for native
// Matrix OIDC login. The callback arrives later as a resolved intent.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/mxt/internal/config"
	"golang.org/x/oauth2"
)

var (
	// ErrNoPendingFlow is returned when a callback arrives without a started flow.
	ErrNoPendingFlow = errors.New("oidc: no pending login")
	// ErrStateMismatch is returned when the callback state does not match the flow.
	ErrStateMismatch = errors.New("oidc: state mismatch")
	// ErrNotConfigured is returned when client id or endpoints are missing.
	ErrNotConfigured = errors.New("oidc: not configured")
)

// pendingTTL bounds how long a started login waits for its callback.
const pendingTTL = 10 * time.Minute

type pending struct {
	state     string
	verifier  string
	startedAt time.Time
}

// Flow holds at most one in-progress login.
type Flow struct {
	mu      sync.Mutex
	oauth   *oauth2.Config
	pending *pending
	now     func() time.Time
}

// NewFlow creates a flow from configuration.
func NewFlow(cfg config.OIDC) (*Flow, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	return &Flow{
		oauth: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURI,
			Scopes:      cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		now: time.Now,
	}, nil
}

// Start begins a login and returns the URL to open in a browser. Starting
// again replaces any previous pending login.
func (f *Flow) Start() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := &pending{
		state:     uuid.NewString(),
		verifier:  oauth2.GenerateVerifier(),
		startedAt: f.now(),
	}
	f.pending = p
	return f.oauth.AuthCodeURL(p.state, oauth2.S256ChallengeOption(p.verifier))
}

// Pending reports whether a login is waiting for its callback.
func (f *Flow) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending != nil && f.now().Sub(f.pending.startedAt) < pendingTTL
}

// Cancel forgets the pending login.
func (f *Flow) Cancel() {
	f.mu.Lock()
	f.pending = nil
	f.mu.Unlock()
}

// Complete validates the callback URL against the pending login and
// exchanges its code for a token. The pending login is consumed whether or
// not the exchange succeeds, except on state mismatch.
func (f *Flow) Complete(ctx context.Context, callbackURL string) (*oauth2.Token, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return nil, fmt.Errorf("oidc: parse callback: %w", err)
	}
	q := u.Query()

	f.mu.Lock()
	p := f.pending
	if p == nil || f.now().Sub(p.startedAt) >= pendingTTL {
		f.pending = nil
		f.mu.Unlock()
		return nil, ErrNoPendingFlow
	}
	if q.Get("state") != p.state {
		f.mu.Unlock()
		return nil, ErrStateMismatch
	}
	f.pending = nil
	f.mu.Unlock()

	code := q.Get("code")
	if code == "" {
		return nil, fmt.Errorf("oidc: callback without code")
	}
	token, err := f.oauth.Exchange(ctx, code, oauth2.VerifierOption(p.verifier))
	if err != nil {
		return nil, fmt.Errorf("oidc: exchange code: %w", err)
	}
	return token, nil
}
