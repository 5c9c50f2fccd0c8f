// Package navigation turns resolved intents into destinations: it opens
// rooms, joins rooms from permalinks, completes OIDC logins, prefills the
// login screen, and queues shared text.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matheus3301/mxt/internal/intent"
	"github.com/matheus3301/mxt/internal/matrix"
	"github.com/matheus3301/mxt/internal/outbox"
	"github.com/matheus3301/mxt/internal/store"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var (
	// ErrUnknownSession is returned for deep links into a session that does not exist.
	ErrUnknownSession = errors.New("unknown session")
	// ErrUnsupportedLink is returned for links that are not Matrix permalinks.
	ErrUnsupportedLink = errors.New("unsupported link")
	// ErrOIDCUnavailable is returned for OIDC callbacks when no flow is configured.
	ErrOIDCUnavailable = errors.New("oidc login is not configured")
)

// Screen names where the UI should go.
type Screen string

const (
	ScreenHome    Screen = "home"
	ScreenRoom    Screen = "room"
	ScreenInvites Screen = "invites"
	ScreenUser    Screen = "user"
	ScreenLogin   Screen = "login"
	ScreenShare   Screen = "share"
	ScreenSession Screen = "session"
)

// Destination is the outcome of routing an intent.
type Destination struct {
	Screen          Screen `json:"screen"`
	SessionID       string `json:"session_id,omitempty"`
	RoomID          string `json:"room_id,omitempty"`
	ThreadID        string `json:"thread_id,omitempty"`
	EventID         string `json:"event_id,omitempty"`
	UserID          string `json:"user_id,omitempty"`
	AccountProvider string `json:"account_provider,omitempty"`
	LoginHint       string `json:"login_hint,omitempty"`
	Text            string `json:"text,omitempty"`
	Message         string `json:"message,omitempty"`
}

// Rooms looks up rooms in the local read-model.
type Rooms interface {
	GetRoom(roomID string) (*store.Room, error)
	FindRoomByAlias(alias string) (string, error)
}

// Joiner joins rooms on the homeserver.
type Joiner interface {
	JoinRoom(ctx context.Context, roomIDOrAlias string, via []string) (string, error)
}

// OIDC completes or abandons a pending OIDC login.
type OIDC interface {
	Complete(ctx context.Context, callbackURL string) (*oauth2.Token, error)
	Cancel()
}

// Authenticator logs in with an access token.
type Authenticator interface {
	ResolveHomeserver(ctx context.Context, server string) (string, error)
	LoginToken(ctx context.Context, homeserver, accessToken string) (*matrix.Credentials, error)
}

// Sharer queues outgoing messages.
type Sharer interface {
	Enqueue(ctx context.Context, d outbox.Draft) (*store.OutboxEntry, error)
}

// Deps are the collaborators of a Router. OIDC may be nil when OIDC login
// is not configured.
type Deps struct {
	Session    string
	Sessions   func() ([]string, error)
	Rooms      Rooms
	Joiner     Joiner
	OIDC       OIDC
	Auth       Authenticator
	Sharer     Sharer
	Homeserver string
	Markdown   bool
	// AfterLogin runs once an OIDC login succeeded, typically to start syncing.
	AfterLogin func(ctx context.Context) error
}

// Router consumes resolved intents for one session.
type Router struct {
	deps   Deps
	logger *zap.Logger
}

// NewRouter creates a router.
func NewRouter(deps Deps, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{deps: deps, logger: logger}
}

// Route acts on a resolved intent. A nil intent leads home.
func (r *Router) Route(ctx context.Context, resolved intent.ResolvedIntent) (Destination, error) {
	switch v := resolved.(type) {
	case nil:
		return r.home(), nil
	case intent.Navigation:
		return r.deepLink(v.DeepLink)
	case intent.Oidc:
		return r.oidc(ctx, v.Action)
	case intent.Permalink:
		return r.permalink(ctx, v.Link)
	case intent.Login:
		return Destination{
			Screen:          ScreenLogin,
			SessionID:       r.deps.Session,
			AccountProvider: v.Params.AccountProvider,
			LoginHint:       v.Params.LoginHint,
		}, nil
	case intent.IncomingShare:
		return r.share(ctx, v.Intent)
	}
	return Destination{}, fmt.Errorf("unhandled intent %T", resolved)
}

func (r *Router) home() Destination {
	return Destination{Screen: ScreenHome, SessionID: r.deps.Session}
}

func (r *Router) deepLink(link intent.DeepLink) (Destination, error) {
	if sid := link.Session(); sid != r.deps.Session {
		if !r.sessionExists(sid) {
			return Destination{}, fmt.Errorf("%w: %s", ErrUnknownSession, sid)
		}
		// The daemon serves one session; the UI reconnects to the other one.
		return Destination{Screen: ScreenSession, SessionID: sid}, nil
	}

	switch l := link.(type) {
	case intent.Root:
		return r.home(), nil
	case intent.InviteList:
		return Destination{Screen: ScreenInvites, SessionID: l.SessionID}, nil
	case intent.Room:
		return Destination{
			Screen:    ScreenRoom,
			SessionID: l.SessionID,
			RoomID:    l.RoomID,
			ThreadID:  l.ThreadID,
			EventID:   l.EventID,
		}, nil
	}
	return Destination{}, fmt.Errorf("unhandled deep link %T", link)
}

func (r *Router) sessionExists(name string) bool {
	if r.deps.Sessions == nil {
		return false
	}
	names, err := r.deps.Sessions()
	if err != nil {
		r.logger.Warn("failed to list sessions", zap.Error(err))
		return false
	}
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func (r *Router) oidc(ctx context.Context, action intent.OidcAction) (Destination, error) {
	if r.deps.OIDC == nil {
		return Destination{}, ErrOIDCUnavailable
	}
	login := Destination{Screen: ScreenLogin, SessionID: r.deps.Session}

	switch a := action.(type) {
	case intent.GoBack:
		r.deps.OIDC.Cancel()
		login.Message = "Login cancelled"
		return login, nil
	case intent.Failure:
		r.deps.OIDC.Cancel()
		login.Message = "Login failed: " + a.Error
		if a.Description != "" {
			login.Message += " (" + a.Description + ")"
		}
		return login, nil
	case intent.Success:
		token, err := r.deps.OIDC.Complete(ctx, a.URL)
		if err != nil {
			return Destination{}, err
		}
		homeserver, err := r.deps.Auth.ResolveHomeserver(ctx, r.deps.Homeserver)
		if err != nil {
			return Destination{}, err
		}
		creds, err := r.deps.Auth.LoginToken(ctx, homeserver, token.AccessToken)
		if err != nil {
			return Destination{}, err
		}
		r.logger.Info("oidc login completed", zap.String("user_id", creds.UserID))
		if r.deps.AfterLogin != nil {
			if err := r.deps.AfterLogin(ctx); err != nil {
				return Destination{}, fmt.Errorf("after login: %w", err)
			}
		}
		dest := r.home()
		dest.UserID = creds.UserID
		return dest, nil
	}
	return Destination{}, fmt.Errorf("unhandled oidc action %T", action)
}

func (r *Router) permalink(ctx context.Context, link intent.PermalinkData) (Destination, error) {
	switch l := link.(type) {
	case intent.UserLink:
		return Destination{Screen: ScreenUser, SessionID: r.deps.Session, UserID: l.UserID}, nil
	case intent.RoomLink:
		roomID, err := r.knownRoom(l.RoomIDOrAlias)
		if err != nil {
			return Destination{}, err
		}
		if roomID == "" {
			roomID, err = r.deps.Joiner.JoinRoom(ctx, l.RoomIDOrAlias, l.Via)
			if err != nil {
				return Destination{}, err
			}
			r.logger.Info("joined room from permalink", zap.String("room_id", roomID))
		}
		return Destination{Screen: ScreenRoom, SessionID: r.deps.Session, RoomID: roomID, EventID: l.EventID}, nil
	case intent.FallbackLink:
		return Destination{}, fmt.Errorf("%w: %s", ErrUnsupportedLink, l.URL)
	}
	return Destination{}, fmt.Errorf("unhandled permalink %T", link)
}

// knownRoom returns the id of a room the user has already joined, or "".
func (r *Router) knownRoom(idOrAlias string) (string, error) {
	roomID := idOrAlias
	if strings.HasPrefix(idOrAlias, "#") {
		id, err := r.deps.Rooms.FindRoomByAlias(idOrAlias)
		if err != nil || id == "" {
			return "", err
		}
		roomID = id
	}
	room, err := r.deps.Rooms.GetRoom(roomID)
	if err != nil {
		return "", err
	}
	if room == nil || room.Membership != store.MembershipJoin {
		return "", nil
	}
	return room.ID, nil
}

func (r *Router) share(ctx context.Context, in intent.Intent) (Destination, error) {
	text := in.Extras[intent.ExtraText]
	if text == "" {
		text = in.Data
	}
	roomID := in.Extras[intent.ExtraRoomID]
	if roomID == "" {
		return Destination{Screen: ScreenShare, SessionID: r.deps.Session, Text: text}, nil
	}
	if _, err := r.deps.Sharer.Enqueue(ctx, outbox.Draft{RoomID: roomID, Body: text, Markdown: r.deps.Markdown}); err != nil {
		return Destination{}, err
	}
	return Destination{Screen: ScreenRoom, SessionID: r.deps.Session, RoomID: roomID, Message: "Shared"}, nil
}
