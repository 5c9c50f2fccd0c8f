// Package intent classifies inbound navigation requests (deep links, OIDC
// callbacks, permalinks, login links, shares) into resolved intents that the
// navigation router acts on.
package intent

// Intent is an inbound navigation request, shaped like a platform intent.
type Intent struct {
	Action     string            `json:"action"`
	Data       string            `json:"data,omitempty"`
	MimeType   string            `json:"mime_type,omitempty"`
	Categories []string          `json:"categories,omitempty"`
	Extras     map[string]string `json:"extras,omitempty"`
}

// Actions and categories understood by the resolver.
const (
	ActionMain         = "main"
	ActionView         = "view"
	ActionSend         = "send"
	ActionSendMultiple = "send_multiple"

	CategoryLauncher = "launcher"
)

// Well-known extras.
const (
	ExtraText   = "text"
	ExtraRoomID = "room_id"
)

// Launcher returns the intent a plain start of the app produces.
func Launcher() Intent {
	return Intent{Action: ActionMain, Categories: []string{CategoryLauncher}}
}

// View returns an intent opening uri.
func View(uri string) Intent {
	return Intent{Action: ActionView, Data: uri}
}

// HasCategory reports whether the intent carries category c.
func (in Intent) HasCategory(c string) bool {
	for _, got := range in.Categories {
		if got == c {
			return true
		}
	}
	return false
}

// ResolvedIntent is one of Navigation, Oidc, Permalink, Login or IncomingShare.
type ResolvedIntent interface {
	isResolved()
}

// Navigation opens a screen addressed by a deep link.
type Navigation struct {
	DeepLink DeepLink
}

// Oidc carries the outcome of an OIDC authorization redirect.
type Oidc struct {
	Action OidcAction
}

// Permalink opens a matrix.to style link to a room, event or user.
type Permalink struct {
	Link PermalinkData
}

// Login prefills the login screen.
type Login struct {
	Params LoginParams
}

// IncomingShare hands shared content to the share flow.
type IncomingShare struct {
	Intent Intent
}

func (Navigation) isResolved()    {}
func (Oidc) isResolved()          {}
func (Permalink) isResolved()     {}
func (Login) isResolved()         {}
func (IncomingShare) isResolved() {}

// DeepLink is one of Root, Room or InviteList.
type DeepLink interface {
	Session() string
	isDeepLink()
}

// Root opens a session's home screen.
type Root struct {
	SessionID string
}

// Room opens a room, optionally inside a thread and focused on an event.
type Room struct {
	SessionID string
	RoomID    string
	ThreadID  string
	EventID   string
}

// InviteList opens a session's pending invites.
type InviteList struct {
	SessionID string
}

func (d Root) Session() string       { return d.SessionID }
func (d Room) Session() string       { return d.SessionID }
func (d InviteList) Session() string { return d.SessionID }
func (Root) isDeepLink()             {}
func (Room) isDeepLink()             {}
func (InviteList) isDeepLink()       {}

// OidcAction is one of GoBack, Success or Failure.
type OidcAction interface {
	isOidcAction()
}

// GoBack means the user cancelled at the provider.
type GoBack struct{}

// Success carries the full callback URL, including code and state.
type Success struct {
	URL string
}

// Failure carries a provider error other than access_denied.
type Failure struct {
	Error       string
	Description string
}

func (GoBack) isOidcAction()  {}
func (Success) isOidcAction() {}
func (Failure) isOidcAction() {}

// PermalinkData is one of RoomLink, UserLink or FallbackLink.
type PermalinkData interface {
	isPermalink()
}

// RoomLink points at a room by id or alias, optionally at an event in it.
type RoomLink struct {
	RoomIDOrAlias string
	EventID       string
	Via           []string
}

// UserLink points at a user.
type UserLink struct {
	UserID string
}

// FallbackLink is a URL that is not a Matrix permalink.
type FallbackLink struct {
	URL string
}

func (RoomLink) isPermalink()     {}
func (UserLink) isPermalink()     {}
func (FallbackLink) isPermalink() {}

// LoginParams prefill the login screen from a login link.
type LoginParams struct {
	AccountProvider string
	LoginHint       string
}
