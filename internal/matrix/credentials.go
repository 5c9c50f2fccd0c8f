package matrix

import "context"

// Credentials identify a logged-in device on a homeserver.
type Credentials struct {
	Homeserver  string
	UserID      string
	DeviceID    string
	AccessToken string
}

// CredentialStore persists the credentials of one session.
// LoadCredentials returns nil, nil when the session never logged in.
type CredentialStore interface {
	LoadCredentials(ctx context.Context) (*Credentials, error)
	SaveCredentials(ctx context.Context, c *Credentials) error
	ClearCredentials(ctx context.Context) error
}
