package matrix

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/mxt/internal/bus"
	"go.uber.org/zap"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

const discoveryAttempts = 3

// ResolveHomeserver turns a server name or full user id into a client API
// base URL. Explicit http(s) URLs are returned unchanged.
func (a *Adapter) ResolveHomeserver(ctx context.Context, server string) (string, error) {
	server = strings.TrimSpace(server)
	if strings.HasPrefix(server, "https://") || strings.HasPrefix(server, "http://") {
		return strings.TrimSuffix(server, "/"), nil
	}
	if strings.HasPrefix(server, "@") {
		_, homeserver, err := id.UserID(server).Parse()
		if err != nil {
			return "", fmt.Errorf("parse user id: %w", err)
		}
		server = homeserver
	}
	if server == "" {
		return "", fmt.Errorf("no homeserver given")
	}
	return a.Discover(ctx, server)
}

// Discover looks up the client API base URL of serverName through
// .well-known, retrying transient failures a bounded number of times.
// A server without a .well-known file is assumed to serve the API itself.
func (a *Adapter) Discover(ctx context.Context, serverName string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= discoveryAttempts; attempt++ {
		wk, err := a.discover(ctx, serverName)
		if err == nil {
			if wk == nil || wk.Homeserver.BaseURL == "" {
				return "https://" + serverName, nil
			}
			return strings.TrimSuffix(wk.Homeserver.BaseURL, "/"), nil
		}
		lastErr = err
		a.logger.Debug("well-known discovery failed",
			zap.String("server", serverName), zap.Int("attempt", attempt), zap.Error(err))
		if attempt == discoveryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * a.retryDelay):
		}
	}
	return "", fmt.Errorf("discover %s: %w", serverName, lastErr)
}

// LoginPassword logs in with a user name and password and persists the
// resulting credentials.
func (a *Adapter) LoginPassword(ctx context.Context, homeserver, user, password string) (*Credentials, error) {
	client, err := mautrix.NewClient(homeserver, "", "")
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	resp, err := client.Login(ctx, &mautrix.ReqLogin{
		Type:                     mautrix.AuthTypePassword,
		Identifier:               mautrix.UserIdentifier{Type: mautrix.IdentifierTypeUser, User: user},
		Password:                 password,
		InitialDeviceDisplayName: a.opts.DeviceName,
	})
	if err != nil {
		a.bus.Emit(bus.KindAuthFailed, err.Error())
		return nil, fmt.Errorf("login: %w", err)
	}
	if resp.WellKnown != nil && resp.WellKnown.Homeserver.BaseURL != "" {
		homeserver = strings.TrimSuffix(resp.WellKnown.Homeserver.BaseURL, "/")
	}
	return a.finishLogin(ctx, &Credentials{
		Homeserver:  homeserver,
		UserID:      string(resp.UserID),
		DeviceID:    string(resp.DeviceID),
		AccessToken: resp.AccessToken,
	})
}

// LoginToken adopts an access token obtained elsewhere, such as through
// OIDC, resolving the user and device with whoami.
func (a *Adapter) LoginToken(ctx context.Context, homeserver, accessToken string) (*Credentials, error) {
	client, err := mautrix.NewClient(homeserver, "", accessToken)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	who, err := client.Whoami(ctx)
	if err != nil {
		a.bus.Emit(bus.KindAuthFailed, err.Error())
		return nil, fmt.Errorf("whoami: %w", err)
	}
	return a.finishLogin(ctx, &Credentials{
		Homeserver:  homeserver,
		UserID:      string(who.UserID),
		DeviceID:    string(who.DeviceID),
		AccessToken: accessToken,
	})
}

func (a *Adapter) finishLogin(ctx context.Context, c *Credentials) (*Credentials, error) {
	if err := a.creds.SaveCredentials(ctx, c); err != nil {
		return nil, fmt.Errorf("save credentials: %w", err)
	}
	a.mu.Lock()
	err := a.setClient(c)
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}
	a.logger.Info("logged in", zap.String("user_id", c.UserID), zap.String("device_id", c.DeviceID))
	a.bus.Emit(bus.KindLoggedIn, c.UserID)
	return c, nil
}

// Logout stops syncing, invalidates the access token on the server, and
// forgets the stored credentials. When the server call fails the local
// login is kept so the user can try again.
func (a *Adapter) Logout(ctx context.Context) error {
	client, err := a.current()
	if err != nil {
		return err
	}
	a.StopSync()
	if _, err := client.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if err := a.creds.ClearCredentials(ctx); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	a.mu.Lock()
	a.client = nil
	a.mu.Unlock()
	a.logger.Info("logged out")
	a.bus.Emit(bus.KindLoggedOut, "user request")
	return nil
}
