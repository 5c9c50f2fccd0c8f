package intent

import (
	"go.uber.org/zap"
)

// Config holds the link formats the resolver recognises.
type Config struct {
	DeepLinkScheme  string
	OIDCRedirectURI string
	PermalinkHosts  []string
	LoginLinkHost   string
}

// Resolver classifies intents. It holds no state beyond its configuration.
type Resolver struct {
	cfg    Config
	logger *zap.Logger
}

// NewResolver creates a resolver.
func NewResolver(cfg Config, logger *zap.Logger) *Resolver {
	if cfg.DeepLinkScheme == "" {
		cfg.DeepLinkScheme = "mxt"
	}
	return &Resolver{cfg: cfg, logger: logger}
}

// Resolve returns the first matching interpretation of in, or nil.
// Checks run in order: launcher, deep link, OIDC callback, permalink,
// login link, share.
func (r *Resolver) Resolve(in Intent) ResolvedIntent {
	if in.Action == ActionMain && in.HasCategory(CategoryLauncher) {
		return nil
	}

	if in.Action == ActionView && in.Data != "" {
		if link, ok := ParseDeepLink(r.cfg.DeepLinkScheme, in.Data); ok {
			return Navigation{DeepLink: link}
		}
		if action, ok := ParseOidcCallback(r.cfg.OIDCRedirectURI, in.Data); ok {
			return Oidc{Action: action}
		}
		switch link := ParsePermalink(in.Data, r.cfg.PermalinkHosts).(type) {
		case RoomLink, UserLink:
			return Permalink{Link: link}
		}
		if params, ok := ParseLoginLink(r.cfg.LoginLinkHost, in.Data); ok {
			return Login{Params: params}
		}
	}

	if in.Action == ActionSend || in.Action == ActionSendMultiple {
		return IncomingShare{Intent: in}
	}

	r.logger.Debug("unresolved intent", zap.String("action", in.Action), zap.String("data", in.Data))
	return nil
}
