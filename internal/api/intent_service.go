package api

import (
	"context"

	"github.com/matheus3301/mxt/internal/intent"
	"github.com/matheus3301/mxt/internal/navigation"
	"github.com/matheus3301/mxt/internal/rpc"
	"go.uber.org/zap"
)

// IntentService implements rpc.IntentServer: it resolves incoming intents
// and acts on them.
type IntentService struct {
	resolver *intent.Resolver
	router   *navigation.Router
	logger   *zap.Logger
}

// NewIntentService creates an intent service.
func NewIntentService(resolver *intent.Resolver, router *navigation.Router, logger *zap.Logger) *IntentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntentService{resolver: resolver, router: router, logger: logger}
}

func (s *IntentService) Open(ctx context.Context, req *rpc.OpenRequest) (*rpc.OpenResponse, error) {
	in := intent.Launcher()
	switch {
	case req.URI != "":
		in = intent.View(req.URI)
	case req.Intent != nil:
		in = *req.Intent
	}

	resolved := s.resolver.Resolve(in)
	dest, err := s.router.Route(ctx, resolved)
	if err != nil {
		s.logger.Info("intent not routed", zap.String("action", in.Action), zap.Error(err))
		return nil, toStatus("open", err)
	}
	return &rpc.OpenResponse{Destination: dest}, nil
}
