package api

import (
	"context"
	"errors"

	"github.com/matheus3301/mxt/internal/matrix"
	"github.com/matheus3301/mxt/internal/navigation"
	"github.com/matheus3301/mxt/internal/oidc"
	"github.com/matheus3301/mxt/internal/outbox"
	"github.com/matheus3301/mxt/internal/store"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"maunium.net/go/mautrix"
)

// toStatus converts a domain error into a gRPC status error.
func toStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := grpcstatus.FromError(err); ok {
		return err
	}
	return grpcstatus.Errorf(codeOf(err), "%s: %v", op, err)
}

func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, matrix.ErrNotLoggedIn),
		errors.Is(err, oidc.ErrNoPendingFlow),
		errors.Is(err, oidc.ErrNotConfigured),
		errors.Is(err, navigation.ErrOIDCUnavailable),
		errors.Is(err, store.ErrNotRetryable):
		return codes.FailedPrecondition
	case errors.Is(err, navigation.ErrUnknownSession):
		return codes.NotFound
	case errors.Is(err, outbox.ErrEmptyMessage),
		errors.Is(err, navigation.ErrUnsupportedLink),
		errors.Is(err, oidc.ErrStateMismatch):
		return codes.InvalidArgument
	case errors.Is(err, mautrix.MForbidden), errors.Is(err, mautrix.MUnknownToken):
		return codes.PermissionDenied
	case errors.Is(err, mautrix.MNotFound):
		return codes.NotFound
	case errors.Is(err, mautrix.MLimitExceeded):
		return codes.ResourceExhausted
	}
	var httpErr mautrix.HTTPError
	if errors.As(err, &httpErr) && httpErr.Response == nil {
		return codes.Unavailable
	}
	return codes.Internal
}
