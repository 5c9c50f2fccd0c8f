package matrix

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/matheus3301/mxt/internal/bus"
	"github.com/matheus3301/mxt/internal/status"
	"go.uber.org/zap"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

const (
	// degradedAfter is the number of consecutive sync failures after which
	// the session is reported as degraded instead of reconnecting.
	degradedAfter = 5
	maxBackoff    = 30 * time.Second
)

// SyncFailure is the payload of bus.KindSyncFailed.
type SyncFailure struct {
	Err     string
	Attempt int
}

// EventHandler receives /sync results, drives the state machine, and
// publishes parsed batches on the bus. It does NOT write to the store; the
// sync engine subscribes to the bus independently.
type EventHandler struct {
	bus      *bus.Bus
	machine  *status.Machine
	logger   *zap.Logger
	parser   atomic.Pointer[Parser]
	failures atomic.Int32
}

// NewEventHandler creates a new event handler.
func NewEventHandler(b *bus.Bus, machine *status.Machine, logger *zap.Logger) *EventHandler {
	h := &EventHandler{
		bus:     b,
		machine: machine,
		logger:  logger,
	}
	h.parser.Store(NewParser(""))
	return h
}

// SetUser sets the account whose events count as "mine".
func (h *EventHandler) SetUser(userID id.UserID) {
	h.parser.Store(NewParser(userID))
}

// Connecting marks the start of a sync loop.
func (h *EventHandler) Connecting() {
	h.failures.Store(0)
	if h.machine.Is(status.Booting, status.AuthRequired, status.Reconnecting, status.Degraded) {
		_ = h.machine.Transition(status.Connecting)
	}
}

// HandleSync is registered as the syncer's OnSync callback.
func (h *EventHandler) HandleSync(_ context.Context, resp *mautrix.RespSync, since string) bool {
	recovered := h.failures.Swap(0) > 0
	if h.machine.Is(status.Connecting, status.Reconnecting) {
		_ = h.machine.Transition(status.Syncing)
	}

	batch := h.parser.Load().ParseSync(resp, since)
	h.bus.Emit(bus.KindSyncBatch, batch)
	if recovered {
		h.logger.Info("sync recovered")
		h.bus.Emit(bus.KindSyncConnected, nil)
	}

	if h.machine.Is(status.Syncing, status.Degraded) {
		_ = h.machine.Transition(status.Ready)
	}
	return true
}

// HandleFailure decides how the sync loop reacts to a failed request.
// An invalidated access token stops the loop and requires a new login.
func (h *EventHandler) HandleFailure(err error) (time.Duration, error) {
	if errors.Is(err, context.Canceled) {
		return 0, err
	}
	if errors.Is(err, mautrix.MUnknownToken) {
		h.logger.Warn("access token rejected", zap.Error(err))
		_ = h.machine.Transition(status.AuthRequired)
		h.bus.Emit(bus.KindLoggedOut, err.Error())
		return 0, err
	}

	n := int(h.failures.Add(1))
	h.logger.Warn("sync failed", zap.Error(err), zap.Int("attempt", n))
	if n >= degradedAfter {
		_ = h.machine.Advance(status.Degraded)
	} else if !h.machine.Is(status.Degraded) {
		_ = h.machine.Advance(status.Reconnecting)
	}
	h.bus.Emit(bus.KindSyncFailed, SyncFailure{Err: err.Error(), Attempt: n})
	return backoff(n), nil
}

func backoff(attempt int) time.Duration {
	if attempt > 6 {
		return maxBackoff
	}
	return min(time.Second<<(attempt-1), maxBackoff)
}

// syncer routes mautrix sync callbacks through an EventHandler.
type syncer struct {
	*mautrix.DefaultSyncer
	handler *EventHandler
}

func newSyncer(h *EventHandler) *syncer {
	s := &syncer{DefaultSyncer: mautrix.NewDefaultSyncer(), handler: h}
	s.OnSync(h.HandleSync)
	return s
}

func (s *syncer) OnFailedSync(_ *mautrix.RespSync, err error) (time.Duration, error) {
	return s.handler.HandleFailure(err)
}
