package matrix

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/mxt/internal/bus"
	"github.com/matheus3301/mxt/internal/status"
	"go.uber.org/zap"
	"maunium.net/go/mautrix"
)

// walkTo transitions the machine through the given states sequentially.
func walkTo(t *testing.T, m *status.Machine, states ...status.State) {
	t.Helper()
	for _, s := range states {
		if err := m.Transition(s); err != nil {
			t.Fatalf("transition to %s failed: %v", s, err)
		}
	}
}

func emptySync() *mautrix.RespSync {
	return &mautrix.RespSync{NextBatch: "s1"}
}

func TestHandleSyncFromConnecting(t *testing.T) {
	b := bus.New()
	m := status.NewMachine(b)
	h := NewEventHandler(b, m, zap.NewNop())

	walkTo(t, m, status.Connecting)

	ch, unsub := b.Subscribe(bus.NamespaceMatrix, 10)
	defer unsub()

	if !h.HandleSync(context.Background(), emptySync(), "") {
		t.Fatal("HandleSync returned false")
	}
	if m.Current() != status.Ready {
		t.Errorf("state = %s, want READY", m.Current())
	}

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindSyncBatch {
			t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindSyncBatch)
		}
		batch, ok := evt.Payload.(*SyncBatch)
		if !ok {
			t.Fatalf("payload type = %T", evt.Payload)
		}
		if !batch.Initial() || batch.NextBatch != "s1" {
			t.Errorf("batch = %+v", batch)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for sync batch")
	}
}

func TestConnectingFromAuthRequired(t *testing.T) {
	b := bus.New()
	m := status.NewMachine(b)
	h := NewEventHandler(b, m, zap.NewNop())

	walkTo(t, m, status.AuthRequired)
	h.Connecting()

	if m.Current() != status.Connecting {
		t.Errorf("state = %s, want CONNECTING", m.Current())
	}
}

func TestHandleFailureReconnectsThenRecovers(t *testing.T) {
	b := bus.New()
	m := status.NewMachine(b)
	h := NewEventHandler(b, m, zap.NewNop())

	walkTo(t, m, status.Connecting, status.Syncing, status.Ready)

	ch, unsub := b.Subscribe(bus.NamespaceSync, 10)
	defer unsub()

	wait, err := h.HandleFailure(errors.New("connection refused"))
	if err != nil {
		t.Fatalf("HandleFailure returned error: %v", err)
	}
	if wait != time.Second {
		t.Errorf("first backoff = %v, want 1s", wait)
	}
	if m.Current() != status.Reconnecting {
		t.Errorf("state = %s, want RECONNECTING", m.Current())
	}

	h.HandleSync(context.Background(), emptySync(), "s0")
	if m.Current() != status.Ready {
		t.Errorf("state after recovery = %s, want READY", m.Current())
	}

	var kinds []string
	timeout := time.After(time.Second)
	for len(kinds) < 2 {
		select {
		case evt := <-ch:
			kinds = append(kinds, evt.Kind)
		case <-timeout:
			t.Fatalf("timeout, got %v", kinds)
		}
	}
	if kinds[0] != bus.KindSyncFailed || kinds[1] != bus.KindSyncConnected {
		t.Errorf("kinds = %v, want [%s %s]", kinds, bus.KindSyncFailed, bus.KindSyncConnected)
	}
}

func TestHandleFailureDegrades(t *testing.T) {
	b := bus.New()
	m := status.NewMachine(b)
	h := NewEventHandler(b, m, zap.NewNop())

	walkTo(t, m, status.Connecting)

	for range degradedAfter {
		if _, err := h.HandleFailure(errors.New("timeout")); err != nil {
			t.Fatalf("HandleFailure: %v", err)
		}
	}
	if m.Current() != status.Degraded {
		t.Errorf("state = %s, want DEGRADED", m.Current())
	}

	h.HandleSync(context.Background(), emptySync(), "s0")
	if m.Current() != status.Ready {
		t.Errorf("state = %s, want READY", m.Current())
	}
}

func TestHandleFailureUnknownToken(t *testing.T) {
	b := bus.New()
	m := status.NewMachine(b)
	h := NewEventHandler(b, m, zap.NewNop())

	walkTo(t, m, status.Connecting, status.Syncing, status.Ready)

	ch, unsub := b.Subscribe(bus.NamespaceSession, 10)
	defer unsub()

	_, err := h.HandleFailure(mautrix.MUnknownToken)
	if err == nil {
		t.Fatal("expected the sync loop to stop")
	}
	if m.Current() != status.AuthRequired {
		t.Errorf("state = %s, want AUTH_REQUIRED", m.Current())
	}

	timeout := time.After(time.Second)
	for {
		select {
		case evt := <-ch:
			if evt.Kind == bus.KindLoggedOut {
				return
			}
		case <-timeout:
			t.Fatal("timeout waiting for logged out event")
		}
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{5, 16 * time.Second},
		{6, maxBackoff},
		{40, maxBackoff},
	}
	for _, tt := range tests {
		if got := backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
