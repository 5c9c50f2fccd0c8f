package sync

import (
	"context"
	"fmt"

	"github.com/matheus3301/mxt/internal/matrix"
	"github.com/matheus3301/mxt/internal/store"
	"go.uber.org/zap"
	"maunium.net/go/mautrix/id"
)

// sync_state keys.
const (
	KeyNextBatch    = "next_batch"
	keyFilterPrefix = "filter_id:"
	keyHomeserver   = "homeserver"
	keyUserID       = "user_id"
	keyDeviceID     = "device_id"
	keyAccessToken  = "access_token"
)

// Reconciler keeps the session's sync checkpoints and credentials in the
// sync_state table. It implements mautrix.SyncStore and
// matrix.CredentialStore.
type Reconciler struct {
	db     *store.DB
	logger *zap.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(db *store.DB, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{db: db, logger: logger}
}

// SaveFilterID stores the server-side filter id of a user.
func (r *Reconciler) SaveFilterID(_ context.Context, userID id.UserID, filterID string) error {
	return r.db.SetCheckpoint(keyFilterPrefix+string(userID), filterID)
}

// LoadFilterID returns the stored filter id, or "".
func (r *Reconciler) LoadFilterID(_ context.Context, userID id.UserID) (string, error) {
	return r.db.Checkpoint(keyFilterPrefix + string(userID))
}

// SaveNextBatch is a no-op: Engine.IngestSync commits the token in the same
// transaction as the batch it belongs to.
func (r *Reconciler) SaveNextBatch(_ context.Context, _ id.UserID, token string) error {
	r.logger.Debug("next batch received", zap.String("token", token))
	return nil
}

// LoadNextBatch returns the token of the last ingested batch, or "" for an
// initial sync.
func (r *Reconciler) LoadNextBatch(_ context.Context, _ id.UserID) (string, error) {
	return r.db.Checkpoint(KeyNextBatch)
}

// LoadCredentials returns the stored login, or nil when there is none.
func (r *Reconciler) LoadCredentials(_ context.Context) (*matrix.Credentials, error) {
	var c matrix.Credentials
	for key, dst := range map[string]*string{
		keyHomeserver:  &c.Homeserver,
		keyUserID:      &c.UserID,
		keyDeviceID:    &c.DeviceID,
		keyAccessToken: &c.AccessToken,
	} {
		v, err := r.db.Checkpoint(key)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", key, err)
		}
		*dst = v
	}
	if c.AccessToken == "" || c.Homeserver == "" {
		return nil, nil
	}
	return &c, nil
}

// SaveCredentials stores a login. A different account than the stored one
// starts over with an initial sync.
func (r *Reconciler) SaveCredentials(ctx context.Context, c *matrix.Credentials) error {
	return r.db.WithTx(ctx, func(tx *store.Tx) error {
		prev, err := tx.Checkpoint(keyUserID)
		if err != nil {
			return err
		}
		if prev != "" && prev != c.UserID {
			if err := tx.DeleteCheckpoints(KeyNextBatch); err != nil {
				return err
			}
		}
		for key, v := range map[string]string{
			keyHomeserver:  c.Homeserver,
			keyUserID:      c.UserID,
			keyDeviceID:    c.DeviceID,
			keyAccessToken: c.AccessToken,
		} {
			if err := tx.SetCheckpoint(key, v); err != nil {
				return fmt.Errorf("save %s: %w", key, err)
			}
		}
		return nil
	})
}

// ClearCredentials forgets the access token and the sync position.
func (r *Reconciler) ClearCredentials(ctx context.Context) error {
	return r.db.WithTx(ctx, func(tx *store.Tx) error {
		return tx.DeleteCheckpoints(keyAccessToken, keyDeviceID, KeyNextBatch)
	})
}
