package sdk

import (
	"context"

	"go.uber.org/zap"
)

// IdentityStore persists the opaque user key shared by decision and profile
// calls. Implementations live in package identity.
//
// Token returns "" with a nil error when nothing is stored. Save replaces the
// stored key unconditionally. Both may be called concurrently.
type IdentityStore interface {
	Token(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
}

// persistUserKey stores a key returned by the engine. Failures are logged and
// never change the outcome of the call that produced the key.
func persistUserKey(ctx context.Context, store IdentityStore, key string, logger *zap.Logger, metrics Metrics) {
	if store == nil {
		return
	}
	if err := store.Save(ctx, key); err != nil {
		logger.Warn("identity store write failed", zap.Error(err))
		return
	}
	metrics.IncrementIdentityWrites()
}
