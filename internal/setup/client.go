// Package setup builds SDK clients for the binaries from environment
// configuration.
package setup

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/patrickwarner/decisionsdk/internal/config"
	"github.com/patrickwarner/decisionsdk/internal/observability"
	"github.com/patrickwarner/decisionsdk/sdk"
	"github.com/patrickwarner/decisionsdk/sdk/identity"
)

// SDKConfig maps the environment configuration onto client defaults.
func SDKConfig(cfg config.Config) sdk.Config {
	return sdk.Config{
		NetworkID: cfg.NetworkID,
		SiteID:    cfg.SiteID,
		Host:      cfg.DecisionHost,
		Timeout:   cfg.DecisionTimeout,
		UserAgent: cfg.UserAgent,
	}
}

// IdentityStore opens the backend named by cfg.IdentityBackend. The returned
// cleanup releases it and is never nil.
func IdentityStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (sdk.IdentityStore, func(), error) {
	switch cfg.IdentityBackend {
	case "", config.IdentityMemory:
		return identity.NewMemoryStore(), func() {}, nil
	case config.IdentityFile:
		logger.Info("using file identity store", zap.String("path", cfg.IdentityFile))
		return identity.NewFileStore(cfg.IdentityFile), func() {}, nil
	case config.IdentityRedis:
		store, err := identity.InitRedis(ctx, cfg.RedisAddr, cfg.IdentityNamespace, cfg.IdentityTTL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown identity backend %q", cfg.IdentityBackend)
	}
}

// NewClient builds a client with the configured identity backend, the given
// logger and metrics. Call the returned cleanup once the client is done.
func NewClient(ctx context.Context, cfg config.Config, logger *zap.Logger, metrics observability.MetricsRegistry, opts ...sdk.Option) (*sdk.Client, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store, closeStore, err := IdentityStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("identity store: %w", err)
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}

	base := []sdk.Option{
		sdk.WithIdentityStore(store),
		sdk.WithLogger(logger.Named("sdk")),
		sdk.WithMetrics(metrics),
	}
	client, err := sdk.New(SDKConfig(cfg), append(base, opts...)...)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return client, func() {
		client.Close()
		closeStore()
	}, nil
}
