package setup

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/patrickwarner/decisionsdk/internal/config"
	"github.com/patrickwarner/decisionsdk/internal/engine"
	"github.com/patrickwarner/decisionsdk/sdk"
	"github.com/patrickwarner/decisionsdk/sdk/identity"
)

func TestIdentityStore_Backends(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	store, cleanup, err := IdentityStore(ctx, config.Config{IdentityBackend: config.IdentityMemory}, logger)
	require.NoError(t, err)
	cleanup()
	assert.IsType(t, &identity.MemoryStore{}, store)

	path := filepath.Join(t.TempDir(), "id.toml")
	store, cleanup, err = IdentityStore(ctx, config.Config{IdentityBackend: config.IdentityFile, IdentityFile: path}, logger)
	require.NoError(t, err)
	cleanup()
	assert.Equal(t, path, store.(*identity.FileStore).Path())

	mr := miniredis.RunT(t)
	store, cleanup, err = IdentityStore(ctx, config.Config{
		IdentityBackend:   config.IdentityRedis,
		RedisAddr:         mr.Addr(),
		IdentityNamespace: "web",
		IdentityTTL:       time.Hour,
	}, logger)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "u1"))
	got, err := mr.Get(identity.RedisKey("web"))
	require.NoError(t, err)
	assert.Equal(t, "u1", got)
	cleanup()

	_, _, err = IdentityStore(ctx, config.Config{IdentityBackend: "etcd"}, logger)
	assert.Error(t, err)
}

func TestNewClient_PersistsIssuedKeyToRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	srv := httptest.NewServer(engine.NewServer(nil, nil, 0).Router())
	t.Cleanup(srv.Close)

	cfg := config.Config{
		NetworkID:         9999,
		SiteID:            1,
		DecisionHost:      srv.URL,
		DecisionTimeout:   time.Second,
		IdentityBackend:   config.IdentityRedis,
		IdentityNamespace: "test",
		RedisAddr:         mr.Addr(),
	}
	client, cleanup, err := NewClient(ctx, cfg, zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	defer cleanup()

	out := client.Decide(ctx, []sdk.Placement{sdk.MustPlacement("div1", []int{5})}, nil)
	success, ok := out.(sdk.Success)
	require.True(t, ok, "got %T", out)

	stored, err := mr.Get(identity.RedisKey("test"))
	require.NoError(t, err)
	assert.Equal(t, success.Response.UserKey(), stored)
}

func TestNewClient_InvalidConfig(t *testing.T) {
	_, _, err := NewClient(context.Background(), config.Config{NetworkID: -5}, zaptest.NewLogger(t), nil)
	assert.ErrorIs(t, err, sdk.ErrInvalidConfig)
}
