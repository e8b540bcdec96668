package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"DECISION_NETWORK_ID", "DECISION_SITE_ID", "DECISION_HOST", "IDENTITY_BACKEND", "PORT", "ENGINE_NO_FILL_RATE"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Zero(t, cfg.NetworkID)
	assert.Equal(t, IdentityMemory, cfg.IdentityBackend)
	assert.Equal(t, 10*time.Second, cfg.DecisionTimeout)
	assert.Equal(t, "8787", cfg.Port)
	assert.Zero(t, cfg.EngineNoFill)
	assert.Equal(t, "decisionsdk", cfg.ServiceName)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DECISION_NETWORK_ID", "9999")
	t.Setenv("DECISION_SITE_ID", "12")
	t.Setenv("DECISION_HOST", "http://localhost:8787")
	t.Setenv("DECISION_TIMEOUT", "3")
	t.Setenv("IDENTITY_BACKEND", "redis")
	t.Setenv("IDENTITY_TTL", "24h")
	t.Setenv("ENGINE_NO_FILL_RATE", "0.25")
	t.Setenv("TRACING_ENABLED", "true")

	cfg := Load()
	assert.Equal(t, 9999, cfg.NetworkID)
	assert.Equal(t, 12, cfg.SiteID)
	assert.Equal(t, "http://localhost:8787", cfg.DecisionHost)
	assert.Equal(t, 3*time.Second, cfg.DecisionTimeout)
	assert.Equal(t, IdentityRedis, cfg.IdentityBackend)
	assert.Equal(t, 24*time.Hour, cfg.IdentityTTL)
	assert.Equal(t, 0.25, cfg.EngineNoFill)
	assert.True(t, cfg.TracingEnabled)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DECISION_NETWORK_ID", "abc")
	t.Setenv("DECISION_TIMEOUT", "soon")
	t.Setenv("TRACING_ENABLED", "maybe")

	cfg := Load()
	assert.Zero(t, cfg.NetworkID)
	assert.Equal(t, 10*time.Second, cfg.DecisionTimeout)
	assert.False(t, cfg.TracingEnabled)
}
