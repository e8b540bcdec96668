package config

import (
	"os"
	"strconv"
	"time"
)

// Identity backends accepted by IDENTITY_BACKEND.
const (
	IdentityMemory = "memory"
	IdentityRedis  = "redis"
	IdentityFile   = "file"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	// Decision engine defaults handed to the SDK client
	NetworkID       int
	SiteID          int
	DecisionHost    string
	DecisionTimeout time.Duration
	UserAgent       string

	// Identity store
	IdentityBackend   string
	IdentityFile      string
	IdentityNamespace string
	IdentityTTL       time.Duration
	RedisAddr         string

	// Local engine server
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	EngineNoFill float64
	ServiceName  string

	// Tracing configuration
	TracingEnabled    bool
	TempoEndpoint     string
	TracingSampleRate float64
}

// Load parses environment variables and returns a Config populated with
// defaults when variables are absent.
func Load() Config {
	cfg := Config{}

	cfg.NetworkID = envInt("DECISION_NETWORK_ID", 0)
	cfg.SiteID = envInt("DECISION_SITE_ID", 0)
	cfg.DecisionHost = getenv("DECISION_HOST", "")
	cfg.DecisionTimeout = envDuration("DECISION_TIMEOUT", 10*time.Second)
	cfg.UserAgent = getenv("DECISION_USER_AGENT", "")

	cfg.IdentityBackend = getenv("IDENTITY_BACKEND", IdentityMemory)
	cfg.IdentityFile = getenv("IDENTITY_FILE", defaultIdentityFile())
	cfg.IdentityNamespace = getenv("IDENTITY_NAMESPACE", "default")
	// zero keeps the redis key forever
	cfg.IdentityTTL = envDuration("IDENTITY_TTL", 0)
	cfg.RedisAddr = getenv("REDIS_ADDR", "localhost:6379")

	cfg.Port = getenv("PORT", "8787")
	cfg.ReadTimeout = envDuration("READ_TIMEOUT", 5*time.Second)
	cfg.WriteTimeout = envDuration("WRITE_TIMEOUT", 10*time.Second)
	cfg.EngineNoFill = envFloat("ENGINE_NO_FILL_RATE", 0)
	cfg.ServiceName = getenv("SERVICE_NAME", "decisionsdk")

	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.TempoEndpoint = getenv("TEMPO_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0) // Default to 100% sampling for dev

	return cfg
}

func defaultIdentityFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".decisionsdk/identity.toml"
	}
	return dir + "/decisionsdk/identity.toml"
}

// getenv returns the value of the environment variable if set, otherwise def.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration parses an environment variable into a time.Duration.
// The value can be a duration string (e.g. "5s") or a number of seconds.
// If the variable is unset or invalid, def is returned.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// envInt parses an integer environment variable. When unset or invalid, def is returned.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}
