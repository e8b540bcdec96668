package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/patrickwarner/decisionsdk/internal/config"
	"github.com/patrickwarner/decisionsdk/internal/observability"
)

func main() {
	envCfg := config.Load()
	var (
		sc         simConfig
		placements string
		keywords   string
		flush      bool
		redisAddr  string
		debug      bool
	)

	flag.StringVar(&sc.Server, "server", "http://localhost:8787", "decision engine base URL")
	flag.IntVar(&sc.NetworkID, "network-id", envOr(envCfg.NetworkID, 9999), "default network id")
	flag.IntVar(&sc.SiteID, "site-id", envOr(envCfg.SiteID, 1), "default site id")
	flag.IntVar(&sc.Users, "users", 100, "number of unique users")
	flag.StringVar(&placements, "placements", "header,sidebar", "comma-separated div names")
	flag.IntVar(&sc.Requests, "requests", 1000, "total decision requests to send")
	flag.IntVar(&sc.Concurrency, "concurrency", 20, "concurrent requests")
	flag.DurationVar(&sc.Duration, "duration", 0, "how long to run traffic (0 to disable)")
	flag.Float64Var(&sc.Rate, "rate", 0, "requests per second (0 for unlimited)")
	flag.Float64Var(&sc.InterestRate, "interest-rate", 0.1, "probability of an interest call per fill")
	flag.Float64Var(&sc.OptOutRate, "optout-rate", 0.01, "probability of an opt-out per fill")
	flag.Float64Var(&sc.EventRate, "event-rate", 0.05, "probability of a custom event per fill")
	flag.DurationVar(&sc.SurgeInterval, "surge-interval", 0, "interval between traffic surges (0 to disable)")
	flag.DurationVar(&sc.SurgeDuration, "surge-duration", 0, "duration of each surge window")
	flag.Float64Var(&sc.SurgeMultiplier, "surge-multiplier", 2.0, "requests multiplier during surge period")
	flag.Float64Var(&sc.Jitter, "jitter", 0.0, "random jitter factor for request spacing")
	flag.StringVar(&keywords, "keywords", "", "comma-separated keywords sent with every request")
	flag.StringVar(&sc.IdentityBackend, "identity", config.IdentityMemory, "per-user identity backend: memory or redis")
	flag.StringVar(&redisAddr, "redis", "", "redis address (defaults to REDIS_ADDR)")
	flag.BoolVar(&flush, "flush", false, "delete simulator identities from redis before sending traffic")
	flag.BoolVar(&sc.Stats, "stats", false, "print aggregated stats periodically")
	flag.BoolVar(&debug, "debug", false, "enable verbose debug logs")
	flag.StringVar(&sc.Label, "label", "", "label to identify this run")
	flag.Parse()

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	logger, err := observability.InitLoggerWithLevel(level, "traffic-simulator")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	sc.Placements = splitCSV(placements)
	sc.Keywords = splitCSV(keywords)
	if sc.Label == "" {
		sc.Label = time.Now().Format(time.RFC3339)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if sc.IdentityBackend == config.IdentityRedis {
		if redisAddr == "" {
			redisAddr = envCfg.RedisAddr
		}
		sc.Redis = redis.NewClient(&redis.Options{Addr: redisAddr})
		defer func() { _ = sc.Redis.Close() }()
		if flush {
			n, err := flushIdentities(ctx, sc.Redis)
			if err != nil {
				logger.Fatal("flush identities", zap.Error(err))
			}
			logger.Info("simulator identities flushed", zap.String("addr", redisAddr), zap.Int("keys_deleted", n))
		}
	}

	sim, err := newSimulator(sc, logger, observability.NewPrometheusRegistry())
	if err != nil {
		logger.Fatal("build simulator", zap.Error(err))
	}
	defer sim.Close()

	sim.Run(ctx)
}

// flushIdentities deletes every key written by previous simulator runs.
func flushIdentities(ctx context.Context, client *redis.Client) (int, error) {
	var deleted int
	iter := client.Scan(ctx, 0, "identity:"+simNamespacePrefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		if err := client.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, iter.Err()
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
