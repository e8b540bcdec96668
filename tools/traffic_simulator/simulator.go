package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/patrickwarner/decisionsdk/internal/observability"
	"github.com/patrickwarner/decisionsdk/sdk"
	"github.com/patrickwarner/decisionsdk/sdk/identity"
)

const (
	statsInterval      = 5 * time.Second
	simNamespacePrefix = "sim-"
	customEventID      = 17
)

var interests = []string{"sports", "travel", "finance", "gaming", "cooking", "music"}

type simConfig struct {
	Server          string
	NetworkID       int
	SiteID          int
	Users           int
	Placements      []string
	Keywords        []string
	Requests        int
	Concurrency     int
	Duration        time.Duration
	Rate            float64
	InterestRate    float64
	OptOutRate      float64
	EventRate       float64
	SurgeInterval   time.Duration
	SurgeDuration   time.Duration
	SurgeMultiplier float64
	Jitter          float64
	IdentityBackend string
	Redis           *redis.Client
	Stats           bool
	Label           string
}

type simStats struct {
	sent, success, noFill, rejected, errors uint64
	impressions, events, profileCalls       uint64
}

// simulator drives one sdk.Client per simulated user, so every user gets
// its own identity and keeps the key the engine issued.
type simulator struct {
	cfg     simConfig
	logger  *zap.Logger
	clients []*sdk.Client
	stats   simStats

	mu  sync.Mutex
	rng *rand.Rand
}

func newSimulator(cfg simConfig, logger *zap.Logger, metrics observability.MetricsRegistry) (*simulator, error) {
	if cfg.Users <= 0 || len(cfg.Placements) == 0 {
		return nil, fmt.Errorf("need at least one user and one placement")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	s := &simulator{cfg: cfg, logger: logger, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}

	sdkCfg := sdk.Config{NetworkID: cfg.NetworkID, SiteID: cfg.SiteID, Host: cfg.Server, Timeout: 15 * time.Second}
	for i := 0; i < cfg.Users; i++ {
		var store sdk.IdentityStore = identity.NewMemoryStore()
		if cfg.Redis != nil {
			store = identity.NewRedisStore(cfg.Redis, fmt.Sprintf("%s%s-user%d", simNamespacePrefix, cfg.Label, i), 0)
		}
		client, err := sdk.New(sdkCfg,
			sdk.WithIdentityStore(store),
			sdk.WithLogger(logger.Named("sdk")),
			sdk.WithMetrics(metrics),
			sdk.WithExecutor(sdk.GoExecutor))
		if err != nil {
			return nil, err
		}
		s.clients = append(s.clients, client)
	}
	return s, nil
}

func (s *simulator) Close() {
	for _, c := range s.clients {
		c.Close()
	}
}

func (s *simulator) float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *simulator) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// Run sends traffic until the request count or duration is reached or ctx
// is cancelled, then waits for in-flight requests.
func (s *simulator) Run(ctx context.Context) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.cfg.Concurrency)
	done := make(chan struct{})

	var baseInterval time.Duration
	if s.cfg.Rate > 0 {
		baseInterval = time.Duration(float64(time.Second) / s.cfg.Rate)
	} else if s.cfg.Duration > 0 && s.cfg.Requests > 0 {
		baseInterval = s.cfg.Duration / time.Duration(s.cfg.Requests)
	}

	if s.cfg.Stats {
		go func() {
			ticker := time.NewTicker(statsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.printStats()
				case <-done:
					return
				}
			}
		}()
	}

	start := time.Now()
	next := start
	for i := 0; ; i++ {
		if s.cfg.Requests > 0 && i >= s.cfg.Requests {
			break
		}
		if s.cfg.Duration > 0 && time.Since(start) >= s.cfg.Duration {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if baseInterval > 0 {
			now := time.Now()
			if now.Before(next) {
				time.Sleep(next.Sub(now))
			}
			next = next.Add(s.spacing(baseInterval, time.Since(start)))
		}
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			s.visit(ctx)
		}()
	}
	wg.Wait()
	close(done)
	s.printStats()
}

// spacing applies surge windows and jitter to the base request interval.
func (s *simulator) spacing(base, elapsed time.Duration) time.Duration {
	effective := base
	if s.cfg.SurgeInterval > 0 && s.cfg.SurgeDuration > 0 && s.cfg.SurgeMultiplier > 0 {
		if elapsed%s.cfg.SurgeInterval < s.cfg.SurgeDuration {
			effective = time.Duration(float64(effective) / s.cfg.SurgeMultiplier)
		}
	}
	if s.cfg.Jitter > 0 {
		jf := 1 + (s.float()*2-1)*s.cfg.Jitter
		if jf < 0.1 {
			jf = 0.1
		}
		effective = time.Duration(float64(effective) * jf)
	}
	return effective
}

// visit is one page view: a decision for a random placement followed by the
// impression and, sometimes, an event and a profile call.
func (s *simulator) visit(ctx context.Context) {
	atomic.AddUint64(&s.stats.sent, 1)
	client := s.clients[s.intn(len(s.clients))]
	div := s.cfg.Placements[s.intn(len(s.cfg.Placements))]

	reqCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	placement := sdk.MustPlacement(div, []int{5}, sdk.WithEventIDs(customEventID))
	out := client.Decide(reqCtx, []sdk.Placement{placement}, &sdk.RequestOptions{Keywords: s.cfg.Keywords})
	switch o := out.(type) {
	case sdk.Success:
		d, ok := o.Response.First(div)
		if !ok {
			atomic.AddUint64(&s.stats.noFill, 1)
			s.logger.Debug("no fill", zap.String("div", div))
			return
		}
		atomic.AddUint64(&s.stats.success, 1)
		if client.RecordDecisionImpression(ctx, d) {
			atomic.AddUint64(&s.stats.impressions, 1)
		}
		if s.float() < s.cfg.EventRate && client.FireEvent(ctx, d, customEventID) {
			atomic.AddUint64(&s.stats.events, 1)
		}
		s.profileActivity(reqCtx, client)
	case sdk.RequestRejected:
		atomic.AddUint64(&s.stats.rejected, 1)
		s.logger.Error("decision rejected", zap.Int("status", o.StatusCode), zap.String("body", o.Body))
	default:
		atomic.AddUint64(&s.stats.errors, 1)
		s.logger.Error("decision failed", zap.String("outcome", out.Label()), zap.Error(out.Err()))
	}
}

func (s *simulator) profileActivity(ctx context.Context, client *sdk.Client) {
	var (
		ok  bool
		err error
	)
	switch roll := s.float(); {
	case roll < s.cfg.OptOutRate:
		ok, err = client.OptOut(ctx, "")
	case roll < s.cfg.OptOutRate+s.cfg.InterestRate:
		ok, err = client.AddInterest(ctx, interests[s.intn(len(interests))], "")
	default:
		return
	}
	atomic.AddUint64(&s.stats.profileCalls, 1)
	if err != nil || !ok {
		atomic.AddUint64(&s.stats.errors, 1)
		s.logger.Debug("profile call failed", zap.Bool("ok", ok), zap.Error(err))
	}
}

func (s *simulator) printStats() {
	sent := atomic.LoadUint64(&s.stats.sent)
	succ := atomic.LoadUint64(&s.stats.success)
	noFill := atomic.LoadUint64(&s.stats.noFill)
	var fill float64
	if sent > 0 {
		fill = float64(succ) / float64(sent)
	}
	s.logger.Info("stats",
		zap.String("run", s.cfg.Label),
		zap.Uint64("sent", sent),
		zap.Uint64("success", succ),
		zap.Uint64("no_fill", noFill),
		zap.Uint64("rejected", atomic.LoadUint64(&s.stats.rejected)),
		zap.Uint64("errors", atomic.LoadUint64(&s.stats.errors)),
		zap.Uint64("impressions", atomic.LoadUint64(&s.stats.impressions)),
		zap.Uint64("events", atomic.LoadUint64(&s.stats.events)),
		zap.Uint64("profile_calls", atomic.LoadUint64(&s.stats.profileCalls)),
		zap.Float64("fill_rate", fill))
}
