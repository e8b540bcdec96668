package sdk

import (
	"context"
	"net/http"
	"time"

	"github.com/patrickwarner/decisionsdk/sdk/identity"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const decisionPath = "/api/v2"

var tracer = otel.Tracer("github.com/patrickwarner/decisionsdk/sdk")

// Client talks to one decision engine with one set of defaults. It is safe
// for concurrent use; calls are independent of each other apart from the
// shared identity store.
type Client struct {
	cfg        Config
	doer       Doer
	store      IdentityStore
	executor   Executor
	owned      *SerialExecutor
	logger     *zap.Logger
	metrics    Metrics
	now        func() time.Time
	assembler  *assembler
	classifier *classifier
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented *http.Client.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.doer = d }
}

// WithIdentityStore sets where the user key is kept. The default is an
// in-memory store scoped to the Client.
func WithIdentityStore(s IdentityStore) Option {
	return func(c *Client) { c.store = s }
}

// WithExecutor sets the context every asynchronous result is delivered on.
// The default is a SerialExecutor owned and closed by the Client.
func WithExecutor(e Executor) Option {
	return func(c *Client) { c.executor = e }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithMetrics(m Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithClock overrides the time source used to stamp requests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New validates cfg and builds a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.doer == nil {
		c.doer = newHTTPClient(cfg)
	}
	if c.store == nil {
		c.store = identity.NewMemoryStore()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.metrics == nil {
		c.metrics = noopMetrics{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.executor == nil {
		c.owned = NewSerialExecutor()
		c.executor = c.owned
	}
	c.assembler = &assembler{cfg: cfg, store: c.store, now: c.now, logger: c.logger}
	c.classifier = &classifier{store: c.store, logger: c.logger, metrics: c.metrics}
	return c, nil
}

// Close waits for pending callbacks on the default executor. Executors
// supplied with WithExecutor are left to the caller.
func (c *Client) Close() {
	if c.owned != nil {
		c.owned.Close()
	}
}

// Config returns the defaults the client was built with.
func (c *Client) Config() Config { return c.cfg }

// IdentityStore returns the store backing the implicit user key.
func (c *Client) IdentityStore() IdentityStore { return c.store }

// BuildRequest assembles the payload Decide would send without sending it.
func (c *Client) BuildRequest(ctx context.Context, placements []Placement, opts *RequestOptions) (*DecisionRequest, error) {
	return c.assembler.build(ctx, placements, opts)
}

// Decide requests decisions for placements and blocks until the outcome is
// known. Callers must pass at least one placement.
func (c *Client) Decide(ctx context.Context, placements []Placement, opts *RequestOptions) Outcome {
	ctx, span := tracer.Start(ctx, "Decide",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("decision.placements", len(placements))))
	defer span.End()

	start := time.Now()
	out := c.decide(ctx, placements, opts)
	c.metrics.RecordDecisionLatency(time.Since(start))
	c.metrics.IncrementDecisions(out.Label())

	span.SetAttributes(attribute.String("decision.outcome", out.Label()))
	if err := out.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, out.Label())
		c.logger.Warn("decision call failed",
			zap.String("outcome", out.Label()),
			zap.Error(err))
	}
	return out
}

func (c *Client) decide(ctx context.Context, placements []Placement, opts *RequestOptions) Outcome {
	base, err := c.cfg.BaseURL()
	if err != nil {
		return ConfigurationFailure{Cause: configError("decide", err)}
	}
	req, err := c.assembler.build(ctx, placements, opts)
	if err != nil {
		return ConfigurationFailure{Cause: err}
	}
	c.logger.Debug("sending decision request",
		zap.Int("placements", req.PlacementCount()),
		zap.Bool("has_user", req.UserKey() != ""))

	httpReq, err := c.newRequest(ctx, "decide", http.MethodPost, base+decisionPath, req.Body())
	if err != nil {
		return ConfigurationFailure{Cause: err}
	}
	return c.classifier.classify(ctx, c.roundTrip(httpReq))
}

// DecideAsync runs Decide in the background. The outcome is sent on the
// returned channel from the client's executor, after which it is closed.
func (c *Client) DecideAsync(ctx context.Context, placements []Placement, opts *RequestOptions) <-chan Outcome {
	return future(c, func() Outcome { return c.Decide(ctx, placements, opts) })
}

// DecideFunc runs Decide in the background and calls fn exactly once on the
// client's executor.
func (c *Client) DecideFunc(ctx context.Context, placements []Placement, opts *RequestOptions, fn func(Outcome)) {
	deliver(c, func() Outcome { return c.Decide(ctx, placements, opts) }, fn)
}
