// Package engine is a local stand-in for the decision engine and its user
// profile service. It speaks the same wire protocol as the hosted engine so
// the SDK, the simulator and the MCP server can run without network access.
package engine

import (
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/patrickwarner/decisionsdk/internal/observability"
)

var tracer = otel.Tracer("github.com/patrickwarner/decisionsdk/internal/engine")

// transparent 1x1 GIF returned by every pixel endpoint
var pixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Server groups dependencies for the engine's HTTP handlers.
type Server struct {
	Logger  *zap.Logger
	Metrics observability.MetricsRegistry
	// NoFillRate is the probability (0..1) that a placement gets no ad.
	NoFillRate float64
	Profiles   *ProfileStore

	mu          sync.Mutex
	rng         *rand.Rand
	impressions map[string]int
	events      map[string]int
}

// NewServer constructs a Server with an empty profile store.
func NewServer(logger *zap.Logger, metrics observability.MetricsRegistry, noFillRate float64) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Server{
		Logger:      logger,
		Metrics:     metrics,
		NoFillRate:  noFillRate,
		Profiles:    NewProfileStore(),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		impressions: make(map[string]int),
		events:      make(map[string]int),
	}
}

// Router registers every engine route on a new gorilla/mux router. The
// returned handler is instrumented with otelhttp.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/v2", s.DecisionHandler).Methods("POST")
	r.HandleFunc("/i.gif", s.ImpressionHandler).Methods("GET")
	r.HandleFunc("/e.gif", s.EventHandler).Methods("GET")
	r.HandleFunc("/health", s.HealthHandler).Methods("GET")

	udb := r.PathPrefix("/udb/{network:[0-9]+}").Subrouter()
	udb.HandleFunc("/read", s.ReadHandler).Methods("GET")
	udb.HandleFunc("/custom", s.CustomHandler).Methods("POST")
	udb.HandleFunc("/rt/{brand:[0-9]+}/{segment:[0-9]+}/i.gif", s.RetargetHandler).Methods("GET")
	udb.HandleFunc("/{action}/i.gif", s.ActionHandler).Methods("GET")

	r.Use(observability.WithTraceLogger(s.Logger))
	return otelhttp.NewHandler(r, "engine")
}

// roll reports whether a placement should go unfilled.
func (s *Server) roll() bool {
	if s.NoFillRate <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.NoFillRate
}

func (s *Server) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// ImpressionCount returns how many times the impression pixel for id fired.
func (s *Server) ImpressionCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.impressions[id]
}

// EventCount returns how many times event eventID of decision id fired.
func (s *Server) EventCount(id string, eventID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[id+":"+strconv.Itoa(eventID)]
}

// HealthHandler responds with a simple status check.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
	s.observe("health", r.Method, http.StatusOK, start)
}

func (s *Server) observe(endpoint, method string, status int, start time.Time) {
	s.Metrics.IncrementRequests(endpoint, method, strconv.Itoa(status))
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

func writePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pixel)
}

// baseURL rebuilds the scheme and host the request arrived on, for the
// tracking URLs embedded in decisions.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
