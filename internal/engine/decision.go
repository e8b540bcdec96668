package engine

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/patrickwarner/decisionsdk/internal/observability"
	"github.com/patrickwarner/decisionsdk/sdk"
)

// UserKeyPrefix starts every user key the engine issues.
const UserKeyPrefix = "ue1-"

type decisionRequest struct {
	Placements     []placementRequest `json:"placements"`
	User           *sdk.ResponseUser  `json:"user"`
	Keywords       []string           `json:"keywords"`
	IncludePricing bool               `json:"includePricing"`
	Time           int64              `json:"time"`
}

type placementRequest struct {
	DivName   string `json:"divName"`
	NetworkID int    `json:"networkId"`
	SiteID    int    `json:"siteId"`
	AdTypes   []int  `json:"adTypes"`
	ZoneIDs   []int  `json:"zoneIds"`
	FlightID  int    `json:"flightId"`
	AdID      int    `json:"adId"`
	EventIDs  []int  `json:"eventIds"`
	Count     int    `json:"count"`
}

func (p placementRequest) validate() error {
	switch {
	case p.DivName == "":
		return fmt.Errorf("divName required")
	case p.NetworkID <= 0:
		return fmt.Errorf("placement %s: networkId required", p.DivName)
	case p.SiteID <= 0:
		return fmt.Errorf("placement %s: siteId required", p.DivName)
	case len(p.AdTypes) == 0:
		return fmt.Errorf("placement %s: adTypes required", p.DivName)
	}
	return nil
}

type decisionResponse struct {
	User      sdk.ResponseUser `json:"user"`
	Decisions map[string]any   `json:"decisions"`
}

// DecisionHandler handles POST /api/v2. Every placement gets a decision or
// null; a request without a user key is issued a new one.
func (s *Server) DecisionHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "DecisionHandler")
	defer span.End()

	logger := observability.LoggerFromContext(ctx, s.Logger)
	start := time.Now()
	const endpoint = "decision"

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		logger.Warn("decode decision request", zap.Error(err))
		s.observe(endpoint, r.Method, http.StatusBadRequest, start)
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if len(req.Placements) == 0 {
		s.observe(endpoint, r.Method, http.StatusBadRequest, start)
		http.Error(w, "placements required", http.StatusBadRequest)
		return
	}
	for _, p := range req.Placements {
		if err := p.validate(); err != nil {
			s.observe(endpoint, r.Method, http.StatusBadRequest, start)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	userKey := ""
	if req.User != nil {
		userKey = req.User.Key
	}
	if userKey == "" {
		userKey = UserKeyPrefix + uuid.NewString()
	}
	s.Profiles.Touch(userKey)
	span.SetAttributes(
		attribute.String("user_key", userKey),
		attribute.Int("placements", len(req.Placements)),
	)

	base := baseURL(r)
	resp := decisionResponse{
		User:      sdk.ResponseUser{Key: userKey},
		Decisions: make(map[string]any, len(req.Placements)),
	}
	optedOut := s.Profiles.OptedOut(userKey)
	for _, p := range req.Placements {
		resp.Decisions[p.DivName] = s.decide(base, p, req.IncludePricing, optedOut)
	}

	if observability.ShouldSample(observability.GetSamplingRate()) {
		logger.Info("decision", zap.String("user_key", userKey), zap.Int("placements", len(req.Placements)))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("encode decision response", zap.Error(err))
	}
	s.observe(endpoint, r.Method, http.StatusOK, start)
}

// decide returns nil for no fill, one Decision for a single-ad placement and
// a slice when Count asks for more than one.
func (s *Server) decide(base string, p placementRequest, pricing, optedOut bool) any {
	if optedOut || s.roll() {
		return nil
	}
	if p.Count <= 1 {
		return s.newDecision(base, p, pricing)
	}
	out := make([]sdk.Decision, 0, p.Count)
	for i := 0; i < p.Count; i++ {
		out = append(out, s.newDecision(base, p, pricing))
	}
	return out
}

func (s *Server) newDecision(base string, p placementRequest, pricing bool) sdk.Decision {
	id := uuid.NewString()
	adType := p.AdTypes[s.intn(len(p.AdTypes))]
	d := sdk.Decision{
		AdID:          pick(p.AdID, 1000+s.intn(9000)),
		CreativeID:    1000 + s.intn(9000),
		FlightID:      pick(p.FlightID, 100+s.intn(900)),
		CampaignID:    100 + s.intn(900),
		PriorityID:    1 + s.intn(10),
		ClickURL:      base + "/r?" + url.Values{"e": {id}}.Encode(),
		ImpressionURL: base + "/i.gif?" + url.Values{"e": {id}}.Encode(),
		Contents: []sdk.Content{{
			Type:     "html",
			Template: "image",
			Data:     map[string]any{"adType": adType, "divName": p.DivName},
			Body:     fmt.Sprintf("<div class=%q>ad %s</div>", p.DivName, id),
		}},
	}
	for _, ev := range p.EventIDs {
		d.Events = append(d.Events, sdk.Event{
			ID:  ev,
			URL: base + "/e.gif?" + url.Values{"e": {id}, "id": {fmt.Sprint(ev)}}.Encode(),
		})
	}
	if pricing {
		cpm := decimal.New(int64(50+s.intn(450)), -2)
		d.Pricing = &sdk.Pricing{
			Price:      cpm,
			ClearPrice: cpm.Mul(decimal.NewFromFloat(0.9)).Round(4),
			Revenue:    cpm.Div(decimal.NewFromInt(1000)),
			RateType:   2,
			ECPM:       cpm,
		}
	}
	return d
}

func pick(requested, generated int) int {
	if requested > 0 {
		return requested
	}
	return generated
}
