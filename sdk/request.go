package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"go.uber.org/zap"
)

// Wire field names of the decision payload.
const (
	fieldPlacements           = "placements"
	fieldTime                 = "time"
	fieldUser                 = "user"
	fieldBlockedCreatives     = "blockedCreatives"
	fieldFlightViewTimes      = "flightViewTimes"
	fieldKeywords             = "keywords"
	fieldURL                  = "url"
	fieldConsent              = "consent"
	fieldEnableBotFiltering   = "enableBotFiltering"
	fieldIncludePricing       = "includePricing"
	fieldIncludeMatchedPoints = "includeMatchedPoints"
)

// DecisionRequest is the assembled payload of one decision call. It is built
// fresh for each call and never persisted.
type DecisionRequest struct {
	payload    map[string]any
	body       []byte
	userKey    string
	placements int
}

// Body returns the serialized payload.
func (r *DecisionRequest) Body() []byte { return r.body }

// UserKey is the identity sent with the request, or "" when the user block
// was omitted.
func (r *DecisionRequest) UserKey() string { return r.userKey }

// PlacementCount is the number of placements serialized into the payload.
func (r *DecisionRequest) PlacementCount() int { return r.placements }

// Field returns a top-level payload value as it was handed to the encoder.
func (r *DecisionRequest) Field(name string) (any, bool) {
	v, ok := r.payload[name]
	return v, ok
}

// Fields returns a copy of the top-level payload.
func (r *DecisionRequest) Fields() map[string]any { return maps.Clone(r.payload) }

type assembler struct {
	cfg    Config
	store  IdentityStore
	now    func() time.Time
	logger *zap.Logger
}

// build merges placements, per-call options and the client defaults into one
// payload. The stored identity is substituted before serialization.
func (a *assembler) build(ctx context.Context, placements []Placement, opts *RequestOptions) (*DecisionRequest, error) {
	wires := make([]placementWire, 0, len(placements))
	for _, p := range placements {
		w, err := p.wire(a.cfg)
		if err != nil {
			return nil, configError("build request", err)
		}
		wires = append(wires, w)
	}

	payload := map[string]any{
		fieldPlacements: wires,
		fieldTime:       a.now().Unix(),
	}

	var explicitKey string
	if opts != nil {
		explicitKey = opts.UserKey
	}
	userKey, err := resolveUserKey(ctx, explicitKey, a.store)
	if err != nil {
		a.logger.Warn("identity store read failed, sending request without user", zap.Error(err))
	}
	if userKey != "" {
		payload[fieldUser] = map[string]string{"key": userKey}
	}

	if opts != nil {
		if len(opts.BlockedCreatives) > 0 {
			payload[fieldBlockedCreatives] = opts.BlockedCreatives
		}
		if len(opts.FlightViewTimes) > 0 {
			payload[fieldFlightViewTimes] = opts.FlightViewTimes
		}
		if len(opts.Keywords) > 0 {
			payload[fieldKeywords] = opts.Keywords
		}
		if opts.URL != "" {
			payload[fieldURL] = opts.URL
		}
		if len(opts.Consent) > 0 {
			payload[fieldConsent] = opts.Consent
		}
		if opts.EnableBotFiltering != nil {
			payload[fieldEnableBotFiltering] = *opts.EnableBotFiltering
		}
		if opts.IncludePricing != nil {
			payload[fieldIncludePricing] = *opts.IncludePricing
		}
		if opts.IncludeMatchedPoints != nil {
			payload[fieldIncludeMatchedPoints] = *opts.IncludeMatchedPoints
		}
		// last write wins so callers can replace computed fields
		for k, v := range opts.AdditionalOptions {
			payload[k] = v
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, configError("build request", fmt.Errorf("%w: %v", ErrSerialize, err))
	}

	return &DecisionRequest{
		payload:    payload,
		body:       body,
		userKey:    userKey,
		placements: len(wires),
	}, nil
}

// resolveUserKey applies the identity precedence shared by decisions and
// profile calls: explicit key, then the stored token, then nothing. A store
// read failure is returned alongside an empty key.
func resolveUserKey(ctx context.Context, explicit string, store IdentityStore) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if store == nil {
		return "", nil
	}
	token, err := store.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("identity store: %w", err)
	}
	return token, nil
}
