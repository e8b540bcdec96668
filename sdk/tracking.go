package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	profilePrefix = "/udb/"
	pixelSuffix   = "/i.gif"

	actionInterest = "interest"
	actionOptOut   = "optout"
	actionCustom   = "custom"
	actionRead     = "read"
)

// Ack receives the result of a profile action. ok is true only for a 200.
// err is set for configuration problems and transport failures; a non-200
// status reports ok == false with a nil err.
type Ack func(ok bool, err error)

// TrackingAction is a pixel-style profile call: GET
// {host}/udb/{network}/{Name}/i.gif?{Params}&userKey=...
type TrackingAction struct {
	// Name is the action path, e.g. "interest", "optout" or "rt/12/34".
	Name   string
	Params map[string]string
}

// RetargetAction builds the templated retargeting action.
func RetargetAction(brandID, segment int) TrackingAction {
	return TrackingAction{Name: fmt.Sprintf("rt/%d/%d", brandID, segment)}
}

// profileTarget is the resolved destination of a profile call.
type profileTarget struct {
	base      string
	networkID int
	userKey   string
}

func (t profileTarget) url(path string, params url.Values) string {
	params.Set("userKey", t.userKey)
	return t.base + profilePrefix + strconv.Itoa(t.networkID) + "/" + path + "?" + params.Encode()
}

// resolveProfile fails fast, before any network activity, when the host,
// the network or the user key cannot be determined.
func (c *Client) resolveProfile(ctx context.Context, op, explicitKey string) (profileTarget, error) {
	base, err := c.cfg.BaseURL()
	if err != nil {
		return profileTarget{}, configError(op, err)
	}
	networkID, err := c.cfg.networkID(0)
	if err != nil {
		return profileTarget{}, configError(op, err)
	}
	userKey, err := resolveUserKey(ctx, explicitKey, c.store)
	if err != nil {
		return profileTarget{}, configError(op, fmt.Errorf("%w: %w", ErrMissingUserKey, err))
	}
	if userKey == "" {
		return profileTarget{}, configError(op, ErrMissingUserKey)
	}
	return profileTarget{base: base, networkID: networkID, userKey: userKey}, nil
}

// Track dispatches a pixel-style action for userKey, or for the stored key
// when userKey is empty. Only the status code of the response matters.
func (c *Client) Track(ctx context.Context, action TrackingAction, userKey string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Track",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("tracking.action", action.Name)))
	defer span.End()

	target, err := c.resolveProfile(ctx, action.Name, userKey)
	if err != nil {
		return c.finishProfileCall(span, action.Name, false, err)
	}
	params := url.Values{}
	for k, v := range action.Params {
		params.Set(k, v)
	}
	req, err := c.newRequest(ctx, action.Name, http.MethodGet, target.url(action.Name+pixelSuffix, params), nil)
	if err != nil {
		return c.finishProfileCall(span, action.Name, false, err)
	}
	res := c.roundTrip(req)
	return c.finishProfileCall(span, action.Name, res.err == nil && res.status == http.StatusOK, res.err)
}

// finishProfileCall records the result of a profile action. err is returned
// exactly as received.
func (c *Client) finishProfileCall(span trace.Span, action string, ok bool, err error) (bool, error) {
	outcome := "success"
	switch {
	case IsConfigurationError(err):
		outcome = "configuration_error"
	case !ok:
		outcome = "failure"
	}
	c.metrics.IncrementTracking(action, outcome)
	if !ok {
		span.SetStatus(codes.Error, outcome)
		if err != nil {
			span.RecordError(err)
		}
		c.logger.Warn("profile call failed", zap.String("action", action), zap.String("outcome", outcome), zap.Error(err))
	}
	return ok, err
}

// AddInterest tags the user with interest.
func (c *Client) AddInterest(ctx context.Context, interest, userKey string) (bool, error) {
	return c.Track(ctx, TrackingAction{Name: actionInterest, Params: map[string]string{"interest": interest}}, userKey)
}

// OptOut opts the user out of tracking.
func (c *Client) OptOut(ctx context.Context, userKey string) (bool, error) {
	return c.Track(ctx, TrackingAction{Name: actionOptOut}, userKey)
}

// Retarget adds the user to a brand's retargeting segment.
func (c *Client) Retarget(ctx context.Context, brandID, segment int, userKey string) (bool, error) {
	return c.Track(ctx, RetargetAction(brandID, segment), userKey)
}

// PostProperties replaces the user's custom properties with props.
func (c *Client) PostProperties(ctx context.Context, props map[string]any, userKey string) (bool, error) {
	ctx, span := tracer.Start(ctx, "PostProperties", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	target, err := c.resolveProfile(ctx, actionCustom, userKey)
	if err != nil {
		return c.finishProfileCall(span, actionCustom, false, err)
	}
	body, err := json.Marshal(props)
	if err != nil {
		return c.finishProfileCall(span, actionCustom, false, configError(actionCustom, fmt.Errorf("%w: %v", ErrSerialize, err)))
	}
	req, err := c.newRequest(ctx, actionCustom, http.MethodPost, target.url(actionCustom, url.Values{}), body)
	if err != nil {
		return c.finishProfileCall(span, actionCustom, false, err)
	}
	res := c.roundTrip(req)
	return c.finishProfileCall(span, actionCustom, res.err == nil && res.status == http.StatusOK, res.err)
}

// TrackAsync and friends run the matching call in the background and hand
// the result to fn exactly once on the client's executor.
func (c *Client) TrackAsync(ctx context.Context, action TrackingAction, userKey string, fn Ack) {
	c.ack(func() (bool, error) { return c.Track(ctx, action, userKey) }, fn)
}

func (c *Client) AddInterestAsync(ctx context.Context, interest, userKey string, fn Ack) {
	c.ack(func() (bool, error) { return c.AddInterest(ctx, interest, userKey) }, fn)
}

func (c *Client) OptOutAsync(ctx context.Context, userKey string, fn Ack) {
	c.ack(func() (bool, error) { return c.OptOut(ctx, userKey) }, fn)
}

func (c *Client) RetargetAsync(ctx context.Context, brandID, segment int, userKey string, fn Ack) {
	c.ack(func() (bool, error) { return c.Retarget(ctx, brandID, segment, userKey) }, fn)
}

func (c *Client) PostPropertiesAsync(ctx context.Context, props map[string]any, userKey string, fn Ack) {
	c.ack(func() (bool, error) { return c.PostProperties(ctx, props, userKey) }, fn)
}

type ackResult struct {
	ok  bool
	err error
}

func (c *Client) ack(call func() (bool, error), fn Ack) {
	deliver(c, func() ackResult {
		ok, err := call()
		return ackResult{ok: ok, err: err}
	}, func(r ackResult) {
		if fn != nil {
			fn(r.ok, r.err)
		}
	})
}

// RecordImpression fetches a pre-built tracking address, such as a
// decision's ImpressionURL, in the background. Nothing is reported back to
// the caller; failures are logged.
func (c *Client) RecordImpression(ctx context.Context, address string) {
	req, err := c.newRequest(context.WithoutCancel(ctx), "impression", http.MethodGet, address, nil)
	if err != nil {
		c.logger.Warn("impression address rejected", zap.String("url", address), zap.Error(err))
		c.metrics.IncrementTracking("impression", "configuration_error")
		return
	}
	go func() {
		res := c.roundTrip(req)
		outcome := "success"
		if res.err != nil || res.status != http.StatusOK {
			outcome = "failure"
			c.logger.Debug("impression not acknowledged",
				zap.String("url", address),
				zap.Int("status", res.status),
				zap.Error(res.err))
		}
		c.metrics.IncrementTracking("impression", outcome)
	}()
}

// RecordDecisionImpression records the impression of d. It reports false
// when d carries no impression URL.
func (c *Client) RecordDecisionImpression(ctx context.Context, d Decision) bool {
	if d.ImpressionURL == "" {
		return false
	}
	c.RecordImpression(ctx, d.ImpressionURL)
	return true
}

// FireEvent records a custom event of d. It reports false when d has no URL
// for eventID.
func (c *Client) FireEvent(ctx context.Context, d Decision, eventID int) bool {
	address, ok := d.EventURL(eventID)
	if !ok {
		return false
	}
	c.RecordImpression(ctx, address)
	return true
}
