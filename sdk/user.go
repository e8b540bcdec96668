package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// User is the engine's profile record for one user key.
type User struct {
	Key          string         `json:"key"`
	BlockedItems map[string]any `json:"blockedItems"`
	Interests    []string       `json:"interests"`
	Custom       map[string]any `json:"custom"`
	OptOut       bool           `json:"optOut"`
}

// userWire detects missing fields; every field of User is required.
type userWire struct {
	Key          *string         `json:"key"`
	BlockedItems *map[string]any `json:"blockedItems"`
	Interests    *[]string       `json:"interests"`
	Custom       *map[string]any `json:"custom"`
	OptOut       *bool           `json:"optOut"`
}

// parseUser returns nil when any required field is absent.
func parseUser(body []byte) (*User, error) {
	var w userWire
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, err
	}
	if w.Key == nil || w.BlockedItems == nil || w.Interests == nil || w.Custom == nil || w.OptOut == nil {
		return nil, nil
	}
	return &User{
		Key:          *w.Key,
		BlockedItems: *w.BlockedItems,
		Interests:    *w.Interests,
		Custom:       *w.Custom,
		OptOut:       *w.OptOut,
	}, nil
}

// ReadUser fetches the profile for userKey, or for the stored key when
// userKey is empty. A 200 whose body lacks any profile field yields a nil
// User and a nil error.
func (c *Client) ReadUser(ctx context.Context, userKey string) (*User, error) {
	ctx, span := tracer.Start(ctx, "ReadUser", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	user, err := c.readUser(ctx, userKey)
	outcome := "success"
	switch {
	case IsConfigurationError(err):
		outcome = "configuration_error"
	case err != nil:
		outcome = "failure"
	case user == nil:
		outcome = "absent"
	}
	c.metrics.IncrementTracking(actionRead, outcome)
	span.SetAttributes(attribute.String("tracking.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		c.logger.Warn("read user failed", zap.Error(err))
	}
	return user, err
}

func (c *Client) readUser(ctx context.Context, userKey string) (*User, error) {
	target, err := c.resolveProfile(ctx, actionRead, userKey)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, actionRead, http.MethodGet, target.url(actionRead, url.Values{}), nil)
	if err != nil {
		return nil, err
	}
	res := c.roundTrip(req)
	if res.err != nil {
		return nil, &TransportError{Err: res.err}
	}
	if res.status != http.StatusOK {
		return nil, &RejectedError{StatusCode: res.status, Body: string(res.body)}
	}
	if len(res.body) == 0 {
		return nil, &MalformedError{Body: noResponse}
	}
	user, err := parseUser(res.body)
	if err != nil {
		return nil, &MalformedError{Body: string(res.body)}
	}
	return user, nil
}

// UserResult pairs the values returned by ReadUser.
type UserResult struct {
	User *User
	Err  error
}

// ReadUserAsync runs ReadUser in the background; the result arrives on the
// returned channel from the client's executor.
func (c *Client) ReadUserAsync(ctx context.Context, userKey string) <-chan UserResult {
	return future(c, func() UserResult {
		u, err := c.ReadUser(ctx, userKey)
		return UserResult{User: u, Err: err}
	})
}
