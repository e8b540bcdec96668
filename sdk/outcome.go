package sdk

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// Outcome is the result of one decision call. It is always exactly one of
// Success, RequestRejected, MalformedResponse, TransportFailure or
// ConfigurationFailure; switch on the concrete type to handle it.
type Outcome interface {
	// Err returns nil for Success and a descriptive error otherwise.
	Err() error
	// Label names the variant for logs and metrics.
	Label() string
	outcome()
}

// Success carries the parsed engine response.
type Success struct {
	Response *DecisionResponse
}

// RequestRejected is any non-200 status. Body is kept for diagnostics.
type RequestRejected struct {
	StatusCode int
	Body       string
}

// MalformedResponse is a 200 whose body was missing or not understood.
type MalformedResponse struct {
	Body string
}

// TransportFailure is an error reported by the HTTP layer before any status
// was available.
type TransportFailure struct {
	Cause error
}

// ConfigurationFailure means the call was never sent.
type ConfigurationFailure struct {
	Cause error
}

func (Success) outcome()              {}
func (RequestRejected) outcome()      {}
func (MalformedResponse) outcome()    {}
func (TransportFailure) outcome()     {}
func (ConfigurationFailure) outcome() {}

func (Success) Label() string              { return "success" }
func (RequestRejected) Label() string      { return "rejected" }
func (MalformedResponse) Label() string    { return "malformed" }
func (TransportFailure) Label() string     { return "transport_failure" }
func (ConfigurationFailure) Label() string { return "configuration_error" }

func (Success) Err() error { return nil }

func (o RequestRejected) Err() error {
	return &RejectedError{StatusCode: o.StatusCode, Body: o.Body}
}

func (o MalformedResponse) Err() error { return &MalformedError{Body: o.Body} }

func (o TransportFailure) Err() error { return &TransportError{Err: o.Cause} }

func (o ConfigurationFailure) Err() error { return o.Cause }

// noResponse stands in for a body that never arrived.
const noResponse = "<no response>"

// transportResult is what the HTTP layer hands back: an error, or a status
// with a body. A nil body means no body was received at all.
type transportResult struct {
	status int
	body   []byte
	err    error
}

type classifier struct {
	store   IdentityStore
	logger  *zap.Logger
	metrics Metrics
}

// classify maps a transport result onto an Outcome. A transport error wins
// over any status or body that came with it. On success the engine-issued
// user key is persisted before the outcome is returned.
func (c *classifier) classify(ctx context.Context, res transportResult) Outcome {
	if res.err != nil {
		return TransportFailure{Cause: res.err}
	}
	if res.body == nil {
		return MalformedResponse{Body: noResponse}
	}
	if res.status != http.StatusOK {
		return RequestRejected{StatusCode: res.status, Body: string(res.body)}
	}
	if len(res.body) == 0 {
		return MalformedResponse{Body: noResponse}
	}
	parsed, err := parseDecisionResponse(res.body)
	if err != nil {
		c.logger.Debug("decision response not understood", zap.Error(err))
		return MalformedResponse{Body: string(res.body)}
	}
	if key, ok := parsed.IssuedKey(); ok {
		persistUserKey(ctx, c.store, key, c.logger, c.metrics)
	}
	return Success{Response: parsed}
}
