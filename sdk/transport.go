package sdk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Doer performs HTTP requests. *http.Client satisfies it; tests and callers
// with their own networking stack can substitute anything else.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

const (
	headerSDKVersion = "X-Adzerk-Sdk-Version"
	contentTypeJSON  = "application/json"
)

func newHTTPClient(cfg Config) *http.Client {
	return &http.Client{
		Timeout:   cfg.timeout(),
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// newRequest builds the HTTP request for one call. A failure here means the
// caller handed over something that is not a valid request, so it is
// reported as a configuration error and nothing is sent.
func (c *Client) newRequest(ctx context.Context, op, method, url string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, configError(op, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
	}
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set(headerSDKVersion, Version)
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	return req, nil
}

// roundTrip sends req and reduces the exchange to a transportResult. It never
// inspects the status code.
func (c *Client) roundTrip(req *http.Request) transportResult {
	resp, err := c.doer.Do(req)
	if err != nil {
		return transportResult{err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportResult{err: fmt.Errorf("read response: %w", err)}
	}
	if data == nil {
		data = []byte{}
	}
	return transportResult{status: resp.StatusCode, body: data}
}
