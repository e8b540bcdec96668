package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/patrickwarner/decisionsdk/sdk/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

func captureServer(t *testing.T, status int, respBody string) (*httptest.Server, <-chan capturedRequest) {
	t.Helper()
	reqs := make(chan capturedRequest, 16)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		reqs <- capturedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Body: body}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respBody)
	}))
	t.Cleanup(server.Close)
	return server, reqs
}

func storeWith(t *testing.T, token string) *identity.MemoryStore {
	t.Helper()
	s := identity.NewMemoryStore()
	require.NoError(t, s.Save(context.Background(), token))
	return s
}

func TestOptOut_UsesStoredUserKey(t *testing.T) {
	server, reqs := captureServer(t, http.StatusOK, "")
	c := newTestClient(t, server, Config{NetworkID: 9999}, WithIdentityStore(storeWith(t, "u123")))

	ok, err := c.OptOut(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, ok)

	req := <-reqs
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/udb/9999/optout/i.gif", req.Path)
	assert.Equal(t, url.Values{"userKey": {"u123"}}, req.Query)
	assert.Empty(t, req.Body)
}

func TestOptOut_DerivedHostURL(t *testing.T) {
	var seen string
	doer := doerFunc(func(r *http.Request) (*http.Response, error) {
		seen = r.URL.String()
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(""))}, nil
	})
	c := newTestClient(t, nil, Config{NetworkID: 9999}, WithHTTPClient(doer), WithIdentityStore(storeWith(t, "u123")))

	ok, err := c.OptOut(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://e-9999.adzerk.net/udb/9999/optout/i.gif?userKey=u123", seen)
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func TestAddInterest_ExplicitKeyWins(t *testing.T) {
	server, reqs := captureServer(t, http.StatusOK, "")
	c := newTestClient(t, server, Config{NetworkID: 1}, WithIdentityStore(storeWith(t, "stored")))

	ok, err := c.AddInterest(context.Background(), "sports cars", "explicit")
	require.NoError(t, err)
	assert.True(t, ok)

	req := <-reqs
	assert.Equal(t, "/udb/1/interest/i.gif", req.Path)
	assert.Equal(t, "explicit", req.Query.Get("userKey"))
	assert.Equal(t, "sports cars", req.Query.Get("interest"))
}

func TestRetarget_TemplatedPath(t *testing.T) {
	server, reqs := captureServer(t, http.StatusOK, "")
	c := newTestClient(t, server, Config{NetworkID: 1})

	ok, err := c.Retarget(context.Background(), 12, 34, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/udb/1/rt/12/34/i.gif", (<-reqs).Path)
}

func TestTrack_NonOKIsFailureWithoutSynthesizedError(t *testing.T) {
	server, _ := captureServer(t, http.StatusInternalServerError, "boom")
	c := newTestClient(t, server, Config{NetworkID: 1})

	ok, err := c.OptOut(context.Background(), "u1")
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestTrack_TransportErrorPassedThrough(t *testing.T) {
	cause := errors.New("network down")
	c := newTestClient(t, nil, Config{NetworkID: 1}, WithHTTPClient(errDoer{err: cause}))

	ok, err := c.AddInterest(context.Background(), "x", "u1")
	assert.False(t, ok)
	assert.Same(t, cause, err)
}

func TestTrack_MissingUserKeyFailsFast(t *testing.T) {
	doer := &recordingDoer{}
	c := newTestClient(t, nil, Config{NetworkID: 1}, WithHTTPClient(doer))

	ok, err := c.OptOut(context.Background(), "")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrMissingUserKey)
	assert.True(t, IsConfigurationError(err))
	assert.Zero(t, doer.calls.Load())
}

func TestTrack_MissingNetworkFailsFast(t *testing.T) {
	doer := &recordingDoer{}
	c := newTestClient(t, nil, Config{Host: "engine.example.com"}, WithHTTPClient(doer))

	ok, err := c.Retarget(context.Background(), 1, 2, "u1")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrMissingNetworkID)
	assert.Zero(t, doer.calls.Load())
}

func TestTrack_StoreReadErrorIsKept(t *testing.T) {
	doer := &recordingDoer{}
	c := newTestClient(t, nil, Config{NetworkID: 1}, WithHTTPClient(doer), WithIdentityStore(failingStore{}))

	ok, err := c.OptOut(context.Background(), "")
	assert.False(t, ok)
	assert.True(t, IsConfigurationError(err))
	assert.ErrorIs(t, err, ErrMissingUserKey)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Zero(t, doer.calls.Load())

	ok, err = c.OptOut(context.Background(), "explicit")
	assert.False(t, ok)
	assert.NotErrorIs(t, err, ErrMissingUserKey, "explicit key must not consult the store")
}

func TestTrack_UnbuildableRequestIsConfigurationError(t *testing.T) {
	doer := &recordingDoer{}
	c := newTestClient(t, nil, Config{NetworkID: 1}, WithHTTPClient(doer), WithIdentityStore(storeWith(t, "u")))

	ok, err := c.Track(context.Background(), TrackingAction{Name: "a b%zz"}, "")
	assert.False(t, ok)
	assert.True(t, IsConfigurationError(err))
	assert.ErrorIs(t, err, ErrInvalidRequest)
	var te *TransportError
	assert.False(t, errors.As(err, &te))
	assert.Zero(t, doer.calls.Load())
}

func TestRecordImpression_BadAddressNotSent(t *testing.T) {
	doer := &recordingDoer{}
	c := newTestClient(t, nil, Config{NetworkID: 1}, WithHTTPClient(doer))

	c.RecordImpression(context.Background(), "http://127.0.0.1:%zz/i.gif")
	assert.Zero(t, doer.calls.Load())
}

func TestTrack_CustomAction(t *testing.T) {
	server, reqs := captureServer(t, http.StatusOK, "")
	c := newTestClient(t, server, Config{NetworkID: 5})

	ok, err := c.Track(context.Background(), TrackingAction{Name: "visit", Params: map[string]string{"page": "home"}}, "u9")
	require.NoError(t, err)
	assert.True(t, ok)

	req := <-reqs
	assert.Equal(t, "/udb/5/visit/i.gif", req.Path)
	assert.Equal(t, url.Values{"page": {"home"}, "userKey": {"u9"}}, req.Query)
}

func TestPostProperties(t *testing.T) {
	server, reqs := captureServer(t, http.StatusOK, "")
	c := newTestClient(t, server, Config{NetworkID: 9999}, WithIdentityStore(storeWith(t, "u123")))

	ok, err := c.PostProperties(context.Background(), map[string]any{"favoriteColor": "blue", "age": 42}, "")
	require.NoError(t, err)
	assert.True(t, ok)

	req := <-reqs
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/udb/9999/custom", req.Path)
	assert.Equal(t, "u123", req.Query.Get("userKey"))
	var props map[string]any
	require.NoError(t, json.Unmarshal(req.Body, &props))
	assert.Equal(t, map[string]any{"favoriteColor": "blue", "age": float64(42)}, props)
}

func TestPostProperties_UnserializableIsConfigurationError(t *testing.T) {
	doer := &recordingDoer{}
	c := newTestClient(t, nil, Config{NetworkID: 1}, WithHTTPClient(doer))

	ok, err := c.PostProperties(context.Background(), map[string]any{"fn": func() {}}, "u1")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrSerialize)
	assert.Zero(t, doer.calls.Load())
}

func TestProfileAsync_AckThroughExecutor(t *testing.T) {
	server, _ := captureServer(t, http.StatusOK, "")
	c := newTestClient(t, server, Config{NetworkID: 1})

	type ack struct {
		ok  bool
		err error
	}
	acks := make(chan ack, 4)
	record := func(ok bool, err error) { acks <- ack{ok, err} }

	c.OptOutAsync(context.Background(), "u1", record)
	c.AddInterestAsync(context.Background(), "golf", "u1", record)
	c.RetargetAsync(context.Background(), 1, 2, "u1", record)
	c.PostPropertiesAsync(context.Background(), map[string]any{"a": 1}, "u1", record)

	for i := 0; i < 4; i++ {
		select {
		case a := <-acks:
			assert.True(t, a.ok)
			assert.NoError(t, a.err)
		case <-time.After(2 * time.Second):
			t.Fatal("missing ack")
		}
	}
}

func TestProfileAsync_ConfigurationErrorReportedAsFailure(t *testing.T) {
	c := newTestClient(t, nil, Config{NetworkID: 1})

	acks := make(chan error, 1)
	c.OptOutAsync(context.Background(), "", func(ok bool, err error) {
		assert.False(t, ok)
		acks <- err
	})

	select {
	case err := <-acks:
		assert.ErrorIs(t, err, ErrMissingUserKey)
	case <-time.After(2 * time.Second):
		t.Fatal("missing ack")
	}
}

func TestRecordImpression_FireAndForget(t *testing.T) {
	server, reqs := captureServer(t, http.StatusOK, "")
	c := newTestClient(t, server, Config{NetworkID: 1})

	ctx, cancel := context.WithCancel(context.Background())
	c.RecordImpression(ctx, server.URL+"/i.gif?e=abc")
	cancel()

	select {
	case req := <-reqs:
		assert.Equal(t, "/i.gif", req.Path)
		assert.Equal(t, "abc", req.Query.Get("e"))
	case <-time.After(2 * time.Second):
		t.Fatal("impression never sent")
	}
}

func TestRecordDecisionImpressionAndEvents(t *testing.T) {
	server, reqs := captureServer(t, http.StatusOK, "")
	c := newTestClient(t, server, Config{NetworkID: 1})

	d := Decision{
		ImpressionURL: server.URL + "/i.gif?e=imp",
		Events:        []Event{{ID: 17, URL: server.URL + "/e.gif?e=17"}},
	}
	assert.True(t, c.RecordDecisionImpression(context.Background(), d))
	assert.True(t, c.FireEvent(context.Background(), d, 17))
	assert.False(t, c.FireEvent(context.Background(), d, 18))
	assert.False(t, c.RecordDecisionImpression(context.Background(), Decision{}))

	paths := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case req := <-reqs:
			paths[req.Path] = true
		case <-time.After(2 * time.Second):
			t.Fatal("pixel never sent")
		}
	}
	assert.Equal(t, map[string]bool{"/i.gif": true, "/e.gif": true}, paths)
}
