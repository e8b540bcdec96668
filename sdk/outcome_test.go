package sdk

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/patrickwarner/decisionsdk/sdk/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingMetrics struct {
	noopMetrics
	identityWrites int
}

func (m *countingMetrics) IncrementIdentityWrites() { m.identityWrites++ }

func newTestClassifier(store IdentityStore) (*classifier, *countingMetrics) {
	m := &countingMetrics{}
	return &classifier{store: store, logger: zap.NewNop(), metrics: m}, m
}

const okBody = `{
  "user": {"key": "abc"},
  "decisions": {
    "div1": {
      "adId": 111, "creativeId": 222, "flightId": 333, "campaignId": 444, "priorityId": 555,
      "clickUrl": "https://e-9999.adzerk.net/r?e=click",
      "impressionUrl": "https://e-9999.adzerk.net/i.gif?e=imp",
      "contents": [{"type": "html", "template": "image", "data": {"imageUrl": "https://cdn/x.png"}, "body": "<img>"}],
      "events": [{"id": 17, "url": "https://e-9999.adzerk.net/e.gif?e=17"}],
      "pricing": {"price": 1.25, "clearPrice": "0.90", "revenue": 0.00125, "rateType": 2, "eCPM": 1.25}
    },
    "div2": null,
    "div3": [{"adId": 1}, {"adId": 2}]
  }
}`

func TestClassify_TransportErrorWins(t *testing.T) {
	ctx := context.Background()
	store := identity.NewMemoryStore()
	c, _ := newTestClassifier(store)
	cause := errors.New("connection reset")

	out := c.classify(ctx, transportResult{status: http.StatusOK, body: []byte(okBody), err: cause})

	tf, ok := out.(TransportFailure)
	require.True(t, ok, "got %T", out)
	assert.Same(t, cause, tf.Cause)
	assert.ErrorIs(t, out.Err(), cause)

	tok, _ := store.Token(ctx)
	assert.Empty(t, tok, "transport failures must not touch the identity store")
}

func TestClassify_SuccessPersistsUserKey(t *testing.T) {
	ctx := context.Background()
	store := identity.NewMemoryStore()
	require.NoError(t, store.Save(ctx, "old"))
	c, m := newTestClassifier(store)

	out := c.classify(ctx, transportResult{status: http.StatusOK, body: []byte(okBody)})

	s, ok := out.(Success)
	require.True(t, ok, "got %T", out)
	assert.NoError(t, out.Err())
	assert.Equal(t, "abc", s.Response.UserKey())

	tok, _ := store.Token(ctx)
	assert.Equal(t, "abc", tok)
	assert.Equal(t, 1, m.identityWrites)
}

func TestClassify_ParsesDecisions(t *testing.T) {
	c, _ := newTestClassifier(identity.NewMemoryStore())

	out := c.classify(context.Background(), transportResult{status: http.StatusOK, body: []byte(okBody)})
	resp := out.(Success).Response

	d, ok := resp.First("div1")
	require.True(t, ok)
	assert.Equal(t, 111, d.AdID)
	assert.Equal(t, 222, d.CreativeID)
	assert.Equal(t, "https://e-9999.adzerk.net/i.gif?e=imp", d.ImpressionURL)
	require.Len(t, d.Contents, 1)
	assert.Equal(t, "image", d.Contents[0].Template)
	require.NotNil(t, d.Pricing)
	assert.Equal(t, "1.25", d.Pricing.Price.String())
	assert.Equal(t, "0.9", d.Pricing.ClearPrice.String())
	assert.Equal(t, 2, d.Pricing.RateType)

	url, ok := d.EventURL(17)
	assert.True(t, ok)
	assert.Equal(t, "https://e-9999.adzerk.net/e.gif?e=17", url)
	_, ok = d.EventURL(99)
	assert.False(t, ok)

	_, ok = resp.First("div2")
	assert.False(t, ok, "null decision means no fill")
	assert.Len(t, resp.Decisions["div3"], 2)
}

func TestClassify_SuccessWithoutUserKeepsStoredToken(t *testing.T) {
	ctx := context.Background()
	store := identity.NewMemoryStore()
	require.NoError(t, store.Save(ctx, "keep"))
	c, m := newTestClassifier(store)

	out := c.classify(ctx, transportResult{status: http.StatusOK, body: []byte(`{"decisions":{}}`)})

	require.IsType(t, Success{}, out)
	tok, _ := store.Token(ctx)
	assert.Equal(t, "keep", tok)
	assert.Zero(t, m.identityWrites)
}

func TestClassify_PresentEmptyKeyIsPersisted(t *testing.T) {
	ctx := context.Background()
	store := identity.NewMemoryStore()
	require.NoError(t, store.Save(ctx, "old"))
	c, m := newTestClassifier(store)

	out := c.classify(ctx, transportResult{status: http.StatusOK, body: []byte(`{"user":{"key":""},"decisions":{}}`)})

	require.IsType(t, Success{}, out)
	tok, _ := store.Token(ctx)
	assert.Empty(t, tok)
	assert.Equal(t, 1, m.identityWrites)
}

func TestClassify_UserWithoutKeyKeepsStoredToken(t *testing.T) {
	ctx := context.Background()
	store := identity.NewMemoryStore()
	require.NoError(t, store.Save(ctx, "old"))
	c, m := newTestClassifier(store)

	out := c.classify(ctx, transportResult{status: http.StatusOK, body: []byte(`{"user":{},"decisions":{}}`)})

	require.IsType(t, Success{}, out)
	tok, _ := store.Token(ctx)
	assert.Equal(t, "old", tok)
	assert.Zero(t, m.identityWrites)
}

func TestClassify_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":          "<html>oops</html>",
		"missing decisions": `{"user":{"key":"abc"}}`,
		"wrong shape":       `[1,2,3]`,
		"bad decision":      `{"decisions":{"div1":"nope"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := identity.NewMemoryStore()
			require.NoError(t, store.Save(ctx, "before"))
			c, _ := newTestClassifier(store)

			out := c.classify(ctx, transportResult{status: http.StatusOK, body: []byte(body)})

			m, ok := out.(MalformedResponse)
			require.True(t, ok, "got %T", out)
			assert.Equal(t, body, m.Body)
			var me *MalformedError
			assert.ErrorAs(t, out.Err(), &me)

			tok, _ := store.Token(ctx)
			assert.Equal(t, "before", tok, "malformed responses must not change the stored token")
		})
	}
}

func TestClassify_NoBody(t *testing.T) {
	c, _ := newTestClassifier(nil)

	out := c.classify(context.Background(), transportResult{status: http.StatusOK})
	assert.Equal(t, MalformedResponse{Body: "<no response>"}, out)

	out = c.classify(context.Background(), transportResult{status: http.StatusOK, body: []byte{}})
	assert.Equal(t, MalformedResponse{Body: "<no response>"}, out)
}

func TestClassify_Rejected(t *testing.T) {
	for _, status := range []int{201, 204, 301, 400, 404, 429, 500, 503} {
		c, _ := newTestClassifier(identity.NewMemoryStore())
		body := `{"error":"nope"}`

		out := c.classify(context.Background(), transportResult{status: status, body: []byte(body)})

		assert.Equal(t, RequestRejected{StatusCode: status, Body: body}, out)
		var re *RejectedError
		require.ErrorAs(t, out.Err(), &re)
		assert.Equal(t, status, re.StatusCode)
	}
}

func TestOutcome_Labels(t *testing.T) {
	assert.Equal(t, "success", Success{}.Label())
	assert.Equal(t, "rejected", RequestRejected{}.Label())
	assert.Equal(t, "malformed", MalformedResponse{}.Label())
	assert.Equal(t, "transport_failure", TransportFailure{}.Label())
	assert.Equal(t, "configuration_error", ConfigurationFailure{}.Label())
}
