package main

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/decisionsdk/internal/engine"
	"github.com/patrickwarner/decisionsdk/sdk"
)

func newTestDecisionServer(t *testing.T, noFill float64) *DecisionServer {
	t.Helper()
	ts := httptest.NewServer(engine.NewServer(zap.NewNop(), nil, noFill).Router())
	t.Cleanup(ts.Close)

	client, err := sdk.New(sdk.Config{NetworkID: 9999, SiteID: 1, Host: ts.URL})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return &DecisionServer{client: client, logger: zap.NewNop()}
}

func TestDecideTool(t *testing.T) {
	ds := newTestDecisionServer(t, 0)

	_, out, err := ds.Decide(context.Background(), nil, DecideInput{
		Placements:     []PlacementInput{{DivName: "div1", AdTypes: []int{5}}, {DivName: "div2", AdTypes: []int{5}, Count: 2}},
		IncludePricing: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "success", out.Outcome)
	assert.NotEmpty(t, out.UserKey)
	require.Len(t, out.Decisions["div1"], 1)
	assert.NotEmpty(t, out.Decisions["div1"][0].Price)
	assert.Len(t, out.Decisions["div2"], 2)
}

func TestDecideTool_InvalidPlacement(t *testing.T) {
	ds := newTestDecisionServer(t, 0)

	_, _, err := ds.Decide(context.Background(), nil, DecideInput{Placements: []PlacementInput{{DivName: "", AdTypes: []int{5}}}})
	assert.ErrorIs(t, err, sdk.ErrInvalidPlacement)
}

func TestProfileTools(t *testing.T) {
	ds := newTestDecisionServer(t, 0)
	ctx := context.Background()

	_, ack, err := ds.AddInterest(ctx, nil, InterestInput{UserKey: "u1", Interest: "golf"})
	require.NoError(t, err)
	assert.True(t, ack.OK)
	_, ack, err = ds.Retarget(ctx, nil, RetargetInput{UserKey: "u1", BrandID: 1, Segment: 2})
	require.NoError(t, err)
	assert.True(t, ack.OK)
	_, ack, err = ds.PostProperties(ctx, nil, PropertiesInput{UserKey: "u1", Properties: map[string]any{"tier": "gold"}})
	require.NoError(t, err)
	assert.True(t, ack.OK)
	_, ack, err = ds.OptOut(ctx, nil, UserKeyInput{UserKey: "u1"})
	require.NoError(t, err)
	assert.True(t, ack.OK)

	_, read, err := ds.ReadUser(ctx, nil, UserKeyInput{UserKey: "u1"})
	require.NoError(t, err)
	require.True(t, read.Found)
	assert.Equal(t, []string{"golf"}, read.User.Interests)
	assert.True(t, read.User.OptOut)

	_, read, err = ds.ReadUser(ctx, nil, UserKeyInput{UserKey: "nobody"})
	require.NoError(t, err)
	assert.False(t, read.Found)
}

func TestProfileTools_MissingUserKey(t *testing.T) {
	ds := newTestDecisionServer(t, 0)

	_, _, err := ds.OptOut(context.Background(), nil, UserKeyInput{})
	assert.ErrorIs(t, err, sdk.ErrMissingUserKey)
}

func TestNewMCPServer_RegistersTools(t *testing.T) {
	ds := newTestDecisionServer(t, 0)
	ctx := context.Background()

	server := newMCPServer(ds)
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"decide", "read_user", "add_interest", "opt_out", "retarget", "post_properties"}, names)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "add_interest",
		Arguments: map[string]any{"user_key": "u1", "interest": "golf"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
}
