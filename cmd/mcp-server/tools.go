package main

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/decisionsdk/sdk"
)

// DecisionServer holds the dependencies of the MCP tools.
type DecisionServer struct {
	client *sdk.Client
	logger *zap.Logger
}

type PlacementInput struct {
	DivName   string `json:"div_name"`
	AdTypes   []int  `json:"ad_types"`
	Count     int    `json:"count,omitempty"`
	NetworkID int    `json:"network_id,omitempty"`
	SiteID    int    `json:"site_id,omitempty"`
}

type DecideInput struct {
	Placements     []PlacementInput `json:"placements"`
	UserKey        string           `json:"user_key,omitempty"`
	Keywords       []string         `json:"keywords,omitempty"`
	IncludePricing bool             `json:"include_pricing,omitempty"`
}

type DecisionSummary struct {
	AdID          int    `json:"ad_id"`
	CreativeID    int    `json:"creative_id"`
	FlightID      int    `json:"flight_id"`
	CampaignID    int    `json:"campaign_id"`
	ImpressionURL string `json:"impression_url,omitempty"`
	ClickURL      string `json:"click_url,omitempty"`
	Price         string `json:"price,omitempty"`
}

type DecideOutput struct {
	Outcome    string                       `json:"outcome"`
	UserKey    string                       `json:"user_key,omitempty"`
	Decisions  map[string][]DecisionSummary `json:"decisions,omitempty"`
	StatusCode int                          `json:"status_code,omitempty"`
	Error      string                       `json:"error,omitempty"`
}

// Decide implements the decide tool. Every outcome kind is reported in the
// output; only invalid placements fail the tool call.
func (s *DecisionServer) Decide(ctx context.Context, req *mcp.CallToolRequest, input DecideInput) (*mcp.CallToolResult, DecideOutput, error) {
	placements := make([]sdk.Placement, 0, len(input.Placements))
	for _, p := range input.Placements {
		placement, err := sdk.NewPlacement(p.DivName, p.AdTypes,
			sdk.WithCount(p.Count),
			sdk.WithPlacementNetwork(p.NetworkID),
			sdk.WithPlacementSite(p.SiteID))
		if err != nil {
			return nil, DecideOutput{}, err
		}
		placements = append(placements, placement)
	}

	opts := &sdk.RequestOptions{UserKey: input.UserKey, Keywords: input.Keywords}
	if input.IncludePricing {
		opts.IncludePricing = sdk.Bool(true)
	}

	out := s.client.Decide(ctx, placements, opts)
	result := DecideOutput{Outcome: out.Label()}
	switch o := out.(type) {
	case sdk.Success:
		result.UserKey = o.Response.UserKey()
		result.Decisions = summarize(o.Response)
	case sdk.RequestRejected:
		result.StatusCode = o.StatusCode
		result.Error = o.Body
	default:
		result.Error = out.Err().Error()
	}
	s.logger.Debug("decide tool", zap.String("outcome", result.Outcome), zap.Int("placements", len(placements)))
	return nil, result, nil
}

func summarize(resp *sdk.DecisionResponse) map[string][]DecisionSummary {
	out := make(map[string][]DecisionSummary, len(resp.Decisions))
	for div, ds := range resp.Decisions {
		list := make([]DecisionSummary, 0, len(ds))
		for _, d := range ds {
			sum := DecisionSummary{
				AdID:          d.AdID,
				CreativeID:    d.CreativeID,
				FlightID:      d.FlightID,
				CampaignID:    d.CampaignID,
				ImpressionURL: d.ImpressionURL,
				ClickURL:      d.ClickURL,
			}
			if d.Pricing != nil {
				sum.Price = d.Pricing.Price.StringFixed(2)
			}
			list = append(list, sum)
		}
		out[div] = list
	}
	return out
}

type UserKeyInput struct {
	UserKey string `json:"user_key,omitempty"`
}

type ReadUserOutput struct {
	Found bool      `json:"found"`
	User  *sdk.User `json:"user,omitempty"`
}

func (s *DecisionServer) ReadUser(ctx context.Context, req *mcp.CallToolRequest, input UserKeyInput) (*mcp.CallToolResult, ReadUserOutput, error) {
	user, err := s.client.ReadUser(ctx, input.UserKey)
	if err != nil {
		return nil, ReadUserOutput{}, fmt.Errorf("read user: %w", err)
	}
	return nil, ReadUserOutput{Found: user != nil, User: user}, nil
}

type AckOutput struct {
	OK bool `json:"ok"`
}

type InterestInput struct {
	UserKey  string `json:"user_key,omitempty"`
	Interest string `json:"interest"`
}

func (s *DecisionServer) AddInterest(ctx context.Context, req *mcp.CallToolRequest, input InterestInput) (*mcp.CallToolResult, AckOutput, error) {
	return ack(s.client.AddInterest(ctx, input.Interest, input.UserKey))
}

func (s *DecisionServer) OptOut(ctx context.Context, req *mcp.CallToolRequest, input UserKeyInput) (*mcp.CallToolResult, AckOutput, error) {
	return ack(s.client.OptOut(ctx, input.UserKey))
}

type RetargetInput struct {
	UserKey string `json:"user_key,omitempty"`
	BrandID int    `json:"brand_id"`
	Segment int    `json:"segment"`
}

func (s *DecisionServer) Retarget(ctx context.Context, req *mcp.CallToolRequest, input RetargetInput) (*mcp.CallToolResult, AckOutput, error) {
	return ack(s.client.Retarget(ctx, input.BrandID, input.Segment, input.UserKey))
}

type PropertiesInput struct {
	UserKey    string         `json:"user_key,omitempty"`
	Properties map[string]any `json:"properties"`
}

func (s *DecisionServer) PostProperties(ctx context.Context, req *mcp.CallToolRequest, input PropertiesInput) (*mcp.CallToolResult, AckOutput, error) {
	return ack(s.client.PostProperties(ctx, input.Properties, input.UserKey))
}

// ack turns a profile call result into tool output. A non-200 is reported
// as ok=false, not as a tool error.
func ack(ok bool, err error) (*mcp.CallToolResult, AckOutput, error) {
	if err != nil {
		return nil, AckOutput{}, err
	}
	return nil, AckOutput{OK: ok}, nil
}
