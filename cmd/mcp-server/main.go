package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/decisionsdk/internal/config"
	"github.com/patrickwarner/decisionsdk/internal/observability"
	"github.com/patrickwarner/decisionsdk/internal/setup"
	"github.com/patrickwarner/decisionsdk/sdk"
)

func main() {
	cfg := config.Load()

	// zap's production config writes to stderr, leaving stdout to the protocol
	logger, err := observability.InitLoggerWithService(cfg.ServiceName + "-mcp")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger, cfg); err != nil {
		logger.Error("mcp server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, cleanup, err := setup.NewClient(ctx, cfg, logger, observability.NewNoOpRegistry())
	if err != nil {
		return fmt.Errorf("build sdk client: %w", err)
	}
	defer cleanup()

	server := newMCPServer(&DecisionServer{client: client, logger: logger})

	stdioTransport := &mcp.StdioTransport{}
	var logBuffer bytes.Buffer
	loggingTransport := &mcp.LoggingTransport{
		Transport: stdioTransport,
		Writer:    &logBuffer,
	}

	logger.Info("MCP server running via stdio",
		zap.Int("network_id", cfg.NetworkID),
		zap.String("identity_backend", cfg.IdentityBackend))

	if err := server.Run(ctx, loggingTransport); err != nil {
		return fmt.Errorf("%w (mcp log: %s)", err, logBuffer.String())
	}
	return nil
}

func newMCPServer(ds *DecisionServer) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "decisionsdk",
		Version: sdk.Version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "decide",
		Description: "Request ad decisions for one or more placements",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"placements": map[string]interface{}{
					"type":        "array",
					"description": "Placements to fill, in order",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"div_name":   map[string]interface{}{"type": "string"},
							"ad_types":   map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "integer"}},
							"count":      map[string]interface{}{"type": "integer", "minimum": 0},
							"network_id": map[string]interface{}{"type": "integer"},
							"site_id":    map[string]interface{}{"type": "integer"},
						},
						"required": []string{"div_name", "ad_types"},
					},
				},
				"user_key": map[string]interface{}{
					"type":        "string",
					"description": "User key (optional, defaults to the stored identity)",
				},
				"keywords": map[string]interface{}{
					"type":  "array",
					"items": map[string]interface{}{"type": "string"},
				},
				"include_pricing": map[string]interface{}{"type": "boolean"},
			},
			"required": []string{"placements"},
		},
	}, ds.Decide)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "read_user",
		Description: "Read the profile stored for a user",
		InputSchema: userKeySchema(nil, nil),
	}, ds.ReadUser)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_interest",
		Description: "Tag a user with an interest",
		InputSchema: userKeySchema(map[string]interface{}{
			"interest": map[string]interface{}{"type": "string"},
		}, []string{"interest"}),
	}, ds.AddInterest)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "opt_out",
		Description: "Opt a user out of tracking",
		InputSchema: userKeySchema(nil, nil),
	}, ds.OptOut)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "retarget",
		Description: "Add a user to a brand's retargeting segment",
		InputSchema: userKeySchema(map[string]interface{}{
			"brand_id": map[string]interface{}{"type": "integer"},
			"segment":  map[string]interface{}{"type": "integer"},
		}, []string{"brand_id", "segment"}),
	}, ds.Retarget)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "post_properties",
		Description: "Replace a user's custom profile properties",
		InputSchema: userKeySchema(map[string]interface{}{
			"properties": map[string]interface{}{"type": "object"},
		}, []string{"properties"}),
	}, ds.PostProperties)

	return server
}

func userKeySchema(extra map[string]interface{}, required []string) map[string]interface{} {
	props := map[string]interface{}{
		"user_key": map[string]interface{}{
			"type":        "string",
			"description": "User key (optional, defaults to the stored identity)",
		},
	}
	for k, v := range extra {
		props[k] = v
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
