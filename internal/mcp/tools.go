package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	gomcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gateway-fm/opcalc/pkg/types"
)

// RegisterTools registers all calculator tools on the MCP server.
func RegisterTools(s *server.MCPServer, client *Client) {
	registerCalculate(s, client)
	registerStats(s, client)
	registerWeights(s, client)
	registerHealth(s, client)
}

func registerCalculate(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("opcalc_calculate",
		gomcp.WithDescription("Estimate daily revenue, L1 cost and profit of an OP stack rollup for a given daily transaction count. Includes a per-category breakdown."),
		gomcp.WithNumber("daily_txns",
			gomcp.Description("Daily transaction count, must be greater than zero (default: server default, usually 10000)"),
		),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		var raw json.RawMessage
		var err error
		if _, ok := req.GetArguments()["daily_txns"]; ok {
			raw, err = client.Post(ctx, "/v1/calculate", types.CalculateRequest{DailyTxns: req.GetFloat("daily_txns", 0)})
		} else {
			raw, err = client.Get(ctx, "/v1/calculate")
		}

		var resp types.CalculateResponse
		if err := decode(raw, err, &resp); err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("Calculation failed: %v", err)), nil
		}
		return gomcp.NewToolResultText(formatCalculation(&resp)), nil
	})
}

func registerStats(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("opcalc_stats",
		gomcp.WithDescription("Show the per-category median transaction stats and the median L1 gas price currently used by the calculator."),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		var resp types.StatsResponse
		raw, err := client.Get(ctx, "/v1/stats")
		if err := decode(raw, err, &resp); err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("Stats unavailable: %v", err)), nil
		}
		return gomcp.NewToolResultText(formatStats(&resp)), nil
	})
}

func registerWeights(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("opcalc_weights",
		gomcp.WithDescription("Show the assumed transaction category mix and the regression model version."),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		var resp types.WeightsResponse
		raw, err := client.Get(ctx, "/v1/weights")
		if err := decode(raw, err, &resp); err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("Calculator unreachable: %v", err)), nil
		}
		return gomcp.NewToolResultText(formatWeights(&resp)), nil
	})
}

func registerHealth(s *server.MCPServer, client *Client) {
	tool := gomcp.NewTool("opcalc_health",
		gomcp.WithDescription("Quick health check for the calculator. Checks that upstream stats and gas price data can be served."),
	)
	s.AddTool(tool, func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		var resp readyResponse
		raw, err := client.Get(ctx, "/ready")
		if err := decode(raw, err, &resp); err != nil {
			return gomcp.NewToolResultError(fmt.Sprintf("Calculator unhealthy: %v", err)), nil
		}
		return gomcp.NewToolResultText(formatHealth(&resp)), nil
	})
}

type readyResponse struct {
	Ready  bool                   `json:"ready"`
	Checks []types.ReadinessCheck `json:"checks"`
}

// decode unmarshals a successful API response into v.
func decode(raw json.RawMessage, err error, v any) error {
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
