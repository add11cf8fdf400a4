package mcp

import "github.com/mark3labs/mcp-go/server"

// Server metadata reported to MCP clients.
const (
	ServerName    = "opcalc"
	ServerVersion = "0.1.0"
)

const instructions = "Profitability calculator for an OP stack rollup. " +
	"opcalc_calculate estimates daily revenue, L1 calldata cost and profit for a daily transaction count. " +
	"opcalc_stats and opcalc_weights show the Dune statistics and category mix behind the estimate. " +
	"opcalc_health reports whether upstream data is currently available."

// NewServer builds an MCP server exposing the calculator tools backed by client.
func NewServer(client *Client) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
		server.WithInstructions(instructions),
		server.WithRecovery(),
	)
	RegisterTools(s, client)
	return s
}
