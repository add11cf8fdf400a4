// MCP stdio server for the opcalc profitability calculator.
// Each tool forwards to the calculator HTTP API at OPCALC_URL.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcptools "github.com/gateway-fm/opcalc/internal/mcp"
)

const defaultOpcalcURL = "http://localhost:3001"

func main() {
	opcalcURL := os.Getenv("OPCALC_URL")
	if opcalcURL == "" {
		opcalcURL = defaultOpcalcURL
	}

	s := mcptools.NewServer(mcptools.NewClient(opcalcURL))
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "opcalc MCP server error: %v\n", err)
		os.Exit(1)
	}
}
