package mcp

import (
	"context"
	"log/slog"
	"net/http"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ganot/simcatalog/internal/query"
)

// Queries defines the query engine operations exposed as tools.
type Queries interface {
	ListSimulations(ctx context.Context, req query.ListRequest) ([]query.SimulationSummary, error)
	GetData(ctx context.Context, spec query.Spec) (*query.DataResult, error)
	GetVariables(ctx context.Context, id string) ([]string, error)
	GetVariableStats(ctx context.Context, id, variable string) (*query.VariableStats, error)
}

// Config contains server configuration.
type Config struct {
	Queries Queries
	Version string
	Logger  *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	version := cfg.Version
	if version == "" {
		version = "0.1.0"
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "simcatalog",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Queries)

	return server
}

// NewHTTPHandler serves the MCP server over streamable HTTP. Tools are
// read-only, so no session state is kept between requests.
func NewHTTPHandler(server *sdkmcp.Server) http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return server },
		&sdkmcp.StreamableHTTPOptions{Stateless: true},
	)
}
