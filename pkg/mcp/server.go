// Package mcp exposes a finished generation report over the Model
// Context Protocol, so editor agents can ask what was generated, what
// was stubbed out and why, without re-reading the artifacts.
package mcp

import (
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bindweld/bindweld/pkg/engine"
)

const serverVersion = "0.1.0-dev"

// Server implements the MCP server over one generation report.
type Server struct {
	mcpServer *server.MCPServer
	query     *engine.QueryService
}

// NewServer creates a server backed by the given QueryService.
func NewServer(qs *engine.QueryService) *Server {
	s := &Server{query: qs}

	s.mcpServer = server.NewMCPServer(
		"bindweld",
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.mcpServer.AddTools(
		server.ServerTool{Tool: listEntitiesTool(), Handler: s.handleListEntities},
		server.ServerTool{Tool: getEntityTool(), Handler: s.handleGetEntity},
		server.ServerTool{Tool: listStubsTool(), Handler: s.handleListStubs},
		server.ServerTool{Tool: getRunStatsTool(), Handler: s.handleGetRunStats},
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func listEntitiesTool() mcpgo.Tool {
	return mcpgo.NewTool("list_entities",
		mcpgo.WithDescription("List generated entities, optionally filtered by name substring or kind"),
		mcpgo.WithString("name", mcpgo.Description("Case-insensitive substring of the qualified C++ name")),
		mcpgo.WithString("kind", mcpgo.Description("Entity kind: function, record, enum, typedef, concrete, extern, unparsed")),
	)
}

func getEntityTool() mcpgo.Tool {
	return mcpgo.NewTool("get_entity",
		mcpgo.WithDescription("Fetch one entity by its exact qualified C++ name"),
		mcpgo.WithString("name", mcpgo.Required(), mcpgo.Description("Qualified C++ name, e.g. demo::Goat")),
	)
}

func listStubsTool() mcpgo.Tool {
	return mcpgo.NewTool("list_stubs",
		mcpgo.WithDescription("List symbols that degraded to documented stubs, with reasons"),
	)
}

func getRunStatsTool() mcpgo.Tool {
	return mcpgo.NewTool("get_run_stats",
		mcpgo.WithDescription("Per-phase timings and artifact paths of the generation run"),
	)
}
