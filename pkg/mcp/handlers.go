package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) handleListEntities(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	name := req.GetString("name", "")
	kind := req.GetString("kind", "")

	entities := s.query.Entities(name, kind)
	return jsonResult(entities)
}

func (s *Server) handleGetEntity(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}

	entity, ok := s.query.Lookup(name)
	if !ok {
		return mcpgo.NewToolResultError(fmt.Sprintf("no entity named %q in this run", name)), nil
	}
	return jsonResult(entity)
}

func (s *Server) handleListStubs(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return jsonResult(s.query.Stubs())
}

func (s *Server) handleGetRunStats(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	report := s.query.Report()
	return jsonResult(map[string]any{
		"mod_name":  report.ModName,
		"stats":     report.Stats,
		"artifacts": report.Artifacts,
	})
}

func jsonResult(v any) (*mcpgo.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcpgo.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcpgo.NewToolResultText(string(data)), nil
}
