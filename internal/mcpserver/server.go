package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all podsight tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("podsight", "1.0.0")
	client := NewPodsightClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolGetUsage, h.HandleGetUsage)
	s.AddTool(ToolScheduleContent, h.HandleScheduleContent)
	s.AddTool(ToolListDeliveries, h.HandleListDeliveries)
	s.AddTool(ToolCancelDelivery, h.HandleCancelDelivery)
	s.AddTool(ToolCheckIntegrations, h.HandleCheckIntegrations)

	return s
}
