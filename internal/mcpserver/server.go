package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all dashboard tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("compliance-dashboard", "1.0.0")
	client := NewDashboardClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolGetDashboard, h.HandleGetDashboard)
	s.AddTool(ToolClassifyRisk, h.HandleClassifyRisk)
	s.AddTool(ToolListAlerts, h.HandleListAlerts)
	s.AddTool(ToolGetWalletGraph, h.HandleGetWalletGraph)
	s.AddTool(ToolRunLocalAnalysis, h.HandleRunLocalAnalysis)
	s.AddTool(ToolGetAnalysisStatus, h.HandleGetAnalysisStatus)
	s.AddTool(ToolAuditContract, h.HandleAuditContract)

	return s
}
