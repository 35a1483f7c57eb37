// Package mcp exposes the task lifecycle to agents over the Model Context
// Protocol. Every mutating tool takes a wallet argument naming the actor,
// mirroring the wallet header on the HTTP API.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"taskmap-backend/lifecycle"
)

// MCPServer wraps the mcp-go server with our business logic
type MCPServer struct {
	mcpServer *server.MCPServer
	ctrl      *lifecycle.Controller
	escrow    lifecycle.EscrowReader
}

// NewMCPServer creates a new MCP server using the mcp-go library
func NewMCPServer(ctrl *lifecycle.Controller, escrow lifecycle.EscrowReader) *MCPServer {
	mcpServer := server.NewMCPServer(
		"Taskmap MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s := &MCPServer{
		mcpServer: mcpServer,
		ctrl:      ctrl,
		escrow:    escrow,
	}

	s.registerTools()

	return s
}

// GetMCPServer returns the underlying MCP server for transport setup
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// registerTools registers all MCP tools with the server
func (s *MCPServer) registerTools() {
	// Read side
	s.registerListTasksTool()
	s.registerGetTaskTool()
	s.registerEscrowStatusTool()

	// Lifecycle transitions
	s.registerCreateTaskTool()
	s.registerAcceptTaskTool()
	s.registerSubmitWorkTool()
	s.registerRequestChangesTool()
	s.registerFundEscrowTool()
	s.registerApproveTaskTool()
	s.registerMarkPaidTool()
}
