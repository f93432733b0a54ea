package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/services/documents"
)

// NewServer assembles the stdio MCP server with all documentation tools
// registered. The caller owns the transport (server.ServeStdio).
func NewServer(logger arbor.ILogger, docs *documents.Service, pipeline interfaces.Pipeline) *server.MCPServer {
	if logger == nil {
		logger = common.GetLogger()
	}

	mcpServer := server.NewMCPServer(
		"scriptor",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createSearchDocsTool(), handleSearchDocs(docs, logger))
	mcpServer.AddTool(createListLibrariesTool(), handleListLibraries(docs, logger))
	mcpServer.AddTool(createFindVersionTool(), handleFindVersion(docs, logger))
	mcpServer.AddTool(createIndexDocsTool(), handleIndexDocs(pipeline, logger))
	mcpServer.AddTool(createRemoveDocsTool(), handleRemoveDocs(docs, logger))
	mcpServer.AddTool(createJobStatusTool(), handleJobStatus(pipeline, logger))

	return mcpServer
}
