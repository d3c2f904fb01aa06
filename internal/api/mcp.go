package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates an MCP server exposing trend queries as a tool.
func NewMCPServer(q Querier, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"trendproxy",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("trendproxy: daily search interest for up to five keywords over the last month."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("interest_over_time",
			mcp.WithDescription("Fetch daily search interest (0-100) for up to five comma-separated keywords over the recent window."),
			mcp.WithString("keywords", mcp.Description("Comma-separated keywords, e.g. \"coffee,tea\""), mcp.Required()),
		),
		mcpInterestOverTime(q),
	)

	return s
}

func mcpInterestOverTime(q Querier) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		keywords, err := req.RequireString("keywords")
		if err != nil {
			return mcpError("keywords is required"), nil
		}

		series, err := q.Query(ctx, keywords, true)
		if err != nil {
			_, body := errorResponse(err)
			msg := body.Message
			if body.RetryAfter > 0 {
				msg = fmt.Sprintf("%s (retry after %ds)", msg, body.RetryAfter)
			}
			return mcpError(fmt.Sprintf("%s: %s", body.Error, msg)), nil
		}

		b, err := json.Marshal(series)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
