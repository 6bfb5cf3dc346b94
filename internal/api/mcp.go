package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/codeseer/codeseer/internal/retrieval"
	"github.com/codeseer/codeseer/internal/storage"
)

// MCPSearcher abstracts semantic code search for the MCP layer.
type MCPSearcher interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Snippet, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store    *storage.Store
	Runner   Runner
	Searcher MCPSearcher
}

// NewMCPServer creates an MCP server with the codeseer tools registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"codeseer",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("codeseer — retrieval-augmented code assistant over a local project index."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_codebase",
			mcp.WithDescription("Answer a question about the indexed codebase using planned sub-questions and retrieved code."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
		),
		mcpAskCodebase(deps),
	)

	s.AddTool(
		mcp.NewTool("search_code",
			mcp.WithDescription("Semantically search the code index and return relevant snippets."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchCode(deps),
	)

	s.AddTool(
		mcp.NewTool("ingest_document",
			mcp.WithDescription("Store a document or source file in the index for later retrieval."),
			mcp.WithString("source", mcp.Description("Source identifier, usually a file path"), mcp.Required()),
			mcp.WithString("content", mcp.Description("The text content to index"), mcp.Required()),
			mcp.WithString("title", mcp.Description("Optional title")),
		),
		mcpIngestDocument(deps),
	)

	return s
}

func mcpAskCodebase(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		result, err := deps.Runner.Run(ctx, question)
		if err != nil {
			return mcpError(fmt.Sprintf("run failed: %v", err)), nil
		}
		return mcpText(result.Answer), nil
	}
}

func mcpSearchCode(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		snippets, err := deps.Searcher.Retrieve(ctx, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(snippets) == 0 {
			return mcpText("[]"), nil
		}

		type snippetResult struct {
			Source  string  `json:"source"`
			Content string  `json:"content"`
			Score   float32 `json:"score"`
		}
		results := make([]snippetResult, len(snippets))
		for i, s := range snippets {
			results[i] = snippetResult{Source: s.Source, Content: s.Content, Score: s.Score}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpIngestDocument(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		source, err := req.RequireString("source")
		if err != nil {
			return mcpError("source is required"), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}
		title := req.GetString("title", source)

		doc := storage.Document{
			ID:         uuid.New().String(),
			Title:      title,
			Source:     source,
			SourceType: "doc",
			Content:    content,
			CreatedAt:  time.Now().UTC(),
		}
		if err := deps.Store.SaveDocument(doc); err != nil {
			return mcpError(fmt.Sprintf("failed to save: %v", err)), nil
		}
		if err := deps.Store.EnqueueJob(uuid.New().String(), doc.ID); err != nil {
			return mcpError(fmt.Sprintf("saved doc but failed to queue vectorization: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Queued document %s", doc.ID)), nil
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
