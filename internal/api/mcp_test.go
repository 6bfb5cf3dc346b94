package api

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/codeseer/codeseer/internal/pipeline"
	"github.com/codeseer/codeseer/internal/retrieval"
	"github.com/codeseer/codeseer/internal/storage"
)

type mockMCPSearcher struct {
	snippets []retrieval.Snippet
	err      error
}

func (m *mockMCPSearcher) Retrieve(_ context.Context, _ string, _ int) ([]retrieval.Snippet, error) {
	return m.snippets, m.err
}

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return MCPDeps{
		Store:    store,
		Runner:   &mockRunner{},
		Searcher: &mockMCPSearcher{},
	}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPTool_AskCodebase(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	deps.Runner = &mockRunner{result: &pipeline.Result{Answer: "answer from plan"}}
	handler := mcpAskCodebase(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask_codebase", map[string]interface{}{
		"question": "how are sessions stored?",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != "answer from plan" {
		t.Errorf("text = %q", got)
	}
}

func TestMCPTool_AskCodebase_MissingQuestion(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpAskCodebase(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask_codebase", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for missing question")
	}
}

func TestMCPTool_AskCodebase_RunFailure(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	deps.Runner = &mockRunner{err: errors.New("all sub-questions failed")}
	handler := mcpAskCodebase(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask_codebase", map[string]interface{}{
		"question": "q",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for run failure")
	}
}

func TestMCPTool_SearchCode(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	deps.Searcher = &mockMCPSearcher{snippets: []retrieval.Snippet{
		{Source: "auth.go", Content: "func Login()", Score: 0.9},
	}}
	handler := mcpSearchCode(deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_code", map[string]interface{}{
		"query": "login",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var results []map[string]interface{}
	if err := json.Unmarshal([]byte(toolText(t, result)), &results); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if len(results) != 1 || results[0]["source"] != "auth.go" {
		t.Errorf("results = %v", results)
	}
}

func TestMCPTool_SearchCode_EmptyIndex(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpSearchCode(deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_code", map[string]interface{}{
		"query": "anything",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := toolText(t, result); got != "[]" {
		t.Errorf("text = %q, want []", got)
	}
}

func TestMCPTool_IngestDocument(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	handler := mcpIngestDocument(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ingest_document", map[string]interface{}{
		"source":  "notes/design.md",
		"content": "# Design\nThe planner caps sub-questions at 4.",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	count, err := store.CountDocuments()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("documents = %d, want 1", count)
	}
	pending, err := store.CountJobs("pending")
	if err != nil {
		t.Fatal(err)
	}
	if pending != 1 {
		t.Errorf("pending jobs = %d, want 1", pending)
	}
}
