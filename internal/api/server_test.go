package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/codeseer/codeseer/internal/pipeline"
	"github.com/codeseer/codeseer/internal/retrieval"
	"github.com/codeseer/codeseer/internal/storage"
)

type mockRunner struct {
	result *pipeline.Result
	err    error
}

func (m *mockRunner) Run(_ context.Context, _ string) (*pipeline.Result, error) {
	return m.result, m.err
}

type mockCacheStats struct {
	stats retrieval.Stats
}

func (m *mockCacheStats) Stats() retrieval.Stats { return m.stats }

func newTestDeps(t *testing.T) (Deps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return Deps{
		Store: store,
		Runner: &mockRunner{result: &pipeline.Result{
			Answer: "the final answer",
			SubAnswers: []pipeline.SubAnswer{
				{Query: pipeline.SubQuery{Index: 0, Text: "sub one"}, Answer: "a1"},
			},
		}},
		Cache: &mockCacheStats{stats: retrieval.Stats{Hits: 3, Misses: 1, Entries: 1}},
		Token: "secret",
	}, store
}

func doRequest(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth_NoAuthRequired(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	w := doRequest(t, h, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %q", resp["status"])
	}
}

func TestAsk_RequiresAuth(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	if w := doRequest(t, h, http.MethodPost, "/ask", "", `{"question":"q"}`); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}
	if w := doRequest(t, h, http.MethodPost, "/ask", "wrong", `{"question":"q"}`); w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", w.Code)
	}
}

func TestAsk_EmptyConfiguredTokenRejectsAll(t *testing.T) {
	deps, _ := newTestDeps(t)
	deps.Token = ""
	h := NewHandler(deps)

	// An empty credential must not match an empty configured token.
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"q"}`))
	req.Header.Set("Authorization", "Bearer ")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("empty credential: status = %d, want 401", w.Code)
	}

	if w := doRequest(t, h, http.MethodPost, "/ask", "", `{"question":"q"}`); w.Code != http.StatusUnauthorized {
		t.Errorf("no header: status = %d, want 401", w.Code)
	}
}

func TestAsk_ReturnsAnswerWithTrace(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	w := doRequest(t, h, http.MethodPost, "/ask", "secret", `{"question":"how does auth work"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp AskResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "the final answer" {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.SubAnswers) != 1 || resp.SubAnswers[0].Question != "sub one" {
		t.Errorf("sub_answers = %+v", resp.SubAnswers)
	}
}

func TestAsk_EmptyQuestionRejected(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	if w := doRequest(t, h, http.MethodPost, "/ask", "secret", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAsk_RunFailureIsBadGateway(t *testing.T) {
	deps, _ := newTestDeps(t)
	deps.Runner = &mockRunner{err: errors.New("planning: giving up after 3 attempts")}
	h := NewHandler(deps)

	w := doRequest(t, h, http.MethodPost, "/ask", "secret", `{"question":"q"}`)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestIngest_QueuesDocument(t *testing.T) {
	deps, store := newTestDeps(t)
	h := NewHandler(deps)

	w := doRequest(t, h, http.MethodPost, "/ingest", "secret",
		`{"source":"pkg/auth.go","type":"code","content":"package auth\n"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "queued" || resp["id"] == "" {
		t.Errorf("resp = %v", resp)
	}

	doc, err := store.GetDocument(resp["id"])
	if err != nil {
		t.Fatalf("document not saved: %v", err)
	}
	if doc.Source != "pkg/auth.go" || doc.SourceType != "code" {
		t.Errorf("doc = %+v", doc)
	}
	pending, err := store.CountJobs("pending")
	if err != nil {
		t.Fatal(err)
	}
	if pending != 1 {
		t.Errorf("pending jobs = %d, want 1", pending)
	}
}

func TestIngest_Validation(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	cases := []struct {
		name string
		body string
	}{
		{"missing source", `{"content":"x"}`},
		{"missing content", `{"source":"a.go"}`},
		{"malformed json", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := doRequest(t, h, http.MethodPost, "/ingest", "secret", tc.body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestStats_ReportsCounts(t *testing.T) {
	deps, store := newTestDeps(t)
	h := NewHandler(deps)

	doc := storage.Document{ID: "d1", Title: "t", Source: "s", SourceType: "doc", Content: "c"}
	if err := store.SaveDocument(doc); err != nil {
		t.Fatal(err)
	}
	if err := store.EnqueueJob("j1", "d1"); err != nil {
		t.Fatal(err)
	}

	w := doRequest(t, h, http.MethodGet, "/stats", "secret", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp StatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Documents != 1 || resp.PendingJobs != 1 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Cache.Hits != 3 {
		t.Errorf("cache stats = %+v", resp.Cache)
	}
}
