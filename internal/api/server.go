// Package api exposes the HTTP and MCP surfaces of the server: ask a
// question, queue a document for ingestion, and read health and cache
// statistics.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/codeseer/codeseer/internal/pipeline"
	"github.com/codeseer/codeseer/internal/retrieval"
	"github.com/codeseer/codeseer/internal/storage"
)

const maxRequestBodySize = 1 << 20  // 1MB
const maxIngestBodySize = 10 << 20 // 10MB

// Runner answers a question end to end. Satisfied by pipeline.Orchestrator.
type Runner interface {
	Run(ctx context.Context, question string) (*pipeline.Result, error)
}

// CacheStats exposes retrieval cache counters. Satisfied by retrieval.Cache.
type CacheStats interface {
	Stats() retrieval.Stats
}

// Deps carries everything the HTTP handlers need.
type Deps struct {
	Store  *storage.Store
	Runner Runner
	Cache  CacheStats
	Token  string
}

// NewHandler returns the HTTP API. /health is open; everything else sits
// behind bearer auth.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/ask", handleAsk(deps))
		r.Post("/ingest", handleIngest(deps))
		r.Get("/stats", handleStats(deps))
	})

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if err := deps.Store.DB().PingContext(r.Context()); err != nil {
			status = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse carries the final answer and the per-sub-question trace.
type AskResponse struct {
	Answer     string      `json:"answer"`
	SubAnswers []SubAnswer `json:"sub_answers"`
}

type SubAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
	Error    string `json:"error,omitempty"`
}

func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Question == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		}

		result, err := deps.Runner.Run(r.Context(), req.Question)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "run failed: %v", err)
			return
		}

		resp := AskResponse{Answer: result.Answer}
		for _, sa := range result.SubAnswers {
			out := SubAnswer{Question: sa.Query.Text, Answer: sa.Answer}
			if sa.Err != nil {
				out.Error = sa.Err.Error()
			}
			resp.SubAnswers = append(resp.SubAnswers, out)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

// IngestRequest is the body of POST /ingest.
type IngestRequest struct {
	Source  string `json:"source"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

func handleIngest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxIngestBodySize)
		defer r.Body.Close()

		var req IngestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Source == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "source is required")
			return
		}
		if req.Content == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content is required")
			return
		}
		if req.Type == "" {
			req.Type = "doc"
		}
		if req.Title == "" {
			req.Title = req.Source
		}

		doc := storage.Document{
			ID:         uuid.New().String(),
			Title:      req.Title,
			Source:     req.Source,
			SourceType: req.Type,
			Content:    req.Content,
			CreatedAt:  time.Now().UTC(),
		}
		if err := deps.Store.SaveDocument(doc); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save document: %v", err)
			return
		}
		if err := deps.Store.EnqueueJob(uuid.New().String(), doc.ID); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue job: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"id":     doc.ID,
			"status": "queued",
		})
	}
}

// StatsResponse reports index size, queue depth, and cache counters.
type StatsResponse struct {
	Documents   int             `json:"documents"`
	PendingJobs int             `json:"pending_jobs"`
	FailedJobs  int             `json:"failed_jobs"`
	Cache       retrieval.Stats `json:"cache"`
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := deps.Store.CountDocuments()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count documents: %v", err)
			return
		}
		pending, err := deps.Store.CountJobs("pending")
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count jobs: %v", err)
			return
		}
		failed, err := deps.Store.CountJobs("failed")
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count jobs: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(StatsResponse{
			Documents:   docs,
			PendingJobs: pending,
			FailedJobs:  failed,
			Cache:       deps.Cache.Stats(),
		})
	}
}
