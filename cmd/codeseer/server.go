package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"

	"github.com/codeseer/codeseer/internal/api"
	"github.com/codeseer/codeseer/internal/budget"
	"github.com/codeseer/codeseer/internal/config"
	"github.com/codeseer/codeseer/internal/fileops"
	"github.com/codeseer/codeseer/internal/ingest"
	"github.com/codeseer/codeseer/internal/llm"
	"github.com/codeseer/codeseer/internal/llmretry"
	"github.com/codeseer/codeseer/internal/pipeline"
	"github.com/codeseer/codeseer/internal/projectctx"
	"github.com/codeseer/codeseer/internal/retrieval"
	"github.com/codeseer/codeseer/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the codeseer server (foreground)",
	Long: `Start the codeseer server in the foreground.

Serves the HTTP API on 127.0.0.1, runs the vectorization worker, and
exposes MCP tools over stdio for editor integration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

// app bundles the wired components shared by the server and the local
// commands (apply, search).
type app struct {
	Cfg       config.Config
	Store     *storage.Store
	Cache     *retrieval.Cache
	Retriever *retrieval.Retriever
	Orch      *pipeline.Orchestrator
	Workflow  *pipeline.FileOpWorkflow
	Worker    *ingest.Worker
}

func (a *app) Close() {
	if err := a.Store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
	}
}

func buildApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	root, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	client := llm.New(llm.Options{
		BaseURL:     cfg.Provider.BaseURL,
		APIKey:      cfg.Provider.APIKey,
		Model:       cfg.Provider.Model,
		EmbedModel:  cfg.Provider.EmbedModel,
		Temperature: cfg.Provider.Temperature,
		MaxTokens:   cfg.Provider.MaxTokens,
	})

	baseDelay, err := time.ParseDuration(cfg.Retry.BaseDelay)
	if err != nil {
		slog.Warn("invalid retry base delay, using default 2s", "value", cfg.Retry.BaseDelay, "error", err)
		baseDelay = 2 * time.Second
	}
	invoker := llmretry.New(llmretry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   baseDelay,
	})

	embedder := retrieval.NewEmbedder(client)
	vectorStore := retrieval.NewSQLiteStore(store.DB())
	retriever := retrieval.NewRetriever(embedder, vectorStore)
	cache := retrieval.NewCache(retriever, cfg.Retrieval.CacheCapacity, cfg.Retrieval.TopK)

	scanner, err := projectctx.NewScanner(root)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("scanning project: %w", err)
	}

	b := budget.Budget{
		MaxUnits:         cfg.Budget.MaxUnits,
		MaxSnippets:      cfg.Budget.MaxSnippets,
		MinFragmentUnits: cfg.Budget.MinFragmentUnits,
	}

	planner := pipeline.NewPlanner(client, invoker, cfg.Planner.MaxSubQuestions)
	executor := pipeline.NewExecutor(cache, scanner, b, client, invoker)
	orch := pipeline.NewOrchestrator(planner, executor, scanner, client, invoker, pipeline.Options{
		Policy:      cfg.Orchestrator.Policy,
		Parallelism: cfg.Orchestrator.Parallelism,
	})

	engine, err := fileops.NewEngine(root)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating file engine: %w", err)
	}
	workflow := pipeline.NewFileOpWorkflow(cache, scanner, b, client, invoker, engine, root)

	pollInterval, err := time.ParseDuration(cfg.Ingest.PollInterval)
	if err != nil {
		slog.Warn("invalid ingest poll interval, using default 500ms", "value", cfg.Ingest.PollInterval, "error", err)
		pollInterval = 500 * time.Millisecond
	}
	worker := ingest.NewWorker(store, embedder, vectorStore, ingest.Options{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
		PollInterval: pollInterval,
	})

	return &app{
		Cfg:       cfg,
		Store:     store,
		Cache:     cache,
		Retriever: retriever,
		Orch:      orch,
		Workflow:  workflow,
		Worker:    worker,
	}, nil
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "codeseer version %s\n", version)

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Cfg.Server.AuthToken == "" {
		return fmt.Errorf("server.auth_token is not set; set it in the config file or via CODESEER_AUTH_TOKEN")
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(a.Cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := api.NewHandler(api.Deps{
		Store:  a.Store,
		Runner: a.Orch,
		Cache:  a.Cache,
		Token:  a.Cfg.Server.AuthToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", a.Cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	if a.Cfg.Server.MaxConns > 0 {
		ln = netutil.LimitListener(ln, a.Cfg.Server.MaxConns)
	}

	// Start the vectorization worker.
	go a.Worker.Run(ctx)

	// Build and start the MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:    a.Store,
		Runner:   a.Orch,
		Searcher: a.Retriever,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "codeseer listening on %s\n", addr)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
