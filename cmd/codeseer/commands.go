package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeseer/codeseer/internal/fileops"
	"github.com/codeseer/codeseer/internal/ingest"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the indexed codebase",
	Long: `Ask a question about the indexed codebase.

The question is planned into focused sub-questions, each answered against
retrieved code, and the answers are synthesized into one response.

Examples:
  codeseer ask "how does request authentication work?"
  codeseer ask --trace "where are vectorization jobs claimed?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		trace, _ := cmd.Flags().GetBool("trace")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/ask", map[string]any{"question": question})
		if err != nil {
			return err
		}

		var result struct {
			Answer     string `json:"answer"`
			SubAnswers []struct {
				Question string `json:"question"`
				Answer   string `json:"answer"`
				Error    string `json:"error"`
			} `json:"sub_answers"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if trace {
			for i, sa := range result.SubAnswers {
				fmt.Printf("%s %s\n", colorize(ansiBold, fmt.Sprintf("[%d]", i+1)), sa.Question)
				if sa.Error != "" {
					printError("failed: %s", sa.Error)
					continue
				}
				fmt.Printf("%s\n\n", sa.Answer)
			}
			fmt.Println(colorize(ansiBold, "--- Answer ---"))
		}
		fmt.Println(result.Answer)
		return nil
	},
}

func init() {
	askCmd.Flags().Bool("trace", false, "show per-sub-question answers before the final answer")
}

// --- apply ---

var applyCmd = &cobra.Command{
	Use:   "apply <request>",
	Short: "Plan file operations for a request and optionally apply them",
	Long: `Plan file operations for a request and optionally apply them.

Without --execute the proposed operations are printed and nothing is
written. Modified files are backed up under .codeseer-backups first.

Examples:
  codeseer apply "create a health handler in internal/api"
  codeseer apply --execute "add a Close method to the session store"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		request := strings.Join(args, " ")
		execute, _ := cmd.Flags().GetBool("execute")

		if !fileops.LooksLikeFileOperation(request) {
			printWarning("request does not look like a file operation, planning anyway")
		}

		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		printStep("Planning file operations...")
		env, err := app.Workflow.Plan(cmd.Context(), request)
		if err != nil {
			return err
		}

		if env.Analysis != "" {
			fmt.Printf("%s %s\n\n", colorize(ansiBold, "Analysis:"), env.Analysis)
		}
		for _, op := range env.Operations {
			switch op.Type {
			case fileops.OpCreateFile:
				printStep("create %s (%d bytes)", op.Path, len(op.Content))
			case fileops.OpModifyFile:
				printStep("modify %s (%d modifications)", op.Path, len(op.Modifications))
			case fileops.OpCreateDirectory:
				printStep("mkdir %s", op.Path)
			}
		}
		if env.Explanation != "" {
			fmt.Printf("\n%s\n", env.Explanation)
		}

		if !execute {
			printWarning("Dry run. Re-run with --execute to apply.")
			return nil
		}

		results := app.Workflow.Apply(env)
		for _, r := range results {
			if strings.HasSuffix(r, ": ok") {
				printSuccess("%s", r)
			} else {
				printError("%s", r)
			}
		}
		return nil
	},
}

func init() {
	applyCmd.Flags().Bool("execute", false, "apply the proposed operations")
}

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Queue content for indexing",
	Long: `Queue content for indexing.

Examples:
  codeseer ingest --file ./internal/api/server.go
  codeseer ingest --file ./docs/design.pdf
  codeseer ingest --text "sessions are stored in SQLite" --title conventions`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		file, _ := cmd.Flags().GetString("file")
		title, _ := cmd.Flags().GetString("title")
		docType, _ := cmd.Flags().GetString("type")

		if text == "" && file == "" {
			return fmt.Errorf("one of --text or --file is required")
		}

		req := map[string]any{}
		switch {
		case file != "":
			doc, err := ingest.LoadDocument(file)
			if err != nil {
				return err
			}
			req["source"] = doc.Source
			req["type"] = doc.SourceType
			req["title"] = doc.Title
			req["content"] = doc.Content
		case text != "":
			req["source"] = "cli"
			req["type"] = "doc"
			req["content"] = text
		}
		if title != "" {
			req["title"] = title
		}
		if docType != "" {
			req["type"] = docType
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/ingest", req)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Queued doc %s", result["id"])
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("text", "", "text content to ingest")
	ingestCmd.Flags().String("file", "", "file path to ingest (PDF is converted to text)")
	ingestCmd.Flags().String("title", "", "title for the document")
	ingestCmd.Flags().String("type", "", "source type: code, doc, or pdf")
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over the code index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		snippets, err := app.Retriever.Retrieve(cmd.Context(), query, limit)
		if err != nil {
			return err
		}

		if len(snippets) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		for i, s := range snippets {
			fmt.Printf("\n%s %s [score: %.3f]\n", colorize(ansiBold, fmt.Sprintf("Result %d", i+1)), s.Source, s.Score)
			text := s.Content
			if len(text) > 500 {
				text = text[:500] + "..."
			}
			fmt.Printf("  %s\n", strings.ReplaceAll(text, "\n", "\n  "))
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("limit", 5, "maximum number of results")
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show codeseer server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/health")
		if err != nil {
			printStatus("Server", "stopped")
			return nil
		}
		var health map[string]string
		if err := decodeJSON(resp, &health); err != nil {
			return err
		}
		printStatus("Server", "running (%s)", health["status"])

		statsResp, err := client.get(cmd.Context(), "/stats")
		if err != nil {
			return err
		}
		var stats struct {
			Documents   int `json:"documents"`
			PendingJobs int `json:"pending_jobs"`
			FailedJobs  int `json:"failed_jobs"`
			Cache       struct {
				Hits    int64 `json:"hits"`
				Misses  int64 `json:"misses"`
				Entries int   `json:"entries"`
			} `json:"cache"`
		}
		if err := decodeJSON(statsResp, &stats); err != nil {
			return err
		}

		printStatus("Documents", "%d", stats.Documents)
		printStatus("Pending jobs", "%d", stats.PendingJobs)
		printStatus("Failed jobs", "%d", stats.FailedJobs)
		printStatus("Cache", "%d entries, %d hits / %d misses", stats.Cache.Entries, stats.Cache.Hits, stats.Cache.Misses)
		return nil
	},
}
