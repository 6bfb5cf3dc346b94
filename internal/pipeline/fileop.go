package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/codeseer/codeseer/internal/budget"
	"github.com/codeseer/codeseer/internal/fileops"
	"github.com/codeseer/codeseer/internal/llm"
	"github.com/codeseer/codeseer/internal/llmretry"
)

// FileOpWorkflow turns a change request into a validated operations envelope
// and, on demand, applies it through the fileops engine. Planning and
// applying are separate so callers can show the proposal and ask for
// confirmation first.
type FileOpWorkflow struct {
	snippets SnippetSource
	context  ContextProvider
	budget   budget.Budget
	client   llm.Client
	invoker  *llmretry.Invoker
	engine   *fileops.Engine
	root     string
	logger   *slog.Logger
}

// NewFileOpWorkflow creates a FileOpWorkflow rooted at the engine's project
// directory.
func NewFileOpWorkflow(snippets SnippetSource, context ContextProvider, b budget.Budget, client llm.Client, invoker *llmretry.Invoker, engine *fileops.Engine, root string) *FileOpWorkflow {
	return &FileOpWorkflow{
		snippets: snippets,
		context:  context,
		budget:   b,
		client:   client,
		invoker:  invoker,
		engine:   engine,
		root:     root,
		logger:   slog.Default(),
	}
}

// Plan asks the model for file operations satisfying the request and parses
// the response strictly. A malformed response surfaces as *fileops.ParseError.
func (w *FileOpWorkflow) Plan(ctx context.Context, question string) (*fileops.Envelope, error) {
	packed := budget.Pack(w.snippets.Get(ctx, question), w.budget)
	current := w.currentFileContent(question)
	prompt := fileOpPrompt(w.context.FocusedContext(question, answerContextUnits), packed, question, current)

	raw, err := w.invoker.Invoke(ctx, budget.EstimateUnits(prompt), func(ctx context.Context) (string, error) {
		return w.client.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}})
	})
	if err != nil {
		return nil, err
	}
	return fileops.ParseOperations(raw)
}

// Apply executes a planned envelope and returns one result line per
// operation.
func (w *FileOpWorkflow) Apply(env *fileops.Envelope) []string {
	return w.engine.Apply(env)
}

// currentFileContent loads the file named in the request, if the request
// mentions exactly one path that exists under the root. Modification prompts
// work much better when the model sees what it is editing.
func (w *FileOpWorkflow) currentFileContent(question string) string {
	var found string
	for _, word := range strings.Fields(question) {
		word = strings.Trim(word, `"'.,;:()`)
		if !strings.Contains(word, "/") && !strings.Contains(word, ".go") {
			continue
		}
		p := filepath.Join(w.root, filepath.FromSlash(word))
		info, err := os.Stat(p)
		if err != nil || info.IsDir() || info.Size() > 64*1024 {
			continue
		}
		if found != "" {
			return "" // ambiguous: more than one candidate path
		}
		found = p
	}
	if found == "" {
		return ""
	}
	data, err := os.ReadFile(found)
	if err != nil {
		w.logger.Warn("could not read referenced file", "path", found, "error", err)
		return ""
	}
	return string(data)
}
