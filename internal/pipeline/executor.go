package pipeline

import (
	"context"
	"strings"

	"github.com/codeseer/codeseer/internal/budget"
	"github.com/codeseer/codeseer/internal/llm"
	"github.com/codeseer/codeseer/internal/llmretry"
	"github.com/codeseer/codeseer/internal/retrieval"
)

// SnippetSource serves retrieved snippets for a query. Satisfied by
// retrieval.Cache.
type SnippetSource interface {
	Get(ctx context.Context, query string) []retrieval.Snippet
}

// ContextProvider supplies a project-context string focused on a question,
// capped at maxUnits estimated units. Satisfied by projectctx.Scanner.
type ContextProvider interface {
	FocusedContext(question string, maxUnits int) string
}

// Executor answers a single sub-question: retrieve snippets, pack them into
// the content budget, and generate an answer grounded in the packed code.
type Executor struct {
	snippets SnippetSource
	context  ContextProvider
	budget   budget.Budget
	client   llm.Client
	invoker  *llmretry.Invoker
}

// NewExecutor creates an Executor over the given collaborators.
func NewExecutor(snippets SnippetSource, context ContextProvider, b budget.Budget, client llm.Client, invoker *llmretry.Invoker) *Executor {
	return &Executor{
		snippets: snippets,
		context:  context,
		budget:   b,
		client:   client,
		invoker:  invoker,
	}
}

// Execute returns the trimmed answer for sub. A retrieval failure inside the
// snippet source yields an empty code context rather than an error; any
// generation failure propagates unchanged.
func (e *Executor) Execute(ctx context.Context, sub SubQuery) (string, error) {
	packed := budget.Pack(e.snippets.Get(ctx, sub.Text), e.budget)
	prompt := answerPrompt(e.context.FocusedContext(sub.Text, answerContextUnits), packed, sub.Text)

	out, err := e.invoker.Invoke(ctx, budget.EstimateUnits(prompt), func(ctx context.Context) (string, error) {
		return e.client.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}})
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
