// Package pipeline implements the query orchestration flow: plan a question
// into sub-questions, answer each against retrieved code, and synthesize the
// results into a single response.
package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/codeseer/codeseer/internal/budget"
	"github.com/codeseer/codeseer/internal/llm"
	"github.com/codeseer/codeseer/internal/llmretry"
)

const defaultMaxSubQuestions = 4

// SubQuery is one planned sub-question, numbered by plan position.
type SubQuery struct {
	Index int
	Text  string
}

// Planner decomposes a question into an ordered list of sub-questions by
// asking the generation model for a numbered list.
type Planner struct {
	client  llm.Client
	invoker *llmretry.Invoker
	max     int
	logger  *slog.Logger
}

// NewPlanner creates a Planner. maxSubQuestions <= 0 selects the default (4).
func NewPlanner(client llm.Client, invoker *llmretry.Invoker, maxSubQuestions int) *Planner {
	if maxSubQuestions <= 0 {
		maxSubQuestions = defaultMaxSubQuestions
	}
	return &Planner{
		client:  client,
		invoker: invoker,
		max:     maxSubQuestions,
		logger:  slog.Default(),
	}
}

// Plan returns between 1 and the configured maximum of sub-questions, in the
// order the model produced them. A response with no parseable list items
// falls back to a single sub-question equal to the original question, so the
// plan is never empty. Generation failures propagate to the caller.
func (p *Planner) Plan(ctx context.Context, question, projectContext string) ([]SubQuery, error) {
	prompt := planPrompt(question, projectContext)

	raw, err := p.invoker.Invoke(ctx, budget.EstimateUnits(prompt), func(ctx context.Context) (string, error) {
		return p.client.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}})
	})
	if err != nil {
		return nil, err
	}

	texts := parsePlan(raw)
	if len(texts) == 0 {
		p.logger.Debug("plan response had no list items, falling back to original question")
		texts = []string{question}
	}
	if len(texts) > p.max {
		texts = texts[:p.max]
	}

	plan := make([]SubQuery, len(texts))
	for i, text := range texts {
		plan[i] = SubQuery{Index: i, Text: text}
	}
	return plan, nil
}

// parsePlan extracts list items from a model response. A line is an item iff
// it contains ". "; the item text is everything after the first occurrence,
// trimmed. Lines without the separator, and items that trim to nothing, are
// discarded.
func parsePlan(raw string) []string {
	var items []string
	for _, line := range strings.Split(raw, "\n") {
		_, rest, ok := strings.Cut(line, ". ")
		if !ok {
			continue
		}
		if text := strings.TrimSpace(rest); text != "" {
			items = append(items, text)
		}
	}
	return items
}
