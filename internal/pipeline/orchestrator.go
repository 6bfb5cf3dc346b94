package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/codeseer/codeseer/internal/budget"
	"github.com/codeseer/codeseer/internal/llm"
	"github.com/codeseer/codeseer/internal/llmretry"
)

// Failure policies for sub-question execution.
const (
	// PolicyAbort stops the run on the first sub-question failure. With
	// sequential execution, later sub-questions are never started.
	PolicyAbort = "abort"
	// PolicyBestEffort records failures as per-sub-answer metadata and
	// synthesizes from whatever succeeded. A run where every sub-question
	// fails is still an error.
	PolicyBestEffort = "best-effort"
)

const (
	synthesisMaxChars = 4000
	truncationMarker  = "\n\n[Additional answers truncated...]"
)

// QueryPlanner turns a question into an ordered plan of sub-questions.
type QueryPlanner interface {
	Plan(ctx context.Context, question, projectContext string) ([]SubQuery, error)
}

// SubQueryExecutor answers one sub-question.
type SubQueryExecutor interface {
	Execute(ctx context.Context, sub SubQuery) (string, error)
}

// SubAnswer pairs a sub-question with its answer, or with the error that
// prevented one under the best-effort policy.
type SubAnswer struct {
	Query  SubQuery
	Answer string
	Err    error
}

// Result is a completed run: the final answer plus every sub-answer in plan
// order for traceability.
type Result struct {
	Answer     string
	SubAnswers []SubAnswer
}

// Options configure run behavior.
type Options struct {
	// Policy is PolicyAbort (default) or PolicyBestEffort.
	Policy string
	// Parallelism > 1 executes sub-questions on a bounded worker pool with
	// results joined back in plan order. 0 or 1 means sequential.
	Parallelism int
}

// Orchestrator drives a run: Planning, Executing, Synthesizing, Done. Any
// propagated failure aborts the run with an error; there is no partial
// Result.
type Orchestrator struct {
	planner     QueryPlanner
	executor    SubQueryExecutor
	context     ContextProvider
	client      llm.Client
	invoker     *llmretry.Invoker
	policy      string
	parallelism int
	logger      *slog.Logger
}

// NewOrchestrator creates an Orchestrator over the given collaborators.
func NewOrchestrator(planner QueryPlanner, executor SubQueryExecutor, context ContextProvider, client llm.Client, invoker *llmretry.Invoker, opts Options) *Orchestrator {
	policy := opts.Policy
	if policy == "" {
		policy = PolicyAbort
	}
	return &Orchestrator{
		planner:     planner,
		executor:    executor,
		context:     context,
		client:      client,
		invoker:     invoker,
		policy:      policy,
		parallelism: opts.Parallelism,
		logger:      slog.Default(),
	}
}

// Run answers question end to end. With exactly one successful sub-answer
// the answer is returned verbatim and no synthesis call is made.
func (o *Orchestrator) Run(ctx context.Context, question string) (*Result, error) {
	plan, err := o.planner.Plan(ctx, question, o.context.FocusedContext(question, planContextUnits))
	if err != nil {
		return nil, fmt.Errorf("planning: %w", err)
	}
	o.logger.Info("plan ready", "sub_questions", len(plan))

	var answers []SubAnswer
	if o.parallelism > 1 {
		answers, err = o.executeParallel(ctx, plan)
	} else {
		answers, err = o.executeSequential(ctx, plan)
	}
	if err != nil {
		return nil, err
	}

	var succeeded []SubAnswer
	for _, a := range answers {
		if a.Err == nil {
			succeeded = append(succeeded, a)
		}
	}
	if len(succeeded) == 0 {
		return nil, fmt.Errorf("all %d sub-questions failed: %w", len(answers), answers[len(answers)-1].Err)
	}
	if len(succeeded) == 1 {
		return &Result{Answer: succeeded[0].Answer, SubAnswers: answers}, nil
	}

	final, err := o.synthesize(ctx, question, succeeded)
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	return &Result{Answer: final, SubAnswers: answers}, nil
}

func (o *Orchestrator) executeSequential(ctx context.Context, plan []SubQuery) ([]SubAnswer, error) {
	answers := make([]SubAnswer, 0, len(plan))
	for _, sub := range plan {
		o.logger.Info("researching sub-question", "index", sub.Index, "text", sub.Text)
		answer, err := o.executor.Execute(ctx, sub)
		if err != nil {
			if o.policy == PolicyAbort {
				return nil, fmt.Errorf("sub-question %d: %w", sub.Index+1, err)
			}
			o.logger.Warn("sub-question failed, continuing", "index", sub.Index, "error", err)
		}
		answers = append(answers, SubAnswer{Query: sub, Answer: answer, Err: err})
	}
	return answers, nil
}

func (o *Orchestrator) executeParallel(ctx context.Context, plan []SubQuery) ([]SubAnswer, error) {
	answers := make([]SubAnswer, len(plan))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)

	for _, sub := range plan {
		sub := sub
		g.Go(func() error {
			answer, err := o.executor.Execute(gCtx, sub)
			answers[sub.Index] = SubAnswer{Query: sub, Answer: answer, Err: err}
			if err != nil && o.policy == PolicyAbort {
				return fmt.Errorf("sub-question %d: %w", sub.Index+1, err)
			}
			if err != nil {
				o.logger.Warn("sub-question failed, continuing", "index", sub.Index, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return answers, nil
}

// synthesize merges multiple sub-answers into one response. The Q/A block is
// truncated to synthesisMaxChars before the generation call so the merge
// prompt stays bounded regardless of how verbose the sub-answers were.
func (o *Orchestrator) synthesize(ctx context.Context, question string, answers []SubAnswer) (string, error) {
	blocks := make([]string, len(answers))
	for i, a := range answers {
		blocks[i] = fmt.Sprintf("Q: %s\nA: %s", a.Query.Text, a.Answer)
	}
	block := strings.Join(blocks, "\n\n")
	if len(block) > synthesisMaxChars {
		block = block[:synthesisMaxChars] + truncationMarker
	}

	prompt := synthesisPrompt(o.context.FocusedContext(question, synthesisContextUnits), block)
	out, err := o.invoker.Invoke(ctx, budget.EstimateUnits(prompt), func(ctx context.Context) (string, error) {
		return o.client.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}})
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
