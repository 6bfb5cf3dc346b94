package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codeseer/codeseer/internal/llm"
	"github.com/codeseer/codeseer/internal/llmretry"
)

// mockClient implements llm.Client for pipeline tests.
type mockClient struct {
	chatFn func(ctx context.Context, messages []llm.Message) (string, error)
}

func (m *mockClient) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return m.chatFn(ctx, messages)
}

func (m *mockClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func fastInvoker() *llmretry.Invoker {
	return llmretry.New(llmretry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond})
}

func TestPlan_ParsesNumberedList(t *testing.T) {
	client := &mockClient{
		chatFn: func(ctx context.Context, messages []llm.Message) (string, error) {
			return "Here is the breakdown:\n" +
				"1. How is authentication handled?\n" +
				"2. Where are the session models defined?\n" +
				"3. What middleware wraps protected routes?\n", nil
		},
	}
	p := NewPlanner(client, fastInvoker(), 4)

	plan, err := p.Plan(context.Background(), "add logout support", "ctx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"How is authentication handled?",
		"Where are the session models defined?",
		"What middleware wraps protected routes?",
	}
	if len(plan) != len(want) {
		t.Fatalf("got %d sub-questions, want %d", len(plan), len(want))
	}
	for i, sub := range plan {
		if sub.Index != i {
			t.Errorf("plan[%d].Index = %d", i, sub.Index)
		}
		if sub.Text != want[i] {
			t.Errorf("plan[%d].Text = %q, want %q", i, sub.Text, want[i])
		}
	}
}

func TestPlan_NoParseableLinesFallsBackToQuestion(t *testing.T) {
	client := &mockClient{
		chatFn: func(ctx context.Context, messages []llm.Message) (string, error) {
			return "I cannot break this down any further, it is already atomic", nil
		},
	}
	p := NewPlanner(client, fastInvoker(), 4)

	plan, err := p.Plan(context.Background(), "what does the cache do", "ctx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan) != 1 {
		t.Fatalf("got %d sub-questions, want 1", len(plan))
	}
	if plan[0].Text != "what does the cache do" {
		t.Errorf("fallback text = %q, want the original question", plan[0].Text)
	}
}

func TestPlan_CapsAtMaximum(t *testing.T) {
	client := &mockClient{
		chatFn: func(ctx context.Context, messages []llm.Message) (string, error) {
			return "1. a\n2. b\n3. c\n4. d\n5. e\n6. f\n", nil
		},
	}
	p := NewPlanner(client, fastInvoker(), 4)

	plan, err := p.Plan(context.Background(), "q", "ctx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan) != 4 {
		t.Errorf("got %d sub-questions, want 4", len(plan))
	}
}

func TestPlan_DiscardsNonListLines(t *testing.T) {
	client := &mockClient{
		chatFn: func(ctx context.Context, messages []llm.Message) (string, error) {
			return "Sure! Here is my plan:\n\n1. First question\nSome commentary.\n2. Second question\n", nil
		},
	}
	p := NewPlanner(client, fastInvoker(), 4)

	plan, err := p.Plan(context.Background(), "q", "ctx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan) != 2 {
		t.Fatalf("got %d sub-questions, want 2: %+v", len(plan), plan)
	}
	if plan[0].Text != "First question" || plan[1].Text != "Second question" {
		t.Errorf("plan = %+v", plan)
	}
}

func TestPlan_GenerationFailurePropagates(t *testing.T) {
	client := &mockClient{
		chatFn: func(ctx context.Context, messages []llm.Message) (string, error) {
			return "", errors.New("invalid api key")
		},
	}
	p := NewPlanner(client, fastInvoker(), 4)

	_, err := p.Plan(context.Background(), "q", "ctx")
	var ferr *llmretry.FatalError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *FatalError, got %T: %v", err, err)
	}
}

func TestParsePlan_EmptyItemsDiscarded(t *testing.T) {
	items := parsePlan("1. \n2. real question\n")
	if len(items) != 1 || items[0] != "real question" {
		t.Errorf("items = %v", items)
	}
}
