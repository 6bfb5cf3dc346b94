package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/codeseer/codeseer/internal/llm"
)

// embedBatchSize is how many texts go into one provider request.
const embedBatchSize = 16

// Embedder wraps an llm.Client to generate text embeddings.
type Embedder struct {
	client llm.Client
}

// NewEmbedder creates an Embedder using the given provider client.
func NewEmbedder(client llm.Client) *Embedder {
	return &Embedder{client: client}
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.client.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedding text: empty response")
	}
	return vecs[0], nil
}

// EmbedBatch returns embedding vectors for multiple texts, in input order.
// Texts are grouped into provider-sized batches embedded concurrently.
// Returns nil (not error) for empty/nil input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid overwhelming the provider.

	for start := 0; start < len(texts); start += embedBatchSize {
		start := start
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			vecs, err := e.client.Embed(gCtx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding batch at %d: %w", start, err)
			}
			copy(results[start:], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
