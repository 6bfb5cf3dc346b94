package retrieval

import (
	"context"
	"fmt"
)

// Snippet is a retrieved code fragment with its origin and relevance score.
type Snippet struct {
	Content string
	Source  string
	Score   float32
}

// RetrievalError wraps a failure while searching the vector index.
type RetrievalError struct {
	Query string
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed for %q: %v", clip(e.Query, 50), e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Retriever combines embedding and vector search to find relevant snippets.
type Retriever struct {
	embedder *Embedder
	store    VectorStore
}

// NewRetriever creates a Retriever backed by the given Embedder and VectorStore.
func NewRetriever(embedder *Embedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve embeds the query and returns the top-K most similar snippets.
// All failures are reported as *RetrievalError.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]Snippet, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &RetrievalError{Query: query, Err: err}
	}

	scored, err := r.store.Search(vec, topK)
	if err != nil {
		return nil, &RetrievalError{Query: query, Err: err}
	}

	snippets := make([]Snippet, len(scored))
	for i, s := range scored {
		snippets[i] = Snippet{
			Content: s.TextChunk,
			Source:  s.SourceID,
			Score:   s.Score,
		}
	}
	return snippets, nil
}
