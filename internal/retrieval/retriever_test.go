package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/codeseer/codeseer/internal/llm"
)

// mockClient implements llm.Client.
type mockClient struct {
	chatFn  func(ctx context.Context, messages []llm.Message) (string, error)
	embedFn func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockClient) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	if m.chatFn != nil {
		return m.chatFn(ctx, messages)
	}
	return "", nil
}

func (m *mockClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if m.embedFn != nil {
		return m.embedFn(ctx, texts)
	}
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = []float32{1, 0}
	}
	return vecs, nil
}

// mockStore implements VectorStore.
type mockStore struct {
	searchFn func(vector []float32, topK int) ([]ScoredRecord, error)
}

func (m *mockStore) Insert(records []Record) error { return nil }
func (m *mockStore) Search(vector []float32, topK int) ([]ScoredRecord, error) {
	return m.searchFn(vector, topK)
}
func (m *mockStore) Delete(id string) error        { return nil }
func (m *mockStore) Count() (int, error)           { return 0, nil }
func (m *mockStore) ExportAll() ([]Record, error)  { return nil, nil }

func TestRetrieve_MapsRecordsToSnippets(t *testing.T) {
	store := &mockStore{
		searchFn: func(vector []float32, topK int) ([]ScoredRecord, error) {
			if topK != 3 {
				t.Errorf("topK = %d, want 3", topK)
			}
			return []ScoredRecord{
				{Record: Record{SourceID: "auth.go", TextChunk: "func Login()"}, Score: 0.9},
				{Record: Record{SourceID: "user.go", TextChunk: "type User struct"}, Score: 0.7},
			}, nil
		},
	}
	r := NewRetriever(NewEmbedder(&mockClient{}), store)

	snippets, err := r.Retrieve(context.Background(), "login flow", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snippets) != 2 {
		t.Fatalf("got %d snippets, want 2", len(snippets))
	}
	if snippets[0].Source != "auth.go" || snippets[0].Content != "func Login()" || snippets[0].Score != 0.9 {
		t.Errorf("snippets[0] = %+v", snippets[0])
	}
}

func TestRetrieve_EmbedFailureIsRetrievalError(t *testing.T) {
	client := &mockClient{
		embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, errors.New("embed backend down")
		},
	}
	r := NewRetriever(NewEmbedder(client), &mockStore{})

	_, err := r.Retrieve(context.Background(), "query", 3)
	var rerr *RetrievalError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *RetrievalError, got %T: %v", err, err)
	}
}

func TestRetrieve_SearchFailureIsRetrievalError(t *testing.T) {
	store := &mockStore{
		searchFn: func(vector []float32, topK int) ([]ScoredRecord, error) {
			return nil, errors.New("table locked")
		},
	}
	r := NewRetriever(NewEmbedder(&mockClient{}), store)

	_, err := r.Retrieve(context.Background(), "query", 3)
	var rerr *RetrievalError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *RetrievalError, got %T: %v", err, err)
	}
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	client := &mockClient{
		embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
			vecs := make([][]float32, len(texts))
			for i, text := range texts {
				vecs[i] = []float32{float32(len(text))}
			}
			return vecs, nil
		},
	}
	e := NewEmbedder(client)

	texts := make([]string, 40)
	for i := range texts {
		texts[i] = string(make([]byte, i+1))
	}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 40 {
		t.Fatalf("got %d vectors, want 40", len(vecs))
	}
	for i, v := range vecs {
		if v[0] != float32(i+1) {
			t.Errorf("vecs[%d] = %v, want [%d]", i, v, i+1)
		}
	}
}
