package retrieval

import "time"

// VectorStore is the interface for vector storage and similarity search
// backends. The default implementation uses SQLite with brute-force cosine
// similarity over the code_vectors table; an ANN-capable backend can be
// swapped in behind the same interface when the corpus outgrows it.
type VectorStore interface {
	// Insert adds records to the store.
	Insert(records []Record) error

	// Search returns the top-K records most similar to the query vector,
	// ordered by descending score.
	Search(vector []float32, topK int) ([]ScoredRecord, error)

	// Delete removes a record by ID.
	Delete(id string) error

	// Count returns the number of stored records.
	Count() (int, error)

	// ExportAll returns every record, for migration between backends.
	ExportAll() ([]Record, error)
}

// Record represents a row in the vector store.
type Record struct {
	ID         string
	SourceID   string
	SourceType string
	TextChunk  string
	Embedding  []float32
	CreatedAt  time.Time
}

// ScoredRecord is a Record with a similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
