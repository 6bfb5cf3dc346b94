package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/codeseer/codeseer/internal/retrieval"
	"github.com/codeseer/codeseer/internal/storage"
)

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob() (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetDocument(id string) (storage.Document, error)
}

// BatchEmbedder generates embeddings for multiple texts in input order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorInserter inserts records into the vector store.
type VectorInserter interface {
	Insert(records []retrieval.Record) error
}

// Options configure the worker.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	// PollInterval is the sleep between empty-queue polls. <= 0 defaults
	// to 500ms.
	PollInterval time.Duration
}

// Worker processes vectorization jobs from the SQLite job queue.
type Worker struct {
	store    JobStore
	embedder BatchEmbedder
	vectors  VectorInserter
	opts     Options
	logger   *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
func NewWorker(store JobStore, embedder BatchEmbedder, vectors VectorInserter, opts Options) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:    store,
		embedder: embedder,
		vectors:  vectors,
		opts:     opts,
		logger:   slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.opts.PollInterval):
		}
	}
}

// RunOnce claims and processes a single job. Returns true if a job was
// processed, regardless of success or failure.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob()
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	doc, err := w.store.GetDocument(job.DocID)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", job.DocID, err)
	}

	chunks := SplitText(doc.Content, w.opts.ChunkSize, w.opts.ChunkOverlap)
	if len(chunks) == 0 {
		return fmt.Errorf("document %s has no content", doc.ID)
	}

	vecs, err := w.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}

	now := time.Now().UTC()
	records := make([]retrieval.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = retrieval.Record{
			ID:         uuid.New().String(),
			SourceID:   doc.Source,
			SourceType: doc.SourceType,
			TextChunk:  chunk,
			Embedding:  vecs[i],
			CreatedAt:  now,
		}
	}

	if err := w.vectors.Insert(records); err != nil {
		return fmt.Errorf("inserting %d vectors: %w", len(records), err)
	}

	w.logger.Info("document vectorized", "doc_id", doc.ID, "chunks", len(chunks))
	return nil
}
