package ingest

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/codeseer/codeseer/internal/retrieval"
	"github.com/codeseer/codeseer/internal/storage"
)

func writeTempFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

type fakeJobStore struct {
	jobs      []*storage.Job
	docs      map[string]storage.Document
	completed []string
	failed    map[string]string
}

func (f *fakeJobStore) ClaimNextJob() (*storage.Job, error) {
	if len(f.jobs) == 0 {
		return nil, nil
	}
	job := f.jobs[0]
	f.jobs = f.jobs[1:]
	return job, nil
}

func (f *fakeJobStore) CompleteJob(id string) error {
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeJobStore) FailJob(id string, errMsg string) error {
	if f.failed == nil {
		f.failed = map[string]string{}
	}
	f.failed[id] = errMsg
	return nil
}

func (f *fakeJobStore) GetDocument(id string) (storage.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return storage.Document{}, storage.ErrNotFound
	}
	return doc, nil
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = []float32{float32(i), 1}
	}
	return vecs, nil
}

type fakeInserter struct {
	records []retrieval.Record
}

func (f *fakeInserter) Insert(records []retrieval.Record) error {
	f.records = append(f.records, records...)
	return nil
}

func TestRunOnce_VectorizesDocument(t *testing.T) {
	store := &fakeJobStore{
		jobs: []*storage.Job{{ID: "job-1", DocID: "doc-1"}},
		docs: map[string]storage.Document{
			"doc-1": {ID: "doc-1", Source: "pkg/auth.go", SourceType: "code", Content: strings.Repeat("code ", 500)},
		},
	}
	inserter := &fakeInserter{}
	w := NewWorker(store, &fakeEmbedder{}, inserter, Options{ChunkSize: 1000, ChunkOverlap: 100})

	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !done {
		t.Fatal("RunOnce = false, want a processed job")
	}
	if len(store.completed) != 1 || store.completed[0] != "job-1" {
		t.Errorf("completed = %v", store.completed)
	}
	if len(inserter.records) < 2 {
		t.Fatalf("got %d records, want multiple chunks", len(inserter.records))
	}
	for i, rec := range inserter.records {
		if rec.SourceID != "pkg/auth.go" || rec.SourceType != "code" {
			t.Errorf("records[%d] = %+v", i, rec)
		}
		if rec.ID == "" || len(rec.Embedding) == 0 {
			t.Errorf("records[%d] missing id or embedding", i)
		}
	}
}

func TestRunOnce_EmptyQueue(t *testing.T) {
	w := NewWorker(&fakeJobStore{}, &fakeEmbedder{}, &fakeInserter{}, Options{})
	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done {
		t.Error("RunOnce = true on an empty queue")
	}
}

func TestRunOnce_FailedJobIsMarked(t *testing.T) {
	store := &fakeJobStore{
		jobs: []*storage.Job{{ID: "job-1", DocID: "doc-1"}},
		docs: map[string]storage.Document{
			"doc-1": {ID: "doc-1", Source: "a.md", SourceType: "doc", Content: "text"},
		},
	}
	w := NewWorker(store, &fakeEmbedder{err: errors.New("embedding backend down")}, &fakeInserter{}, Options{})

	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !done {
		t.Fatal("RunOnce = false, want a processed (failed) job")
	}
	if msg := store.failed["job-1"]; !strings.Contains(msg, "embedding backend down") {
		t.Errorf("failed[job-1] = %q", msg)
	}
	if len(store.completed) != 0 {
		t.Errorf("completed = %v, want none", store.completed)
	}
}

func TestRunOnce_MissingDocumentFailsJob(t *testing.T) {
	store := &fakeJobStore{jobs: []*storage.Job{{ID: "job-1", DocID: "ghost"}}}
	w := NewWorker(store, &fakeEmbedder{}, &fakeInserter{}, Options{})

	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.failed["job-1"]; !ok {
		t.Error("missing document did not fail the job")
	}
}

func TestLoadDocument_ClassifiesSource(t *testing.T) {
	dir := t.TempDir()
	for _, tc := range []struct {
		name, content, wantType string
	}{
		{"main.go", "package main\n", "code"},
		{"README.md", "# readme\n", "doc"},
	} {
		p := dir + "/" + tc.name
		if err := writeTempFile(p, tc.content); err != nil {
			t.Fatal(err)
		}
		doc, err := LoadDocument(p)
		if err != nil {
			t.Fatalf("LoadDocument(%s): %v", tc.name, err)
		}
		if doc.SourceType != tc.wantType {
			t.Errorf("%s SourceType = %q, want %q", tc.name, doc.SourceType, tc.wantType)
		}
		if doc.Title != tc.name || doc.ID == "" {
			t.Errorf("%s doc = %+v", tc.name, doc)
		}
	}
}

func TestLoadDocument_RejectsEmptyFile(t *testing.T) {
	p := t.TempDir() + "/empty.txt"
	if err := writeTempFile(p, "   \n"); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDocument(p); err == nil {
		t.Error("expected error for empty file")
	}
}
