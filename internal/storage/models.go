package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Document is a unit of ingested material (a source file, a markdown doc,
// an extracted PDF) awaiting or finished with vectorization.
type Document struct {
	ID         string
	Title      string
	Source     string
	SourceType string // "code", "doc", "pdf"
	Content    string
	CreatedAt  time.Time
}

// Job is one pending vectorization task in the ingest queue.
type Job struct {
	ID        string
	DocID     string
	Status    string // "pending", "running", "completed", "failed"
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}
