package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding documents, the ingest job queue,
// and the code vector table.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "codeseer.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying database for the vector store layer.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate applies any embedded SQL migrations that have not yet run.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// --- Documents ---

// SaveDocument inserts a document.
func (s *Store) SaveDocument(d Document) error {
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO documents (id, title, source, source_type, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.Title, d.Source, d.SourceType, d.Content, createdAt.Format(time.RFC3339),
	)
	return err
}

// GetDocument returns the document with the given ID.
func (s *Store) GetDocument(id string) (Document, error) {
	var d Document
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, title, source, source_type, content, created_at
		FROM documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.Title, &d.Source, &d.SourceType, &d.Content, &createdAt)
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Document{}, fmt.Errorf("parsing created_at: %w", err)
	}
	d.CreatedAt = t
	return d, nil
}

// CountDocuments returns the number of stored documents.
func (s *Store) CountDocuments() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM documents").Scan(&count)
	return count, err
}

// --- Ingest jobs ---

// EnqueueJob adds a pending ingest job for the given document.
func (s *Store) EnqueueJob(jobID, docID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO ingest_jobs (id, doc_id, status, created_at, updated_at)
		VALUES (?, ?, 'pending', ?, ?)`,
		jobID, docID, now, now,
	)
	return err
}

// ClaimNextJob atomically claims the oldest pending job, marking it running.
// Returns nil when the queue is empty.
func (s *Store) ClaimNextJob() (*Job, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var j Job
	var createdAt, updatedAt string
	err = tx.QueryRow(`
		SELECT id, doc_id, status, attempts, last_error, created_at, updated_at
		FROM ingest_jobs WHERE status = 'pending' ORDER BY created_at ASC LIMIT 1`,
	).Scan(&j.ID, &j.DocID, &j.Status, &j.Attempts, &j.LastError, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(`
		UPDATE ingest_jobs SET status = 'running', attempts = attempts + 1, updated_at = ?
		WHERE id = ?`, now, j.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	j.Status = "running"
	j.Attempts++
	if j.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if j.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &j, nil
}

// CompleteJob marks a job completed.
func (s *Store) CompleteJob(id string) error {
	return s.setJobStatus(id, "completed", "")
}

// FailJob marks a job failed with the given error message.
func (s *Store) FailJob(id string, errMsg string) error {
	return s.setJobStatus(id, "failed", errMsg)
}

func (s *Store) setJobStatus(id, status, errMsg string) error {
	res, err := s.db.Exec(`
		UPDATE ingest_jobs SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		status, errMsg, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountJobs returns the number of jobs with the given status.
func (s *Store) CountJobs(status string) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM ingest_jobs WHERE status = ?", status).Scan(&count)
	return count, err
}
