package ingest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/codeseer/codeseer/internal/storage"
)

// codeExtensions classify a file as source code for retrieval purposes.
var codeExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true,
	".java": true, ".kt": true, ".rs": true, ".c": true,
	".h": true, ".cpp": true, ".sql": true, ".sh": true,
}

// LoadDocument reads a file into a Document ready for enqueueing. PDF files
// are converted to plain text; everything else is read as UTF-8.
func LoadDocument(path string) (storage.Document, error) {
	var content string
	var err error

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".pdf" {
		content, err = extractPDFText(path)
	} else {
		var data []byte
		data, err = os.ReadFile(path)
		content = string(data)
	}
	if err != nil {
		return storage.Document{}, fmt.Errorf("loading %s: %w", path, err)
	}
	if strings.TrimSpace(content) == "" {
		return storage.Document{}, fmt.Errorf("loading %s: no extractable text", path)
	}

	return storage.Document{
		ID:         uuid.New().String(),
		Title:      filepath.Base(path),
		Source:     filepath.ToSlash(path),
		SourceType: sourceType(ext),
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func sourceType(ext string) string {
	switch {
	case ext == ".pdf":
		return "pdf"
	case codeExtensions[ext]:
		return "code"
	default:
		return "doc"
	}
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}
