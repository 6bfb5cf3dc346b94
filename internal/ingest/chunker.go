// Package ingest loads documents into the vector index: a polling worker
// claims queued jobs, chunks document text, embeds the chunks, and inserts
// the vectors.
package ingest

import "strings"

const (
	defaultChunkSize    = 1600
	defaultChunkOverlap = 200
)

// SplitText cuts text into fixed-size chunks with a trailing overlap carried
// into the next chunk, so statements spanning a boundary appear whole in at
// least one chunk. Chunks that are entirely whitespace are dropped.
func SplitText(text string, size, overlap int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = defaultChunkOverlap % size
	}

	var chunks []string
	step := size - overlap
	for start := 0; start < len(text); start += step {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		if chunk := text[start:end]; strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(text) {
			break
		}
	}
	return chunks
}
