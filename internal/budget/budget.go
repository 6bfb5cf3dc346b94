// Package budget packs retrieved code snippets into a bounded-size context
// string without exceeding an estimated token budget.
package budget

import (
	"strings"

	"github.com/codeseer/codeseer/internal/retrieval"
)

// NoContentSentinel is returned by Pack when there is nothing to pack.
const NoContentSentinel = "no relevant content found"

const (
	defaultMaxUnits         = 5000
	defaultMaxSnippets      = 10
	defaultMinFragmentUnits = 100

	truncationMarker = "..."
	separator        = "\n\n---\n\n"
)

// Budget bounds the assembled context: MaxUnits is the estimated-token cap,
// MaxSnippets caps how many snippets are considered, and MinFragmentUnits is
// the smallest remaining budget worth filling with a truncated fragment.
type Budget struct {
	MaxUnits         int
	MaxSnippets      int
	MinFragmentUnits int
}

// Default returns the standard budget.
func Default() Budget {
	return Budget{
		MaxUnits:         defaultMaxUnits,
		MaxSnippets:      defaultMaxSnippets,
		MinFragmentUnits: defaultMinFragmentUnits,
	}
}

func (b Budget) normalized() Budget {
	if b.MaxUnits <= 0 {
		b.MaxUnits = defaultMaxUnits
	}
	if b.MaxSnippets <= 0 {
		b.MaxSnippets = defaultMaxSnippets
	}
	if b.MinFragmentUnits <= 0 {
		b.MinFragmentUnits = defaultMinFragmentUnits
	}
	return b
}

// EstimateUnits estimates the token cost of text as len/4 (truncating).
// This heuristic is the contract everywhere a budget is enforced; swapping
// in a real tokenizer would shift every truncation boundary.
func EstimateUnits(text string) int {
	return len(text) / 4
}

// Pack assembles snippets into a single context string, preserving input
// order, until the budget is spent. A snippet that does not fit whole is
// truncated to exactly fill the remaining budget when the remainder is
// worth using, otherwise dropped; either way packing stops there.
// Pack is pure: identical inputs always produce identical output.
func Pack(snippets []retrieval.Snippet, b Budget) string {
	if len(snippets) == 0 {
		return NoContentSentinel
	}
	b = b.normalized()

	limit := len(snippets)
	if limit > b.MaxSnippets {
		limit = b.MaxSnippets
	}

	var parts []string
	total := 0
	for _, s := range snippets[:limit] {
		formatted := formatSnippet(s)
		cost := EstimateUnits(formatted)

		if total+cost > b.MaxUnits {
			// The full snippet does not fit. Use the remainder for a
			// truncated fragment only if it is big enough to be useful.
			remaining := b.MaxUnits - total
			if remaining > b.MinFragmentUnits {
				parts = append(parts, formatted[:remaining*4]+truncationMarker)
			}
			break
		}

		parts = append(parts, formatted)
		total += cost
	}

	return strings.Join(parts, separator)
}

func formatSnippet(s retrieval.Snippet) string {
	return "// From: " + s.Source + "\n" + s.Content
}
