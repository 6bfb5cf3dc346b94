package projectctx

import (
	"fmt"
	"path/filepath"
	"strings"
)

// focusTerms bias FocusedContext toward files whose paths mention a term
// that also appears in the question.
var focusTerms = []string{
	"handler", "service", "server", "client", "store",
	"worker", "middleware", "config", "test", "api", "cmd",
}

const (
	maxListedDirs  = 5
	maxListedFiles = 5
	maxFocusFiles  = 3
)

// ContextString returns a general project overview capped at maxUnits
// estimated units (4 characters per unit), strictly truncated.
func (s *Scanner) ContextString(maxUnits int) string {
	st, err := s.Scan()
	if err != nil {
		s.logger.Warn("project scan failed", "error", err)
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Project Context:\n- Root: %s\n- Module: %s", filepath.Base(st.Root), orNone(st.ModulePath))

	if len(st.Directories) > 0 {
		b.WriteString("\n\nKey Directories:")
		for _, d := range head(st.Directories, maxListedDirs) {
			fmt.Fprintf(&b, "\n  - %s", d)
		}
		if extra := len(st.Directories) - maxListedDirs; extra > 0 {
			fmt.Fprintf(&b, "\n  ... and %d more", extra)
		}
	}

	if len(st.SourceFiles) > 0 {
		b.WriteString("\n\nSource Files:")
		for i, f := range st.SourceFiles {
			if i == maxListedFiles {
				break
			}
			fmt.Fprintf(&b, "\n  - %s", f.Path)
		}
		if extra := len(st.SourceFiles) - maxListedFiles; extra > 0 {
			fmt.Fprintf(&b, "\n  ... and %d more", extra)
		}
	}

	if len(st.Suffixes) > 0 {
		fmt.Fprintf(&b, "\n\nConventions: %s", strings.Join(st.Suffixes, ", "))
	}

	return truncate(b.String(), maxUnits*4)
}

// FocusedContext returns a minimal overview biased toward files relevant to
// the question, capped at maxUnits estimated units and strictly truncated.
func (s *Scanner) FocusedContext(question string, maxUnits int) string {
	st, err := s.Scan()
	if err != nil {
		s.logger.Warn("project scan failed", "error", err)
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\nModule: %s", filepath.Base(st.Root), orNone(st.ModulePath))

	if matched := matchTerms(question); len(matched) > 0 {
		var relevant []string
		for _, f := range st.SourceFiles {
			lower := strings.ToLower(f.Path)
			for _, term := range matched {
				if strings.Contains(lower, term) {
					relevant = append(relevant, f.Path)
					break
				}
			}
			if len(relevant) == maxFocusFiles {
				break
			}
		}
		if len(relevant) > 0 {
			b.WriteString("\n\nRelevant Files:")
			for _, p := range relevant {
				fmt.Fprintf(&b, "\n  - %s", p)
			}
		}
	}

	return truncate(b.String(), maxUnits*4)
}

func matchTerms(question string) []string {
	lower := strings.ToLower(question)
	var matched []string
	for _, term := range focusTerms {
		if strings.Contains(lower, term) {
			matched = append(matched, term)
		}
	}
	return matched
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func truncate(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	return s[:maxChars-3] + "..."
}
