// Package projectctx scans a project tree and condenses its layout and
// conventions into short context strings for generation prompts.
package projectctx

import (
	"bufio"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Directories and globs skipped regardless of .gitignore contents.
var builtinIgnores = []string{
	".git", ".idea", ".vscode", "node_modules", "vendor",
	"bin", "dist", "build", "target", "__pycache__",
	"*.log", "*.exe", "*.out",
}

// buildFileNames are recognized as build/config files rather than source.
var buildFileNames = map[string]bool{
	"go.mod":             true,
	"go.sum":             true,
	"Makefile":           true,
	"Dockerfile":         true,
	"docker-compose.yml": true,
}

// knownSuffixes are naming-convention markers collected from file stems.
var knownSuffixes = []string{
	"handler", "service", "server", "client", "store",
	"worker", "middleware", "config", "test",
}

// SourceFile is one Go source file with its declared package.
type SourceFile struct {
	Path    string
	Package string
}

// Structure is the scanned shape of a project tree.
type Structure struct {
	Root        string
	ModulePath  string
	Directories []string
	SourceFiles []SourceFile
	BuildFiles  []string
	Suffixes    []string
}

// Scanner walks a project root, honoring .gitignore plus built-in ignore
// patterns, and produces prompt-sized context strings. The scan runs once
// and is cached; call Refresh to rescan after the tree changes.
type Scanner struct {
	root   string
	logger *slog.Logger

	mu     sync.Mutex
	cached *Structure
}

// NewScanner creates a Scanner rooted at root.
func NewScanner(root string) (*Scanner, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", abs)
	}
	return &Scanner{root: abs, logger: slog.Default()}, nil
}

// Scan returns the cached project structure, walking the tree on first use.
func (s *Scanner) Scan() (*Structure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		return s.cached, nil
	}
	st, err := s.walk()
	if err != nil {
		return nil, err
	}
	s.cached = st
	return st, nil
}

// Refresh drops the cached structure so the next call rescans.
func (s *Scanner) Refresh() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func (s *Scanner) walk() (*Structure, error) {
	ignores := s.loadIgnorePatterns()
	st := &Structure{Root: s.root}
	suffixes := make(map[string]bool)

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(s.root, p)
		if rerr != nil || rel == "." {
			return nil
		}
		if ignored(rel, d.Name(), ignores) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			st.Directories = append(st.Directories, filepath.ToSlash(rel))
			return nil
		}

		name := d.Name()
		switch {
		case strings.HasSuffix(name, ".go"):
			st.SourceFiles = append(st.SourceFiles, SourceFile{
				Path:    filepath.ToSlash(rel),
				Package: extractPackage(p),
			})
			stem := strings.ToLower(strings.TrimSuffix(name, ".go"))
			stem = strings.TrimSuffix(stem, "_test")
			for _, suffix := range knownSuffixes {
				if strings.HasSuffix(stem, suffix) {
					suffixes[suffix] = true
					break
				}
			}
		case buildFileNames[name]:
			st.BuildFiles = append(st.BuildFiles, filepath.ToSlash(rel))
			if name == "go.mod" && st.ModulePath == "" {
				st.ModulePath = extractModulePath(p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning project: %w", err)
	}

	for suffix := range suffixes {
		st.Suffixes = append(st.Suffixes, suffix)
	}
	sort.Strings(st.Suffixes)
	return st, nil
}

// loadIgnorePatterns merges the built-in patterns with the root .gitignore.
// Negation lines are skipped; trailing slashes are stripped so directory
// patterns match entry names.
func (s *Scanner) loadIgnorePatterns() []string {
	patterns := append([]string(nil), builtinIgnores...)

	f, err := os.Open(filepath.Join(s.root, ".gitignore"))
	if err != nil {
		return patterns
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		patterns = append(patterns, strings.TrimSuffix(line, "/"))
	}
	return patterns
}

func ignored(rel, name string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
		if ok, _ := path.Match(pattern, filepath.ToSlash(rel)); ok {
			return true
		}
	}
	return false
}

// extractPackage reads the package clause from a Go file. Comment lines
// before the clause are skipped; anything unexpected ends the search.
func extractPackage(file string) string {
	f, err := os.Open(file)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if name, ok := strings.CutPrefix(line, "package "); ok {
			return strings.TrimSpace(name)
		}
		if line != "" && !strings.HasPrefix(line, "//") && !strings.HasPrefix(line, "/*") && !strings.HasPrefix(line, "*") {
			break
		}
	}
	return ""
}

func extractModulePath(file string) string {
	f, err := os.Open(file)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if mod, ok := strings.CutPrefix(line, "module "); ok {
			return strings.TrimSpace(mod)
		}
	}
	return ""
}
