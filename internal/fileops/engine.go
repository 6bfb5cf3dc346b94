package fileops

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	backupDirName = ".codeseer-backups"
	maxFileSize   = 1 << 20 // 1MB
)

var allowedExtensions = map[string]bool{
	".go":   true,
	".md":   true,
	".txt":  true,
	".yaml": true,
	".yml":  true,
	".json": true,
	".sql":  true,
	".sh":   true,
}

// protectedFiles cannot be modified or overwritten, only read.
var protectedFiles = map[string]bool{
	"go.mod":     true,
	"go.sum":     true,
	".gitignore": true,
	"Makefile":   true,
}

// Engine performs file operations rooted at a project directory. Every write
// is preceded by a safety check and, for existing files, a timestamped backup.
type Engine struct {
	root      string
	backupDir string
	logger    *slog.Logger
}

// NewEngine creates an Engine rooted at root, creating the backup directory
// if needed.
func NewEngine(root string) (*Engine, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	backupDir := filepath.Join(abs, backupDirName)
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating backup dir: %w", err)
	}
	return &Engine{root: abs, backupDir: backupDir, logger: slog.Default()}, nil
}

// resolve turns an operation path into an absolute path inside the root.
// Paths escaping the root are rejected.
func (e *Engine) resolve(p string) (string, error) {
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(e.root, abs)
	}
	abs = filepath.Clean(abs)
	rel, err := filepath.Rel(e.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the project root", p)
	}
	return abs, nil
}

func (e *Engine) checkSafe(abs string, modifying bool) error {
	name := filepath.Base(abs)
	if !allowedExtensions[filepath.Ext(abs)] {
		return fmt.Errorf("file extension %q not allowed", filepath.Ext(abs))
	}
	if modifying && protectedFiles[name] {
		return fmt.Errorf("file %s is protected", name)
	}
	if info, err := os.Stat(abs); err == nil && info.Size() > maxFileSize {
		return fmt.Errorf("file %s exceeds the size limit", name)
	}
	return nil
}

// backup copies an existing file into the backup directory with a timestamped
// name. Missing files back up to nothing without error.
func (e *Engine) backup(abs string) (string, error) {
	src, err := os.Open(abs)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer src.Close()

	ext := filepath.Ext(abs)
	stem := strings.TrimSuffix(filepath.Base(abs), ext)
	name := fmt.Sprintf("%s_%s%s", stem, time.Now().Format("20060102_150405"), ext)
	dst := filepath.Join(e.backupDir, name)

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, src); err != nil {
		return "", err
	}
	return dst, nil
}

// CreateFile writes a new file, creating parent directories as needed. An
// existing file is an error unless overwrite is set, in which case it is
// backed up first.
func (e *Engine) CreateFile(path, content string, overwrite bool) error {
	abs, err := e.resolve(path)
	if err != nil {
		return err
	}
	if err := e.checkSafe(abs, overwrite); err != nil {
		return err
	}
	if _, err := os.Stat(abs); err == nil {
		if !overwrite {
			return fmt.Errorf("file %s already exists", path)
		}
		backup, berr := e.backup(abs)
		if berr != nil {
			return fmt.Errorf("backing up %s: %w", path, berr)
		}
		e.logger.Info("created backup", "file", path, "backup", backup)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("creating parent directories: %w", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ModifyFile applies modifications to an existing file and returns a unified
// diff of the change. The original is backed up before writing.
func (e *Engine) ModifyFile(path string, mods []Modification) (string, error) {
	abs, err := e.resolve(path)
	if err != nil {
		return "", err
	}
	if err := e.checkSafe(abs, true); err != nil {
		return "", err
	}

	original, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	modified := string(original)
	for _, mod := range mods {
		modified, err = applyModification(modified, mod)
		if err != nil {
			return "", fmt.Errorf("modifying %s: %w", path, err)
		}
	}

	backup, err := e.backup(abs)
	if err != nil {
		return "", fmt.Errorf("backing up %s: %w", path, err)
	}
	e.logger.Info("created backup", "file", path, "backup", backup)

	if err := os.WriteFile(abs, []byte(modified), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return unifiedDiff(string(original), modified, path), nil
}

func applyModification(content string, mod Modification) (string, error) {
	switch mod.Type {
	case ModReplace:
		if !strings.Contains(content, mod.OldText) {
			return "", fmt.Errorf("text to replace not found: %.50s", mod.OldText)
		}
		return strings.ReplaceAll(content, mod.OldText, mod.NewText), nil
	case ModInsertAtLine:
		lines := strings.Split(content, "\n")
		idx := mod.LineNumber - 1
		if idx < 0 || idx > len(lines) {
			return "", fmt.Errorf("invalid line number: %d", mod.LineNumber)
		}
		lines = append(lines[:idx], append([]string{mod.NewText}, lines[idx:]...)...)
		return strings.Join(lines, "\n"), nil
	case ModAppend:
		return content + "\n" + mod.NewText, nil
	case ModPrepend:
		return mod.NewText + "\n" + content, nil
	default:
		return "", fmt.Errorf("unknown modification type: %q", mod.Type)
	}
}

// CreateDirectory creates a directory tree inside the root.
func (e *Engine) CreateDirectory(path string) error {
	abs, err := e.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", path, err)
	}
	return nil
}

// Apply runs every operation in the envelope and returns one human-readable
// result line per operation. Individual failures do not stop later
// operations.
func (e *Engine) Apply(env *Envelope) []string {
	results := make([]string, 0, len(env.Operations))
	for _, op := range env.Operations {
		switch op.Type {
		case OpCreateFile:
			results = append(results, opResult("create", op.Path, e.CreateFile(op.Path, op.Content, false)))
		case OpModifyFile:
			diff, err := e.ModifyFile(op.Path, op.Modifications)
			if err == nil && diff != "" {
				e.logger.Info("applied modifications", "file", op.Path, "diff", diff)
			}
			results = append(results, opResult("modify", op.Path, err))
		case OpCreateDirectory:
			results = append(results, opResult("create directory", op.Path, e.CreateDirectory(op.Path)))
		}
	}
	return results
}

func opResult(verb, path string, err error) string {
	if err != nil {
		return fmt.Sprintf("%s %s: %v", verb, path, err)
	}
	return fmt.Sprintf("%s %s: ok", verb, path)
}

// Backup describes one file in the backup directory.
type Backup struct {
	Name     string
	Size     int64
	Modified time.Time
}

// ListBackups returns available backups, newest first.
func (e *Engine) ListBackups() ([]Backup, error) {
	entries, err := os.ReadDir(e.backupDir)
	if err != nil {
		return nil, fmt.Errorf("reading backup dir: %w", err)
	}
	backups := make([]Backup, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Backup{Name: entry.Name(), Size: info.Size(), Modified: info.ModTime()})
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].Modified.After(backups[j].Modified) })
	return backups, nil
}

// RestoreBackup copies a backup over the target path.
func (e *Engine) RestoreBackup(name, target string) error {
	src := filepath.Join(e.backupDir, filepath.Base(name))
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("backup %s: %w", name, err)
	}

	abs, err := e.resolve(target)
	if err != nil {
		return err
	}
	if err := e.checkSafe(abs, true); err != nil {
		return err
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return fmt.Errorf("restoring %s: %w", target, err)
	}
	return nil
}
