package fileops

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	root := t.TempDir()
	e, err := NewEngine(root)
	if err != nil {
		t.Fatal(err)
	}
	return e, root
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestCreateFile_CreatesParents(t *testing.T) {
	e, root := newTestEngine(t)

	if err := e.CreateFile("internal/api/health.go", "package api\n", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := readFile(t, filepath.Join(root, "internal/api/health.go"))
	if got != "package api\n" {
		t.Errorf("content = %q", got)
	}
}

func TestCreateFile_RefusesExistingWithoutOverwrite(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.CreateFile("a.go", "package a\n", false); err != nil {
		t.Fatal(err)
	}
	if err := e.CreateFile("a.go", "package b\n", false); err == nil {
		t.Error("expected error for existing file")
	}
}

func TestCreateFile_OverwriteBacksUp(t *testing.T) {
	e, root := newTestEngine(t)
	if err := e.CreateFile("a.go", "package a\n", false); err != nil {
		t.Fatal(err)
	}
	if err := e.CreateFile("a.go", "package b\n", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := readFile(t, filepath.Join(root, "a.go")); got != "package b\n" {
		t.Errorf("content = %q", got)
	}
	backups, err := e.ListBackups()
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 1 || !strings.HasPrefix(backups[0].Name, "a_") {
		t.Errorf("backups = %+v", backups)
	}
}

func TestCreateFile_RejectsTraversal(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.CreateFile("../escape.go", "package escape\n", false); err == nil {
		t.Error("expected error for path outside root")
	}
}

func TestCreateFile_RejectsDisallowedExtension(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.CreateFile("run.exe", "MZ", false); err == nil {
		t.Error("expected error for disallowed extension")
	}
}

func TestModifyFile_ProtectedFileRejected(t *testing.T) {
	e, root := newTestEngine(t)
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module demo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := e.ModifyFile("go.mod", []Modification{{Type: ModAppend, NewText: "require x"}})
	if err == nil {
		t.Error("expected error for protected file")
	}
}

func TestModifyFile_AppliesModificationsInOrder(t *testing.T) {
	e, root := newTestEngine(t)
	if err := e.CreateFile("a.go", "package a\n\nfunc old() {}\n", false); err != nil {
		t.Fatal(err)
	}

	diff, err := e.ModifyFile("a.go", []Modification{
		{Type: ModReplace, OldText: "func old() {}", NewText: "func renamed() {}"},
		{Type: ModPrepend, NewText: "// Package a."},
		{Type: ModAppend, NewText: "func extra() {}"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := readFile(t, filepath.Join(root, "a.go"))
	want := "// Package a.\npackage a\n\nfunc renamed() {}\n\nfunc extra() {}"
	if got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
	if !strings.Contains(diff, "- func old() {}") || !strings.Contains(diff, "+ func renamed() {}") {
		t.Errorf("diff missing change lines:\n%s", diff)
	}

	backups, _ := e.ListBackups()
	if len(backups) != 1 {
		t.Errorf("got %d backups, want 1", len(backups))
	}
}

func TestModifyFile_ReplaceNotFound(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.CreateFile("a.go", "package a\n", false); err != nil {
		t.Fatal(err)
	}
	_, err := e.ModifyFile("a.go", []Modification{{Type: ModReplace, OldText: "no such text", NewText: "x"}})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v", err)
	}
}

func TestModifyFile_InsertAtLine(t *testing.T) {
	e, root := newTestEngine(t)
	if err := e.CreateFile("a.go", "one\ntwo\nthree", false); err != nil {
		t.Fatal(err)
	}
	if _, err := e.ModifyFile("a.go", []Modification{{Type: ModInsertAtLine, LineNumber: 2, NewText: "inserted"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := readFile(t, filepath.Join(root, "a.go")); got != "one\ninserted\ntwo\nthree" {
		t.Errorf("content = %q", got)
	}

	if _, err := e.ModifyFile("a.go", []Modification{{Type: ModInsertAtLine, LineNumber: 99, NewText: "x"}}); err == nil {
		t.Error("expected error for out-of-range line number")
	}
}

func TestApply_ContinuesPastFailures(t *testing.T) {
	e, root := newTestEngine(t)
	env := &Envelope{Operations: []Operation{
		{Type: OpCreateFile, Path: "ok.go", Content: "package ok\n"},
		{Type: OpModifyFile, Path: "missing.go", Modifications: []Modification{{Type: ModAppend, NewText: "x"}}},
		{Type: OpCreateDirectory, Path: "newdir"},
	}}

	results := e.Apply(env)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if !strings.HasSuffix(results[0], "ok") {
		t.Errorf("results[0] = %q", results[0])
	}
	if strings.HasSuffix(results[1], "ok") {
		t.Errorf("results[1] should report the failure, got %q", results[1])
	}
	if _, err := os.Stat(filepath.Join(root, "newdir")); err != nil {
		t.Errorf("later operation did not run: %v", err)
	}
}

func TestRestoreBackup(t *testing.T) {
	e, root := newTestEngine(t)
	if err := e.CreateFile("a.go", "version one\n", false); err != nil {
		t.Fatal(err)
	}
	if err := e.CreateFile("a.go", "version two\n", true); err != nil {
		t.Fatal(err)
	}

	backups, _ := e.ListBackups()
	if len(backups) != 1 {
		t.Fatalf("got %d backups, want 1", len(backups))
	}
	if err := e.RestoreBackup(backups[0].Name, "a.go"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := readFile(t, filepath.Join(root, "a.go")); got != "version one\n" {
		t.Errorf("content = %q, want the backed-up version", got)
	}
}
