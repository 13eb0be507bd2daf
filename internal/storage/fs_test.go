package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pAIrprogio/synscript-sub000/internal/apperr"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempRoot(t)
	content := []byte("# Hello\nWorld\n")
	if err := s.Write("entry.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("entry.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempRoot(t)
	if err := s.Write("a/b/c.md", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("gone.md", []byte("x"))
	if err := s.Delete("gone.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("gone.md"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("read after delete err = %v, want ErrNotExist", err)
	}
	if err := s.Delete("gone.md"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("second delete err = %v, want ErrNotExist", err)
	}
}

func TestGlob_SortedByRelPath(t *testing.T) {
	s := tempRoot(t)
	for _, p := range []string{"b.md", "a/b.md", "a.md", "readme.txt", "a/0.x/c.md"} {
		if err := s.Write(p, []byte(p)); err != nil {
			t.Fatalf("Write %s: %v", p, err)
		}
	}

	files, err := s.Glob([]string{"**/*.md"})
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	want := []string{"a.md", "a/0.x/c.md", "a/b.md", "b.md"}
	if len(files) != len(want) {
		t.Fatalf("len = %d, want %d (%v)", len(files), len(want), files)
	}
	for i, f := range files {
		if f.RelPath != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, f.RelPath, want[i])
		}
		if !filepath.IsAbs(f.Path) {
			t.Errorf("files[%d].Path = %q, want absolute", i, f.Path)
		}
	}
}

func TestGlob_MultiplePatterns(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("docs/a.md", []byte("a"))
	_ = s.Write("rules/b.md", []byte("b"))
	_ = s.Write("other/c.md", []byte("c"))

	files, err := s.Glob([]string{"docs/**/*.md", "rules/*.md"})
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(files) != 2 || files[0].RelPath != "docs/a.md" || files[1].RelPath != "rules/b.md" {
		t.Errorf("files = %+v", files)
	}
}

func TestGlob_InvalidPattern(t *testing.T) {
	s := tempRoot(t)
	if _, err := s.Glob([]string{"[unclosed"}); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestRel(t *testing.T) {
	s := tempRoot(t)
	rel, err := s.Rel(filepath.Join(s.Root(), "a", "b.md"))
	if err != nil {
		t.Fatalf("Rel: %v", err)
	}
	if rel != "a/b.md" {
		t.Errorf("rel = %q, want a/b.md", rel)
	}

	for _, p := range []string{filepath.Dir(s.Root()), s.Root(), filepath.Join(s.Root(), "..", "x.md")} {
		if _, err := s.Rel(p); !errors.Is(err, apperr.ErrNotMember) {
			t.Errorf("Rel(%q) err = %v, want ErrNotMember", p, err)
		}
	}
}

func TestStat(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("dir/x.md", []byte("x"))

	f, err := s.Stat("dir/x.md")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if f.RelPath != "dir/x.md" || f.Path != filepath.Join(s.Root(), "dir", "x.md") || f.UpdatedAt.IsZero() {
		t.Errorf("Stat = %+v", f)
	}
	if _, err := s.Stat("dir"); err == nil {
		t.Error("expected error for directory")
	}
	if _, err := s.Stat("missing.md"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Stat(missing) err = %v, want ErrNotExist", err)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempRoot(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("atomic.md", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.md", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.md")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".mddb-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "mddb-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
