// Package testutil provides shared test helpers for setting up entry
// directories and index databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pAIrprogio/synscript-sub000/internal/index"
	"github.com/pAIrprogio/synscript-sub000/internal/mddb"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "mddb-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestEntries creates a temporary entry directory holding files (relative path
// → content) and opens a database over it.
func TestEntries(t *testing.T, files map[string]string, opts ...mddb.Option) (string, *mddb.DB) {
	t.Helper()
	root := t.TempDir()
	WriteFiles(t, root, files)
	db, err := mddb.New(root, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return root, db
}

// WriteFiles writes files (relative path → content) under root, creating
// directories as needed.
func WriteFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}
