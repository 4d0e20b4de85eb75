// Package testutil provides shared test helpers for setting up wikis and
// preference databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/subwiki/internal/prefs"
	"github.com/starford/subwiki/internal/storage"
)

// TestPrefs creates a temporary SQLite preferences database that is
// automatically cleaned up.
func TestPrefs(t *testing.T) *prefs.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "subwiki-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := prefs.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestWiki creates a temporary wiki directory with a file-system provider.
func TestWiki(t *testing.T) *storage.FS {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// WriteNote writes content to rel (slash-separated, relative to the wiki
// root), creating parent directories. A non-zero mtime is applied to the file.
func WriteNote(t *testing.T, store *storage.FS, rel, content string, mtime time.Time) {
	t.Helper()
	abs := filepath.Join(store.Dir(), filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if !mtime.IsZero() {
		if err := os.Chtimes(abs, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}
}
