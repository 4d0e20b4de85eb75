package prefs

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/starford/subwiki/internal/apperr"
	"github.com/starford/subwiki/internal/navigation"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGetSetDelete(t *testing.T) {
	db := testDB(t)

	if _, err := db.Get("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := db.Set("k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := db.Set("k", "v2"); err != nil {
		t.Fatal(err)
	}
	v, err := db.Get("k")
	if err != nil || v != "v2" {
		t.Fatalf("got %q, %v", v, err)
	}
	if err := db.Delete("k"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Get("k"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := db.Delete("k"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestRootSetting(t *testing.T) {
	rs := NewRootSetting(testDB(t))

	if _, ok, err := rs.Load(); ok || err != nil {
		t.Fatalf("expected empty, got ok=%v err=%v", ok, err)
	}
	if err := rs.Save("/wiki"); err != nil {
		t.Fatal(err)
	}
	root, ok, err := rs.Load()
	if err != nil || !ok || root != "/wiki" {
		t.Fatalf("got %q ok=%v err=%v", root, ok, err)
	}
	if err := rs.Reset(); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := rs.Load(); ok {
		t.Fatal("root still set after reset")
	}
}

func TestSessionStatePerRoot(t *testing.T) {
	db := testDB(t)
	a := NewSessionState(db, "/a")
	b := NewSessionState(db, "/b")

	want := navigation.Snapshot{FileName: "Idea.md", SubWiki: []string{"Notes", "Deep"}}
	if err := a.Save(want); err != nil {
		t.Fatal(err)
	}
	got, ok, err := a.Load()
	if err != nil || !ok || !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v ok=%v err=%v", got, ok, err)
	}
	if _, ok, _ := b.Load(); ok {
		t.Fatal("snapshot leaked to another root")
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := NewRootSetting(db).Save("/wiki"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if root, ok, _ := NewRootSetting(db).Load(); !ok || root != "/wiki" {
		t.Fatalf("got %q ok=%v", root, ok)
	}
}
