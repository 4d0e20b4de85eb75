package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/starford/subwiki/internal/apperr"
	"github.com/starford/subwiki/internal/models"
)

// TmpPrefix marks in-flight atomic writes; listings and the watcher skip them.
const TmpPrefix = ".wiki-tmp-"

// FS implements Provider backed by the local file system. Handles are
// slash-separated paths relative to the root ("" is the root itself).
type FS struct {
	root string // absolute path to the wiki directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Dir returns the absolute root directory.
func (f *FS) Dir() string { return f.root }

// Root implements Provider.
func (f *FS) Root() models.Handle { return "" }

// Check reports whether the root directory is still reachable.
func (f *FS) Check() error {
	info, err := os.Stat(f.root)
	if err != nil {
		return fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage: root is not a directory: %s", f.root)
	}
	return nil
}

// safePath resolves a handle against the wiki root and rejects any result
// that escapes it (directory traversal).
func (f *FS) safePath(h models.Handle) (string, error) {
	rel := string(h)
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes wiki root: %s", rel)
	}
	return abs, nil
}

// LocalPath returns the absolute file-system path of h.
func (f *FS) LocalPath(h models.Handle) (string, error) {
	return f.safePath(h)
}

func child(dir models.Handle, name string) models.Handle {
	if dir == "" {
		return models.Handle(name)
	}
	return models.Handle(path.Join(string(dir), name))
}

// validName accepts a single path element.
func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("storage: invalid name %q", name)
	}
	return nil
}

func (f *FS) record(h models.Handle, info fs.FileInfo) models.FileRecord {
	return models.FileRecord{
		Handle:       h,
		Name:         info.Name(),
		LastModified: info.ModTime(),
		IsDir:        info.IsDir(),
	}
}

// ResolvePath implements PathResolver.
func (f *FS) ResolvePath(root models.Handle, rel []string) (models.Handle, error) {
	h := root
	for _, seg := range rel {
		if err := validName(seg); err != nil {
			return "", err
		}
		h = child(h, seg)
	}
	abs, err := f.safePath(h)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", apperr.ErrNotFound
		}
		return "", fmt.Errorf("storage: stat %s: %w", h, err)
	}
	if !info.IsDir() {
		return "", apperr.ErrNotFound
	}
	return h, nil
}

// FindFile implements Provider.
func (f *FS) FindFile(dir models.Handle, name string) (models.Handle, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	h := child(dir, name)
	abs, err := f.safePath(h)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", apperr.ErrNotFound
		}
		return "", fmt.Errorf("storage: stat %s: %w", h, err)
	}
	if info.IsDir() {
		return "", apperr.ErrNotFound
	}
	return h, nil
}

// Stat implements Provider.
func (f *FS) Stat(h models.Handle) (models.FileRecord, error) {
	abs, err := f.safePath(h)
	if err != nil {
		return models.FileRecord{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.FileRecord{}, apperr.ErrNotFound
		}
		return models.FileRecord{}, fmt.Errorf("storage: stat %s: %w", h, err)
	}
	return f.record(h, info), nil
}

// ListChildren implements Lister.
func (f *FS) ListChildren(dir models.Handle) ([]models.FileRecord, error) {
	abs, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	out := make([]models.FileRecord, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), TmpPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		out = append(out, f.record(child(dir, e.Name()), info))
	}
	return out, nil
}

// OpenRead implements Provider.
func (f *FS) OpenRead(h models.Handle) (io.ReadCloser, error) {
	abs, err := f.safePath(h)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("storage: read %s: %w", h, err)
	}
	return file, nil
}

// OpenWrite implements Provider. Content goes to a temp file that is
// fsynced and renamed over the target on Close.
func (f *FS) OpenWrite(h models.Handle) (io.WriteCloser, error) {
	abs, err := f.safePath(h)
	if err != nil {
		return nil, err
	}
	if abs == f.root {
		return nil, fmt.Errorf("storage: cannot write to the wiki root")
	}
	tmp, err := os.CreateTemp(filepath.Dir(abs), TmpPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("storage: create temp: %w", err)
	}
	return &atomicWriter{tmp: tmp, target: abs}, nil
}

// CreateFile implements Provider. A markdown file without an extension gets
// ".md" appended.
func (f *FS) CreateFile(dir models.Handle, name, mimeType string) (models.Handle, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	if mimeType == MimeMarkdown && path.Ext(name) == "" {
		name += ".md"
	}
	if _, err := f.ResolvePath(dir, nil); err != nil {
		return "", fmt.Errorf("storage: create %s in %q: %w", name, dir, err)
	}
	h := child(dir, name)
	abs, err := f.safePath(h)
	if err != nil {
		return "", err
	}
	file, err := os.OpenFile(abs, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("storage: create %s: %w", h, apperr.ErrAlreadyExists)
		}
		return "", fmt.Errorf("storage: create %s: %w", h, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("storage: close %s: %w", h, err)
	}
	return h, nil
}

// CreateDirectory implements Provider.
func (f *FS) CreateDirectory(dir models.Handle, name string) (models.Handle, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	h := child(dir, name)
	abs, err := f.safePath(h)
	if err != nil {
		return "", err
	}
	if err := os.Mkdir(abs, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("storage: mkdir %s: %w", h, apperr.ErrAlreadyExists)
		}
		return "", fmt.Errorf("storage: mkdir %s: %w", h, err)
	}
	return h, nil
}

type atomicWriter struct {
	tmp    *os.File
	target string
	failed bool
	closed bool
}

func (w *atomicWriter) Write(p []byte) (int, error) {
	n, err := w.tmp.Write(p)
	if err != nil {
		w.failed = true
		return n, fmt.Errorf("storage: write temp: %w", err)
	}
	return n, nil
}

func (w *atomicWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	tmpName := w.tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = w.tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if w.failed {
		return fmt.Errorf("storage: write to %s aborted", w.target)
	}
	if err := w.tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := w.tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, w.target); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
