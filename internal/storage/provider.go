// Package storage defines the wiki file-tree abstraction.
package storage

import (
	"io"

	"github.com/starford/subwiki/internal/models"
)

// MimeMarkdown is the MIME type notes are created with.
const MimeMarkdown = "text/markdown"

// Provider is the interface for wiki file operations. Handles are issued by
// the provider and are only meaningful to it.
type Provider interface {
	PathResolver
	Lister
	// Root returns the handle of the wiki root directory.
	Root() models.Handle
	// OpenRead opens the file for reading.
	OpenRead(h models.Handle) (io.ReadCloser, error)
	// OpenWrite opens the file for writing, truncating it. The content
	// becomes visible when the writer is closed.
	OpenWrite(h models.Handle) (io.WriteCloser, error)
	// FindFile returns the handle of the regular file name inside dir, or
	// apperr.ErrNotFound.
	FindFile(dir models.Handle, name string) (models.Handle, error)
	// Stat returns a fresh record for h.
	Stat(h models.Handle) (models.FileRecord, error)
	// CreateFile creates an empty file inside dir.
	CreateFile(dir models.Handle, name, mimeType string) (models.Handle, error)
	// CreateDirectory creates a single directory level inside dir.
	CreateDirectory(dir models.Handle, name string) (models.Handle, error)
}

// PathResolver resolves relative directory paths.
type PathResolver interface {
	// ResolvePath returns the directory reached by walking rel from root,
	// or apperr.ErrNotFound.
	ResolvePath(root models.Handle, rel []string) (models.Handle, error)
}

// Lister enumerates directories.
type Lister interface {
	// ListChildren returns one record per entry of dir.
	ListChildren(dir models.Handle) ([]models.FileRecord, error)
}
