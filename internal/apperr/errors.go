// Package apperr holds the sentinel errors shared across the wiki components.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// ErrDirectoryResolution: a sub-wiki directory could not be found or created.
	ErrDirectoryResolution = errors.New("sub-wiki directory unavailable")
	// ErrHistoryTargetMissing: a note on the back stack was removed out-of-band.
	ErrHistoryTargetMissing = errors.New("history target missing")
	// ErrStorageWrite: a note could not be created or written.
	ErrStorageWrite = errors.New("storage write failed")
	// ErrRootUnresolvable: the configured wiki root can no longer be opened.
	ErrRootUnresolvable = errors.New("wiki root unresolvable")
)
