// Package models defines the value types shared by the wiki components.
package models

import (
	"strings"
	"time"
)

// Handle is an opaque storage handle. Only the storage provider that issued
// it knows how to interpret it.
type Handle string

// FileRecord is a snapshot of one directory entry, captured once per listing.
// It is never updated; a later listing produces fresh records.
type FileRecord struct {
	Handle       Handle    `json:"-"`
	Name         string    `json:"name"`
	LastModified time.Time `json:"last_modified"`
	IsDir        bool      `json:"is_dir,omitempty"`
}

// Title returns the file name without its note extension.
func (r FileRecord) Title(ext string) string {
	return strings.TrimSuffix(r.Name, ext)
}

// Breadcrumb is one entry of the trail from the wiki root to the current
// sub-wiki. Target is the slash-joined relative path ("" for the root).
type Breadcrumb struct {
	Label  string `json:"label"`
	Target string `json:"target"`
	Active bool   `json:"active,omitempty"`
}
