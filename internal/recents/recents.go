// Package recents keeps the bounded, newest-first list of notes in the
// active sub-wiki.
package recents

import (
	"slices"
	"sort"
	"strings"

	"github.com/starford/subwiki/internal/models"
	"github.com/starford/subwiki/internal/storage"
)

// DefaultLimit is the number of entries kept when none is configured.
const DefaultLimit = 20

// Select filters records to regular files ending in ext, orders them by
// modification time (newest first, ties keep listing order) and keeps at
// most limit of them.
func Select(records []models.FileRecord, ext string, limit int) []models.FileRecord {
	out := make([]models.FileRecord, 0, len(records))
	for _, r := range records {
		if r.IsDir || !strings.HasSuffix(r.Name, ext) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastModified.After(out[j].LastModified)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Index is the derived recents cache. It is rebuilt wholesale and owned by
// a single coordinator.
type Index struct {
	ext   string
	limit int
	items []models.FileRecord
}

// NewIndex returns an empty index for notes ending in ext.
func NewIndex(ext string, limit int) *Index {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Index{ext: ext, limit: limit}
}

// Compute lists dir and selects the entries the index would hold. It does
// not modify the index, so it can run away from the owner.
func (x *Index) Compute(l storage.Lister, dir models.Handle) ([]models.FileRecord, error) {
	records, err := l.ListChildren(dir)
	if err != nil {
		return nil, err
	}
	return Select(records, x.ext, x.limit), nil
}

// Replace swaps in a freshly computed list.
func (x *Index) Replace(items []models.FileRecord) {
	x.items = items
}

// Refresh recomputes the index from dir.
func (x *Index) Refresh(l storage.Lister, dir models.Handle) error {
	items, err := x.Compute(l, dir)
	if err != nil {
		return err
	}
	x.Replace(items)
	return nil
}

// Items returns a copy of the current entries.
func (x *Index) Items() []models.FileRecord {
	return slices.Clone(x.items)
}

// Find returns the entry named name.
func (x *Index) Find(name string) (models.FileRecord, bool) {
	for _, r := range x.items {
		if r.Name == name {
			return r, true
		}
	}
	return models.FileRecord{}, false
}
