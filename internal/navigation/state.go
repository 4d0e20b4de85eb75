// Package navigation holds the per-session navigation state: the active
// sub-wiki, the displayed note, its cached source and the back-history.
package navigation

import (
	"slices"
	"strings"

	"github.com/starford/subwiki/internal/models"
	"github.com/starford/subwiki/internal/storage"
)

// HomeFile is the note every sub-wiki opens on.
const HomeFile = "Home.md"

// HomeSeed is written to a Home note that does not exist yet.
const HomeSeed = `# Heading

Initial wiki page.
Please Edit this file.

- list1
- ~~list2~~
- list3

[[HelloLink]]`

// State is owned by a single coordinator; it is not safe for concurrent use.
type State struct {
	relPath  []string // nil at the wiki root
	fileName string
	content  string
	history  []string
}

// Snapshot is the part of State that survives a session restart.
type Snapshot struct {
	FileName string   `json:"file_name"`
	SubWiki  []string `json:"sub_wiki,omitempty"`
}

// New returns a state positioned on the root Home note.
func New() *State {
	return &State{fileName: HomeFile}
}

// Restore rebuilds a state from a persisted snapshot. History and content
// are not persisted and start empty.
func Restore(snap Snapshot) *State {
	s := New()
	if snap.FileName != "" {
		s.fileName = snap.FileName
	}
	s.relPath = normalize(snap.SubWiki)
	return s
}

// Snapshot returns the persisted form of s.
func (s *State) Snapshot() Snapshot {
	return Snapshot{FileName: s.fileName, SubWiki: s.RelativePath()}
}

// RelativePath returns a copy of the active sub-wiki path, nil at the root.
func (s *State) RelativePath() []string {
	return slices.Clone(s.relPath)
}

// SubWiki returns the active sub-wiki path joined with '/'; "" at the root.
func (s *State) SubWiki() string {
	return strings.Join(s.relPath, "/")
}

// FileName returns the displayed note name.
func (s *State) FileName() string { return s.fileName }

// Content returns the last successfully loaded source of the displayed note.
func (s *State) Content() string { return s.content }

// Show records that name is now displayed with the given source. It does
// not touch history.
func (s *State) Show(name, content string) {
	s.fileName = name
	s.content = content
}

// ChangeDirectory switches the active sub-wiki and clears the history.
// An empty path means the wiki root.
func (s *State) ChangeDirectory(path []string) {
	s.relPath = normalize(path)
	s.history = nil
}

// Breadcrumbs returns the trail for the active sub-wiki.
func (s *State) Breadcrumbs() []models.Breadcrumb {
	return Breadcrumbs(s.relPath)
}

// ResolveDir derives the directory handle for rel. It is recomputed on every
// call so a stale handle never outlives a directory change.
func ResolveDir(r storage.PathResolver, root models.Handle, rel []string) (models.Handle, bool) {
	if len(rel) == 0 {
		return root, true
	}
	h, err := r.ResolvePath(root, rel)
	if err != nil {
		return "", false
	}
	return h, true
}

func normalize(path []string) []string {
	var out []string
	for _, seg := range path {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
