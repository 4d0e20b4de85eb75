// Package linkrouter turns the targets of clicked anchors into navigation
// outcomes.
package linkrouter

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/starford/subwiki/internal/navigation"
	"github.com/starford/subwiki/internal/storage"
)

// Schemes understood by the router.
const (
	SchemeWikiLink = "wiki-link"
	SchemeWikiDir  = "wiki-dir"
	SchemeFile     = "file"
)

// dirHost is the fixed authority of wiki-dir targets; the path carries the
// sub-wiki.
const dirHost = "root"

// Kind enumerates the closed set of routing outcomes.
type Kind int

const (
	Ignore Kind = iota
	OpenFile
	ChangeDirectoryAndOpen
	Delegate
	PassThrough
)

func (k Kind) String() string {
	switch k {
	case OpenFile:
		return "open_file"
	case ChangeDirectoryAndOpen:
		return "change_directory_and_open"
	case Delegate:
		return "delegate"
	case PassThrough:
		return "pass_through"
	default:
		return "ignore"
	}
}

// Outcome is what one clicked target resolves to. Name is set for OpenFile
// and ChangeDirectoryAndOpen, Path for ChangeDirectoryAndOpen (nil = root),
// URI for Delegate and PassThrough.
type Outcome struct {
	Kind Kind
	Name string
	Path []string
	URI  string

	ensureHome bool
}

// DirHref returns the breadcrumb target for a slash-joined sub-wiki path.
func DirHref(target string) string {
	var b strings.Builder
	b.WriteString(SchemeWikiDir + "://" + dirHost)
	for _, seg := range strings.Split(target, "/") {
		if seg == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(url.PathEscape(seg))
	}
	return b.String()
}

// Plan classifies uri against the active sub-wiki path. It has no side
// effects.
func Plan(uri string, current []string) Outcome {
	scheme, rest, ok := strings.Cut(uri, ":")
	if !ok || !validScheme(scheme) {
		return Outcome{Kind: Ignore}
	}

	switch strings.ToLower(scheme) {
	case SchemeFile:
		return Outcome{Kind: PassThrough, URI: uri}

	case SchemeWikiLink:
		segs, ok := splitAuthority(rest)
		if !ok || len(segs) == 0 {
			return Outcome{Kind: Ignore}
		}
		host, path := segs[0], segs[1:]
		if len(path) == 0 {
			return Outcome{Kind: OpenFile, Name: host}
		}
		dir := slices.Concat(current, []string{host}, path[:len(path)-1])
		return Outcome{Kind: ChangeDirectoryAndOpen, Path: dir, Name: path[len(path)-1]}

	case SchemeWikiDir:
		segs, ok := splitAuthority(rest)
		if !ok {
			return Outcome{Kind: Ignore}
		}
		// The host is a fixed authority; only the path names the sub-wiki.
		var dir []string
		if len(segs) > 1 {
			dir = segs[1:]
		}
		return Outcome{Kind: ChangeDirectoryAndOpen, Path: dir, Name: navigation.HomeFile, ensureHome: true}

	default:
		return Outcome{Kind: Delegate, URI: uri}
	}
}

// validScheme reports whether s is an RFC 3986 scheme:
// ALPHA *( ALPHA / DIGIT / "+" / "-" / "." ).
func validScheme(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case i > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

// splitAuthority requires the "//" of a wiki URI and splits what follows.
func splitAuthority(rest string) ([]string, bool) {
	rest, ok := strings.CutPrefix(rest, "//")
	if !ok {
		return nil, false
	}
	return splitSegments(rest)
}

// splitSegments drops the query and fragment, splits on '/' and
// percent-decodes each non-empty segment.
func splitSegments(rest string) ([]string, bool) {
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	var segs []string
	for _, raw := range strings.Split(rest, "/") {
		if raw == "" {
			continue
		}
		seg, err := url.PathUnescape(raw)
		if err != nil || seg == "" {
			return nil, false
		}
		segs = append(segs, seg)
	}
	return segs, true
}

// Router performs the storage preconditions of an outcome.
type Router struct {
	store storage.Provider
}

// New returns a router over store.
func New(store storage.Provider) *Router {
	return &Router{store: store}
}

// Prepare makes sure the directory of a ChangeDirectoryAndOpen outcome
// exists, creating it level by level, and seeds its Home note when the
// outcome came from a breadcrumb. Other outcomes need nothing.
func (r *Router) Prepare(o Outcome) error {
	if o.Kind != ChangeDirectoryAndOpen {
		return nil
	}
	dir, err := storage.EnsureDir(r.store, r.store.Root(), o.Path)
	if err != nil {
		return fmt.Errorf("linkrouter: %s: %w", strings.Join(o.Path, "/"), err)
	}
	if o.ensureHome {
		if _, err := storage.EnsureFile(r.store, dir, navigation.HomeFile, navigation.HomeSeed); err != nil {
			return fmt.Errorf("linkrouter: home of %s: %w", strings.Join(o.Path, "/"), err)
		}
	}
	return nil
}

// Apply commits the state change an outcome carries. Opening the note is
// left to the caller.
func Apply(o Outcome, st *navigation.State) {
	if o.Kind == ChangeDirectoryAndOpen {
		st.ChangeDirectory(o.Path)
	}
}

// Route plans, prepares and applies uri in one synchronous step. When the
// precondition fails st is left untouched.
func (r *Router) Route(uri string, st *navigation.State) (Outcome, error) {
	o := Plan(uri, st.RelativePath())
	if err := r.Prepare(o); err != nil {
		return Outcome{Kind: Ignore}, err
	}
	Apply(o, st)
	return o, nil
}
