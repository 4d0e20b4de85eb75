package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/starford/subwiki/internal/apperr"
	"github.com/starford/subwiki/internal/checksum"
	"github.com/starford/subwiki/internal/linkrouter"
	"github.com/starford/subwiki/internal/models"
	"github.com/starford/subwiki/internal/navigation"
	"github.com/starford/subwiki/internal/storage"
)

// View is a read-only copy of what the session currently shows.
type View struct {
	Page    Page                `json:"page"`
	Content string              `json:"content"`
	History []string            `json:"history"`
	Recents []models.FileRecord `json:"recents"`
}

// loaded is the result of one background load.
type loaded struct {
	found     bool
	record    models.FileRecord
	content   string
	page      Page
	recents   []models.FileRecord
	recentsOK bool
}

// load reads name from the sub-wiki at path and assembles its page. A
// missing directory or file is reported through found, not as an error.
// Worker only.
func (s *Session) load(path []string, name string, withRecents bool) (loaded, error) {
	var l loaded
	dir, ok := navigation.ResolveDir(s.store, s.store.Root(), path)
	if !ok {
		return l, nil
	}
	if withRecents {
		items, err := s.recents.Compute(s.store, dir)
		if err != nil {
			s.logger.Warn("session: list recents failed",
				slog.String("dir", strings.Join(path, "/")),
				slog.String("error", err.Error()))
		} else {
			l.recents, l.recentsOK = items, true
		}
	}

	h, err := s.findNote(dir, name)
	if errors.Is(err, apperr.ErrNotFound) {
		return l, nil
	}
	if err != nil {
		return l, err
	}
	content, err := storage.ReadAll(s.store, h)
	if err != nil {
		return l, err
	}
	rec, err := s.store.Stat(h)
	if err != nil {
		return l, err
	}
	l.found = true
	l.record = rec
	l.content = content
	l.page = assemble(s.compiler, path, rec, content, s.ext)
	return l, nil
}

// findNote looks name up in dir. A name without an extension also matches
// the note file carrying the note extension, the name such a note is
// created under. Worker only.
func (s *Session) findNote(dir models.Handle, name string) (models.Handle, error) {
	h, err := s.store.FindFile(dir, name)
	if errors.Is(err, apperr.ErrNotFound) && path.Ext(name) == "" {
		return s.store.FindFile(dir, name+s.ext)
	}
	return h, err
}

// show applies a completed load in one step. Loop only.
func (s *Session) show(seq uint64, l loaded, push bool) error {
	if seq != s.seq {
		return ErrSuperseded
	}
	s.state.Show(l.record.Name, l.content)
	if push {
		s.state.PushHistory(l.record.Name)
	}
	if l.recentsOK {
		s.recents.Replace(l.recents)
	}
	s.current = l.record
	s.sum = checksum.String(l.content)
	s.page = l.page
	s.presenter.RenderHTML(l.page.HTML)
	s.presenter.ScrollToTop()
	s.persist()
	s.logger.Debug("session: showing note",
		slog.String("file", l.record.Name),
		slog.String("sub_wiki", s.state.SubWiki()))
	return nil
}

// Start restores snap (the zero value opens the root Home note). The root
// Home note is created when missing. A snapshot whose note no longer exists
// falls back to the root Home note.
func (s *Session) Start(ctx context.Context, snap navigation.Snapshot) error {
	var (
		seq  uint64
		path []string
		name string
	)
	if err := s.onLoop(ctx, func() {
		s.state = navigation.Restore(snap)
		clear(s.pending)
		seq = s.next()
		path, name = s.state.RelativePath(), s.state.FileName()
	}); err != nil {
		return err
	}

	var (
		l        loaded
		err      error
		fellBack bool
	)
	if err := s.offload(ctx, func() {
		if _, err = storage.EnsureFile(s.store, s.store.Root(), navigation.HomeFile, navigation.HomeSeed); err != nil {
			return
		}
		if l, err = s.load(path, name, true); err != nil || l.found {
			return
		}
		fellBack = true
		l, err = s.load(nil, navigation.HomeFile, true)
	}); err != nil {
		return err
	}

	var result error
	if err := s.onLoop(ctx, func() {
		if err != nil {
			s.presenter.ShowTransientMessage("Can't open wiki home")
			result = fmt.Errorf("session: start: %w", err)
			return
		}
		if fellBack {
			s.logger.Info("session: restored note missing, opening home",
				slog.String("file", name),
				slog.String("sub_wiki", strings.Join(path, "/")))
			s.state.ChangeDirectory(nil)
		}
		if !l.found {
			result = fmt.Errorf("session: start: home: %w", apperr.ErrNotFound)
			return
		}
		result = s.show(seq, l, true)
	}); err != nil {
		return err
	}
	return result
}

// Route handles one clicked anchor target.
func (s *Session) Route(ctx context.Context, uri string) (linkrouter.Outcome, error) {
	var (
		o    linkrouter.Outcome
		seq  uint64
		path []string
	)
	if err := s.onLoop(ctx, func() {
		o = linkrouter.Plan(uri, s.state.RelativePath())
		switch o.Kind {
		case linkrouter.Delegate:
			s.opener.OpenExternally(o.URI)
		case linkrouter.OpenFile, linkrouter.ChangeDirectoryAndOpen:
			seq = s.next()
			path = s.state.RelativePath()
		}
	}); err != nil {
		return o, err
	}

	switch o.Kind {
	case linkrouter.OpenFile:
		return o, s.openInPlace(ctx, seq, path, o.Name)
	case linkrouter.ChangeDirectoryAndOpen:
		return o, s.changeDirectory(ctx, seq, o)
	}
	return o, nil
}

// OpenWikiLink opens name in the active sub-wiki, pushing history. A missing
// note is handed to the editor for creation.
func (s *Session) OpenWikiLink(ctx context.Context, name string) error {
	var (
		seq  uint64
		path []string
	)
	if err := s.onLoop(ctx, func() {
		seq = s.next()
		path = s.state.RelativePath()
	}); err != nil {
		return err
	}
	return s.openInPlace(ctx, seq, path, name)
}

func (s *Session) openInPlace(ctx context.Context, seq uint64, path []string, name string) error {
	var (
		l   loaded
		err error
	)
	if err := s.offload(ctx, func() { l, err = s.load(path, name, false) }); err != nil {
		return err
	}

	var result error
	if err := s.onLoop(ctx, func() {
		switch {
		case seq != s.seq:
			result = ErrSuperseded
		case err != nil:
			result = s.fail(name, err)
		case !l.found:
			s.requestEdit(path, name, "", true)
		default:
			result = s.show(seq, l, true)
		}
	}); err != nil {
		return err
	}
	return result
}

func (s *Session) changeDirectory(ctx context.Context, seq uint64, o linkrouter.Outcome) error {
	var (
		l       loaded
		prepErr error
		err     error
	)
	if err := s.offload(ctx, func() {
		if prepErr = s.router.Prepare(o); prepErr != nil {
			return
		}
		l, err = s.load(o.Path, o.Name, true)
	}); err != nil {
		return err
	}

	var result error
	if err := s.onLoop(ctx, func() {
		switch {
		case seq != s.seq:
			result = ErrSuperseded
			return
		case prepErr != nil:
			s.logger.Warn("session: sub-wiki unavailable",
				slog.String("sub_wiki", strings.Join(o.Path, "/")),
				slog.String("error", prepErr.Error()))
			s.presenter.ShowTransientMessage("Can't create dir " + strings.Join(o.Path, "/"))
			result = prepErr
			return
		case err != nil:
			result = s.fail(o.Name, err)
			return
		}

		linkrouter.Apply(o, s.state)
		if !l.found {
			if l.recentsOK {
				s.recents.Replace(l.recents)
			}
			s.persist()
			s.requestEdit(o.Path, o.Name, "", true)
			return
		}
		result = s.show(seq, l, true)
	}); err != nil {
		return err
	}
	return result
}

// OpenRecent opens an entry of the recents index, pushing history.
func (s *Session) OpenRecent(ctx context.Context, name string) error {
	var (
		seq  uint64
		path []string
		ok   bool
	)
	if err := s.onLoop(ctx, func() {
		if _, ok = s.recents.Find(name); ok {
			seq = s.next()
			path = s.state.RelativePath()
		}
	}); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session: recent %s: %w", name, apperr.ErrNotFound)
	}

	var (
		l   loaded
		err error
	)
	if err := s.offload(ctx, func() { l, err = s.load(path, name, false) }); err != nil {
		return err
	}
	var result error
	if err := s.onLoop(ctx, func() {
		switch {
		case seq != s.seq:
			result = ErrSuperseded
		case err != nil:
			result = s.fail(name, err)
		case !l.found:
			s.presenter.ShowTransientMessage(name + " no longer exists")
			result = fmt.Errorf("session: recent %s: %w", name, apperr.ErrNotFound)
		default:
			result = s.show(seq, l, true)
		}
	}); err != nil {
		return err
	}
	return result
}

// Back steps back through the history. On BackExit the view is closed.
func (s *Session) Back(ctx context.Context) (navigation.BackOutcome, error) {
	var (
		out  navigation.BackOutcome
		seq  uint64
		path []string
	)
	if err := s.onLoop(ctx, func() {
		out = s.state.GoBack()
		if out.Kind == navigation.BackExit {
			s.presenter.CloseView()
			return
		}
		seq = s.next()
		path = s.state.RelativePath()
	}); err != nil {
		return out, err
	}
	if out.Kind == navigation.BackExit {
		return out, nil
	}
	return out, s.replay(ctx, seq, path, out.Name, false)
}

// Reload re-reads the displayed note and the recents index without
// touching history.
func (s *Session) Reload(ctx context.Context) error {
	var (
		seq  uint64
		path []string
		name string
	)
	if err := s.onLoop(ctx, func() {
		s.presenter.ShowTransientMessage("Reloading")
		seq = s.next()
		path, name = s.state.RelativePath(), s.state.FileName()
	}); err != nil {
		return err
	}
	return s.replay(ctx, seq, path, name, true)
}

// replay opens name without pushing history. The note was reachable before,
// so a missing file means it was removed out-of-band and the view is closed.
func (s *Session) replay(ctx context.Context, seq uint64, path []string, name string, withRecents bool) error {
	var (
		l   loaded
		err error
	)
	if err := s.offload(ctx, func() { l, err = s.load(path, name, withRecents) }); err != nil {
		return err
	}

	var result error
	if err := s.onLoop(ctx, func() {
		switch {
		case seq != s.seq:
			result = ErrSuperseded
		case err != nil:
			result = s.fail(name, err)
		case !l.found:
			s.logger.Warn("session: history target missing", slog.String("file", name))
			s.presenter.ShowTransientMessage("File in history is deleted. Closing view.")
			s.presenter.CloseView()
			result = fmt.Errorf("session: %s: %w", name, apperr.ErrHistoryTargetMissing)
		default:
			result = s.show(seq, l, false)
		}
	}); err != nil {
		return err
	}
	return result
}

// RefreshRecents recomputes the recents index of the active sub-wiki.
func (s *Session) RefreshRecents(ctx context.Context) error {
	var path []string
	if err := s.onLoop(ctx, func() { path = s.state.RelativePath() }); err != nil {
		return err
	}

	var (
		items []models.FileRecord
		err   error
	)
	if err := s.offload(ctx, func() {
		dir, ok := navigation.ResolveDir(s.store, s.store.Root(), path)
		if !ok {
			err = fmt.Errorf("session: sub-wiki %s: %w", strings.Join(path, "/"), apperr.ErrDirectoryResolution)
			return
		}
		items, err = s.recents.Compute(s.store, dir)
	}); err != nil {
		return err
	}
	if err != nil {
		return err
	}
	return s.onLoop(ctx, func() {
		if slices.Equal(path, s.state.RelativePath()) {
			s.recents.Replace(items)
		}
	})
}

// ExternalChange reacts to a note changed outside the session. rel is the
// slash-separated path relative to the wiki root. The recents index is
// refreshed when the note lives in the active sub-wiki, and the displayed
// note is re-rendered when its content changed.
func (s *Session) ExternalChange(ctx context.Context, rel string) error {
	path, name := splitRel(rel)
	var (
		seq       uint64
		sum       string
		sameDir   bool
		isCurrent bool
	)
	if err := s.onLoop(ctx, func() {
		sameDir = slices.Equal(path, s.state.RelativePath())
		isCurrent = sameDir && name == s.state.FileName()
		seq, sum = s.seq, s.sum
	}); err != nil {
		return err
	}
	if !sameDir {
		return nil
	}

	var (
		l   loaded
		err error
	)
	if err := s.offload(ctx, func() {
		if isCurrent {
			l, err = s.load(path, name, true)
			return
		}
		if dir, ok := navigation.ResolveDir(s.store, s.store.Root(), path); ok {
			l.recents, err = s.recents.Compute(s.store, dir)
			l.recentsOK = err == nil
		}
	}); err != nil {
		return err
	}
	if err != nil {
		return err
	}

	return s.onLoop(ctx, func() {
		if seq != s.seq {
			return
		}
		if l.recentsOK {
			s.recents.Replace(l.recents)
		}
		if !isCurrent {
			return
		}
		if !l.found {
			s.presenter.ShowTransientMessage(name + " was removed")
			return
		}
		if checksum.String(l.content) == sum {
			return
		}
		s.state.Show(l.record.Name, l.content)
		s.current = l.record
		s.sum = checksum.String(l.content)
		s.page = l.page
		s.presenter.RenderHTML(l.page.HTML)
		s.logger.Debug("session: re-rendered after external change", slog.String("file", name))
	})
}

// Snapshot returns a copy of the current view.
func (s *Session) Snapshot(ctx context.Context) (View, error) {
	var v View
	err := s.onLoop(ctx, func() {
		v = View{
			Page:    s.page,
			Content: s.state.Content(),
			History: s.state.History(),
			Recents: s.recents.Items(),
		}
	})
	return v, err
}

// fail reports an unexpected storage error for name. Loop only.
func (s *Session) fail(name string, err error) error {
	s.logger.Warn("session: load failed",
		slog.String("file", name),
		slog.String("error", err.Error()))
	s.presenter.ShowTransientMessage("Can't open " + name)
	return fmt.Errorf("session: open %s: %w", name, err)
}

func splitRel(rel string) ([]string, string) {
	var segs []string
	for _, seg := range strings.Split(rel, "/") {
		if seg != "" {
			segs = append(segs, seg)
		}
	}
	if len(segs) == 0 {
		return nil, ""
	}
	return segs[:len(segs)-1], segs[len(segs)-1]
}
