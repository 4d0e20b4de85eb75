package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/subwiki/internal/apperr"
	"github.com/starford/subwiki/internal/models"
	"github.com/starford/subwiki/internal/storage"
)

// localPather is implemented by providers backed by the local file system.
type localPather interface {
	LocalPath(h models.Handle) (string, error)
}

// Edit hands the displayed note to the editor and returns the request. With
// the external editor enabled the note file is given to the opener instead
// and the returned request has an empty ID.
func (s *Session) Edit(ctx context.Context) (EditRequest, error) {
	var req EditRequest
	err := s.onLoop(ctx, func() {
		if s.externalEditor {
			if uri, ok := s.fileURI(); ok {
				s.opener.OpenExternally(uri)
				return
			}
		}
		req = s.requestEdit(s.state.RelativePath(), s.state.FileName(), s.state.Content(), false)
	})
	return req, err
}

// requestEdit registers and sends an edit request. Loop only.
func (s *Session) requestEdit(path []string, name, content string, isNew bool) EditRequest {
	req := EditRequest{
		ID:       uuid.NewString(),
		FileName: name,
		Content:  content,
		SubWiki:  path,
		IsNew:    isNew,
	}
	s.pending[req.ID] = req
	s.editor.RequestEdit(req)
	s.logger.Debug("session: edit requested",
		slog.String("id", req.ID),
		slog.String("file", name),
		slog.Bool("new", isNew))
	return req
}

func (s *Session) fileURI() (string, bool) {
	lp, ok := s.store.(localPather)
	if !ok || s.current.Name == "" {
		return "", false
	}
	p, err := lp.LocalPath(s.current.Handle)
	if err != nil {
		return "", false
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String(), true
}

// CompleteEdit applies the editor's answer: the note is written (or created
// together with its sub-wiki directory), re-rendered without a history step
// and the recents index is refreshed. Unknown or already completed request
// IDs yield apperr.ErrNotFound.
func (s *Session) CompleteEdit(ctx context.Context, res EditResult) error {
	var (
		req EditRequest
		ok  bool
		seq uint64
	)
	if err := s.onLoop(ctx, func() {
		if req, ok = s.pending[res.RequestID]; !ok {
			return
		}
		delete(s.pending, res.RequestID)
		if !res.Cancelled {
			seq = s.next()
		}
	}); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session: edit %s: %w", res.RequestID, apperr.ErrNotFound)
	}
	if res.Cancelled {
		return nil
	}

	var (
		l        loaded
		name     = req.FileName
		writeErr error
		loadErr  error
	)
	if err := s.offload(ctx, func() {
		var h models.Handle
		if h, writeErr = s.save(req.SubWiki, req.FileName, res.Content); writeErr != nil {
			return
		}
		// The provider may have completed the name, e.g. with the note extension.
		if rec, err := s.store.Stat(h); err == nil {
			name = rec.Name
		}
		l, loadErr = s.load(req.SubWiki, name, true)
	}); err != nil {
		return err
	}

	var result error
	if err := s.onLoop(ctx, func() {
		switch {
		case writeErr != nil:
			s.logger.Warn("session: save failed",
				slog.String("file", req.FileName),
				slog.String("error", writeErr.Error()))
			if errors.Is(writeErr, apperr.ErrDirectoryResolution) {
				s.presenter.ShowTransientMessage("Can't create dir " + strings.Join(req.SubWiki, "/"))
			} else {
				s.presenter.ShowTransientMessage("Can't create file " + req.FileName)
			}
			result = writeErr
		case !slices.Equal(req.SubWiki, s.state.RelativePath()):
			s.presenter.ShowTransientMessage("Saved " + name)
		case seq != s.seq:
			result = ErrSuperseded
		case loadErr != nil:
			result = s.fail(name, loadErr)
		case !l.found:
			s.presenter.ShowTransientMessage("Can't open " + name)
			result = fmt.Errorf("session: saved %s: %w", name, apperr.ErrNotFound)
		default:
			result = s.show(seq, l, false)
		}
	}); err != nil {
		return err
	}
	return result
}

// save writes content to name inside the sub-wiki at path, creating the
// directory and the file as needed, and returns the written file. Worker only.
func (s *Session) save(path []string, name, content string) (models.Handle, error) {
	dir, err := storage.EnsureDir(s.store, s.store.Root(), path)
	if err != nil {
		return "", err
	}
	h, err := s.findNote(dir, name)
	switch {
	case err == nil:
		return h, storage.WriteAll(s.store, h, content)
	case errors.Is(err, apperr.ErrNotFound):
		return storage.CreateWithContent(s.store, dir, name, content)
	default:
		return "", fmt.Errorf("%w: %w", apperr.ErrStorageWrite, err)
	}
}
