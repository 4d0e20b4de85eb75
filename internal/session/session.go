// Package session coordinates one wiki viewer: it owns the navigation state
// and the recents index, runs storage and compilation on a background
// worker, and drives the presenter, opener and editor collaborators.
package session

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/starford/subwiki/internal/linkrouter"
	"github.com/starford/subwiki/internal/markdown"
	"github.com/starford/subwiki/internal/models"
	"github.com/starford/subwiki/internal/navigation"
	"github.com/starford/subwiki/internal/recents"
	"github.com/starford/subwiki/internal/storage"
)

var (
	// ErrStopped is returned once Run has returned.
	ErrStopped = errors.New("session: stopped")
	// ErrSuperseded is returned when a newer navigation started before this
	// one finished; its result was dropped.
	ErrSuperseded = errors.New("session: superseded by a newer navigation")
)

// Session is the navigation coordinator.
//
// Concurrency model: one loop goroutine owns every field below the marker
// and is the only one that reads or mutates them. A single worker goroutine
// runs storage I/O and compilation. Public methods hop between the two
// through channels, so no mutexes are required.
type Session struct {
	store     storage.Provider
	router    *linkrouter.Router
	compiler  Compiler
	presenter Presenter
	opener    Opener
	editor    Editor
	logger    *slog.Logger

	ext            string
	recentsLimit   int
	externalEditor bool
	onTransition   TransitionFunc

	cmds    chan func()
	jobs    chan func()
	stopped chan struct{}

	// owned by the loop goroutine
	state   *navigation.State
	recents *recents.Index
	seq     uint64
	current models.FileRecord
	sum     string
	page    Page
	pending map[string]EditRequest
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithCompiler replaces the default Markdown compiler.
func WithCompiler(c Compiler) Option {
	return func(s *Session) { s.compiler = c }
}

// WithExtension sets the note file extension (default ".md").
func WithExtension(ext string) Option {
	return func(s *Session) { s.ext = ext }
}

// WithRecentsLimit bounds the recents index.
func WithRecentsLimit(n int) Option {
	return func(s *Session) { s.recentsLimit = n }
}

// WithExternalEditor makes Edit open the note file with the opener instead
// of the editor collaborator.
func WithExternalEditor(on bool) Option {
	return func(s *Session) { s.externalEditor = on }
}

// OnTransition registers a hook called after every applied navigation.
func OnTransition(fn TransitionFunc) Option {
	return func(s *Session) { s.onTransition = fn }
}

// New creates a session over store. Call Run before any other method.
func New(store storage.Provider, p Presenter, o Opener, e Editor, opts ...Option) *Session {
	s := &Session{
		store:        store,
		router:       linkrouter.New(store),
		presenter:    p,
		opener:       o,
		editor:       e,
		ext:          markdown.NoteExt,
		recentsLimit: recents.DefaultLimit,
		cmds:         make(chan func()),
		jobs:         make(chan func(), 64),
		stopped:      make(chan struct{}),
		state:        navigation.New(),
		pending:      make(map[string]EditRequest),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.compiler == nil {
		s.compiler = markdown.New()
	}
	s.recents = recents.NewIndex(s.ext, s.recentsLimit)
	return s
}

// Run drives the loop and the worker until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.stopped)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return drain(gCtx, s.cmds)
	})
	g.Go(func() error {
		return drain(gCtx, s.jobs)
	})
	return g.Wait()
}

func drain(ctx context.Context, ch <-chan func()) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-ch:
			fn()
		}
	}
}

// onLoop runs fn on the loop goroutine and waits for it.
func (s *Session) onLoop(ctx context.Context, fn func()) error {
	return s.call(ctx, s.cmds, fn)
}

// offload runs fn on the worker and waits for it.
func (s *Session) offload(ctx context.Context, fn func()) error {
	return s.call(ctx, s.jobs, fn)
}

func (s *Session) call(ctx context.Context, ch chan<- func(), fn func()) error {
	done := make(chan struct{})
	select {
	case ch <- func() { fn(); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrStopped
	}
}

// next starts a new navigation and returns its sequence number. Loop only.
func (s *Session) next() uint64 {
	s.seq++
	return s.seq
}

// persist queues the transition hook behind any pending worker jobs. Loop only.
func (s *Session) persist() {
	if s.onTransition == nil {
		return
	}
	snap := s.state.Snapshot()
	select {
	case s.jobs <- func() { s.onTransition(snap) }:
	default:
		s.logger.Warn("session: worker queue full, snapshot not persisted",
			slog.String("file", snap.FileName))
	}
}
