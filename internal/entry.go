// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/subwiki/internal/apperr"
	"github.com/starford/subwiki/internal/markdown"
	"github.com/starford/subwiki/internal/mcpserver"
	"github.com/starford/subwiki/internal/navigation"
	"github.com/starford/subwiki/internal/prefs"
	"github.com/starford/subwiki/internal/session"
	"github.com/starford/subwiki/internal/sse"
	"github.com/starford/subwiki/internal/storage"
	"github.com/starford/subwiki/internal/view"
	"github.com/starford/subwiki/internal/watch"
	"github.com/starford/subwiki/internal/web"
)

// wiki bundles what both hosts need: the opened root, the preferences and
// the compiler.
type wiki struct {
	cfg      *Config
	logger   *slog.Logger
	prefs    *prefs.DB
	store    *storage.FS
	state    *prefs.SessionState
	compiler *markdown.Compiler
}

func (w *wiki) Close() error {
	return w.prefs.Close()
}

// openWiki sets up logging, opens the preferences and resolves the wiki
// root. The root comes from the --root flag, then the configuration, then
// the last opened root. A remembered root that can no longer be opened is
// forgotten and apperr.ErrRootUnresolvable is returned.
func openWiki(app *application, logOut io.Writer) (*wiki, error) {
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	db, err := prefs.Open(cfg.Prefs.Path)
	if err != nil {
		return nil, fmt.Errorf("init prefs: %w", err)
	}

	store, err := resolveRoot(app, prefs.NewRootSetting(db), logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("wiki_root", store.Dir()),
		slog.String("prefs_path", cfg.Prefs.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	compilerOpts := []markdown.Option{markdown.WithTableClass(cfg.Wiki.TableClass)}
	if cfg.Wiki.SafeHTML {
		compilerOpts = append(compilerOpts, markdown.WithSafeHTML())
	}

	return &wiki{
		cfg:      cfg,
		logger:   logger,
		prefs:    db,
		store:    store,
		state:    prefs.NewSessionState(db, store.Dir()),
		compiler: markdown.New(compilerOpts...),
	}, nil
}

func resolveRoot(app *application, setting *prefs.RootSetting, logger *slog.Logger) (*storage.FS, error) {
	explicit := app.root
	if explicit == "" {
		explicit = app.config.Wiki.Root
	}

	if explicit != "" {
		if err := os.MkdirAll(explicit, 0o755); err != nil {
			return nil, fmt.Errorf("create wiki dir: %w", err)
		}
		store, err := storage.NewFS(explicit)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		if err := setting.Save(store.Dir()); err != nil {
			logger.Warn("remember wiki root failed", slog.String("error", err.Error()))
		}
		return store, nil
	}

	root, ok, err := setting.Load()
	if err != nil {
		return nil, fmt.Errorf("load wiki root: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("no wiki root configured, pass --root: %w", apperr.ErrRootUnresolvable)
	}
	store, err := storage.NewFS(root)
	if err != nil {
		logger.Warn("last wiki root unavailable, forgetting it",
			slog.String("wiki_root", root),
			slog.String("error", err.Error()))
		if resetErr := setting.Reset(); resetErr != nil {
			logger.Warn("reset wiki root failed", slog.String("error", resetErr.Error()))
		}
		return nil, fmt.Errorf("open %s: %w", root, apperr.ErrRootUnresolvable)
	}
	return store, nil
}

// newSession builds a session whose transitions are saved for the next start.
func (w *wiki) newSession(p session.Presenter, o session.Opener, e session.Editor) *session.Session {
	return session.New(w.store, p, o, e,
		session.WithLogger(w.logger),
		session.WithCompiler(w.compiler),
		session.WithRecentsLimit(w.cfg.Wiki.RecentsLimit),
		session.WithExternalEditor(w.cfg.Wiki.ExternalEditor),
		session.OnTransition(func(snap navigation.Snapshot) {
			if err := w.state.Save(snap); err != nil {
				w.logger.Warn("save session state failed", slog.String("error", err.Error()))
			}
		}),
	)
}

// restored returns the snapshot of the previous run, or the root Home.
func (w *wiki) restored() navigation.Snapshot {
	snap, ok, err := w.state.Load()
	if err != nil {
		w.logger.Warn("load session state failed", slog.String("error", err.Error()))
	}
	if !ok {
		return navigation.Snapshot{FileName: navigation.HomeFile}
	}
	return snap
}

// runSession runs nav and opens the restored note once the loop is up.
func (w *wiki) runSession(ctx context.Context, g *errgroup.Group, nav *session.Session) {
	g.Go(func() error {
		return nav.Run(ctx)
	})
	g.Go(func() error {
		if err := nav.Start(ctx, w.restored()); err != nil && ctx.Err() == nil {
			return fmt.Errorf("start session: %w", err)
		}
		return nil
	})
}

// runWatcher feeds external edits to nav when enabled.
func (w *wiki) runWatcher(ctx context.Context, g *errgroup.Group, nav *session.Session) {
	if !w.cfg.Watch.Enabled {
		return
	}
	g.Go(func() error {
		return watch.Watch(ctx, w.store.Dir(), w.logger, func(kind, rel string) {
			if err := nav.ExternalChange(ctx, rel); err != nil && ctx.Err() == nil {
				w.logger.Debug("external change not applied",
					slog.String("path", rel),
					slog.String("op", kind),
					slog.String("error", err.Error()))
			}
		}, watch.WithDebounce(w.cfg.Watch.Debounce))
	})
}

// Run starts the HTTP host with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	wk, err := openWiki(app, os.Stdout)
	if err != nil {
		return err
	}
	defer wk.Close()

	cfg := wk.cfg
	logger := wk.logger

	// SSE broker carrying the presentation to browsers.
	broker := sse.NewBroker(
		sse.WithSticky(web.StickyEvents...),
		sse.WithHeartbeat(15*time.Second),
	)
	defer broker.Close()

	presenter := web.NewPresenter(broker)
	nav := wk.newSession(presenter, presenter, presenter)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := wk.store.Check(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"wiki root unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Page shell and API.
	web.MountShell(r)
	r.Mount("/api", web.NewRouter(nav, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	wk.runSession(gCtx, g, nav)
	wk.runWatcher(gCtx, g, nav)

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the wiki session as MCP tools on stdin/stdout. Logs go to
// stderr so they never mix with the protocol stream.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	wk, err := openWiki(app, os.Stderr)
	if err != nil {
		return err
	}
	defer wk.Close()

	rec := view.New()
	nav := wk.newSession(rec, rec, rec)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)
	wk.runSession(gCtx, g, nav)
	wk.runWatcher(gCtx, g, nav)

	srv := mcpserver.New(nav, rec, wk.compiler)
	serveErr := srv.ServeStdio()

	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return serveErr
}
