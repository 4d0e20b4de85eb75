package session_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/subwiki/internal/apperr"
	"github.com/starford/subwiki/internal/linkrouter"
	"github.com/starford/subwiki/internal/markdown"
	"github.com/starford/subwiki/internal/models"
	"github.com/starford/subwiki/internal/navigation"
	"github.com/starford/subwiki/internal/session"
	"github.com/starford/subwiki/internal/storage"
	"github.com/starford/subwiki/internal/testutil"
	"github.com/starford/subwiki/internal/view"
)

func startSession(t *testing.T, store storage.Provider, opts ...session.Option) (*session.Session, *view.Recorder) {
	t.Helper()
	rec := view.New()
	s := session.New(store, rec, rec, rec, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	if err := s.Start(context.Background(), navigation.Snapshot{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	return s, rec
}

func snapshot(t *testing.T, s *session.Session) session.View {
	t.Helper()
	v, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func recentNames(v session.View) []string {
	var names []string
	for _, r := range v.Recents {
		names = append(names, r.Name)
	}
	return names
}

func readFile(t *testing.T, store *storage.FS, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(store.Dir(), filepath.FromSlash(rel)))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestStartSeedsHome(t *testing.T) {
	store := testutil.TestWiki(t)
	s, rec := startSession(t, store)

	if got := readFile(t, store, "Home.md"); got != navigation.HomeSeed {
		t.Fatalf("home = %q", got)
	}
	html := rec.HTML()
	if !strings.Contains(html, `<h1 class="title" id="title">Home</h1>`) {
		t.Errorf("missing title in %q", html)
	}
	if !strings.Contains(html, `<a class="wikilink" href="wiki-link://HelloLink.md">HelloLink</a>`) {
		t.Errorf("missing seeded wiki link in %q", html)
	}
	if strings.Contains(html, "wiki-dir://") {
		t.Errorf("root page must not carry breadcrumbs: %q", html)
	}
	v := snapshot(t, s)
	if !reflect.DeepEqual(v.History, []string{"Home.md"}) {
		t.Errorf("history = %v", v.History)
	}
	if !reflect.DeepEqual(recentNames(v), []string{"Home.md"}) {
		t.Errorf("recents = %v", recentNames(v))
	}
	if rec.Scrolls() != 1 {
		t.Errorf("scrolls = %d", rec.Scrolls())
	}
}

func TestStartRestoresSnapshot(t *testing.T) {
	store := testutil.TestWiki(t)
	testutil.WriteNote(t, store, "Notes/Idea.md", "# idea", time.Time{})
	rec := view.New()
	s := session.New(store, rec, rec, rec)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	err := s.Start(ctx, navigation.Snapshot{FileName: "Idea.md", SubWiki: []string{"Notes"}})
	if err != nil {
		t.Fatal(err)
	}
	v := snapshot(t, s)
	if v.Page.FileName != "Idea.md" || !reflect.DeepEqual(v.Page.SubWiki, []string{"Notes"}) {
		t.Fatalf("page = %+v", v.Page)
	}

	// A snapshot pointing at a removed note falls back to the root home.
	err = s.Start(ctx, navigation.Snapshot{FileName: "Gone.md", SubWiki: []string{"Nope"}})
	if err != nil {
		t.Fatal(err)
	}
	v = snapshot(t, s)
	if v.Page.FileName != "Home.md" || v.Page.SubWiki != nil {
		t.Fatalf("fallback page = %+v", v.Page)
	}
}

func TestRouteOpensExistingNote(t *testing.T) {
	store := testutil.TestWiki(t)
	testutil.WriteNote(t, store, "Foo.md", "foo body", time.Time{})
	s, rec := startSession(t, store)

	o, err := s.Route(context.Background(), "wiki-link://Foo.md")
	if err != nil {
		t.Fatal(err)
	}
	if o.Kind != linkrouter.OpenFile {
		t.Fatalf("outcome = %v", o.Kind)
	}
	if !strings.Contains(rec.HTML(), "<p>foo body</p>") {
		t.Errorf("html = %q", rec.HTML())
	}
	v := snapshot(t, s)
	if !reflect.DeepEqual(v.History, []string{"Home.md", "Foo.md"}) {
		t.Errorf("history = %v", v.History)
	}
	if v.Content != "foo body" {
		t.Errorf("content = %q", v.Content)
	}
}

func TestMissingLinkRequestsNewNote(t *testing.T) {
	store := testutil.TestWiki(t)
	s, rec := startSession(t, store)
	ctx := context.Background()

	if _, err := s.Route(ctx, "wiki-link://New.md"); err != nil {
		t.Fatal(err)
	}
	req, ok := rec.LastEdit()
	if !ok || req.FileName != "New.md" || !req.IsNew || req.Content != "" {
		t.Fatalf("edit request = %+v ok=%v", req, ok)
	}

	if err := s.CompleteEdit(ctx, session.EditResult{RequestID: req.ID, Content: "fresh"}); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, store, "New.md"); got != "fresh" {
		t.Fatalf("file = %q", got)
	}
	v := snapshot(t, s)
	if v.Page.FileName != "New.md" || !strings.Contains(rec.HTML(), "<p>fresh</p>") {
		t.Fatalf("page = %+v", v.Page)
	}
	if !reflect.DeepEqual(v.History, []string{"Home.md"}) {
		t.Errorf("saving must not push history: %v", v.History)
	}
	if names := recentNames(v); len(names) != 2 {
		t.Errorf("recents = %v", names)
	}

	// The same request cannot complete twice.
	err := s.CompleteEdit(ctx, session.EditResult{RequestID: req.ID, Content: "again"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewNoteWithoutExtensionIsShown(t *testing.T) {
	store := testutil.TestWiki(t)
	s, rec := startSession(t, store)
	ctx := context.Background()

	if _, err := s.Route(ctx, "wiki-link://Ideas"); err != nil {
		t.Fatal(err)
	}
	req, ok := rec.LastEdit()
	if !ok || req.FileName != "Ideas" || !req.IsNew {
		t.Fatalf("edit request = %+v ok=%v", req, ok)
	}

	if err := s.CompleteEdit(ctx, session.EditResult{RequestID: req.ID, Content: "plans"}); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, store, "Ideas.md"); got != "plans" {
		t.Fatalf("file = %q", got)
	}
	v := snapshot(t, s)
	if v.Page.FileName != "Ideas.md" || !strings.Contains(rec.HTML(), "<p>plans</p>") {
		t.Fatalf("page = %+v html = %q", v.Page, rec.HTML())
	}

	edits := len(rec.Edits())
	if _, err := s.Route(ctx, "wiki-link://Ideas"); err != nil {
		t.Fatal(err)
	}
	if len(rec.Edits()) != edits {
		t.Error("existing note must open, not request a new edit")
	}
}

func TestEditCancelled(t *testing.T) {
	store := testutil.TestWiki(t)
	s, _ := startSession(t, store)
	ctx := context.Background()

	req, err := s.Edit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if req.FileName != "Home.md" || req.Content != navigation.HomeSeed || req.IsNew {
		t.Fatalf("request = %+v", req)
	}
	if err := s.CompleteEdit(ctx, session.EditResult{RequestID: req.ID, Cancelled: true}); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, store, "Home.md"); got != navigation.HomeSeed {
		t.Fatalf("cancelled edit wrote %q", got)
	}
}

func TestEditExistingNote(t *testing.T) {
	store := testutil.TestWiki(t)
	s, rec := startSession(t, store)
	ctx := context.Background()

	req, err := s.Edit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CompleteEdit(ctx, session.EditResult{RequestID: req.ID, Content: "# Changed"}); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, store, "Home.md"); got != "# Changed" {
		t.Fatalf("file = %q", got)
	}
	if !strings.Contains(rec.HTML(), "<h1>Changed</h1>") {
		t.Errorf("html = %q", rec.HTML())
	}
}

func TestExternalEditorOpensFile(t *testing.T) {
	store := testutil.TestWiki(t)
	s, rec := startSession(t, store, session.WithExternalEditor(true))

	req, err := s.Edit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if req.ID != "" {
		t.Fatalf("unexpected internal request %+v", req)
	}
	opened := rec.Opened()
	if len(opened) != 1 || !strings.HasPrefix(opened[0], "file://") || !strings.HasSuffix(opened[0], "/Home.md") {
		t.Fatalf("opened = %v", opened)
	}
}

func TestSubWikiLinkCreatesDirectory(t *testing.T) {
	store := testutil.TestWiki(t)
	s, rec := startSession(t, store)
	ctx := context.Background()

	o, err := s.Route(ctx, "wiki-link://Notes/Idea.md")
	if err != nil {
		t.Fatal(err)
	}
	if o.Kind != linkrouter.ChangeDirectoryAndOpen {
		t.Fatalf("outcome = %v", o.Kind)
	}
	if info, err := os.Stat(filepath.Join(store.Dir(), "Notes")); err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}
	req, ok := rec.LastEdit()
	if !ok || req.FileName != "Idea.md" || !reflect.DeepEqual(req.SubWiki, []string{"Notes"}) {
		t.Fatalf("edit request = %+v", req)
	}
	v := snapshot(t, s)
	if len(v.History) != 0 {
		t.Errorf("history not cleared: %v", v.History)
	}

	if err := s.CompleteEdit(ctx, session.EditResult{RequestID: req.ID, Content: "idea"}); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, store, "Notes/Idea.md"); got != "idea" {
		t.Fatalf("file = %q", got)
	}
	html := rec.HTML()
	for _, want := range []string{
		`<li><a class="wikidir" href="wiki-dir://root">Root</a></li>`,
		`<li class="is-active"><a class="wikidir" href="wiki-dir://root/Notes">Notes</a></li>`,
		`<h1 class="title" id="title">Idea</h1>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("missing %q in %q", want, html)
		}
	}
}

func TestBreadcrumbReturnsHome(t *testing.T) {
	store := testutil.TestWiki(t)
	testutil.WriteNote(t, store, "A/B/Page.md", "page", time.Time{})
	s, _ := startSession(t, store)
	ctx := context.Background()

	if _, err := s.Route(ctx, "wiki-link://A/B/Page.md"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Route(ctx, "wiki-dir://root/A"); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, store, "A/Home.md"); got != navigation.HomeSeed {
		t.Fatalf("home not seeded: %q", got)
	}
	v := snapshot(t, s)
	if v.Page.FileName != "Home.md" || !reflect.DeepEqual(v.Page.SubWiki, []string{"A"}) {
		t.Fatalf("page = %+v", v.Page)
	}
	if !reflect.DeepEqual(v.History, []string{"Home.md"}) {
		t.Fatalf("history = %v", v.History)
	}
}

func TestBackThroughHistory(t *testing.T) {
	store := testutil.TestWiki(t)
	testutil.WriteNote(t, store, "A.md", "a", time.Time{})
	testutil.WriteNote(t, store, "B.md", "b", time.Time{})
	s, rec := startSession(t, store)
	ctx := context.Background()

	for _, name := range []string{"A.md", "B.md", "B.md"} {
		if err := s.OpenWikiLink(ctx, name); err != nil {
			t.Fatal(err)
		}
	}
	if v := snapshot(t, s); !reflect.DeepEqual(v.History, []string{"Home.md", "A.md", "B.md"}) {
		t.Fatalf("history = %v", v.History)
	}

	out, err := s.Back(ctx)
	if err != nil || out.Kind != navigation.BackNavigate || out.Name != "A.md" {
		t.Fatalf("back = %+v, %v", out, err)
	}
	if v := snapshot(t, s); v.Page.FileName != "A.md" || !reflect.DeepEqual(v.History, []string{"Home.md", "A.md"}) {
		t.Fatalf("after back: %s %v", v.Page.FileName, v.History)
	}

	if out, _ = s.Back(ctx); out.Name != "Home.md" {
		t.Fatalf("second back = %+v", out)
	}
	out, err = s.Back(ctx)
	if err != nil || out.Kind != navigation.BackExit {
		t.Fatalf("third back = %+v, %v", out, err)
	}
	if !rec.Closed() {
		t.Fatal("view should be closed on exit")
	}
}

func TestBackToRemovedNote(t *testing.T) {
	store := testutil.TestWiki(t)
	testutil.WriteNote(t, store, "A.md", "a", time.Time{})
	testutil.WriteNote(t, store, "B.md", "b", time.Time{})
	s, rec := startSession(t, store)
	ctx := context.Background()

	_ = s.OpenWikiLink(ctx, "A.md")
	_ = s.OpenWikiLink(ctx, "B.md")
	if err := os.Remove(filepath.Join(store.Dir(), "A.md")); err != nil {
		t.Fatal(err)
	}

	_, err := s.Back(ctx)
	if !errors.Is(err, apperr.ErrHistoryTargetMissing) {
		t.Fatalf("expected ErrHistoryTargetMissing, got %v", err)
	}
	if !rec.Closed() {
		t.Fatal("view should be closed")
	}
	msgs := rec.Messages()
	if len(msgs) == 0 || !strings.Contains(msgs[len(msgs)-1], "deleted") {
		t.Fatalf("messages = %v", msgs)
	}
}

func TestReloadKeepsHistory(t *testing.T) {
	store := testutil.TestWiki(t)
	s, rec := startSession(t, store)
	ctx := context.Background()

	testutil.WriteNote(t, store, "Home.md", "reloaded", time.Time{})
	if err := s.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.HTML(), "<p>reloaded</p>") {
		t.Fatalf("html = %q", rec.HTML())
	}
	if v := snapshot(t, s); !reflect.DeepEqual(v.History, []string{"Home.md"}) {
		t.Fatalf("history = %v", v.History)
	}
	if msgs := rec.Messages(); len(msgs) != 1 || msgs[0] != "Reloading" {
		t.Fatalf("messages = %v", msgs)
	}
}

func TestDelegateAndPassThrough(t *testing.T) {
	store := testutil.TestWiki(t)
	s, rec := startSession(t, store)
	ctx := context.Background()

	o, err := s.Route(ctx, "https://example.com/x")
	if err != nil || o.Kind != linkrouter.Delegate {
		t.Fatalf("outcome = %+v, %v", o, err)
	}
	o, err = s.Route(ctx, "file:///tmp/frame.html")
	if err != nil || o.Kind != linkrouter.PassThrough {
		t.Fatalf("outcome = %+v, %v", o, err)
	}
	o, err = s.Route(ctx, "tel:+1-555-0100")
	if err != nil || o.Kind != linkrouter.Delegate {
		t.Fatalf("outcome = %+v, %v", o, err)
	}
	want := []string{"https://example.com/x", "tel:+1-555-0100"}
	if got := rec.Opened(); !reflect.DeepEqual(got, want) {
		t.Fatalf("opened = %v", got)
	}
}

func TestAutolinkedEmailIsDelegated(t *testing.T) {
	store := testutil.TestWiki(t)
	s, rec := startSession(t, store)

	html := markdown.New().Compile("write to me@example.com")
	const href = "mailto:me@example.com"
	if !strings.Contains(html, `href="`+href+`"`) {
		t.Fatalf("autolink missing in %q", html)
	}
	o, err := s.Route(context.Background(), href)
	if err != nil || o.Kind != linkrouter.Delegate {
		t.Fatalf("outcome = %+v, %v", o, err)
	}
	if got := rec.Opened(); !reflect.DeepEqual(got, []string{href}) {
		t.Fatalf("opened = %v", got)
	}
}

type noDirs struct {
	storage.Provider
}

func (noDirs) CreateDirectory(models.Handle, string) (models.Handle, error) {
	return "", errors.New("read-only volume")
}

func TestDirectoryFailureRollsBack(t *testing.T) {
	store := noDirs{Provider: testutil.TestWiki(t)}
	s, rec := startSession(t, store)
	ctx := context.Background()
	before := rec.Renders()

	_, err := s.Route(ctx, "wiki-link://Notes/Idea.md")
	if !errors.Is(err, apperr.ErrDirectoryResolution) {
		t.Fatalf("expected ErrDirectoryResolution, got %v", err)
	}
	v := snapshot(t, s)
	if v.Page.SubWiki != nil || v.Page.FileName != "Home.md" {
		t.Fatalf("state changed: %+v", v.Page)
	}
	if !reflect.DeepEqual(v.History, []string{"Home.md"}) {
		t.Fatalf("history = %v", v.History)
	}
	if rec.Renders() != before {
		t.Fatal("nothing should be rendered")
	}
	if _, ok := rec.LastEdit(); ok {
		t.Fatal("no note should be opened for editing")
	}
	if msgs := rec.Messages(); len(msgs) != 1 || msgs[0] != "Can't create dir Notes" {
		t.Fatalf("messages = %v", msgs)
	}
}

type failingWrites struct {
	storage.Provider
}

func (failingWrites) OpenWrite(models.Handle) (io.WriteCloser, error) {
	return nil, errors.New("disk full")
}

func TestSaveFailureReported(t *testing.T) {
	fs := testutil.TestWiki(t)
	if _, err := storage.CreateWithContent(fs, fs.Root(), "Home.md", "home"); err != nil {
		t.Fatal(err)
	}
	s, rec := startSession(t, failingWrites{Provider: fs})
	ctx := context.Background()

	req, err := s.Edit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	err = s.CompleteEdit(ctx, session.EditResult{RequestID: req.ID, Content: "lost"})
	if !errors.Is(err, apperr.ErrStorageWrite) {
		t.Fatalf("expected ErrStorageWrite, got %v", err)
	}
	if got := readFile(t, fs, "Home.md"); got != "home" {
		t.Fatalf("file = %q", got)
	}
	if msgs := rec.Messages(); len(msgs) != 1 || msgs[0] != "Can't create file Home.md" {
		t.Fatalf("messages = %v", msgs)
	}
}

func TestExternalChangeRerenders(t *testing.T) {
	store := testutil.TestWiki(t)
	s, rec := startSession(t, store)
	ctx := context.Background()
	renders := rec.Renders()

	// Unchanged content does not re-render.
	if err := s.ExternalChange(ctx, "Home.md"); err != nil {
		t.Fatal(err)
	}
	if rec.Renders() != renders {
		t.Fatal("unchanged note re-rendered")
	}

	testutil.WriteNote(t, store, "Home.md", "edited elsewhere", time.Time{})
	testutil.WriteNote(t, store, "Other.md", "x", time.Time{})
	if err := s.ExternalChange(ctx, "Home.md"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.HTML(), "<p>edited elsewhere</p>") {
		t.Fatalf("html = %q", rec.HTML())
	}
	if names := recentNames(snapshot(t, s)); len(names) != 2 {
		t.Fatalf("recents = %v", names)
	}

	// Changes in other sub-wikis are ignored.
	testutil.WriteNote(t, store, "Sub/Note.md", "x", time.Time{})
	if err := s.ExternalChange(ctx, "Sub/Note.md"); err != nil {
		t.Fatal(err)
	}
	if names := recentNames(snapshot(t, s)); len(names) != 2 {
		t.Fatalf("recents = %v", names)
	}
}

func TestOpenRecent(t *testing.T) {
	store := testutil.TestWiki(t)
	testutil.WriteNote(t, store, "Old.md", "old", time.Now().Add(-time.Hour))
	s, rec := startSession(t, store)
	ctx := context.Background()

	if err := s.OpenRecent(ctx, "Old.md"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.HTML(), "<p>old</p>") {
		t.Fatalf("html = %q", rec.HTML())
	}
	if err := s.OpenRecent(ctx, "Nope.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOnTransitionPersistsSnapshot(t *testing.T) {
	store := testutil.TestWiki(t)
	testutil.WriteNote(t, store, "Sub/Page.md", "p", time.Time{})

	var (
		mu   sync.Mutex
		last navigation.Snapshot
	)
	s, _ := startSession(t, store, session.OnTransition(func(snap navigation.Snapshot) {
		mu.Lock()
		last = snap
		mu.Unlock()
	}))
	if _, err := s.Route(context.Background(), "wiki-link://Sub/Page.md"); err != nil {
		t.Fatal(err)
	}

	want := navigation.Snapshot{FileName: "Page.md", SubWiki: []string{"Sub"}}
	eventually(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reflect.DeepEqual(last, want)
	})
}

// gatedCompiler blocks compiling sources that contain "slow" until released.
type gatedCompiler struct {
	inner   *markdown.Compiler
	entered chan struct{}
	release chan struct{}
}

func (g *gatedCompiler) Compile(src string) string {
	if strings.Contains(src, "slow") {
		g.entered <- struct{}{}
		<-g.release
	}
	return g.inner.Compile(src)
}

func TestNewerNavigationSupersedesOlder(t *testing.T) {
	store := testutil.TestWiki(t)
	testutil.WriteNote(t, store, "Slow.md", "slow", time.Time{})
	testutil.WriteNote(t, store, "Fast.md", "fast", time.Time{})
	gate := &gatedCompiler{inner: markdown.New(), entered: make(chan struct{}, 1), release: make(chan struct{})}
	s, rec := startSession(t, store, session.WithCompiler(gate))
	ctx := context.Background()

	slowErr := make(chan error, 1)
	go func() { slowErr <- s.OpenWikiLink(ctx, "Slow.md") }()
	<-gate.entered

	fastErr := make(chan error, 1)
	go func() { fastErr <- s.OpenWikiLink(ctx, "Fast.md") }()
	// Let the second navigation take its sequence number on the loop.
	time.Sleep(100 * time.Millisecond)
	close(gate.release)

	if err := <-slowErr; !errors.Is(err, session.ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if err := <-fastErr; err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.HTML(), "<p>fast</p>") {
		t.Fatalf("html = %q", rec.HTML())
	}
	if v := snapshot(t, s); !reflect.DeepEqual(v.History, []string{"Home.md", "Fast.md"}) {
		t.Fatalf("history = %v", v.History)
	}
}

func eventually(t *testing.T, timeout time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
