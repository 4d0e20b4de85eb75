// Package view provides an in-memory presenter that records what a session
// displays. It backs the MCP host and tests.
package view

import (
	"slices"
	"sync"

	"github.com/starford/subwiki/internal/session"
)

// Recorder implements session.Presenter, session.Opener and session.Editor.
// It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	html     string
	renders  int
	scrolls  int
	messages []string
	opened   []string
	edits    []session.EditRequest
	closed   bool
}

var (
	_ session.Presenter = (*Recorder)(nil)
	_ session.Opener    = (*Recorder)(nil)
	_ session.Editor    = (*Recorder)(nil)
)

// New returns an empty recorder.
func New() *Recorder {
	return &Recorder{}
}

func (r *Recorder) RenderHTML(html string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.html = html
	r.renders++
	r.closed = false
}

func (r *Recorder) ScrollToTop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrolls++
}

func (r *Recorder) ShowTransientMessage(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, text)
}

func (r *Recorder) CloseView() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *Recorder) OpenExternally(uri string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = append(r.opened, uri)
}

func (r *Recorder) RequestEdit(req session.EditRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits = append(r.edits, req)
}

// HTML returns the last rendered page.
func (r *Recorder) HTML() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.html
}

// Renders returns how many pages were rendered.
func (r *Recorder) Renders() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renders
}

// Scrolls returns how many scroll-to-top calls were made.
func (r *Recorder) Scrolls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scrolls
}

// Messages returns every transient message shown so far.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.messages)
}

// DrainMessages returns the messages shown since the previous drain.
func (r *Recorder) DrainMessages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.messages
	r.messages = nil
	return out
}

// Opened returns the URIs handed to the host.
func (r *Recorder) Opened() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.opened)
}

// Edits returns every edit request received.
func (r *Recorder) Edits() []session.EditRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.edits)
}

// LastEdit returns the most recent edit request.
func (r *Recorder) LastEdit() (session.EditRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.edits) == 0 {
		return session.EditRequest{}, false
	}
	return r.edits[len(r.edits)-1], true
}

// Closed reports whether the view was closed since the last render.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
