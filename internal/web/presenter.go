package web

import (
	"github.com/starford/subwiki/internal/session"
	"github.com/starford/subwiki/internal/sse"
)

// Event types pushed to viewers.
const (
	EventRender  = "render"
	EventScroll  = "scroll"
	EventMessage = "message"
	EventClose   = "close"
	EventOpen    = "open"
	EventEdit    = "edit"
)

// StickyEvents are the event types a late viewer must replay to show the
// current page. Pass them to sse.WithSticky.
var StickyEvents = []string{EventRender, EventClose}

// Publisher is the broker side the presenter needs.
type Publisher interface {
	Publish(event sse.Event)
}

// Presenter forwards session output to connected viewers as SSE events. It
// implements session.Presenter, session.Opener and session.Editor: opening
// URIs and editing both happen in the browser.
type Presenter struct {
	pub Publisher
}

var (
	_ session.Presenter = (*Presenter)(nil)
	_ session.Opener    = (*Presenter)(nil)
	_ session.Editor    = (*Presenter)(nil)
)

// NewPresenter returns a presenter publishing to pub.
func NewPresenter(pub Publisher) *Presenter {
	return &Presenter{pub: pub}
}

func (p *Presenter) RenderHTML(html string) {
	p.pub.Publish(sse.Event{Type: EventRender, Data: map[string]string{"html": html}})
}

func (p *Presenter) ScrollToTop() {
	p.pub.Publish(sse.Event{Type: EventScroll, Data: map[string]string{}})
}

func (p *Presenter) ShowTransientMessage(text string) {
	p.pub.Publish(sse.Event{Type: EventMessage, Data: map[string]string{"text": text}})
}

func (p *Presenter) CloseView() {
	p.pub.Publish(sse.Event{Type: EventClose, Data: map[string]string{}})
}

func (p *Presenter) OpenExternally(uri string) {
	p.pub.Publish(sse.Event{Type: EventOpen, Data: map[string]string{"uri": uri}})
}

func (p *Presenter) RequestEdit(req session.EditRequest) {
	p.pub.Publish(sse.Event{Type: EventEdit, Data: req})
}
