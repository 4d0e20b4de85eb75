// Package markdown compiles wiki notes to HTML: GitHub-flavoured Markdown on
// goldmark plus the [[Label]] wiki-link syntax.
package markdown

import (
	"bytes"
	stdhtml "html"
	"log/slog"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Compiler turns note source into an HTML fragment. It is safe for
// concurrent use.
type Compiler struct {
	engine goldmark.Markdown
}

// Option configures a Compiler.
type Option func(*options)

type options struct {
	tableClass string
	unsafeHTML bool
}

// WithTableClass overrides the class attribute added to tables.
func WithTableClass(class string) Option {
	return func(o *options) { o.tableClass = class }
}

// WithSafeHTML drops raw HTML embedded in notes instead of passing it through.
func WithSafeHTML() Option {
	return func(o *options) { o.unsafeHTML = false }
}

// New builds a compiler with GFM tables, strikethrough, autolinks and task
// lists enabled.
func New(opts ...Option) *Compiler {
	o := options{tableClass: DefaultTableClass, unsafeHTML: true}
	for _, opt := range opts {
		opt(&o)
	}

	engineOptions := []goldmark.Option{
		goldmark.WithExtensions(
			extension.GFM,
			&WikiLinks{},
			&pageLayout{tableClass: o.tableClass},
		),
	}
	if o.unsafeHTML {
		engineOptions = append(engineOptions, goldmark.WithRendererOptions(html.WithUnsafe()))
	}
	return &Compiler{engine: goldmark.New(engineOptions...)}
}

// Compile renders source. Malformed input degrades to literal text; the
// method never fails.
func (c *Compiler) Compile(source string) string {
	var buf bytes.Buffer
	if err := c.engine.Convert([]byte(source), &buf); err != nil {
		slog.Warn("markdown: convert failed", slog.String("error", err.Error()))
		return contentRootOpen + "<pre>" + stdhtml.EscapeString(source) + "</pre>" + contentRootClose
	}
	return buf.String()
}
