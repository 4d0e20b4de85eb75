package markdown

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Link target parts emitted for wiki links.
const (
	LinkScheme = "wiki-link"
	NoteExt    = ".md"
)

// KindWikiLink is the node kind of a [[Label]] span.
var KindWikiLink = ast.NewNodeKind("WikiLink")

// WikiLink is an inline [[Label]] reference to another note. Label holds the
// raw characters between the brackets.
type WikiLink struct {
	ast.BaseInline
	Label []byte
}

// Kind implements ast.Node.
func (n *WikiLink) Kind() ast.NodeKind { return KindWikiLink }

// Dump implements ast.Node.
func (n *WikiLink) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Label": string(n.Label)}, nil)
}

// Target returns wiki-link://<label>.md. The label is embedded as-is.
func (n *WikiLink) Target() string {
	return LinkScheme + "://" + string(n.Label) + NoteExt
}

// WikiLinks is the goldmark extension that adds the [[Label]] inline rule and
// its render hook.
type WikiLinks struct{}

// Extend implements goldmark.Extender.
func (e *WikiLinks) Extend(m goldmark.Markdown) {
	// 199 runs ahead of the standard link parser (200), which also triggers on '['.
	m.Parser().AddOptions(
		parser.WithInlineParsers(
			util.Prioritized(&wikiLinkParser{}, 199),
		),
		parser.WithASTTransformers(
			util.Prioritized(&linkFlattener{}, 100),
		),
	)
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&wikiLinkRenderer{}, 199),
	))
}

type wikiLinkParser struct{}

// Trigger includes '!' because the image parser would otherwise claim the
// "![" of "![[Label]]".
func (p *wikiLinkParser) Trigger() []byte {
	return []byte{'[', '!'}
}

// Parse consumes input only when the whole [[label]] shape matches; otherwise
// the reader is left untouched for the default inline grammar. A '!' right
// before a wiki link is emitted as plain text so the link follows.
func (p *wikiLinkParser) Parse(_ ast.Node, block text.Reader, _ parser.Context) ast.Node {
	line, seg := block.PeekLine()
	if len(line) > 0 && line[0] == '!' {
		if _, _, ok := scanWikiLink(line[1:]); !ok {
			return nil
		}
		block.Advance(1)
		return ast.NewTextSegment(seg.WithStop(seg.Start + 1))
	}
	label, n, ok := scanWikiLink(line)
	if !ok {
		return nil
	}
	block.Advance(n)
	return &WikiLink{Label: append([]byte(nil), label...)}
}

// scanWikiLink matches "[[" label "]]" at the start of line. The label must
// be a single non-empty text token: any bracket, emphasis, code, escape or
// HTML delimiter would split it, so such spans do not match.
func scanWikiLink(line []byte) (label []byte, n int, ok bool) {
	if len(line) < 2 || line[0] != '[' || line[1] != '[' {
		return nil, 0, false
	}
	end := 2
	for end < len(line) && !isLabelBreak(line[end]) {
		end++
	}
	if end == 2 || end+1 >= len(line) || line[end] != ']' || line[end+1] != ']' {
		return nil, 0, false
	}
	return line[2:end], end + 2, true
}

func isLabelBreak(c byte) bool {
	switch c {
	case '[', ']', '*', '_', '`', '~', '\\', '<', '\n', '\r':
		return true
	}
	return false
}

type wikiLinkRenderer struct{}

func (r *wikiLinkRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindWikiLink, r.renderWikiLink)
}

func (r *wikiLinkRenderer) renderWikiLink(w util.BufWriter, _ []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	link := n.(*WikiLink)
	_, _ = w.WriteString(`<a class="wikilink" href="`)
	_, _ = w.WriteString(link.Target())
	_, _ = w.WriteString(`">`)
	_, _ = w.Write(link.Label)
	_, _ = w.WriteString("</a>")
	return ast.WalkSkipChildren, nil
}

// linkFlattener turns a regular link that contains a wiki link back into
// literal text around its children, so anchors never nest. The inner wiki
// link wins, as an inner link does in CommonMark.
type linkFlattener struct{}

func (t *linkFlattener) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	var outer []*ast.Link
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if l, ok := n.(*ast.Link); ok && containsWikiLink(l) {
			outer = append(outer, l)
		}
		return ast.WalkContinue, nil
	})
	for _, l := range outer {
		flatten(l)
	}
}

func containsWikiLink(n ast.Node) bool {
	found := false
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && c.Kind() == KindWikiLink {
			found = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return found
}

func flatten(l *ast.Link) {
	parent := l.Parent()
	if parent == nil {
		return
	}
	parent.InsertBefore(parent, l, ast.NewString([]byte("[")))
	for c := l.FirstChild(); c != nil; {
		next := c.NextSibling()
		l.RemoveChild(l, c)
		parent.InsertBefore(parent, l, c)
		c = next
	}
	tail := "](" + string(l.Destination)
	if len(l.Title) > 0 {
		tail += ` "` + string(l.Title) + `"`
	}
	parent.InsertBefore(parent, l, ast.NewString([]byte(tail+")")))
	parent.RemoveChild(parent, l)
}
