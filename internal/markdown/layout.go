package markdown

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

const (
	contentRootOpen  = `<div id="content-root" class="content">`
	contentRootClose = `</div>`

	// DefaultTableClass is added to every rendered table.
	DefaultTableClass = "table is-striped"
)

// pageLayout wraps the document in the content root element and tags tables
// with a styling class.
type pageLayout struct {
	tableClass string
}

func (e *pageLayout) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithASTTransformers(
		util.Prioritized(&tableClassTransformer{class: []byte(e.tableClass)}, 500),
	))
	// Ahead of the default HTML renderer (1000), which registers a no-op for documents.
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&documentRenderer{}, 500),
	))
}

type tableClassTransformer struct {
	class []byte
}

func (t *tableClassTransformer) Transform(node *ast.Document, _ text.Reader, _ parser.Context) {
	if len(t.class) == 0 {
		return
	}
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if table, ok := n.(*extast.Table); ok {
			table.SetAttributeString("class", t.class)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
}

type documentRenderer struct{}

func (r *documentRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindDocument, r.renderDocument)
}

func (r *documentRenderer) renderDocument(w util.BufWriter, _ []byte, _ ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = w.WriteString(contentRootOpen)
	} else {
		_, _ = w.WriteString(contentRootClose)
	}
	return ast.WalkContinue, nil
}
