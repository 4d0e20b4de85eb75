// Package mcpserver provides an MCP (Model Context Protocol) server
// that drives a wiki session over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/subwiki/internal/navigation"
	"github.com/starford/subwiki/internal/session"
	"github.com/starford/subwiki/internal/view"
)

const syntaxURI = "subwiki://syntax"

// Server wraps the MCP server with the wiki tools.
type Server struct {
	mcp      *server.MCPServer
	nav      *session.Session
	rec      *view.Recorder
	compiler session.Compiler
}

// New creates an MCP server whose tools drive nav. rec must be the
// presenter, opener and editor nav was built with.
func New(nav *session.Session, rec *view.Recorder, compiler session.Compiler) *Server {
	s := &Server{nav: nav, rec: rec, compiler: compiler}

	s.mcp = server.NewMCPServer(
		"Sub-wiki",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("open_link",
		mcp.WithDescription("Follow a link as if it was clicked in the page. "+
			"Use wiki-link://Page.md for a note in the current sub-wiki, "+
			"wiki-link://Sub/Page.md for a nested one and wiki-dir://root/Sub to jump "+
			"to a sub-wiki's Home. If the note does not exist an edit request is "+
			"returned; answer it with save_note."),
		mcp.WithString("uri", mcp.Required(), mcp.Description("Link target, e.g. wiki-link://Ideas.md")),
	), s.openLink)

	s.mcp.AddTool(mcp.NewTool("go_back",
		mcp.WithDescription("Step back to the previous note of the current sub-wiki."),
	), s.goBack)

	s.mcp.AddTool(mcp.NewTool("reload",
		mcp.WithDescription("Re-read the displayed note and the recent notes from disk."),
	), s.reload)

	s.mcp.AddTool(mcp.NewTool("current_page",
		mcp.WithDescription("Describe the displayed note: name, sub-wiki, Markdown source and history."),
		mcp.WithBoolean("include_html", mcp.Description("Also return the rendered page HTML")),
	), s.currentPage)

	s.mcp.AddTool(mcp.NewTool("recent_notes",
		mcp.WithDescription("List the most recently modified notes of the current sub-wiki, newest first."),
	), s.recentNotes)

	s.mcp.AddTool(mcp.NewTool("save_note",
		mcp.WithDescription("Save Markdown content. Without request_id the displayed note is "+
			"overwritten; with the request_id returned by open_link the new note is created."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Full Markdown content of the note")),
		mcp.WithString("request_id", mcp.Description("Pending edit request to answer")),
	), s.saveNote)

	s.mcp.AddTool(mcp.NewTool("compile_markdown",
		mcp.WithDescription("Render Markdown with wiki links to HTML without touching the wiki."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Markdown source")),
	), s.compileMarkdown)

	s.mcp.AddTool(mcp.NewTool("get_wiki_syntax",
		mcp.WithDescription("Returns the note and link syntax the wiki understands."),
	), s.getWikiSyntax)

	s.mcp.AddResource(
		mcp.NewResource(syntaxURI, "Wiki Syntax",
			mcp.WithResourceDescription("Note and link syntax of the wiki."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSyntaxResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// pageResult is the JSON answer of the navigation tools.
type pageResult struct {
	Outcome      string               `json:"outcome,omitempty"`
	FileName     string               `json:"file_name,omitempty"`
	SubWiki      []string             `json:"sub_wiki,omitempty"`
	Title        string               `json:"title,omitempty"`
	LastModified string               `json:"last_modified,omitempty"`
	Content      *string              `json:"content,omitempty"`
	HTML         string               `json:"html,omitempty"`
	History      []string             `json:"history,omitempty"`
	Messages     []string             `json:"messages,omitempty"`
	Edit         *session.EditRequest `json:"edit_request,omitempty"`
	Opened       string               `json:"opened_externally,omitempty"`
	Closed       bool                 `json:"closed,omitempty"`
}

type recentItem struct {
	Name         string `json:"name"`
	LastModified string `json:"last_modified"`
}

// mark captures recorder counters before a tool runs so only what the tool
// caused ends up in the answer.
type mark struct {
	edits  int
	opened int
}

func (s *Server) mark() mark {
	s.rec.DrainMessages()
	return mark{edits: len(s.rec.Edits()), opened: len(s.rec.Opened())}
}

// detail selects the optional parts of a pageResult.
type detail int

const (
	brief detail = iota
	withContent
	withHTML
)

func (s *Server) result(ctx context.Context, m mark, outcome string, d detail) (*mcp.CallToolResult, error) {
	out := pageResult{Outcome: outcome, Messages: s.rec.DrainMessages(), Closed: s.rec.Closed()}

	if edits := s.rec.Edits(); len(edits) > m.edits {
		req := edits[len(edits)-1]
		out.Edit = &req
	}
	if opened := s.rec.Opened(); len(opened) > m.opened {
		out.Opened = opened[len(opened)-1]
	}

	if !out.Closed {
		v, err := s.nav.Snapshot(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out.FileName = v.Page.FileName
		out.SubWiki = v.Page.SubWiki
		out.Title = v.Page.Title
		if !v.Page.LastModified.IsZero() {
			out.LastModified = v.Page.LastModified.Format(time.RFC3339)
		}
		out.History = v.History
		if d >= withContent {
			out.Content = &v.Content
		}
		if d >= withHTML {
			out.HTML = v.Page.HTML
		}
	}
	return jsonResult(out)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// toolError reports err together with any message the session showed.
func (s *Server) toolError(err error) (*mcp.CallToolResult, error) {
	msg := err.Error()
	if shown := s.rec.DrainMessages(); len(shown) > 0 {
		msg = fmt.Sprintf("%s (%s)", msg, shown[len(shown)-1])
	}
	return mcp.NewToolResultError(msg), nil
}

func (s *Server) openLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uri, err := req.RequireString("uri")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m := s.mark()
	o, err := s.nav.Route(ctx, uri)
	if err != nil {
		return s.toolError(err)
	}
	return s.result(ctx, m, o.Kind.String(), brief)
}

func (s *Server) goBack(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m := s.mark()
	b, err := s.nav.Back(ctx)
	if err != nil {
		return s.toolError(err)
	}
	outcome := "navigate"
	if b.Kind == navigation.BackExit {
		outcome = "exit"
	}
	return s.result(ctx, m, outcome, brief)
}

func (s *Server) reload(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m := s.mark()
	if err := s.nav.Reload(ctx); err != nil {
		return s.toolError(err)
	}
	return s.result(ctx, m, "", brief)
}

func (s *Server) currentPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d := withContent
	if req.GetBool("include_html", false) {
		d = withHTML
	}
	return s.result(ctx, s.mark(), "", d)
}

func (s *Server) recentNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v, err := s.nav.Snapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items := make([]recentItem, 0, len(v.Recents))
	for _, r := range v.Recents {
		items = append(items, recentItem{Name: r.Name, LastModified: r.LastModified.Format(time.RFC3339)})
	}
	return jsonResult(items)
}

func (s *Server) saveNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id := req.GetString("request_id", "")

	m := s.mark()
	if id == "" {
		er, err := s.nav.Edit(ctx)
		if err != nil {
			return s.toolError(err)
		}
		if er.ID == "" {
			return mcp.NewToolResultError("the note was handed to the external editor"), nil
		}
		id = er.ID
		m.edits++
	}
	if err := s.nav.CompleteEdit(ctx, session.EditResult{RequestID: id, Content: content}); err != nil {
		return s.toolError(err)
	}
	return s.result(ctx, m, "saved", brief)
}

func (s *Server) compileMarkdown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.compiler.Compile(source)), nil
}

func (s *Server) getWikiSyntax(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(WikiSyntax), nil
}

func (s *Server) readSyntaxResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      syntaxURI,
			MIMEType: "text/markdown",
			Text:     WikiSyntax,
		},
	}, nil
}
