package session

import (
	"html"
	"strings"
	"time"

	"github.com/starford/subwiki/internal/linkrouter"
	"github.com/starford/subwiki/internal/models"
	"github.com/starford/subwiki/internal/navigation"
)

// DateLayout formats the modification time shown under the title.
const DateLayout = "2006-01-02 15:04"

// Page is one fully assembled note view.
type Page struct {
	FileName     string              `json:"file_name"`
	Title        string              `json:"title"`
	SubWiki      []string            `json:"sub_wiki,omitempty"`
	Breadcrumbs  []models.Breadcrumb `json:"breadcrumbs"`
	LastModified time.Time           `json:"last_modified"`
	HTML         string              `json:"html"`
}

func assemble(c Compiler, path []string, rec models.FileRecord, content, ext string) Page {
	p := Page{
		FileName:     rec.Name,
		Title:        rec.Title(ext),
		SubWiki:      path,
		Breadcrumbs:  navigation.Breadcrumbs(path),
		LastModified: rec.LastModified,
	}
	p.HTML = renderPage(p, c.Compile(content))
	return p
}

// renderPage lays out the header (breadcrumbs, title, date) above the
// compiled note. Breadcrumbs are only shown inside a sub-wiki.
func renderPage(p Page, body string) string {
	var b strings.Builder
	b.WriteString(`<section class="hero is-dark"><div class="hero-body"><div class="container">`)
	b.WriteString("\n")
	b.WriteString(`<nav class="breadcrumb" aria-label="breadcrumbs"><ul id="bread">`)
	b.WriteString("\n")
	if len(p.SubWiki) > 0 {
		for _, c := range p.Breadcrumbs {
			if c.Active {
				b.WriteString(`<li class="is-active">`)
			} else {
				b.WriteString(`<li>`)
			}
			b.WriteString(`<a class="wikidir" href="`)
			b.WriteString(html.EscapeString(linkrouter.DirHref(c.Target)))
			b.WriteString(`">`)
			b.WriteString(html.EscapeString(c.Label))
			b.WriteString("</a></li>\n")
		}
	}
	b.WriteString("</ul></nav>\n")
	b.WriteString(`<h1 class="title" id="title">`)
	b.WriteString(html.EscapeString(p.Title))
	b.WriteString("</h1>\n")
	b.WriteString(`<h3 class="subtitle" id="date">`)
	b.WriteString(p.LastModified.Local().Format(DateLayout))
	b.WriteString("</h3>\n")
	b.WriteString("</div></div></section>\n")
	b.WriteString(`<section class="section">`)
	b.WriteString(body)
	b.WriteString("</section>")
	return b.String()
}
