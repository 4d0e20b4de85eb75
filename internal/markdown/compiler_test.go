package markdown

import (
	"strings"
	"testing"
)

func TestCompileWikiLink(t *testing.T) {
	c := New()
	got := c.Compile("See [[Foo]] now")
	want := `<a class="wikilink" href="wiki-link://Foo.md">Foo</a>`
	if !strings.Contains(got, want) {
		t.Fatalf("missing anchor in %q", got)
	}
	if !strings.Contains(got, "See "+want+" now") {
		t.Errorf("surrounding text lost: %q", got)
	}
}

func TestCompileWrapsContentRoot(t *testing.T) {
	got := New().Compile("hello")
	if !strings.HasPrefix(got, `<div id="content-root" class="content">`) {
		t.Errorf("missing content root open: %q", got)
	}
	if !strings.HasSuffix(got, "</div>") {
		t.Errorf("missing content root close: %q", got)
	}
	if !strings.Contains(got, "<p>hello</p>") {
		t.Errorf("missing paragraph: %q", got)
	}
}

func TestCompileEmpty(t *testing.T) {
	got := New().Compile("")
	if got != `<div id="content-root" class="content"></div>` {
		t.Errorf("got %q", got)
	}
}

func TestCompileUnterminated(t *testing.T) {
	got := New().Compile("[[Foo")
	if strings.Contains(got, "<a") {
		t.Errorf("unexpected anchor: %q", got)
	}
	if !strings.Contains(got, "[[Foo") {
		t.Errorf("literal text lost: %q", got)
	}
}

func TestCompileNested(t *testing.T) {
	got := New().Compile("[[a[[b]]]]")
	want := `[[a<a class="wikilink" href="wiki-link://b.md">b</a>]]`
	if !strings.Contains(got, want) {
		t.Errorf("got %q, want it to contain %q", got, want)
	}
}

func TestCompileEmptyLabel(t *testing.T) {
	got := New().Compile("x [[]] y")
	if strings.Contains(got, "wikilink") {
		t.Errorf("empty label must not link: %q", got)
	}
	if !strings.Contains(got, "[[]]") {
		t.Errorf("literal text lost: %q", got)
	}
}

func TestCompileLabelWithEmphasisIsNotALink(t *testing.T) {
	got := New().Compile("[[*Foo*]]")
	if strings.Contains(got, "wikilink") {
		t.Errorf("unexpected wiki link: %q", got)
	}
	if !strings.Contains(got, "<em>Foo</em>") {
		t.Errorf("emphasis not rendered: %q", got)
	}
}

func TestCompileLabelIsNotEscaped(t *testing.T) {
	got := New().Compile(`[[Sub/My Page]]`)
	want := `<a class="wikilink" href="wiki-link://Sub/My Page.md">Sub/My Page</a>`
	if !strings.Contains(got, want) {
		t.Errorf("got %q", got)
	}
}

func TestCompileRegularLinkUnaffected(t *testing.T) {
	got := New().Compile("[site](https://example.com)")
	if !strings.Contains(got, `<a href="https://example.com">site</a>`) {
		t.Errorf("got %q", got)
	}
}

func TestCompileBangBeforeWikiLink(t *testing.T) {
	cases := []struct{ in, want string }{
		{"![[Foo]]", `<p>!<a class="wikilink" href="wiki-link://Foo.md">Foo</a></p>`},
		{"x ![[Foo]] y", `<p>x !<a class="wikilink" href="wiki-link://Foo.md">Foo</a> y</p>`},
	}
	for _, tc := range cases {
		if got := New().Compile(tc.in); !strings.Contains(got, tc.want) {
			t.Errorf("Compile(%q) = %q, want it to contain %q", tc.in, got, tc.want)
		}
	}
}

func TestCompileImageUnaffected(t *testing.T) {
	got := New().Compile("![alt](pic.png) Hi!")
	if !strings.Contains(got, `<img src="pic.png" alt="alt">`) {
		t.Errorf("image lost: %q", got)
	}
	if !strings.Contains(got, "Hi!") {
		t.Errorf("trailing bang lost: %q", got)
	}
}

func TestCompileWikiLinkInsideLinkDoesNotNest(t *testing.T) {
	got := New().Compile("[see [[Foo]]](http://x)")
	want := `<p>[see <a class="wikilink" href="wiki-link://Foo.md">Foo</a>](http://x)</p>`
	if !strings.Contains(got, want) {
		t.Errorf("got %q, want it to contain %q", got, want)
	}
	if strings.Contains(got, `href="http://x"`) {
		t.Errorf("outer link still rendered: %q", got)
	}
}

func TestCompileLinkWithoutWikiLinkKeepsTitle(t *testing.T) {
	got := New().Compile(`[site](https://example.com "t")`)
	if !strings.Contains(got, `<a href="https://example.com" title="t">site</a>`) {
		t.Errorf("got %q", got)
	}
}

func TestCompileTableClass(t *testing.T) {
	src := "| a | b |\n|---|---|\n| 1 | 2 |\n"
	got := New().Compile(src)
	if !strings.Contains(got, `<table class="table is-striped">`) {
		t.Errorf("missing table class: %q", got)
	}

	got = New(WithTableClass("grid")).Compile(src)
	if !strings.Contains(got, `<table class="grid">`) {
		t.Errorf("custom class not applied: %q", got)
	}
}

func TestCompileStrikethroughAndTasks(t *testing.T) {
	got := New().Compile("~~gone~~\n\n- [x] done\n")
	if !strings.Contains(got, "<del>gone</del>") {
		t.Errorf("missing strikethrough: %q", got)
	}
	if !strings.Contains(got, `type="checkbox"`) {
		t.Errorf("missing task checkbox: %q", got)
	}
}

func TestCompileRawHTML(t *testing.T) {
	src := "<span class=\"x\">hi</span>\n"
	if got := New().Compile(src); !strings.Contains(got, `<span class="x">hi</span>`) {
		t.Errorf("raw html dropped: %q", got)
	}
	if got := New(WithSafeHTML()).Compile(src); strings.Contains(got, `<span class="x">`) {
		t.Errorf("raw html kept in safe mode: %q", got)
	}
}

func TestScanWikiLink(t *testing.T) {
	cases := []struct {
		in    string
		label string
		n     int
		ok    bool
	}{
		{"[[Foo]] tail", "Foo", 7, true},
		{"[[Foo]", "", 0, false},
		{"[[]]", "", 0, false},
		{"[Foo]]", "", 0, false},
		{"[[a`b]]", "", 0, false},
		{"[[a\nb]]", "", 0, false},
	}
	for _, tc := range cases {
		label, n, ok := scanWikiLink([]byte(tc.in))
		if ok != tc.ok || string(label) != tc.label || n != tc.n {
			t.Errorf("scanWikiLink(%q) = %q, %d, %v", tc.in, label, n, ok)
		}
	}
}
