// Package isolate turns a legal page's HTML into line-normalised plain text.
// Line structure is preserved because the downstream extractors anchor on
// postal-code lines and read their neighbours.
package isolate

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// boilerplateSelectors remove regions that never hold entity data.
var boilerplateSelectors = []string{
	"script", "style", "noscript", "iframe", "svg", "template",
	"nav", "header", "aside",
	"[role=navigation]", "[role=banner]", "[aria-hidden=true]",
}

// boilerplateClassRe matches class/id fragments of navigation chrome and
// cookie banners.
var boilerplateClassRe = regexp.MustCompile(`(?i)cookie|consent|gdpr|navbar|nav-menu|menu-main|breadcrumb|sidebar|social|newsletter|popup|modal`)

// blockTags force a line break before and after their content.
var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "table": true, "thead": true, "tbody": true,
	"section": true, "article": true, "address": true, "blockquote": true,
	"dl": true, "dt": true, "dd": true, "pre": true, "form": true,
	"header": true, "footer": true, "main": true, "figcaption": true,
}

const minReadableChars = 120

// Text extracts the main legal content of pageHTML as normalised plain
// text. pageURL may be empty; it only aids the readability pass.
func Text(pageHTML, pageURL string) string {
	// First pass: readability locates the main content region.
	if article := readabilityPass(pageHTML, pageURL); article != "" {
		if cleaned := cleanAndRender(article); len(cleaned) >= minReadableChars {
			return cleaned
		}
	}
	// Readability failed or found too little; clean the full document and
	// pick the densest region ourselves.
	return densestRegion(pageHTML)
}

func readabilityPass(pageHTML, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(pageHTML), u)
	if err != nil {
		return ""
	}
	return article.Content
}

// cleanAndRender strips boilerplate from an HTML fragment and renders it
// line-preserving.
func cleanAndRender(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	stripBoilerplate(doc)
	sel := doc.Find("body")
	if sel.Length() == 0 {
		sel = doc.Selection
	}
	return normalise(renderText(sel))
}

func stripBoilerplate(doc *goquery.Document) {
	for _, s := range boilerplateSelectors {
		doc.Find(s).Remove()
	}
	doc.Find("div, section, ul, span, footer").Each(func(_ int, sel *goquery.Selection) {
		cls, _ := sel.Attr("class")
		id, _ := sel.Attr("id")
		if boilerplateClassRe.MatchString(cls + " " + id) {
			sel.Remove()
		}
	})
}

// densestRegion cleans the whole document, then keeps the container with
// the most text. Footers are kept here: many sites put the entity block in
// the page footer.
func densestRegion(pageHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return ""
	}
	stripBoilerplate(doc)

	var best *goquery.Selection
	bestLen := 0
	doc.Find("main, article, #content, .content, div, section, footer, body").Each(func(_ int, sel *goquery.Selection) {
		n := len(strings.TrimSpace(sel.Text()))
		if n > bestLen {
			best = sel
			bestLen = n
			return
		}
		// A descendant holding >=90% of the current best's text is the
		// tighter container; document order guarantees it visits later.
		if best != nil && n*10 >= bestLen*9 && len(sel.Nodes) > 0 && best.Contains(sel.Nodes[0]) {
			best = sel
			bestLen = n
		}
	})
	if best == nil {
		return ""
	}
	return normalise(renderText(best))
}

// renderText walks the DOM emitting text with newlines at block boundaries
// and <br> elements.
func renderText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, node := range sel.Nodes {
		walk(node, &b)
	}
	return b.String()
}

func walk(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
	case html.ElementNode:
		if n.Data == "br" {
			b.WriteString("\n")
			return
		}
		block := blockTags[n.Data]
		if block {
			b.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, b)
		}
		if block {
			b.WriteString("\n")
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, b)
	}
}

// normalise collapses intra-line whitespace and runs of blank lines,
// keeping a single blank line between logical blocks.
func normalise(raw string) string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank {
				out = append(out, "")
				blank = true
			}
			continue
		}
		out = append(out, line)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
