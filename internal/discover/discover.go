// Package discover proposes legal-notice URLs from a home page: anchor-text
// and path lexicon matches ranked with footer proximity, plus the well-known
// fallback paths when the page offers nothing.
package discover

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Firmograph/Firmograph/internal/netutil"
)

// primaryLabels are anchor-text substrings that directly name a legal
// disclosure page, lowercased. Checked against anchor text and title
// attributes.
var primaryLabels = []string{
	"impressum",
	"imprint",
	"legal notice",
	"legal-notice",
	"mentions légales",
	"mentions legales",
	"aviso legal",
	"note legali",
	"nota legale",
	"legal disclosure",
}

// secondaryLabels point at pages that often carry entity data but are not
// the disclosure itself; they rank below primary matches.
var secondaryLabels = []string{
	"datenschutz",
	"privacy policy",
	"kontakt",
	"contact",
	"about us",
	"über uns",
}

// Path fragments with the same two-tier meaning.
var (
	primaryPathTokens = []string{
		"impressum",
		"imprint",
		"legal",
		"mentions-legales",
		"mentionslegales",
		"aviso-legal",
		"note-legali",
	}
	secondaryPathTokens = []string{
		"datenschutz",
		"kontakt",
		"contact",
		"about",
	}
)

// fallbackPaths are tried blind when the home page yields no candidates.
// Order reflects hit rates observed across ccTLD crawls.
var fallbackPaths = []string{
	"/impressum",
	"/impressum.html",
	"/imprint",
	"/legal-notice",
	"/mentions-legales",
	"/aviso-legal",
	"/note-legali",
	"/legal",
	"/kontakt",
	"/contact",
	"/about",
}

const (
	scoreAnchorPrimary   = 100
	scoreAnchorSecondary = 60
	scorePathPrimary     = 50
	scorePathSecondary   = 30
	scoreFooter          = 10
)

type candidate struct {
	u     *url.URL
	score int
	depth int
}

// LegalURLs scans homeHTML for candidate legal pages, returning at most k
// absolute URLs in descending score order. Nofollow and external-host links
// are excluded.
func LegalURLs(homeHTML, baseURL string, k int) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(homeHTML))
	if err != nil {
		return nil
	}
	baseDomain := netutil.RegisteredDomain(base.Host)

	anchors := doc.Find("a[href]")
	total := anchors.Length()
	seen := make(map[string]*candidate)

	anchors.Each(func(i int, sel *goquery.Selection) {
		if rel, _ := sel.Attr("rel"); strings.Contains(strings.ToLower(rel), "nofollow") {
			return
		}
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "tel:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		if netutil.RegisteredDomain(abs.Host) != baseDomain {
			return
		}

		score := 0
		text := strings.ToLower(strings.TrimSpace(sel.Text()))
		if title, ok := sel.Attr("title"); ok {
			text += " " + strings.ToLower(title)
		}
		score += matchScore(text, primaryLabels, secondaryLabels, scoreAnchorPrimary, scoreAnchorSecondary)
		lowerPath := strings.ToLower(abs.Path)
		score += matchScore(lowerPath, primaryPathTokens, secondaryPathTokens, scorePathPrimary, scorePathSecondary)
		if score == 0 {
			return
		}
		if inFooter(sel) || (total > 0 && i >= total*4/5) {
			score += scoreFooter
		}

		abs.Fragment = ""
		key := abs.String()
		depth := strings.Count(strings.Trim(abs.Path, "/"), "/")
		if prev, ok := seen[key]; ok {
			if score > prev.score {
				prev.score = score
			}
			return
		}
		seen[key] = &candidate{u: abs, score: score, depth: depth}
	})

	cands := make([]*candidate, 0, len(seen))
	for _, c := range seen {
		cands = append(cands, c)
	}
	sort.SliceStable(cands, func(a, b int) bool {
		if cands[a].score != cands[b].score {
			return cands[a].score > cands[b].score
		}
		if cands[a].depth != cands[b].depth {
			return cands[a].depth < cands[b].depth
		}
		return cands[a].u.String() < cands[b].u.String()
	})

	if k <= 0 {
		k = 3
	}
	out := make([]string, 0, k)
	for _, c := range cands {
		out = append(out, c.u.String())
		if len(out) == k {
			break
		}
	}
	return out
}

// matchScore awards the primary score if any primary token matches,
// otherwise the secondary score on a secondary match.
func matchScore(s string, primary, secondary []string, pScore, sScore int) int {
	for _, tok := range primary {
		if strings.Contains(s, tok) {
			return pScore
		}
	}
	for _, tok := range secondary {
		if strings.Contains(s, tok) {
			return sScore
		}
	}
	return 0
}

// inFooter walks up from the anchor looking for a footer landmark.
func inFooter(sel *goquery.Selection) bool {
	for p := sel; p.Length() > 0; p = p.Parent() {
		node := goquery.NodeName(p)
		if node == "footer" {
			return true
		}
		if cls, ok := p.Attr("class"); ok && strings.Contains(strings.ToLower(cls), "footer") {
			return true
		}
		if id, ok := p.Attr("id"); ok && strings.Contains(strings.ToLower(id), "footer") {
			return true
		}
		if node == "body" || node == "html" {
			break
		}
	}
	return false
}

// FallbackURLs returns the blind well-known paths resolved against baseURL,
// capped at k.
func FallbackURLs(baseURL string, k int) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	if k <= 0 {
		k = len(fallbackPaths)
	}
	out := make([]string, 0, k)
	for _, p := range fallbackPaths {
		ref := *base
		ref.Path = p
		ref.RawQuery = ""
		ref.Fragment = ""
		out = append(out, ref.String())
		if len(out) == k {
			break
		}
	}
	return out
}
