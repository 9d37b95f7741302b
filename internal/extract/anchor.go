package extract

import (
	"regexp"
	"strings"

	"github.com/Firmograph/Firmograph/internal/netutil"
)

// labelDenylist blocks navigation and form labels from being mistaken for a
// company name in the anchor heuristic.
var labelDenylist = []string{
	"kontakt", "anschrift", "adresse", "address", "home", "menu", "menü",
	"impressum", "imprint", "warenkorb", "login", "suche", "search",
	"startseite", "navigation", "datenschutz", "sitemap", "agb",
	"öffnungszeiten", "telefon", "e-mail", "email", "fax",
}

// streetSuffixes identify a street line together with a house number.
var streetSuffixes = []string{
	// German
	"straße", "strasse", "str.", "weg", "platz", "allee", "gasse", "ring",
	"damm", "ufer", "chaussee", "markt", "hof",
	// English
	"street", "road", "lane", "avenue", "drive", "court", "way", "place",
	"square", "house",
	// French
	"rue", "avenue", "boulevard", "chemin", "allée", "impasse", "quai",
	// Italian / Spanish
	"via", "viale", "piazza", "corso", "calle", "avenida", "plaza", "paseo",
}

var houseNumberRe = regexp.MustCompile(`\d+\s*[a-zA-Z]?(\s*[-/]\s*\d+)?`)

// anchorSkipRe rejects lines whose digit runs are registration numbers,
// tax ids or phone numbers rather than postal codes.
var anchorSkipRe = regexp.MustCompile(`(?i)\b(hrb|hra|amtsgericht|registergericht|firmenbuch|fn\s*\d|ust|vat|steuernummer|siren|siret|company\s+no|telefon|tel\.?:|phone|fax)\b`)

// anchorHit is the outcome of one postal-anchor expansion.
type anchorHit struct {
	PostalCode string
	City       string
	Street     string
	LegalName  string
	LegalForm  string
}

// anchorExpand implements the shared anchor-&-expand heuristic: find the
// postal-code line, take the city from the same line, the street from the
// same or the previous line, and the legal name from the nearest eligible
// line up to three above.
func anchorExpand(lines []string, postalRe *regexp.Regexp, country, host string) *anchorHit {
	domainLabel := netutil.SecondLevelLabel(host)
	for i, line := range lines {
		if anchorSkipRe.MatchString(line) {
			continue
		}
		loc := postalRe.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		hit := &anchorHit{PostalCode: strings.TrimSpace(line[loc[2]:loc[3]])}
		hit.City = cityAround(line, loc)

		// Street: same line before the postal code, or the line above.
		if s := streetCandidate(strings.TrimSpace(line[:loc[0]])); s != "" {
			hit.Street = s
		} else if i > 0 {
			if s := streetCandidate(lines[i-1]); s != "" {
				hit.Street = s
			}
		}

		// Legal name: nearest non-empty line within three above the anchor
		// (skipping the street line) that carries a known form token or
		// fuzzy-matches the domain label, and is not a bare label.
		for back := 1; back <= 3 && i-back >= 0; back++ {
			cand := strings.TrimSpace(lines[i-back])
			if cand == "" || cand == hit.Street {
				continue
			}
			if OnDenylist(cand) {
				continue
			}
			form := FindLegalForm(cand, country)
			if form == "" && country != "" {
				form = FindLegalForm(cand, "")
			}
			if form != "" || FuzzyRatio(cand, domainLabel) >= 0.6 {
				hit.LegalName = cand
				hit.LegalForm = form
				break
			}
		}
		return hit
	}
	return nil
}

// cityAround extracts the city next to the postal match: the remainder of
// the line after the code (DE style "80333 München"), or the text before it
// (UK style "London SW1A 1AA").
func cityAround(line string, loc []int) string {
	after := strings.TrimSpace(strings.Trim(line[loc[1]:], " ,.;·|"))
	if after != "" {
		return trimCity(after)
	}
	before := strings.TrimSpace(strings.Trim(line[:loc[0]], " ,.;·|"))
	if before == "" {
		return ""
	}
	parts := strings.Split(before, ",")
	return trimCity(strings.TrimSpace(parts[len(parts)-1]))
}

// trimCity cuts trailing country mentions and separators off a city token.
func trimCity(s string) string {
	for _, sep := range []string{",", "·", "|", " - ", " – "} {
		if i := strings.Index(s, sep); i > 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

// streetCandidate returns line when it looks like a street with a house
// number.
func streetCandidate(line string) string {
	line = strings.TrimSpace(strings.Trim(line, ",;·|"))
	if line == "" || !houseNumberRe.MatchString(line) {
		return ""
	}
	lower := strings.ToLower(line)
	for _, suffix := range streetSuffixes {
		if strings.Contains(lower, suffix) {
			return line
		}
	}
	return ""
}

// OnDenylist reports whether the line is dominated by navigation labels.
func OnDenylist(line string) bool {
	lower := strings.ToLower(line)
	hits := 0
	for _, label := range labelDenylist {
		if strings.Contains(lower, label) {
			hits++
		}
	}
	if hits == 0 {
		return false
	}
	// A single mention inside a longer sentence is tolerated; short lines
	// and multi-label lines are navigation.
	return hits >= 2 || len([]rune(line)) <= 40
}

// FuzzyRatio is a similarity ratio in [0,1] between a candidate name line
// and the domain's second-level label, based on Levenshtein distance over
// normalised strings.
func FuzzyRatio(name, domainLabel string) float64 {
	a := normalizeForFuzz(name)
	b := normalizeForFuzz(domainLabel)
	if a == "" || b == "" {
		return 0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 1
	}
	dist := levenshtein(a, b)
	max := len([]rune(a))
	if l := len([]rune(b)); l > max {
		max = l
	}
	return 1 - float64(dist)/float64(max)
}

var fuzzDropRe = regexp.MustCompile(`[^a-z0-9]+`)

func normalizeForFuzz(s string) string {
	s = strings.ToLower(s)
	replacer := strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss",
		"é", "e", "è", "e", "ê", "e", "à", "a", "ç", "c")
	s = replacer.Replace(s)
	// Drop legal-form noise so "beispiel-gmbh.de" matches "Beispiel GmbH".
	for _, form := range []string{"gmbh", "ag", "kg", "ltd", "limited", "sarl", "srl", "sl", "sa", "ug"} {
		s = strings.TrimSuffix(strings.TrimSpace(s), " "+form)
	}
	return fuzzDropRe.ReplaceAllString(s, "")
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
