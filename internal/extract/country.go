package extract

import (
	"regexp"
	"strings"

	"github.com/RadhiFadlillah/whatlanggo"

	"github.com/Firmograph/Firmograph/internal/netutil"
)

// Country names as stored on results.
const (
	CountryGermany     = "Germany"
	CountryAustria     = "Austria"
	CountrySwitzerland = "Switzerland"
	CountryUK          = "United Kingdom"
	CountryFrance      = "France"
	CountryItaly       = "Italy"
	CountrySpain       = "Spain"
)

// tldCountry maps ccTLDs to countries. The detection priority is TLD, then
// content markers, then language.
var tldCountry = map[string]string{
	"de": CountryGermany,
	"at": CountryAustria,
	"ch": CountrySwitzerland,
	"uk": CountryUK,
	"fr": CountryFrance,
	"it": CountryItaly,
	"es": CountrySpain,
}

// contentMarkers are register-authority terms that pin a jurisdiction even
// on a generic TLD.
var contentMarkers = []struct {
	term    string
	country string
}{
	{"amtsgericht", CountryGermany},
	{"handelsregister", CountryGermany},
	{"hrb ", CountryGermany},
	{"hra ", CountryGermany},
	{"firmenbuch", CountryAustria},
	{"landesgericht", CountryAustria},
	{"che-", CountrySwitzerland},
	{"companies house", CountryUK},
	{"registered in england", CountryUK},
	{"rcs ", CountryFrance},
	{"siret", CountryFrance},
	{"siren", CountryFrance},
	{"registro imprese", CountryItaly},
	{"partita iva", CountryItaly},
	{"registro mercantil", CountrySpain},
}

// langCountry is the weakest signal: content language.
var langCountry = map[string]string{
	"deu": CountryGermany,
	"fra": CountryFrance,
	"ita": CountryItaly,
	"spa": CountrySpain,
	"eng": CountryUK,
}

// DetectCountry determines the jurisdiction for host from, in priority
// order, the ccTLD, register markers in the isolated text, and the content
// language. Returns "" when nothing matches; extraction then uses the
// generic pass only.
func DetectCountry(host, text string) string {
	if c, ok := tldCountry[netutil.TLD(host)]; ok {
		return c
	}
	lower := strings.ToLower(text)
	for _, m := range contentMarkers {
		if strings.Contains(lower, m.term) {
			return m.country
		}
	}
	if len(text) >= 40 {
		info := whatlanggo.Detect(text)
		if info.IsReliable() {
			if c, ok := langCountry[info.Lang.Iso6393()]; ok {
				return c
			}
		}
	}
	return ""
}

// KnownLegalForms lists the accepted legal-form tokens per country. The
// validator requires exact membership; the anchor heuristic searches for
// any of them in a name line.
var KnownLegalForms = map[string][]string{
	CountryGermany: {
		"GmbH & Co. KG", "GmbH & Co. KGaA", "gGmbH", "GmbH", "mbH", "AG & Co. KG",
		"AG", "KGaA", "KG", "OHG", "UG (haftungsbeschränkt)", "UG", "e.K.", "e.Kfr.",
		"eG", "GbR", "e.V.", "Stiftung",
	},
	CountryAustria: {
		"GmbH & Co KG", "GesmbH", "Ges.m.b.H.", "GmbH", "m.b.H.", "AG", "KG", "OG",
		"e.U.", "eG",
	},
	CountrySwitzerland: {
		"GmbH", "AG", "S.A.", "SA", "Sàrl", "Sarl", "SARL",
	},
	CountryUK: {
		"Ltd.", "Ltd", "Limited", "PLC", "plc", "LLP", "CIC",
	},
	CountryFrance: {
		"SARL", "SASU", "SAS", "SA", "EURL", "SCI", "SNC",
	},
	CountryItaly: {
		"S.r.l.s.", "S.r.l.", "Srl", "S.p.A.", "SpA", "S.a.s.", "S.n.c.",
	},
	CountrySpain: {
		"S.L.U.", "S.L.L.", "S.L.", "S.A.U.", "S.A.", "S.Coop.",
	},
	// Generic pass: widespread forms beyond the dedicated extractors.
	"": {
		"Inc.", "Inc", "LLC", "Corp.", "Corp", "Co.", "B.V.", "N.V.", "AB",
		"Oy", "ApS", "A/S", "AS", "Sp. z o.o.", "s.r.o.", "d.o.o.", "GmbH",
		"Ltd", "SA", "SARL",
	},
}

// PostalRes gives the country postal-code patterns. The submatch layout is
// (code); city parsing happens around the match.
var PostalRes = map[string]*regexp.Regexp{
	CountryGermany:     regexp.MustCompile(`\b(\d{5})\b`),
	CountryAustria:     regexp.MustCompile(`\b(\d{4})\b`),
	CountrySwitzerland: regexp.MustCompile(`\b(\d{4})\b`),
	CountryUK:          regexp.MustCompile(`\b([A-Z]{1,2}\d{1,2}[A-Z]?\s*\d[A-Z]{2})\b`),
	CountryFrance:      regexp.MustCompile(`\b(\d{5})\b`),
	CountryItaly:       regexp.MustCompile(`\b(\d{5})\b`),
	CountrySpain:       regexp.MustCompile(`\b(\d{5})\b`),
}

// VATRes gives the VAT-identifier patterns per country.
var VATRes = map[string]*regexp.Regexp{
	CountryGermany:     regexp.MustCompile(`\bDE\s?\d{9}\b`),
	CountryAustria:     regexp.MustCompile(`\bATU\s?\d{8}\b`),
	CountrySwitzerland: regexp.MustCompile(`\bCHE-\d{3}\.\d{3}\.\d{3}(?:\s?(?:MWST|TVA|IVA))?\b`),
	CountryUK:          regexp.MustCompile(`\bGB\s?\d{9}\b`),
	CountryFrance:      regexp.MustCompile(`\bFR\s?[0-9A-Z]{2}\s?\d{9}\b`),
	CountryItaly:       regexp.MustCompile(`\bIT\s?\d{11}\b`),
	CountrySpain:       regexp.MustCompile(`\bES[A-Z0-9]\d{7}[A-Z0-9]\b`),
}

// legalFormsFor returns the form tokens to search for. The table entries
// are ordered longest first so "GmbH & Co. KG" wins over "GmbH".
func legalFormsFor(country string) []string {
	return KnownLegalForms[country]
}

// FindLegalForm returns the first (longest) known form token contained in
// line, or "".
func FindLegalForm(line, country string) string {
	for _, form := range legalFormsFor(country) {
		if containsToken(line, form) {
			return form
		}
	}
	return ""
}

// containsToken is a case-sensitive containment check with loose word
// boundaries: form tokens carry their own punctuation.
func containsToken(line, token string) bool {
	i := strings.Index(line, token)
	if i < 0 {
		return false
	}
	before := i == 0 || line[i-1] == ' ' || line[i-1] == '(' || line[i-1] == ','
	after := i+len(token) == len(line)
	if !after {
		c := line[i+len(token)]
		after = c == ' ' || c == ')' || c == ',' || c == '.' || c == ';'
	}
	return before && after
}
