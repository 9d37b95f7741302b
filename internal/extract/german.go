package extract

import (
	"regexp"
	"strings"

	"github.com/Firmograph/Firmograph/internal/model"
)

var (
	deRegisterRe = regexp.MustCompile(`\b(HRB|HRA)\s*\.?\s*(\d{1,6})(?:\s+([A-Z]{1,2})\b)?`)
	deCourtRe    = regexp.MustCompile(`(?:Amtsgericht|Handelsregister(?:\s+des)?\s+Amtsgerichts?)\s+([A-ZÄÖÜ][A-Za-zäöüß.\-]+(?:\s+(?:am|an|a\.|i\.)\s*[A-ZÄÖÜ]?[A-Za-zäöüß.\-]+)?)`)

	atRegisterRe = regexp.MustCompile(`\bFN\s*(\d{1,6})\s*([a-z])?\b`)
	atCourtRe    = regexp.MustCompile(`(?:Firmenbuchgericht|Landesgericht|Handelsgericht)\s+([A-ZÄÖÜ][A-Za-zäöüß.\-]+)`)

	chRegisterRe = regexp.MustCompile(`\bCHE-\d{3}\.\d{3}\.\d{3}\b`)

	// Representative labels. The clause after the colon is split into
	// individual names.
	deCeoRe = regexp.MustCompile(`(?im)^.{0,40}?\b(?:geschäftsführer(?:in|ung)?|vorstand(?:svorsitzender)?|inhaber(?:in)?|vertretungsberechtigt(?:er)?\s*(?:geschäftsführer)?|vertreten durch)\b\s*:?\s*(.+)$`)
)

// extractGerman handles the DE/AT/CH family.
func extractGerman(text string, ctx Context) *Extraction {
	e := newExtraction(model.SourcePattern)
	lines := strings.Split(text, "\n")
	country := ctx.Country

	if hit := anchorExpand(lines, PostalRes[country], country, ctx.Host); hit != nil {
		e.set(model.FieldPostalCode, hit.PostalCode, ConfidencePattern)
		e.set(model.FieldCity, hit.City, ConfidencePattern)
		e.set(model.FieldStreet, hit.Street, ConfidencePattern)
		e.set(model.FieldLegalName, hit.LegalName, ConfidencePattern)
		e.set(model.FieldLegalForm, hit.LegalForm, ConfidencePattern)
	}
	if !e.Fields[model.FieldLegalName].IsSet() {
		name, form := nameLineFallback(lines, country, ctx.Host)
		e.set(model.FieldLegalName, name, ConfidencePattern)
		e.set(model.FieldLegalForm, form, ConfidencePattern)
	}

	switch country {
	case CountryAustria:
		if m := atRegisterRe.FindStringSubmatch(text); m != nil {
			num := "FN " + m[1]
			if m[2] != "" {
				num += m[2]
			}
			e.set(model.FieldRegistrationNumber, num, ConfidencePattern)
			e.set(model.FieldRegisterType, "FN", ConfidencePattern)
		}
		if m := atCourtRe.FindStringSubmatch(text); m != nil {
			e.set(model.FieldRegisterCourt, strings.TrimSpace(m[0]), ConfidencePattern)
		}
	case CountrySwitzerland:
		if m := chRegisterRe.FindString(text); m != "" {
			e.set(model.FieldRegistrationNumber, m, ConfidencePattern)
			e.set(model.FieldRegisterType, "UID", ConfidencePattern)
		}
	default:
		if m := deRegisterRe.FindStringSubmatch(text); m != nil {
			num := m[1] + " " + m[2]
			if m[3] != "" {
				num += " " + m[3]
			}
			e.set(model.FieldRegistrationNumber, num, ConfidencePattern)
			e.set(model.FieldRegisterType, m[1], ConfidencePattern)
		}
		if m := deCourtRe.FindStringSubmatch(text); m != nil {
			e.set(model.FieldRegisterCourt, "Amtsgericht "+strings.TrimSpace(m[1]), ConfidencePattern)
		}
	}

	if m := VATRes[country].FindString(text); m != "" {
		e.set(model.FieldVATID, strings.ReplaceAll(m, " ", ""), ConfidencePattern)
	}

	if m := deCeoRe.FindStringSubmatch(text); m != nil {
		persons := splitPersons(m[1])
		if len(persons) > 0 {
			e.set(model.FieldCEO, persons[0], ConfidencePattern)
			e.Directors = persons
		}
	}

	e.Emails = extractEmails(text)
	e.Phones = extractPhones(text)
	e.set(model.FieldFax, extractFax(text), ConfidencePattern)
	e.set(model.FieldCountry, country, ConfidencePattern)

	if e.Empty() {
		return nil
	}
	return e
}

// nameLineFallback scans the top of the page for a line carrying a known
// legal form or a strong domain match, for pages where the postal anchor
// never fires.
func nameLineFallback(lines []string, country, host string) (name, form string) {
	limit := len(lines)
	if limit > 25 {
		limit = 25
	}
	for _, line := range lines[:limit] {
		line = strings.TrimSpace(line)
		if line == "" || OnDenylist(line) || len([]rune(line)) > 120 {
			continue
		}
		f := FindLegalForm(line, country)
		if f == "" {
			f = FindLegalForm(line, "")
		}
		if f != "" {
			return line, f
		}
	}
	return "", ""
}
