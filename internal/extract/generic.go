package extract

import (
	"regexp"
	"strings"

	"github.com/Firmograph/Firmograph/internal/config"
	"github.com/Firmograph/Firmograph/internal/model"
)

var (
	// genericPostalRe is intentionally loose; the validator re-checks it
	// once a country is known.
	genericPostalRe = regexp.MustCompile(`\b(\d{4,6})\b`)
	genericCeoRe    = regexp.MustCompile(`(?im)^.{0,40}?\b(?:ceo|managing\s+director|director|founder|owner)\b\s*:?\s*(.+)$`)
)

// GenericPass is the last extraction pass: user-extensible legal forms, no
// postal validation, label-based contacts. It also runs when no country was
// detected.
func GenericPass(text string, ctx Context) *Extraction {
	e := newExtraction(model.SourceGeneric)
	lines := strings.Split(text, "\n")

	postalRe := genericPostalRe
	if re, ok := PostalRes[ctx.Country]; ok {
		postalRe = re
	}
	if hit := anchorExpand(lines, postalRe, "", ctx.Host); hit != nil {
		e.set(model.FieldPostalCode, hit.PostalCode, ConfidenceGeneric)
		e.set(model.FieldCity, hit.City, ConfidenceGeneric)
		e.set(model.FieldStreet, hit.Street, ConfidenceGeneric)
		e.set(model.FieldLegalName, hit.LegalName, ConfidenceGeneric)
		e.set(model.FieldLegalForm, hit.LegalForm, ConfidenceGeneric)
	}
	if !e.Fields[model.FieldLegalName].IsSet() {
		name, form := nameLineFallback(lines, "", ctx.Host)
		e.set(model.FieldLegalName, name, ConfidenceGeneric)
		e.set(model.FieldLegalForm, form, ConfidenceGeneric)
	}

	if m := genericCeoRe.FindStringSubmatch(text); m != nil {
		persons := splitPersons(m[1])
		if len(persons) > 0 {
			e.set(model.FieldCEO, persons[0], ConfidenceGeneric)
			e.Directors = persons
		}
	}

	e.Emails = extractEmails(text)
	e.Phones = extractPhones(text)
	e.set(model.FieldFax, extractFax(text), ConfidenceGeneric)
	if ctx.Country != "" {
		e.set(model.FieldCountry, ctx.Country, ConfidenceGeneric)
	}

	if e.Empty() {
		return nil
	}
	return e
}

// extractPack applies a user-supplied YAML pattern pack the same way the
// built-in extractors work.
func extractPack(text string, ctx Context, pack config.CountryPack) *Extraction {
	e := newExtraction(model.SourcePattern)
	lines := strings.Split(text, "\n")

	postalRe := genericPostalRe
	if pack.PostalRe != nil {
		postalRe = pack.PostalRe
	}
	if hit := anchorExpand(lines, postalRe, "", ctx.Host); hit != nil {
		e.set(model.FieldPostalCode, hit.PostalCode, ConfidencePattern)
		e.set(model.FieldCity, hit.City, ConfidencePattern)
		e.set(model.FieldStreet, hit.Street, ConfidencePattern)
		e.set(model.FieldLegalName, hit.LegalName, ConfidencePattern)
	}
	for _, form := range pack.LegalForms {
		if containsToken(text, form) {
			e.set(model.FieldLegalForm, form, ConfidencePattern)
			break
		}
	}
	if !e.Fields[model.FieldLegalName].IsSet() {
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line == "" || OnDenylist(line) {
				continue
			}
			for _, form := range pack.LegalForms {
				if containsToken(line, form) {
					e.set(model.FieldLegalName, line, ConfidencePattern)
					break
				}
			}
			if e.Fields[model.FieldLegalName].IsSet() {
				break
			}
		}
	}

	for _, label := range pack.RegisterLabels {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(label) + `\b\s*:?\s*([A-Z0-9][A-Z0-9\s\-/.]{2,20})`)
		if m := re.FindStringSubmatch(text); m != nil {
			e.set(model.FieldRegistrationNumber, strings.TrimSpace(m[1]), ConfidencePattern)
			e.set(model.FieldRegisterType, label, ConfidencePattern)
			break
		}
	}
	if pack.VATRe != nil {
		if m := pack.VATRe.FindString(text); m != "" {
			e.set(model.FieldVATID, strings.ReplaceAll(m, " ", ""), ConfidencePattern)
		}
	}
	for _, label := range pack.ContactLabels {
		re := regexp.MustCompile(`(?im)^.{0,40}?\b` + regexp.QuoteMeta(label) + `\b\s*:?\s*(.+)$`)
		if m := re.FindStringSubmatch(text); m != nil {
			persons := splitPersons(m[1])
			if len(persons) > 0 {
				e.set(model.FieldCEO, persons[0], ConfidencePattern)
				e.Directors = persons
				break
			}
		}
	}

	e.Emails = extractEmails(text)
	e.Phones = extractPhones(text)
	e.set(model.FieldFax, extractFax(text), ConfidencePattern)
	e.set(model.FieldCountry, pack.Country, ConfidencePattern)

	if e.Empty() {
		return nil
	}
	return e
}
