package extract

import (
	"regexp"
	"strings"

	"github.com/Firmograph/Firmograph/internal/model"
)

var (
	frRCSRe   = regexp.MustCompile(`\bRCS\s+([A-ZÀ-Ü][A-Za-zà-ÿ\-]+)\s*:?\s*(?:[AB]\s*)?(\d{3}\s?\d{3}\s?\d{3})\b`)
	frSIRETRe = regexp.MustCompile(`(?i)\bSIRET\s*:?\s*(\d{3}\s?\d{3}\s?\d{3}\s?\d{5})\b`)
	frSIRENRe = regexp.MustCompile(`(?i)\bSIREN\s*:?\s*(\d{3}\s?\d{3}\s?\d{3})\b`)
	frCeoRe   = regexp.MustCompile(`(?im)^.{0,40}?\b(?:gérant(?:e)?|président(?:e)?|directeur\s+de\s+la\s+publication|directeur)\b\s*:?\s*(.+)$`)
)

// extractFrench handles the France pattern set.
func extractFrench(text string, ctx Context) *Extraction {
	e := newExtraction(model.SourcePattern)
	lines := strings.Split(text, "\n")

	if hit := anchorExpand(lines, PostalRes[CountryFrance], CountryFrance, ctx.Host); hit != nil {
		e.set(model.FieldPostalCode, hit.PostalCode, ConfidencePattern)
		e.set(model.FieldCity, hit.City, ConfidencePattern)
		e.set(model.FieldStreet, hit.Street, ConfidencePattern)
		e.set(model.FieldLegalName, hit.LegalName, ConfidencePattern)
		e.set(model.FieldLegalForm, hit.LegalForm, ConfidencePattern)
	}
	if !e.Fields[model.FieldLegalName].IsSet() {
		name, form := nameLineFallback(lines, CountryFrance, ctx.Host)
		e.set(model.FieldLegalName, name, ConfidencePattern)
		e.set(model.FieldLegalForm, form, ConfidencePattern)
	}

	// Registration: RCS with city wins; bare SIRET/SIREN still count as
	// registration numbers with the national registry as authority.
	if m := frRCSRe.FindStringSubmatch(text); m != nil {
		e.set(model.FieldRegistrationNumber, strings.ReplaceAll(m[2], " ", ""), ConfidencePattern)
		e.set(model.FieldRegisterCourt, "RCS "+m[1], ConfidencePattern)
		e.set(model.FieldRegisterType, "RCS", ConfidencePattern)
	} else if m := frSIRETRe.FindStringSubmatch(text); m != nil {
		e.set(model.FieldRegistrationNumber, strings.ReplaceAll(m[1], " ", ""), ConfidencePattern)
		e.set(model.FieldRegisterType, "SIRET", ConfidencePattern)
	} else if m := frSIRENRe.FindStringSubmatch(text); m != nil {
		e.set(model.FieldRegistrationNumber, strings.ReplaceAll(m[1], " ", ""), ConfidencePattern)
		e.set(model.FieldRegisterType, "SIREN", ConfidencePattern)
	}

	if m := VATRes[CountryFrance].FindString(text); m != "" {
		e.set(model.FieldVATID, strings.ReplaceAll(m, " ", ""), ConfidencePattern)
	}

	if m := frCeoRe.FindStringSubmatch(text); m != nil {
		persons := splitPersons(m[1])
		if len(persons) > 0 {
			e.set(model.FieldCEO, persons[0], ConfidencePattern)
			e.Directors = persons
		}
	}

	e.Emails = extractEmails(text)
	e.Phones = extractPhones(text)
	e.set(model.FieldFax, extractFax(text), ConfidencePattern)
	e.set(model.FieldCountry, CountryFrance, ConfidencePattern)

	if e.Empty() {
		return nil
	}
	return e
}
