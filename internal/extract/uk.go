package extract

import (
	"regexp"
	"strings"

	"github.com/Firmograph/Firmograph/internal/model"
)

var (
	ukCompanyNoRe = regexp.MustCompile(`(?i)\b(?:company\s+(?:registration\s+)?(?:no|number)\.?|registered\s+(?:in\s+england(?:\s+(?:and|&)\s+wales)?\s*)?(?:no|number)\.?)\s*:?\s*(\d{6,8})\b`)
	ukCourtRe     = regexp.MustCompile(`(?i)\bcompanies\s+house\b`)
	ukDirectorRe  = regexp.MustCompile(`(?im)^.{0,40}?\bdirector(?:s)?\b\s*:?\s*(.+)$`)
)

// extractUK handles the United Kingdom pattern set.
func extractUK(text string, ctx Context) *Extraction {
	e := newExtraction(model.SourcePattern)
	lines := strings.Split(text, "\n")

	if hit := anchorExpand(lines, PostalRes[CountryUK], CountryUK, ctx.Host); hit != nil {
		e.set(model.FieldPostalCode, hit.PostalCode, ConfidencePattern)
		e.set(model.FieldCity, hit.City, ConfidencePattern)
		e.set(model.FieldStreet, hit.Street, ConfidencePattern)
		e.set(model.FieldLegalName, hit.LegalName, ConfidencePattern)
		e.set(model.FieldLegalForm, hit.LegalForm, ConfidencePattern)
	}
	if !e.Fields[model.FieldLegalName].IsSet() {
		name, form := nameLineFallback(lines, CountryUK, ctx.Host)
		e.set(model.FieldLegalName, name, ConfidencePattern)
		e.set(model.FieldLegalForm, form, ConfidencePattern)
	}

	if m := ukCompanyNoRe.FindStringSubmatch(text); m != nil {
		e.set(model.FieldRegistrationNumber, m[1], ConfidencePattern)
		e.set(model.FieldRegisterType, "Companies House", ConfidencePattern)
		e.set(model.FieldRegisterCourt, "Companies House", ConfidencePattern)
	} else if ukCourtRe.MatchString(text) {
		e.set(model.FieldRegisterCourt, "Companies House", ConfidencePattern)
	}

	if m := VATRes[CountryUK].FindString(text); m != "" {
		e.set(model.FieldVATID, strings.ReplaceAll(m, " ", ""), ConfidencePattern)
	}

	if m := ukDirectorRe.FindStringSubmatch(text); m != nil {
		persons := splitPersons(m[1])
		if len(persons) > 0 {
			e.set(model.FieldCEO, persons[0], ConfidencePattern)
			e.Directors = persons
		}
	}

	e.Emails = extractEmails(text)
	e.Phones = extractPhones(text)
	e.set(model.FieldFax, extractFax(text), ConfidencePattern)
	e.set(model.FieldCountry, CountryUK, ConfidencePattern)

	if e.Empty() {
		return nil
	}
	return e
}
