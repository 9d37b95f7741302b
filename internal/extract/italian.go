package extract

import (
	"regexp"
	"strings"

	"github.com/Firmograph/Firmograph/internal/model"
)

var (
	itPIVARe     = regexp.MustCompile(`(?i)\b(?:p\.?\s?iva|partita\s+iva)\b\s*:?\s*((?:IT\s?)?\d{11})\b`)
	itREARe      = regexp.MustCompile(`(?i)\bREA\b\s*:?\s*([A-Z]{2}\s*[-–]?\s*\d{4,7})\b`)
	itRegisterRe = regexp.MustCompile(`(?i)\bregistro\s+(?:delle\s+)?imprese(?:\s+di)?\s+([A-ZÀ-Ü][A-Za-zà-ÿ\-]+)?`)
	itCeoRe      = regexp.MustCompile(`(?im)^.{0,40}?\b(?:amministratore\s+(?:unico|delegato)|amministratore|legale\s+rappresentante)\b\s*:?\s*(.+)$`)
)

// extractItalian handles the Italy pattern set.
func extractItalian(text string, ctx Context) *Extraction {
	e := newExtraction(model.SourcePattern)
	lines := strings.Split(text, "\n")

	if hit := anchorExpand(lines, PostalRes[CountryItaly], CountryItaly, ctx.Host); hit != nil {
		e.set(model.FieldPostalCode, hit.PostalCode, ConfidencePattern)
		e.set(model.FieldCity, hit.City, ConfidencePattern)
		e.set(model.FieldStreet, hit.Street, ConfidencePattern)
		e.set(model.FieldLegalName, hit.LegalName, ConfidencePattern)
		e.set(model.FieldLegalForm, hit.LegalForm, ConfidencePattern)
	}
	if !e.Fields[model.FieldLegalName].IsSet() {
		name, form := nameLineFallback(lines, CountryItaly, ctx.Host)
		e.set(model.FieldLegalName, name, ConfidencePattern)
		e.set(model.FieldLegalForm, form, ConfidencePattern)
	}

	if m := itPIVARe.FindStringSubmatch(text); m != nil {
		piva := strings.ToUpper(strings.ReplaceAll(m[1], " ", ""))
		if !strings.HasPrefix(piva, "IT") {
			piva = "IT" + piva
		}
		e.set(model.FieldVATID, piva, ConfidencePattern)
	} else if m := VATRes[CountryItaly].FindString(text); m != "" {
		e.set(model.FieldVATID, strings.ReplaceAll(m, " ", ""), ConfidencePattern)
	}

	if m := itRegisterRe.FindStringSubmatch(text); m != nil {
		court := "Registro Imprese"
		if m[1] != "" {
			court += " " + m[1]
		}
		e.set(model.FieldRegisterCourt, court, ConfidencePattern)
		e.set(model.FieldRegisterType, "Registro Imprese", ConfidencePattern)
	}
	if m := itREARe.FindStringSubmatch(text); m != nil {
		e.set(model.FieldRegistrationNumber, "REA "+strings.TrimSpace(m[1]), ConfidencePattern)
	}

	if m := itCeoRe.FindStringSubmatch(text); m != nil {
		persons := splitPersons(m[1])
		if len(persons) > 0 {
			e.set(model.FieldCEO, persons[0], ConfidencePattern)
			e.Directors = persons
		}
	}

	e.Emails = extractEmails(text)
	e.Phones = extractPhones(text)
	e.set(model.FieldFax, extractFax(text), ConfidencePattern)
	e.set(model.FieldCountry, CountryItaly, ConfidencePattern)

	if e.Empty() {
		return nil
	}
	return e
}
