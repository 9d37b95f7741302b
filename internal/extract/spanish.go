package extract

import (
	"regexp"
	"strings"

	"github.com/Firmograph/Firmograph/internal/model"
)

var (
	esCIFRe      = regexp.MustCompile(`(?i)\b(?:C\.?I\.?F\.?|N\.?I\.?F\.?)\b\s*:?\s*([ABCDEFGHJNPQRSUVW]\s?-?\s?\d{7}[0-9A-J])\b`)
	esRegisterRe = regexp.MustCompile(`(?i)\bregistro\s+mercantil(?:\s+de)?\s+([A-ZÀ-Ü][A-Za-zà-ÿ\-]+)?`)
	esTomoRe     = regexp.MustCompile(`(?i)\btomo\s+(\d+)\s*,?\s*(?:libro\s+\d+\s*,?\s*)?folio\s+(\d+)\s*,?\s*hoja\s+([A-Z]{0,2}\s?-?\s?\d+)`)
	esCeoRe      = regexp.MustCompile(`(?im)^.{0,40}?\b(?:administrador(?:a)?\s*(?:único|unica|solidario)?|gerente)\b\s*:?\s*(.+)$`)
)

// extractSpanish handles the Spain pattern set.
func extractSpanish(text string, ctx Context) *Extraction {
	e := newExtraction(model.SourcePattern)
	lines := strings.Split(text, "\n")

	if hit := anchorExpand(lines, PostalRes[CountrySpain], CountrySpain, ctx.Host); hit != nil {
		e.set(model.FieldPostalCode, hit.PostalCode, ConfidencePattern)
		e.set(model.FieldCity, hit.City, ConfidencePattern)
		e.set(model.FieldStreet, hit.Street, ConfidencePattern)
		e.set(model.FieldLegalName, hit.LegalName, ConfidencePattern)
		e.set(model.FieldLegalForm, hit.LegalForm, ConfidencePattern)
	}
	if !e.Fields[model.FieldLegalName].IsSet() {
		name, form := nameLineFallback(lines, CountrySpain, ctx.Host)
		e.set(model.FieldLegalName, name, ConfidencePattern)
		e.set(model.FieldLegalForm, form, ConfidencePattern)
	}

	if m := esCIFRe.FindStringSubmatch(text); m != nil {
		cif := strings.ToUpper(regexp.MustCompile(`[\s\-]`).ReplaceAllString(m[1], ""))
		e.set(model.FieldRegistrationNumber, cif, ConfidencePattern)
		e.set(model.FieldRegisterType, "CIF", ConfidencePattern)
	} else if m := esTomoRe.FindStringSubmatch(text); m != nil {
		e.set(model.FieldRegistrationNumber, "Hoja "+strings.ReplaceAll(m[3], " ", ""), ConfidencePattern)
		e.set(model.FieldRegisterType, "Registro Mercantil", ConfidencePattern)
	}
	if m := esRegisterRe.FindStringSubmatch(text); m != nil {
		court := "Registro Mercantil"
		if m[1] != "" {
			court += " de " + m[1]
		}
		e.set(model.FieldRegisterCourt, court, ConfidencePattern)
		if !e.Fields[model.FieldRegisterType].IsSet() {
			e.set(model.FieldRegisterType, "Registro Mercantil", ConfidencePattern)
		}
	}

	if m := VATRes[CountrySpain].FindString(text); m != "" {
		e.set(model.FieldVATID, strings.ReplaceAll(m, " ", ""), ConfidencePattern)
	}

	if m := esCeoRe.FindStringSubmatch(text); m != nil {
		persons := splitPersons(m[1])
		if len(persons) > 0 {
			e.set(model.FieldCEO, persons[0], ConfidencePattern)
			e.Directors = persons
		}
	}

	e.Emails = extractEmails(text)
	e.Phones = extractPhones(text)
	e.set(model.FieldFax, extractFax(text), ConfidencePattern)
	e.set(model.FieldCountry, CountrySpain, ConfidencePattern)

	if e.Empty() {
		return nil
	}
	return e
}
