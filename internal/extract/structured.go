package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Firmograph/Firmograph/internal/model"
)

// organizationTypes are the JSON-LD @type values treated as entity
// annotations.
var organizationTypes = map[string]bool{
	"Organization":  true,
	"Corporation":   true,
	"LocalBusiness": true,
	"LegalService":  true,
}

// isoCountry normalises two-letter address country codes.
var isoCountry = map[string]string{
	"DE": CountryGermany,
	"AT": CountryAustria,
	"CH": CountrySwitzerland,
	"GB": CountryUK,
	"UK": CountryUK,
	"FR": CountryFrance,
	"IT": CountryItaly,
	"ES": CountrySpain,
}

// orgAnnotation is one parsed Organization-like JSON-LD node.
type orgAnnotation struct {
	legalName  string
	name       string
	vatID      string
	taxID      string
	street     string
	postalCode string
	city       string
	country    string
	phones     []string
	emails     []string
}

func (a *orgAnnotation) populated() int {
	n := 0
	for _, v := range []string{a.legalName, a.name, a.vatID, a.taxID, a.street, a.postalCode, a.city, a.country} {
		if v != "" {
			n++
		}
	}
	return n + len(a.phones) + len(a.emails)
}

// StructuredPass parses JSON-LD annotations out of pageHTML. Multiple
// annotations are merged, the most populated one winning conflicts. The
// country falls back to ctx.Country when the annotation has no address
// country.
func StructuredPass(pageHTML string, ctx Context) *Extraction {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil
	}
	var annotations []*orgAnnotation
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		var root any
		if err := json.Unmarshal([]byte(sel.Text()), &root); err != nil {
			return
		}
		collectAnnotations(root, &annotations)
	})
	if len(annotations) == 0 {
		return nil
	}

	// Most populated first; later annotations only fill gaps.
	for i := 1; i < len(annotations); i++ {
		for j := i; j > 0 && annotations[j].populated() > annotations[j-1].populated(); j-- {
			annotations[j], annotations[j-1] = annotations[j-1], annotations[j]
		}
	}
	merged := &orgAnnotation{}
	for _, a := range annotations {
		mergeAnnotation(merged, a)
	}

	e := newExtraction(model.SourceStructured)
	name := merged.legalName
	if name == "" {
		name = merged.name
	}
	e.set(model.FieldLegalName, name, ConfidenceStructured)
	if form := FindLegalForm(name, ctx.Country); form != "" {
		e.set(model.FieldLegalForm, form, ConfidenceStructured)
	} else if form := FindLegalForm(name, ""); form != "" {
		e.set(model.FieldLegalForm, form, ConfidenceStructured)
	}
	vat := merged.vatID
	if vat == "" {
		vat = merged.taxID
	}
	e.set(model.FieldVATID, vat, ConfidenceStructured)
	e.set(model.FieldStreet, merged.street, ConfidenceStructured)
	e.set(model.FieldPostalCode, merged.postalCode, ConfidenceStructured)
	e.set(model.FieldCity, merged.city, ConfidenceStructured)

	country := merged.country
	if c, ok := isoCountry[strings.ToUpper(country)]; ok {
		country = c
	}
	if country == "" {
		country = ctx.Country
	}
	e.set(model.FieldCountry, country, ConfidenceStructured)

	e.Phones = dedupe(merged.phones)
	e.Emails = dedupe(merged.emails)

	if e.Empty() {
		return nil
	}
	return e
}

// collectAnnotations walks a decoded JSON-LD document, including @graph and
// array roots, gathering Organization-like nodes.
func collectAnnotations(node any, out *[]*orgAnnotation) {
	switch v := node.(type) {
	case []any:
		for _, item := range v {
			collectAnnotations(item, out)
		}
	case map[string]any:
		if graph, ok := v["@graph"]; ok {
			collectAnnotations(graph, out)
		}
		if hasOrganizationType(v["@type"]) {
			if a := parseAnnotation(v); a.populated() > 0 {
				*out = append(*out, a)
			}
		}
	}
}

func hasOrganizationType(t any) bool {
	switch v := t.(type) {
	case string:
		return organizationTypes[v]
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && organizationTypes[s] {
				return true
			}
		}
	}
	return false
}

func parseAnnotation(node map[string]any) *orgAnnotation {
	a := &orgAnnotation{
		legalName: jsonString(node["legalName"]),
		name:      jsonString(node["name"]),
		vatID:     jsonString(node["vatID"]),
		taxID:     jsonString(node["taxID"]),
	}
	switch addr := node["address"].(type) {
	case map[string]any:
		a.street = jsonString(addr["streetAddress"])
		a.postalCode = jsonString(addr["postalCode"])
		a.city = jsonString(addr["addressLocality"])
		a.country = jsonString(addr["addressCountry"])
		if a.country == "" {
			if c, ok := addr["addressCountry"].(map[string]any); ok {
				a.country = jsonString(c["name"])
			}
		}
	case []any:
		if len(addr) > 0 {
			if m, ok := addr[0].(map[string]any); ok {
				a.street = jsonString(m["streetAddress"])
				a.postalCode = jsonString(m["postalCode"])
				a.city = jsonString(m["addressLocality"])
				a.country = jsonString(m["addressCountry"])
			}
		}
	}
	if tel := jsonString(node["telephone"]); tel != "" {
		a.phones = append(a.phones, tel)
	}
	if email := jsonString(node["email"]); email != "" {
		a.emails = append(a.emails, strings.TrimPrefix(strings.ToLower(email), "mailto:"))
	}
	collectContactPoints(node["contactPoint"], a)
	return a
}

func collectContactPoints(node any, a *orgAnnotation) {
	switch v := node.(type) {
	case []any:
		for _, item := range v {
			collectContactPoints(item, a)
		}
	case map[string]any:
		if tel := jsonString(v["telephone"]); tel != "" {
			a.phones = append(a.phones, tel)
		}
		if email := jsonString(v["email"]); email != "" {
			a.emails = append(a.emails, strings.TrimPrefix(strings.ToLower(email), "mailto:"))
		}
	}
}

// mergeAnnotation fills dst's empty fields from src.
func mergeAnnotation(dst, src *orgAnnotation) {
	if dst.legalName == "" {
		dst.legalName = src.legalName
	}
	if dst.name == "" {
		dst.name = src.name
	}
	if dst.vatID == "" {
		dst.vatID = src.vatID
	}
	if dst.taxID == "" {
		dst.taxID = src.taxID
	}
	if dst.street == "" {
		dst.street = src.street
	}
	if dst.postalCode == "" {
		dst.postalCode = src.postalCode
	}
	if dst.city == "" {
		dst.city = src.city
	}
	if dst.country == "" {
		dst.country = src.country
	}
	dst.phones = append(dst.phones, src.phones...)
	dst.emails = append(dst.emails, src.emails...)
}

func jsonString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func dedupe(xs []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, x := range xs {
		if x == "" || seen[x] {
			continue
		}
		seen[x] = true
		out = append(out, x)
	}
	return out
}
