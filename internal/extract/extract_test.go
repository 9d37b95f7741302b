package extract

import (
	"strings"
	"testing"

	"github.com/Firmograph/Firmograph/internal/model"
)

func TestStructuredPassOrganization(t *testing.T) {
	page := `<html><head><script type="application/ld+json">
	{
	  "@context": "https://schema.org",
	  "@type": "Organization",
	  "legalName": "Example GmbH",
	  "address": {
	    "@type": "PostalAddress",
	    "streetAddress": "Musterstr. 1",
	    "postalCode": "10115",
	    "addressLocality": "Berlin",
	    "addressCountry": "DE"
	  },
	  "telephone": "+49 30 1234567"
	}
	</script></head><body></body></html>`

	e := StructuredPass(page, Context{Host: "example.de", Country: CountryGermany})
	if e == nil {
		t.Fatal("no extraction")
	}
	want := map[string]string{
		model.FieldLegalName:  "Example GmbH",
		model.FieldLegalForm:  "GmbH",
		model.FieldStreet:     "Musterstr. 1",
		model.FieldPostalCode: "10115",
		model.FieldCity:       "Berlin",
		model.FieldCountry:    CountryGermany,
	}
	for key, val := range want {
		f := e.Fields[key]
		if f.Value != val {
			t.Errorf("%s = %q, want %q", key, f.Value, val)
		}
		if f.Source != model.SourceStructured || f.Confidence != 1.0 {
			t.Errorf("%s provenance = %+v", key, f)
		}
	}
	if len(e.Phones) != 1 || e.Phones[0] != "+49 30 1234567" {
		t.Errorf("Phones = %v", e.Phones)
	}
}

func TestStructuredPassGraphAndMerge(t *testing.T) {
	page := `<html><body><script type="application/ld+json">
	{"@graph": [
	  {"@type": "Organization", "name": "Example"},
	  {"@type": ["LocalBusiness"], "legalName": "Example GmbH",
	   "address": {"postalCode": "10115", "addressLocality": "Berlin"},
	   "email": "mailto:Info@Example.de"}
	]}
	</script></body></html>`

	e := StructuredPass(page, Context{Host: "example.de", Country: CountryGermany})
	if e == nil {
		t.Fatal("no extraction")
	}
	if got := e.Fields[model.FieldLegalName].Value; got != "Example GmbH" {
		t.Errorf("legal_name = %q; most populated annotation must win", got)
	}
	if len(e.Emails) != 1 || e.Emails[0] != "info@example.de" {
		t.Errorf("Emails = %v", e.Emails)
	}
}

const impressumText = `Impressum

Beispiel GmbH
Musterweg 7
80333 München

Geschäftsführer: Max Mustermann
HRB 12345 Amtsgericht München
Umsatzsteuer-ID: DE123456789

Telefon: +49 89 123456
Telefax: +49 89 123457
E-Mail: info@beispiel.de`

func TestGermanAnchorAndExpand(t *testing.T) {
	e := CountryPass(impressumText, Context{Host: "beispiel.de", Country: CountryGermany})
	if e == nil {
		t.Fatal("no extraction")
	}
	want := map[string]string{
		model.FieldLegalName:          "Beispiel GmbH",
		model.FieldLegalForm:          "GmbH",
		model.FieldStreet:             "Musterweg 7",
		model.FieldPostalCode:         "80333",
		model.FieldCity:               "München",
		model.FieldRegistrationNumber: "HRB 12345",
		model.FieldRegisterType:       "HRB",
		model.FieldRegisterCourt:      "Amtsgericht München",
		model.FieldVATID:              "DE123456789",
		model.FieldCEO:                "Max Mustermann",
		model.FieldCountry:            CountryGermany,
	}
	for key, val := range want {
		f := e.Fields[key]
		if f.Value != val {
			t.Errorf("%s = %q, want %q", key, f.Value, val)
		}
		if f.Value != "" && f.Source != model.SourcePattern {
			t.Errorf("%s source = %q, want pattern", key, f.Source)
		}
	}
	if len(e.Phones) != 1 || e.Phones[0] != "+49 89 123456" {
		t.Errorf("Phones = %v", e.Phones)
	}
	if got := e.Fields[model.FieldFax].Value; got != "+49 89 123457" {
		t.Errorf("fax = %q", got)
	}
	if len(e.Emails) != 1 || e.Emails[0] != "info@beispiel.de" {
		t.Errorf("Emails = %v", e.Emails)
	}
}

func TestGermanMultipleManagingDirectors(t *testing.T) {
	text := "Beispiel GmbH\nMusterweg 7\n80333 München\nGeschäftsführer: Dr. Max Mustermann und Erika Beispiel"
	e := CountryPass(text, Context{Host: "beispiel.de", Country: CountryGermany})
	if e == nil {
		t.Fatal("no extraction")
	}
	if got := e.Fields[model.FieldCEO].Value; got != "Max Mustermann" {
		t.Errorf("ceo = %q (title must be stripped)", got)
	}
	if len(e.Directors) != 2 || e.Directors[1] != "Erika Beispiel" {
		t.Errorf("Directors = %v", e.Directors)
	}
}

func TestAnchorRejectsNavigationGarbage(t *testing.T) {
	text := "Kontakt · Menü · Warenkorb (0)\n80333 München"
	e := CountryPass(text, Context{Host: "someshop.de", Country: CountryGermany})
	if e != nil && e.Fields[model.FieldLegalName].IsSet() {
		t.Errorf("legal_name = %q, want empty", e.Fields[model.FieldLegalName].Value)
	}
}

func TestUKExtractor(t *testing.T) {
	text := `Legal Notice

Example Widgets Ltd
10 Downing Street
London SW1A 2AA

Registered in England and Wales No. 01234567
Director: Jane Smith
VAT No: GB123456789`

	e := CountryPass(text, Context{Host: "examplewidgets.co.uk", Country: CountryUK})
	if e == nil {
		t.Fatal("no extraction")
	}
	if got := e.Fields[model.FieldLegalName].Value; got != "Example Widgets Ltd" {
		t.Errorf("legal_name = %q", got)
	}
	if got := e.Fields[model.FieldPostalCode].Value; got != "SW1A 2AA" {
		t.Errorf("postal_code = %q", got)
	}
	if got := e.Fields[model.FieldRegistrationNumber].Value; got != "01234567" {
		t.Errorf("registration_number = %q", got)
	}
	if got := e.Fields[model.FieldVATID].Value; got != "GB123456789" {
		t.Errorf("vat_id = %q", got)
	}
	if got := e.Fields[model.FieldCEO].Value; got != "Jane Smith" {
		t.Errorf("ceo = %q", got)
	}
}

func TestFrenchExtractor(t *testing.T) {
	text := `Mentions légales

Exemple SARL
12 rue de la Paix
75002 Paris

RCS Paris 123 456 789
TVA intracommunautaire : FR12 123456789
Gérant : Pierre Martin`

	e := CountryPass(text, Context{Host: "exemple.fr", Country: CountryFrance})
	if e == nil {
		t.Fatal("no extraction")
	}
	if got := e.Fields[model.FieldLegalName].Value; got != "Exemple SARL" {
		t.Errorf("legal_name = %q", got)
	}
	if got := e.Fields[model.FieldRegistrationNumber].Value; got != "123456789" {
		t.Errorf("registration_number = %q", got)
	}
	if got := e.Fields[model.FieldRegisterCourt].Value; got != "RCS Paris" {
		t.Errorf("register_court = %q", got)
	}
	if got := e.Fields[model.FieldCEO].Value; got != "Pierre Martin" {
		t.Errorf("ceo = %q", got)
	}
}

func TestDetectCountryPriority(t *testing.T) {
	cases := []struct {
		host, text, want string
	}{
		{"example.de", "", CountryGermany},
		{"example.co.uk", "", CountryUK},
		{"example.com", "Eingetragen beim Amtsgericht München", CountryGermany},
		{"example.com", "Registered with Companies House under 01234567", CountryUK},
		{"example.com", "", ""},
	}
	for _, c := range cases {
		if got := DetectCountry(c.host, c.text); got != c.want {
			t.Errorf("DetectCountry(%q, %q) = %q, want %q", c.host, c.text, got, c.want)
		}
	}
}

func TestFuzzyRatio(t *testing.T) {
	if r := FuzzyRatio("Beispiel GmbH", "beispiel"); r < 0.99 {
		t.Errorf("ratio = %v, want 1.0 for containment", r)
	}
	if r := FuzzyRatio("Beispiel-Firma GmbH", "beispiel-firma"); r < 0.6 {
		t.Errorf("ratio = %v, want >= 0.6", r)
	}
	if r := FuzzyRatio("Warenkorb", "beispiel"); r >= 0.6 {
		t.Errorf("ratio = %v, want < 0.6 for unrelated strings", r)
	}
}

func TestExtractEmailsObfuscation(t *testing.T) {
	emails := extractEmails("Kontakt: info (at) beispiel (dot) de und presse@beispiel.de, Logo: logo@2x.png")
	joined := strings.Join(emails, ",")
	if !strings.Contains(joined, "info@beispiel.de") || !strings.Contains(joined, "presse@beispiel.de") {
		t.Errorf("emails = %v", emails)
	}
	if strings.Contains(joined, "logo@2x.png") {
		t.Errorf("image filename leaked: %v", emails)
	}
}

func TestGenericPassFallback(t *testing.T) {
	text := "Acme Widgets LLC\n123 Main Street\n99501 Anchorage\nCEO: John Doe"
	e := GenericPass(text, Context{Host: "acmewidgets.com"})
	if e == nil {
		t.Fatal("no extraction")
	}
	if got := e.Fields[model.FieldLegalName].Value; got != "Acme Widgets LLC" {
		t.Errorf("legal_name = %q", got)
	}
	if got := e.Fields[model.FieldLegalName].Source; got != model.SourceGeneric {
		t.Errorf("source = %q, want generic", got)
	}
	if got := e.Fields[model.FieldCEO].Value; got != "John Doe" {
		t.Errorf("ceo = %q", got)
	}
}
