package validate

import (
	"strings"
	"testing"

	"github.com/Firmograph/Firmograph/internal/extract"
	"github.com/Firmograph/Firmograph/internal/model"
)

func patternField(v string) model.Field {
	return model.Field{Value: v, Source: model.SourcePattern, Confidence: 0.8}
}

func TestApplyLegalName(t *testing.T) {
	cases := []struct {
		name    string
		host    string
		country string
		want    string
	}{
		{"Beispiel GmbH", "beispiel.de", extract.CountryGermany, "Beispiel GmbH"},
		// No form token, but the name matches the domain label.
		{"Beispiel Maschinenbau", "beispiel-maschinenbau.de", extract.CountryGermany, "Beispiel Maschinenbau"},
		// Long digit runs are registration ids, not names.
		{"Beispiel GmbH HRB 123456", "beispiel.de", extract.CountryGermany, ""},
		{"Kontakt · Menü · Warenkorb", "someshop.de", extract.CountryGermany, ""},
		{"AB", "ab.de", extract.CountryGermany, ""},
		// Unrelated to the domain and no form token.
		{"Unsere Produkte im Detail", "beispiel.de", extract.CountryGermany, ""},
	}
	for _, c := range cases {
		res := &model.CrawlResult{
			LegalName: patternField(c.name),
			Country:   patternField(c.country),
		}
		rep := Apply(res, Options{Host: c.host})
		if res.LegalName.Value != c.want {
			t.Errorf("legal_name %q: got %q, want %q (dropped: %v)", c.name, res.LegalName.Value, c.want, rep.Dropped)
		}
	}
}

func TestApplyLegalFormMembership(t *testing.T) {
	res := &model.CrawlResult{
		LegalForm: patternField("GmbH"),
		Country:   patternField(extract.CountryGermany),
	}
	if Apply(res, Options{}); !res.LegalForm.IsSet() {
		t.Error("GmbH must pass exact membership for Germany")
	}

	res = &model.CrawlResult{
		LegalForm: patternField("GmbHX"),
		Country:   patternField(extract.CountryGermany),
	}
	rep := Apply(res, Options{})
	if res.LegalForm.IsSet() {
		t.Error("unknown form must be dropped")
	}
	if rep.Dropped[model.FieldLegalForm] == "" {
		t.Error("drop must be reported")
	}
}

func TestApplyPostalCode(t *testing.T) {
	cases := []struct {
		code, country string
		keep          bool
	}{
		{"80333", extract.CountryGermany, true},
		{"8033", extract.CountryGermany, false},
		{"SW1A 2AA", extract.CountryUK, true},
		{"SW1A 2AA", extract.CountryGermany, false},
		// Unknown country: any country's pattern may vouch for the code.
		{"75002", "", true},
		{"999", "", false},
	}
	for _, c := range cases {
		res := &model.CrawlResult{
			PostalCode: patternField(c.code),
			Country:    patternField(c.country),
		}
		Apply(res, Options{})
		if res.PostalCode.IsSet() != c.keep {
			t.Errorf("postal %q country %q: kept=%v, want %v", c.code, c.country, res.PostalCode.IsSet(), c.keep)
		}
	}
}

func TestApplyStreetAndCity(t *testing.T) {
	res := &model.CrawlResult{
		Street: patternField("Musterweg"),
		City:   patternField("M"),
	}
	Apply(res, Options{})
	if res.Street.IsSet() {
		t.Error("street without a house number must be dropped")
	}
	if res.City.IsSet() {
		t.Error("single-rune city must be dropped")
	}

	res = &model.CrawlResult{
		Street: patternField("Musterweg 7"),
		City:   patternField("München"),
	}
	Apply(res, Options{})
	if !res.Street.IsSet() || !res.City.IsSet() {
		t.Errorf("valid address dropped: street=%v city=%v", res.Street, res.City)
	}
}

func TestApplyRegistrationNeedsAuthority(t *testing.T) {
	res := &model.CrawlResult{
		RegistrationNumber: patternField("HRB 12345"),
		Country:            patternField(extract.CountryGermany),
	}
	Apply(res, Options{})
	if res.RegistrationNumber.IsSet() {
		t.Error("registration number without authority must be dropped")
	}

	res = &model.CrawlResult{
		RegistrationNumber: patternField("HRB 12345"),
		RegisterType:       patternField("HRB"),
		Country:            patternField(extract.CountryGermany),
	}
	Apply(res, Options{})
	if !res.RegistrationNumber.IsSet() {
		t.Error("registration number with register type must be kept")
	}
}

func TestApplyPhones(t *testing.T) {
	res := &model.CrawlResult{
		Country:    patternField(extract.CountryGermany),
		Phones:     []string{"030 1234567", "12"},
		PhonesMeta: model.Meta{Source: model.SourcePattern, Confidence: 0.8},
	}
	rep := Apply(res, Options{})
	if len(res.Phones) != 1 {
		t.Fatalf("Phones = %v, want one valid number (dropped: %v)", res.Phones, rep.Dropped)
	}
	if !strings.HasPrefix(res.Phones[0], "+49") {
		t.Errorf("phone %q not normalised to international form", res.Phones[0])
	}
	if res.PhonesMeta.Source != model.SourcePattern {
		t.Error("meta must survive when entries remain")
	}

	res = &model.CrawlResult{
		Phones:     []string{"12"},
		PhonesMeta: model.Meta{Source: model.SourcePattern, Confidence: 0.8},
	}
	Apply(res, Options{})
	if len(res.Phones) != 0 || res.PhonesMeta.Source != "" {
		t.Errorf("meta must be cleared when every entry is rejected: %v %v", res.Phones, res.PhonesMeta)
	}
}

func TestApplyEmails(t *testing.T) {
	res := &model.CrawlResult{
		Emails: []string{"info@beispiel.de", "max.mustermann@beispiel.de", "not-an-email"},
	}
	Apply(res, Options{LegalPage: false})
	if len(res.Emails) != 1 || res.Emails[0] != "info@beispiel.de" {
		t.Errorf("Emails = %v, want only the role address", res.Emails)
	}

	res = &model.CrawlResult{
		Emails: []string{"max.mustermann@beispiel.de"},
	}
	Apply(res, Options{LegalPage: true})
	if len(res.Emails) != 1 {
		t.Errorf("personal address on a legal page must be kept: %v", res.Emails)
	}
}

func TestApplyEmailMXCheck(t *testing.T) {
	lookups := make(map[string]bool)
	res := &model.CrawlResult{
		Emails: []string{"info@beispiel.de", "info@no-mail.example"},
	}
	Apply(res, Options{
		MXCheck: true,
		LookupMX: func(domain string) bool {
			lookups[domain] = true
			return domain == "beispiel.de"
		},
	})
	if len(res.Emails) != 1 || res.Emails[0] != "info@beispiel.de" {
		t.Errorf("Emails = %v", res.Emails)
	}
	if !lookups["beispiel.de"] || !lookups["no-mail.example"] {
		t.Errorf("both domains must be looked up, got %v", lookups)
	}
}

func TestApplyPersons(t *testing.T) {
	res := &model.CrawlResult{
		CEO:           patternField("Dr. Max Mustermann"),
		Directors:     []string{"Dr. Max Mustermann", "Warenkorb", "Erika Beispiel"},
		DirectorsMeta: model.Meta{Source: model.SourcePattern, Confidence: 0.8},
	}
	Apply(res, Options{})
	if res.CEO.Value != "Max Mustermann" {
		t.Errorf("ceo = %q", res.CEO.Value)
	}
	if len(res.Directors) != 2 || res.Directors[0] != "Max Mustermann" || res.Directors[1] != "Erika Beispiel" {
		t.Errorf("Directors = %v", res.Directors)
	}
}

func TestApplyVAT(t *testing.T) {
	res := &model.CrawlResult{
		VATID:   patternField("DE123456789"),
		Country: patternField(extract.CountryGermany),
	}
	Apply(res, Options{})
	if !res.VATID.IsSet() {
		t.Error("valid German VAT id dropped")
	}

	res = &model.CrawlResult{
		VATID:   patternField("DE1234"),
		Country: patternField(extract.CountryGermany),
	}
	Apply(res, Options{})
	if res.VATID.IsSet() {
		t.Error("short VAT id must be dropped")
	}
}

func TestNormalizePhone(t *testing.T) {
	if got := NormalizePhone("+49 30 1234567", ""); got == "" {
		t.Error("international number must parse without a region")
	}
	if got := NormalizePhone("banana", "DE"); got != "" {
		t.Errorf("NormalizePhone(banana) = %q", got)
	}
}
