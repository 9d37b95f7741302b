package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Firmograph/Firmograph/internal/model"
)

const rdapResponse = `{
  "objectClassName": "domain",
  "ldhName": "beispiel.de",
  "entities": [
    {
      "roles": ["registrar"],
      "handle": "REG-123",
      "vcardArray": ["vcard", [["fn", {}, "text", "Example Registrar GmbH"]]]
    },
    {
      "roles": ["registrant"],
      "vcardArray": ["vcard", [
        ["fn", {}, "text", "Max Mustermann"],
        ["org", {}, "text", "Beispiel GmbH"],
        ["adr", {}, "text", ["", "", "Musterweg 7", "München", "", "80333", "DE"]]
      ]]
    }
  ]
}`

func TestLookupParsesRegistrant(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/rdap+json")
		w.Write([]byte(rdapResponse))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	reg, err := c.Lookup(context.Background(), "beispiel.de")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if path != "/domain/beispiel.de" {
		t.Errorf("path = %q", path)
	}
	if reg.RegistrantOrg != "Beispiel GmbH" || reg.RegistrantName != "Max Mustermann" {
		t.Errorf("registrant = %+v", reg)
	}
	if reg.RegistrantCountry != "DE" {
		t.Errorf("country = %q", reg.RegistrantCountry)
	}
	if reg.Registrar != "Example Registrar GmbH" {
		t.Errorf("registrar = %q", reg.Registrar)
	}
}

func TestLookupNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	reg, err := c.Lookup(context.Background(), "unregistered.de")
	if err != nil {
		t.Fatalf("404 must not be an error: %v", err)
	}
	if reg != nil {
		t.Errorf("reg = %+v, want nil", reg)
	}
}

func TestLookupCaches(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(rdapResponse))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	for i := 0; i < 3; i++ {
		if _, err := c.Lookup(context.Background(), "beispiel.de"); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestApplyFillsGapsOnly(t *testing.T) {
	reg := &Registration{RegistrantOrg: "Beispiel GmbH", RegistrantCountry: "DE"}

	res := &model.CrawlResult{}
	if !Apply(res, reg) {
		t.Fatal("Apply must report a change")
	}
	if res.LegalName.Value != "Beispiel GmbH" || res.LegalName.Source != model.SourceRDAP {
		t.Errorf("legal_name = %+v", res.LegalName)
	}
	if res.LegalName.Confidence != ConfidenceRDAP {
		t.Errorf("confidence = %v", res.LegalName.Confidence)
	}
	if res.Country.Value != "DE" {
		t.Errorf("country = %+v", res.Country)
	}

	res = &model.CrawlResult{
		LegalName: model.Field{Value: "Extracted GmbH", Source: model.SourcePattern, Confidence: 0.8},
		Country:   model.Field{Value: "Germany", Source: model.SourcePattern, Confidence: 0.8},
	}
	if Apply(res, reg) {
		t.Error("existing values must not be overridden")
	}
	if res.LegalName.Value != "Extracted GmbH" {
		t.Errorf("legal_name = %+v", res.LegalName)
	}
}
