package assemble

import (
	"math"
	"testing"
	"time"

	"github.com/Firmograph/Firmograph/internal/extract"
	"github.com/Firmograph/Firmograph/internal/model"
)

func extraction(source string, conf float64, fields map[string]string) *extract.Extraction {
	e := &extract.Extraction{Source: source, Fields: make(map[string]model.Field)}
	for k, v := range fields {
		e.Fields[k] = model.Field{Value: v, Source: source, Confidence: conf}
	}
	return e
}

func TestMergePriority(t *testing.T) {
	structured := extraction(model.SourceStructured, 1.0, map[string]string{
		model.FieldLegalName: "Example GmbH",
	})
	pattern := extraction(model.SourcePattern, 0.8, map[string]string{
		model.FieldLegalName:  "Example Gesellschaft mbH",
		model.FieldPostalCode: "10115",
	})
	generic := extraction(model.SourceGeneric, 0.6, map[string]string{
		model.FieldLegalName: "example",
		model.FieldCity:      "Berlin",
	})

	res := Merge(Input{
		Domain:      "example.de",
		CrawledAt:   time.Now(),
		FetchTier:   model.TierDirect,
		Extractions: []*extract.Extraction{structured, pattern, generic},
	})

	if res.LegalName.Value != "Example GmbH" || res.LegalName.Source != model.SourceStructured {
		t.Errorf("legal_name = %+v, want structured value", res.LegalName)
	}
	if res.PostalCode.Value != "10115" {
		t.Errorf("postal_code = %+v, lower passes must fill gaps", res.PostalCode)
	}
	if res.City.Value != "Berlin" {
		t.Errorf("city = %+v", res.City)
	}
}

func TestMergeEqualPriorityTieBreak(t *testing.T) {
	first := extraction(model.SourcePattern, 0.8, map[string]string{
		model.FieldCity: "Berlin",
	})
	second := extraction(model.SourcePattern, 0.8, map[string]string{
		model.FieldCity: "Potsdam",
	})
	res := Merge(Input{Extractions: []*extract.Extraction{first, second}})
	if res.City.Value != "Berlin" {
		t.Errorf("city = %q, earlier pass must win the tie", res.City.Value)
	}

	weaker := extraction(model.SourcePattern, 0.7, map[string]string{
		model.FieldCity: "Berlin",
	})
	stronger := extraction(model.SourcePattern, 0.8, map[string]string{
		model.FieldCity: "Potsdam",
	})
	res = Merge(Input{Extractions: []*extract.Extraction{weaker, stronger}})
	if res.City.Value != "Potsdam" {
		t.Errorf("city = %q, higher confidence must win within a priority", res.City.Value)
	}
}

func TestMergeArchiveDiscount(t *testing.T) {
	pattern := extraction(model.SourcePattern, 0.8, map[string]string{
		model.FieldLegalName: "Example GmbH",
	})
	pattern.Phones = []string{"+49 30 1234567"}

	res := Merge(Input{
		FetchTier:   model.TierArchive,
		Extractions: []*extract.Extraction{pattern},
	})
	if math.Abs(res.LegalName.Confidence-0.72) > 1e-9 {
		t.Errorf("legal_name confidence = %v, want 0.8*0.9", res.LegalName.Confidence)
	}
	if math.Abs(res.PhonesMeta.Confidence-0.72) > 1e-9 {
		t.Errorf("phones confidence = %v, want 0.8*0.9", res.PhonesMeta.Confidence)
	}
}

func TestMergeOverallConfidence(t *testing.T) {
	structured := extraction(model.SourceStructured, 1.0, map[string]string{
		model.FieldLegalName: "Example GmbH",
	})
	generic := extraction(model.SourceGeneric, 0.6, map[string]string{
		model.FieldCity: "Berlin",
	})
	res := Merge(Input{Extractions: []*extract.Extraction{structured, generic}})
	if math.Abs(res.Confidence-0.8) > 1e-9 {
		t.Errorf("confidence = %v, want mean of 1.0 and 0.6", res.Confidence)
	}

	empty := Merge(Input{})
	if empty.Confidence != 0 {
		t.Errorf("empty record confidence = %v", empty.Confidence)
	}
}

func TestMergeMultiValueProvenance(t *testing.T) {
	structured := &extract.Extraction{
		Source: model.SourceStructured,
		Fields: map[string]model.Field{},
		Emails: []string{"info@example.de"},
	}
	pattern := &extract.Extraction{
		Source: model.SourcePattern,
		Fields: map[string]model.Field{},
		Emails: []string{"kontakt@example.de"},
		Phones: []string{"+49 30 1234567"},
	}
	res := Merge(Input{Extractions: []*extract.Extraction{structured, pattern}})
	if len(res.Emails) != 1 || res.Emails[0] != "info@example.de" {
		t.Errorf("Emails = %v, structured set must win", res.Emails)
	}
	if res.EmailsMeta.Source != model.SourceStructured || res.EmailsMeta.Confidence != 1.0 {
		t.Errorf("EmailsMeta = %+v", res.EmailsMeta)
	}
	if res.PhonesMeta.Source != model.SourcePattern {
		t.Errorf("PhonesMeta = %+v", res.PhonesMeta)
	}
}

func TestMergeCarriesCrawlMetadata(t *testing.T) {
	at := time.Unix(1700000000, 0)
	res := Merge(Input{
		Domain:         "example.de",
		RunID:          "run-1",
		LegalSourceURL: "https://example.de/impressum",
		CrawledAt:      at,
		RobotsAllowed:  true,
		FetchTier:      model.TierProxy,
		PageHash:       42,
	})
	if res.Domain != "example.de" || res.RunID != "run-1" {
		t.Errorf("identity fields lost: %+v", res)
	}
	if res.CrawledAtNs != at.UnixNano() || res.PageHash != 42 || res.FetchTier != model.TierProxy {
		t.Errorf("crawl metadata lost: %+v", res)
	}
}
