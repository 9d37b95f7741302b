// Package extract runs the multi-pass legal-entity extraction: structured
// annotations first, then country-specific pattern sets, then generic
// heuristics. Passes are pure functions over isolated page text; they carry
// no crawler state.
package extract

import (
	"github.com/Firmograph/Firmograph/internal/config"
	"github.com/Firmograph/Firmograph/internal/model"
)

// Base confidences per pass, before validation and archive adjustment.
const (
	ConfidenceStructured = 1.0
	ConfidencePattern    = 0.8
	ConfidenceGeneric    = 0.6
)

// Extraction is the candidate output of one pass.
type Extraction struct {
	Source    string
	Fields    map[string]model.Field
	Directors []string
	Emails    []string
	Phones    []string
}

func newExtraction(source string) *Extraction {
	return &Extraction{Source: source, Fields: make(map[string]model.Field)}
}

// set records a candidate value under the pass's source tag.
func (e *Extraction) set(key, value string, confidence float64) {
	if value == "" {
		return
	}
	e.Fields[key] = model.Field{Value: value, Source: e.Source, Confidence: confidence}
}

// Empty reports whether the pass found nothing at all.
func (e *Extraction) Empty() bool {
	return e == nil || (len(e.Fields) == 0 && len(e.Directors) == 0 && len(e.Emails) == 0 && len(e.Phones) == 0)
}

// Context carries the page-independent inputs of a pass.
type Context struct {
	Host    string
	Country string
	Packs   []config.CountryPack
}

// CountryPass dispatches to the pattern set for ctx.Country. Returns nil
// when no country-specific extractor matches and no pack covers it.
func CountryPass(text string, ctx Context) *Extraction {
	switch ctx.Country {
	case CountryGermany, CountryAustria, CountrySwitzerland:
		return extractGerman(text, ctx)
	case CountryUK:
		return extractUK(text, ctx)
	case CountryFrance:
		return extractFrench(text, ctx)
	case CountryItaly:
		return extractItalian(text, ctx)
	case CountrySpain:
		return extractSpanish(text, ctx)
	}
	for _, pack := range ctx.Packs {
		if pack.Country == ctx.Country {
			return extractPack(text, ctx, pack)
		}
	}
	return nil
}
