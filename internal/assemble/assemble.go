// Package assemble merges the candidate extractions of one crawl into a
// single CrawlResult and computes its confidence.
package assemble

import (
	"time"

	"github.com/Firmograph/Firmograph/internal/extract"
	"github.com/Firmograph/Firmograph/internal/model"
)

// archiveMultiplier discounts values read from an archived snapshot; the
// page may be stale.
const archiveMultiplier = 0.9

// sourcePriority orders the passes for conflict resolution. Higher wins.
var sourcePriority = map[string]int{
	model.SourceStructured: 3,
	model.SourcePattern:    2,
	model.SourceGeneric:    1,
	model.SourceRDAP:       0,
}

// Input is everything one crawl hands to the assembler.
type Input struct {
	Domain         string
	RunID          string
	LegalSourceURL string
	CrawledAt      time.Time

	RobotsAllowed bool
	RobotsReason  string
	FetchTier     string
	PageHash      uint64

	// Extractions in pass execution order; the order is the final
	// tie-break between equal-priority, equal-confidence candidates.
	Extractions []*extract.Extraction
}

// Merge builds the result record. Per field, the highest-priority source
// wins; within the same priority the higher confidence, then the earlier
// pass. Archive-tier fetches carry a 0.9 confidence multiplier. The overall
// confidence is the mean of the present field confidences.
func Merge(in Input) *model.CrawlResult {
	res := &model.CrawlResult{
		Domain:         in.Domain,
		RunID:          in.RunID,
		LegalSourceURL: in.LegalSourceURL,
		CrawledAtNs:    in.CrawledAt.UnixNano(),
		RobotsAllowed:  in.RobotsAllowed,
		RobotsReason:   in.RobotsReason,
		FetchTier:      in.FetchTier,
		PageHash:       in.PageHash,
	}

	for _, e := range in.Extractions {
		if e == nil {
			continue
		}
		for key, cand := range e.Fields {
			if !cand.IsSet() {
				continue
			}
			if better(cand, res.FieldByKey(key)) {
				res.SetFieldByKey(key, cand)
			}
		}
		meta := model.Meta{Source: e.Source, Confidence: passConfidence(e.Source)}
		if len(e.Directors) > 0 && betterMeta(meta, res.DirectorsMeta, len(res.Directors)) {
			res.Directors = append([]string(nil), e.Directors...)
			res.DirectorsMeta = meta
		}
		if len(e.Emails) > 0 && betterMeta(meta, res.EmailsMeta, len(res.Emails)) {
			res.Emails = append([]string(nil), e.Emails...)
			res.EmailsMeta = meta
		}
		if len(e.Phones) > 0 && betterMeta(meta, res.PhonesMeta, len(res.Phones)) {
			res.Phones = append([]string(nil), e.Phones...)
			res.PhonesMeta = meta
		}
	}

	if in.FetchTier == model.TierArchive {
		applyArchiveDiscount(res)
	}
	res.Confidence = OverallConfidence(res)
	return res
}

// better reports whether cand should replace cur. An unset cur always
// loses; ties on priority and confidence keep cur (earlier pass wins).
func better(cand, cur model.Field) bool {
	if !cur.IsSet() {
		return true
	}
	pc, pk := sourcePriority[cand.Source], sourcePriority[cur.Source]
	if pc != pk {
		return pc > pk
	}
	return cand.Confidence > cur.Confidence
}

func betterMeta(cand, cur model.Meta, curLen int) bool {
	if curLen == 0 {
		return true
	}
	pc, pk := sourcePriority[cand.Source], sourcePriority[cur.Source]
	if pc != pk {
		return pc > pk
	}
	return cand.Confidence > cur.Confidence
}

func passConfidence(source string) float64 {
	switch source {
	case model.SourceStructured:
		return extract.ConfidenceStructured
	case model.SourcePattern:
		return extract.ConfidencePattern
	case model.SourceGeneric:
		return extract.ConfidenceGeneric
	}
	return 0.5
}

func applyArchiveDiscount(res *model.CrawlResult) {
	for _, key := range model.EntityFieldKeys {
		f := res.FieldByKey(key)
		if f.IsSet() {
			f.Confidence *= archiveMultiplier
			res.SetFieldByKey(key, f)
		}
	}
	if len(res.Directors) > 0 {
		res.DirectorsMeta.Confidence *= archiveMultiplier
	}
	if len(res.Emails) > 0 {
		res.EmailsMeta.Confidence *= archiveMultiplier
	}
	if len(res.Phones) > 0 {
		res.PhonesMeta.Confidence *= archiveMultiplier
	}
}

// OverallConfidence is the arithmetic mean over the fields that hold a
// value, the multi-valued sets counting once each.
func OverallConfidence(res *model.CrawlResult) float64 {
	var sum float64
	var n int
	for _, key := range model.EntityFieldKeys {
		if f := res.FieldByKey(key); f.IsSet() {
			sum += f.Confidence
			n++
		}
	}
	if len(res.Directors) > 0 {
		sum += res.DirectorsMeta.Confidence
		n++
	}
	if len(res.Emails) > 0 {
		sum += res.EmailsMeta.Confidence
		n++
	}
	if len(res.Phones) > 0 {
		sum += res.PhonesMeta.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
