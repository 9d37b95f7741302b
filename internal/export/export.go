// Package export projects stored crawl results onto the schema-strict
// tabular report. The output is a pure function of the result rows: two
// exports over the same store contents are byte-identical, only the
// timestamp in the filename differs.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Firmograph/Firmograph/internal/model"
)

// Export profiles.
const (
	ProfileStrict     = "strict"
	ProfilePermissive = "permissive"
)

// listSep joins multi-valued cells.
const listSep = "; "

// Columns is the deterministic header. The base columns come first, then
// the provenance companions for legal_name, legal_form, the address group,
// phones and emails.
var Columns = []string{
	"domain", "legal_name", "legal_form", "street", "postal_code", "city",
	"country", "register_court", "register_type", "registration_number",
	"vat_id", "ceo", "directors", "phones", "emails", "fax",
	"robots_allowed", "robots_reason", "legal_source_url", "crawled_at",
	"run_id", "confidence",
	"legal_name_source", "legal_name_confidence",
	"legal_form_source", "legal_form_confidence",
	"address_source", "address_confidence",
	"phones_source", "phones_confidence",
	"emails_source", "emails_confidence",
}

// Options selects the export profile and formats.
type Options struct {
	Profile string
	JSONL   bool
}

// Exportable reports whether res satisfies the strict profile's mandatory
// set: a legal name, a street and city, and at least one contact channel.
func Exportable(res *model.CrawlResult) bool {
	if !res.LegalName.IsSet() || !res.Street.IsSet() || !res.City.IsSet() {
		return false
	}
	return len(res.Emails) > 0 || len(res.Phones) > 0 || res.Fax.IsSet()
}

// WriteCSV writes the selected rows to w. Rows are emitted in the order
// given; callers wanting determinism pass them sorted (the store returns
// them ordered by domain).
func WriteCSV(w io.Writer, rows []model.CrawlResult, opts Options) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for i := range rows {
		res := &rows[i]
		if opts.Profile == ProfileStrict && !Exportable(res) {
			continue
		}
		if err := cw.Write(record(res)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSONL writes one JSON object per row, mirroring the CSV schema.
func WriteJSONL(w io.Writer, rows []model.CrawlResult, opts Options) error {
	enc := json.NewEncoder(w)
	for i := range rows {
		res := &rows[i]
		if opts.Profile == ProfileStrict && !Exportable(res) {
			continue
		}
		obj := make(map[string]string, len(Columns))
		rec := record(res)
		for j, col := range Columns {
			obj[col] = rec[j]
		}
		if err := enc.Encode(obj); err != nil {
			return err
		}
	}
	return nil
}

// Run writes the export files into dir and returns their paths. Filenames
// carry the wall-clock timestamp and the run id.
func Run(dir, runID string, rows []model.CrawlResult, opts Options, now time.Time) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export dir: %w", err)
	}
	stamp := now.UTC().Format("20060102T150405")
	base := fmt.Sprintf("results_%s_%s", stamp, runID)

	csvPath := filepath.Join(dir, base+".csv")
	f, err := os.Create(csvPath)
	if err != nil {
		return nil, err
	}
	if err := WriteCSV(f, rows, opts); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	paths := []string{csvPath}

	if opts.JSONL {
		jsonlPath := filepath.Join(dir, base+".jsonl")
		f, err := os.Create(jsonlPath)
		if err != nil {
			return paths, err
		}
		if err := WriteJSONL(f, rows, opts); err != nil {
			f.Close()
			return paths, err
		}
		if err := f.Close(); err != nil {
			return paths, err
		}
		paths = append(paths, jsonlPath)
	}
	return paths, nil
}

func record(res *model.CrawlResult) []string {
	addrSource, addrConf := addressProvenance(res)
	return []string{
		res.Domain,
		res.LegalName.Value,
		res.LegalForm.Value,
		res.Street.Value,
		res.PostalCode.Value,
		res.City.Value,
		res.Country.Value,
		res.RegisterCourt.Value,
		res.RegisterType.Value,
		res.RegistrationNumber.Value,
		res.VATID.Value,
		res.CEO.Value,
		strings.Join(res.Directors, listSep),
		strings.Join(res.Phones, listSep),
		strings.Join(res.Emails, listSep),
		res.Fax.Value,
		strconv.FormatBool(res.RobotsAllowed),
		res.RobotsReason,
		res.LegalSourceURL,
		formatTime(res.CrawledAtNs),
		res.RunID,
		formatConf(res.Confidence),
		res.LegalName.Source,
		fieldConf(res.LegalName),
		res.LegalForm.Source,
		fieldConf(res.LegalForm),
		addrSource,
		addrConf,
		metaSource(res.PhonesMeta, len(res.Phones)),
		metaConf(res.PhonesMeta, len(res.Phones)),
		metaSource(res.EmailsMeta, len(res.Emails)),
		metaConf(res.EmailsMeta, len(res.Emails)),
	}
}

// addressProvenance derives the companion columns of the address group from
// its components: the source of the first present component, and the lowest
// confidence among them.
func addressProvenance(res *model.CrawlResult) (string, string) {
	var source string
	conf := -1.0
	for _, f := range []model.Field{res.Street, res.PostalCode, res.City} {
		if !f.IsSet() {
			continue
		}
		if source == "" {
			source = f.Source
		}
		if conf < 0 || f.Confidence < conf {
			conf = f.Confidence
		}
	}
	if source == "" {
		return "", ""
	}
	return source, formatConf(conf)
}

func fieldConf(f model.Field) string {
	if !f.IsSet() {
		return ""
	}
	return formatConf(f.Confidence)
}

func metaSource(m model.Meta, n int) string {
	if n == 0 {
		return ""
	}
	return m.Source
}

func metaConf(m model.Meta, n int) string {
	if n == 0 {
		return ""
	}
	return formatConf(m.Confidence)
}

func formatConf(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatTime(ns int64) string {
	if ns == 0 {
		return ""
	}
	return time.Unix(0, ns).UTC().Format(time.RFC3339)
}
