package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Firmograph/Firmograph/internal/model"
	"github.com/Firmograph/Firmograph/internal/netutil"
)

// provenance is the serialized per-field source/confidence map stored in
// results.provenance_json. Multi-valued sets use the keys "phones", "emails"
// and "directors".
type provenance map[string]model.Meta

func encodeProvenance(r *model.CrawlResult) (string, error) {
	p := provenance{}
	for _, key := range model.EntityFieldKeys {
		f := r.FieldByKey(key)
		if f.IsSet() {
			p[key] = model.Meta{Source: f.Source, Confidence: f.Confidence}
		}
	}
	if len(r.Phones) > 0 {
		p["phones"] = r.PhonesMeta
	}
	if len(r.Emails) > 0 {
		p["emails"] = r.EmailsMeta
	}
	if len(r.Directors) > 0 {
		p["directors"] = r.DirectorsMeta
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode provenance: %w", err)
	}
	return string(raw), nil
}

func applyProvenance(r *model.CrawlResult, raw string) error {
	if raw == "" || raw == "{}" {
		return nil
	}
	var p provenance
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return fmt.Errorf("decode provenance: %w", err)
	}
	for _, key := range model.EntityFieldKeys {
		f := r.FieldByKey(key)
		if !f.IsSet() {
			continue
		}
		if m, ok := p[key]; ok {
			f.Source = m.Source
			f.Confidence = m.Confidence
			r.SetFieldByKey(key, f)
		}
	}
	if m, ok := p["phones"]; ok {
		r.PhonesMeta = m
	}
	if m, ok := p["emails"]; ok {
		r.EmailsMeta = m
	}
	if m, ok := p["directors"]; ok {
		r.DirectorsMeta = m
	}
	return nil
}

func marshalList(xs []string) string {
	if xs == nil {
		xs = []string{}
	}
	raw, _ := json.Marshal(xs)
	return string(raw)
}

func unmarshalList(raw string) []string {
	var xs []string
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &xs)
	}
	if len(xs) == 0 {
		return nil
	}
	return xs
}

func upsertResult(tx *sql.Tx, domain string, r *model.CrawlResult) error {
	prov, err := encodeProvenance(r)
	if err != nil {
		return err
	}
	_, err = tx.Exec(
		`INSERT INTO results (
			domain, run_id, legal_source_url, crawled_at_ns,
			legal_name, legal_form, registration_number, register_court, register_type, vat_id,
			street, postal_code, city, country,
			ceo, fax, directors_json, emails_json, phones_json,
			robots_allowed, robots_reason, fetch_tier, page_hash, confidence, provenance_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET
			run_id = excluded.run_id,
			legal_source_url = excluded.legal_source_url,
			crawled_at_ns = excluded.crawled_at_ns,
			legal_name = excluded.legal_name,
			legal_form = excluded.legal_form,
			registration_number = excluded.registration_number,
			register_court = excluded.register_court,
			register_type = excluded.register_type,
			vat_id = excluded.vat_id,
			street = excluded.street,
			postal_code = excluded.postal_code,
			city = excluded.city,
			country = excluded.country,
			ceo = excluded.ceo,
			fax = excluded.fax,
			directors_json = excluded.directors_json,
			emails_json = excluded.emails_json,
			phones_json = excluded.phones_json,
			robots_allowed = excluded.robots_allowed,
			robots_reason = excluded.robots_reason,
			fetch_tier = excluded.fetch_tier,
			page_hash = excluded.page_hash,
			confidence = excluded.confidence,
			provenance_json = excluded.provenance_json`,
		domain, r.RunID, r.LegalSourceURL, r.CrawledAtNs,
		r.LegalName.Value, r.LegalForm.Value, r.RegistrationNumber.Value,
		r.RegisterCourt.Value, r.RegisterType.Value, r.VATID.Value,
		r.Street.Value, r.PostalCode.Value, r.City.Value, r.Country.Value,
		r.CEO.Value, r.Fax.Value,
		marshalList(r.Directors), marshalList(r.Emails), marshalList(r.Phones),
		r.RobotsAllowed, r.RobotsReason, r.FetchTier, int64(r.PageHash), r.Confidence, prov)
	if err != nil {
		return storageErr("upsert result", err)
	}
	return nil
}

const resultColumns = `domain, run_id, legal_source_url, crawled_at_ns,
	legal_name, legal_form, registration_number, register_court, register_type, vat_id,
	street, postal_code, city, country,
	ceo, fax, directors_json, emails_json, phones_json,
	robots_allowed, robots_reason, fetch_tier, page_hash, confidence, provenance_json`

func scanResult(scan func(...any) error) (*model.CrawlResult, error) {
	var r model.CrawlResult
	var directors, emails, phones, prov string
	var pageHash int64
	err := scan(
		&r.Domain, &r.RunID, &r.LegalSourceURL, &r.CrawledAtNs,
		&r.LegalName.Value, &r.LegalForm.Value, &r.RegistrationNumber.Value,
		&r.RegisterCourt.Value, &r.RegisterType.Value, &r.VATID.Value,
		&r.Street.Value, &r.PostalCode.Value, &r.City.Value, &r.Country.Value,
		&r.CEO.Value, &r.Fax.Value, &directors, &emails, &phones,
		&r.RobotsAllowed, &r.RobotsReason, &r.FetchTier, &pageHash, &r.Confidence, &prov)
	if err != nil {
		return nil, err
	}
	r.Directors = unmarshalList(directors)
	r.Emails = unmarshalList(emails)
	r.Phones = unmarshalList(phones)
	r.PageHash = uint64(pageHash)
	if err := applyProvenance(&r, prov); err != nil {
		return nil, err
	}
	return &r, nil
}

// Result returns the stored crawl result for domain.
func (s *Store) Result(domain string) (*model.CrawlResult, error) {
	d := netutil.NormalizeHost(domain)
	row := s.db.QueryRow(`SELECT `+resultColumns+` FROM results WHERE domain = ?`, d)
	r, err := scanResult(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("result %s: %w", d, ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("result", err)
	}
	return r, nil
}

// Results returns all stored results ordered by domain. Export determinism
// depends on this ordering.
func (s *Store) Results() ([]model.CrawlResult, error) {
	rows, err := s.db.Query(`SELECT ` + resultColumns + ` FROM results ORDER BY domain ASC`)
	if err != nil {
		return nil, storageErr("results", err)
	}
	defer rows.Close()
	var out []model.CrawlResult
	for rows.Next() {
		r, err := scanResult(rows.Scan)
		if err != nil {
			return nil, storageErr("results scan", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("results rows", err)
	}
	return out, nil
}
