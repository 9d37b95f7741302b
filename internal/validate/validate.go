// Package validate applies the per-field validation rules to a merged crawl
// result. Failing fields are dropped, never coerced; the caller decides what
// a record without a validated legal name means for the queue status.
package validate

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/Firmograph/Firmograph/internal/extract"
	"github.com/Firmograph/Firmograph/internal/model"
	"github.com/Firmograph/Firmograph/internal/netutil"
)

// Options carries the per-record validation inputs.
type Options struct {
	// Host is the crawled domain; the legal name may match its label
	// instead of carrying a form token.
	Host string
	// LegalPage relaxes the personal-address email exclusion: on an
	// Impressum page a firstname.lastname address is a legitimate contact.
	LegalPage bool
	// MXCheck enables mail-domain verification through LookupMX.
	MXCheck bool
	// LookupMX reports whether the mail domain has MX records. Ignored
	// when MXCheck is false; a nil func skips the check.
	LookupMX func(domain string) bool
}

// Report lists the fields dropped during validation, keyed by field name,
// with a short reason. Multi-valued fields report the rejected entries.
type Report struct {
	Dropped map[string]string
}

func (r *Report) drop(field, reason string) {
	if r.Dropped == nil {
		r.Dropped = make(map[string]string)
	}
	r.Dropped[field] = reason
}

// phoneRegions maps result country names to phone-parsing regions.
var phoneRegions = map[string]string{
	extract.CountryGermany:     "DE",
	extract.CountryAustria:     "AT",
	extract.CountrySwitzerland: "CH",
	extract.CountryUK:          "GB",
	extract.CountryFrance:      "FR",
	extract.CountryItaly:       "IT",
	extract.CountrySpain:       "ES",
}

var (
	digitRunRe = regexp.MustCompile(`\d{5,}`)
	anyDigitRe = regexp.MustCompile(`\d`)
	emailRe    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	// personalRe matches firstname.lastname-style mailbox names.
	personalRe = regexp.MustCompile(`^[a-z]+\.[a-z]+@`)
)

// Apply validates every present field of res in place, dropping the ones
// that fail. The country field is kept as-is; all country-specific tables
// key off its validated value.
func Apply(res *model.CrawlResult, opts Options) Report {
	var rep Report
	country := res.Country.Value

	if res.LegalName.IsSet() {
		if reason := checkLegalName(res.LegalName.Value, country, opts.Host); reason != "" {
			rep.drop(model.FieldLegalName, reason)
			res.LegalName = model.Field{}
		}
	}
	if res.LegalForm.IsSet() && !formKnown(res.LegalForm.Value, country) {
		rep.drop(model.FieldLegalForm, "unknown legal form")
		res.LegalForm = model.Field{}
	}
	if res.PostalCode.IsSet() && !postalValid(res.PostalCode.Value, country) {
		rep.drop(model.FieldPostalCode, "postal code does not match country pattern")
		res.PostalCode = model.Field{}
	}
	if res.Street.IsSet() {
		s := res.Street.Value
		if !anyDigitRe.MatchString(s) || extract.OnDenylist(s) {
			rep.drop(model.FieldStreet, "not a street line")
			res.Street = model.Field{}
		}
	}
	if res.City.IsSet() {
		c := res.City.Value
		if len([]rune(c)) < 2 || digitRunRe.MatchString(c) || extract.OnDenylist(c) {
			rep.drop(model.FieldCity, "not a city token")
			res.City = model.Field{}
		}
	}
	if res.VATID.IsSet() && !vatValid(res.VATID.Value, country) {
		rep.drop(model.FieldVATID, "vat id does not match country pattern")
		res.VATID = model.Field{}
	}

	// A registration number without a register authority is indistinguishable
	// from an arbitrary id; both the court and the type count as authority.
	if res.RegistrationNumber.IsSet() && !res.RegisterCourt.IsSet() && !res.RegisterType.IsSet() {
		rep.drop(model.FieldRegistrationNumber, "no register authority")
		res.RegistrationNumber = model.Field{}
	}

	if res.CEO.IsSet() {
		if name := extract.CleanPersonName(res.CEO.Value); name == "" {
			rep.drop(model.FieldCEO, "not a person name")
			res.CEO = model.Field{}
		} else {
			res.CEO.Value = name
		}
	}
	if len(res.Directors) > 0 {
		var kept, rejected []string
		for _, d := range res.Directors {
			if name := extract.CleanPersonName(d); name != "" {
				kept = append(kept, name)
			} else {
				rejected = append(rejected, d)
			}
		}
		res.Directors = kept
		if len(rejected) > 0 {
			rep.drop("directors", "rejected: "+strings.Join(rejected, ", "))
		}
		if len(kept) == 0 {
			res.DirectorsMeta = model.Meta{}
		}
	}

	region := phoneRegions[country]
	if len(res.Phones) > 0 {
		var kept, rejected []string
		for _, p := range res.Phones {
			if n := NormalizePhone(p, region); n != "" {
				kept = append(kept, n)
			} else {
				rejected = append(rejected, p)
			}
		}
		res.Phones = dedupe(kept)
		if len(rejected) > 0 {
			rep.drop("phones", "rejected: "+strings.Join(rejected, ", "))
		}
		if len(res.Phones) == 0 {
			res.PhonesMeta = model.Meta{}
		}
	}
	if res.Fax.IsSet() {
		if n := NormalizePhone(res.Fax.Value, region); n != "" {
			res.Fax.Value = n
		} else {
			rep.drop(model.FieldFax, "invalid phone number")
			res.Fax = model.Field{}
		}
	}

	if len(res.Emails) > 0 {
		var kept, rejected []string
		for _, e := range res.Emails {
			if reason := checkEmail(e, opts); reason == "" {
				kept = append(kept, strings.ToLower(e))
			} else {
				rejected = append(rejected, e)
			}
		}
		res.Emails = dedupe(kept)
		if len(rejected) > 0 {
			rep.drop("emails", "rejected: "+strings.Join(rejected, ", "))
		}
		if len(res.Emails) == 0 {
			res.EmailsMeta = model.Meta{}
		}
	}

	return rep
}

func checkLegalName(name, country, host string) string {
	n := len([]rune(name))
	if n < 3 || n > 120 {
		return "length out of range"
	}
	if digitRunRe.MatchString(name) {
		return "contains a long digit run"
	}
	if extract.OnDenylist(name) {
		return "navigation label"
	}
	if formKnown(name, country) {
		return ""
	}
	if extract.FindLegalForm(name, country) != "" || extract.FindLegalForm(name, "") != "" {
		return ""
	}
	if extract.FuzzyRatio(name, netutil.SecondLevelLabel(host)) >= 0.6 {
		return ""
	}
	return "no form token and no domain match"
}

// formKnown requires exact membership, unlike the extractor's substring
// search.
func formKnown(form, country string) bool {
	for _, f := range extract.KnownLegalForms[country] {
		if f == form {
			return true
		}
	}
	if country == "" {
		return false
	}
	for _, f := range extract.KnownLegalForms[""] {
		if f == form {
			return true
		}
	}
	return false
}

func postalValid(code, country string) bool {
	code = strings.TrimSpace(code)
	if re, ok := extract.PostalRes[country]; ok {
		return re.FindString(code) == code
	}
	// Country unknown: accept any plausible code and let the consumer infer
	// the jurisdiction downstream.
	for _, re := range extract.PostalRes {
		if re.FindString(code) == code {
			return true
		}
	}
	return false
}

func vatValid(vat, country string) bool {
	vat = strings.TrimSpace(vat)
	if re, ok := extract.VATRes[country]; ok {
		return re.FindString(vat) == vat
	}
	for _, re := range extract.VATRes {
		if re.FindString(vat) == vat {
			return true
		}
	}
	return false
}

// NormalizePhone parses raw in the given region and returns the
// international representation, or "" when the number is invalid.
func NormalizePhone(raw, region string) string {
	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return ""
	}
	return phonenumbers.Format(num, phonenumbers.INTERNATIONAL)
}

func checkEmail(email string, opts Options) string {
	low := strings.ToLower(strings.TrimSpace(email))
	if !emailRe.MatchString(low) {
		return "malformed"
	}
	if !opts.LegalPage && personalRe.MatchString(low) {
		return "personal address"
	}
	if opts.MXCheck && opts.LookupMX != nil {
		domain := low[strings.LastIndex(low, "@")+1:]
		if !opts.LookupMX(domain) {
			return "no MX records"
		}
	}
	return ""
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
