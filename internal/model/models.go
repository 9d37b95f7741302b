// Package model defines domain structs shared across the persistence layer
// and the crawl pipeline.
package model

// Status is the lifecycle state of a queued domain.
type Status string

const (
	StatusPending          Status = "PENDING"
	StatusProcessing       Status = "PROCESSING"
	StatusCompleted        Status = "COMPLETED"
	StatusFailedDNS        Status = "FAILED_DNS"
	StatusBlockedRobots    Status = "BLOCKED_ROBOTS"
	StatusBlacklisted      Status = "BLACKLISTED"
	StatusParked           Status = "PARKED"
	StatusFailedHTTP4xx    Status = "FAILED_HTTP_4XX"
	StatusFailedHTTP5xx    Status = "FAILED_HTTP_5XX"
	StatusFailedConnection Status = "FAILED_CONNECTION"
	StatusFailedExtraction Status = "FAILED_EXTRACTION"
)

// TerminalStatuses lists every status a lease may end in. PENDING and
// PROCESSING are the only non-terminal states.
var TerminalStatuses = []Status{
	StatusCompleted,
	StatusFailedDNS,
	StatusBlockedRobots,
	StatusBlacklisted,
	StatusParked,
	StatusFailedHTTP4xx,
	StatusFailedHTTP5xx,
	StatusFailedConnection,
	StatusFailedExtraction,
}

// IsTerminal reports whether s is a terminal queue status.
func (s Status) IsTerminal() bool {
	for _, t := range TerminalStatuses {
		if s == t {
			return true
		}
	}
	return false
}

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	return s == StatusPending || s == StatusProcessing || s.IsTerminal()
}

// QueueEntry is one row of the persistent domain queue.
type QueueEntry struct {
	Domain           string `json:"domain"`
	Source           string `json:"source"`
	Status           Status `json:"status"`
	Attempts         int    `json:"attempts"`
	LeaseExpiresAtNs int64  `json:"lease_expires_at_ns"`
	CreatedAtNs      int64  `json:"created_at_ns"`
	UpdatedAtNs      int64  `json:"updated_at_ns"`
}

// Extraction pass source tags, in descending merge priority.
const (
	SourceStructured = "structured"
	SourcePattern    = "pattern"
	SourceGeneric    = "generic"
	SourceRDAP       = "rdap"
)

// Fetch tiers recorded on a result.
const (
	TierDirect  = "direct"
	TierProxy   = "proxy"
	TierArchive = "archive"
)

// Field is a typed optional value carrying extraction provenance.
// A zero Field means the value is absent.
type Field struct {
	Value      string  `json:"value"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// IsSet reports whether the field holds a value.
func (f Field) IsSet() bool { return f.Value != "" }

// Meta carries provenance for multi-valued fields (phones, emails,
// directors), which share one source and confidence per set.
type Meta struct {
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// Canonical field keys. These name columns in the results table and keys in
// extraction maps; keep them in sync with the exporter column order.
const (
	FieldLegalName          = "legal_name"
	FieldLegalForm          = "legal_form"
	FieldRegistrationNumber = "registration_number"
	FieldRegisterCourt      = "register_court"
	FieldRegisterType       = "register_type"
	FieldVATID              = "vat_id"
	FieldStreet             = "street"
	FieldPostalCode         = "postal_code"
	FieldCity               = "city"
	FieldCountry            = "country"
	FieldCEO                = "ceo"
	FieldFax                = "fax"
)

// CrawlResult is the immutable outcome of one successful (or partially
// successful) lease. At most one row exists per domain; it is overwritten
// only on explicit re-crawl after Reset.
type CrawlResult struct {
	Domain         string `json:"domain"`
	RunID          string `json:"run_id"`
	LegalSourceURL string `json:"legal_source_url"`
	CrawledAtNs    int64  `json:"crawled_at_ns"`

	LegalName          Field `json:"legal_name"`
	LegalForm          Field `json:"legal_form"`
	RegistrationNumber Field `json:"registration_number"`
	RegisterCourt      Field `json:"register_court"`
	RegisterType       Field `json:"register_type"`
	VATID              Field `json:"vat_id"`

	Street     Field `json:"street"`
	PostalCode Field `json:"postal_code"`
	City       Field `json:"city"`
	Country    Field `json:"country"`

	CEO           Field    `json:"ceo"`
	Directors     []string `json:"directors"`
	DirectorsMeta Meta     `json:"directors_meta"`

	Emails     []string `json:"emails"`
	EmailsMeta Meta     `json:"emails_meta"`
	Phones     []string `json:"phones"`
	PhonesMeta Meta     `json:"phones_meta"`
	Fax        Field    `json:"fax"`

	RobotsAllowed bool   `json:"robots_allowed"`
	RobotsReason  string `json:"robots_reason"`

	FetchTier string `json:"fetch_tier"`
	PageHash  uint64 `json:"page_hash"`

	Confidence float64 `json:"confidence"`
}

// FieldByKey returns the named Field of the result. Unknown keys return a
// zero Field.
func (r *CrawlResult) FieldByKey(key string) Field {
	switch key {
	case FieldLegalName:
		return r.LegalName
	case FieldLegalForm:
		return r.LegalForm
	case FieldRegistrationNumber:
		return r.RegistrationNumber
	case FieldRegisterCourt:
		return r.RegisterCourt
	case FieldRegisterType:
		return r.RegisterType
	case FieldVATID:
		return r.VATID
	case FieldStreet:
		return r.Street
	case FieldPostalCode:
		return r.PostalCode
	case FieldCity:
		return r.City
	case FieldCountry:
		return r.Country
	case FieldCEO:
		return r.CEO
	case FieldFax:
		return r.Fax
	}
	return Field{}
}

// SetFieldByKey assigns the named Field of the result. Unknown keys are
// ignored.
func (r *CrawlResult) SetFieldByKey(key string, f Field) {
	switch key {
	case FieldLegalName:
		r.LegalName = f
	case FieldLegalForm:
		r.LegalForm = f
	case FieldRegistrationNumber:
		r.RegistrationNumber = f
	case FieldRegisterCourt:
		r.RegisterCourt = f
	case FieldRegisterType:
		r.RegisterType = f
	case FieldVATID:
		r.VATID = f
	case FieldStreet:
		r.Street = f
	case FieldPostalCode:
		r.PostalCode = f
	case FieldCity:
		r.City = f
	case FieldCountry:
		r.Country = f
	case FieldCEO:
		r.CEO = f
	case FieldFax:
		r.Fax = f
	}
}

// EntityFieldKeys is the canonical iteration order over single-valued
// result fields.
var EntityFieldKeys = []string{
	FieldLegalName,
	FieldLegalForm,
	FieldRegistrationNumber,
	FieldRegisterCourt,
	FieldRegisterType,
	FieldVATID,
	FieldStreet,
	FieldPostalCode,
	FieldCity,
	FieldCountry,
	FieldCEO,
	FieldFax,
}
