// Package enrich adds registration-registry data to otherwise sparse crawl
// results. RDAP is the ICANN-mandated successor of WHOIS; rdap.org proxies
// the per-TLD bootstrap. Enrichment is a separate, optional post-pipeline
// step and only ever fills gaps, at a low fixed confidence.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Firmograph/Firmograph/internal/model"
)

const defaultBaseURL = "https://rdap.org"

// ConfidenceRDAP is the fixed confidence of registry-sourced values.
const ConfidenceRDAP = 0.5

// Registration is the subset of an RDAP domain record the pipeline uses.
type Registration struct {
	RegistrantName    string
	RegistrantOrg     string
	RegistrantCountry string
	Registrar         string
}

// Client queries RDAP with a per-domain cache. Not safe for concurrent use;
// enrichment runs single-threaded after the crawl.
type Client struct {
	client  *http.Client
	baseURL string
	cache   map[string]*Registration
}

// NewClient builds a Client. A nil httpClient gets a 10s-timeout default;
// an empty baseURL falls back to rdap.org.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		client:  httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		cache:   make(map[string]*Registration),
	}
}

// rdapDomain mirrors the parts of the RDAP JSON schema we read.
type rdapDomain struct {
	Entities []rdapEntity `json:"entities"`
}

type rdapEntity struct {
	Roles      []string        `json:"roles"`
	Handle     string          `json:"handle"`
	VCardArray json.RawMessage `json:"vcardArray"`
}

// Lookup fetches the registration record for domain. A 404 returns
// (nil, nil): absence from the registry is not an error.
func (c *Client) Lookup(ctx context.Context, domain string) (*Registration, error) {
	if reg, ok := c.cache[domain]; ok {
		return reg, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/domain/"+domain, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/rdap+json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rdap lookup %s: %w", domain, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		c.cache[domain] = nil
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rdap lookup %s: status %d", domain, resp.StatusCode)
	}
	var doc rdapDomain
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("rdap lookup %s: %w", domain, err)
	}
	reg := parseRegistration(&doc)
	c.cache[domain] = reg
	return reg, nil
}

func parseRegistration(doc *rdapDomain) *Registration {
	reg := &Registration{}
	for _, entity := range doc.Entities {
		for _, role := range entity.Roles {
			switch role {
			case "registrar":
				if fn := vcardValue(entity.VCardArray, "fn"); fn != "" {
					reg.Registrar = fn
				} else {
					reg.Registrar = entity.Handle
				}
			case "registrant":
				reg.RegistrantName = vcardValue(entity.VCardArray, "fn")
				reg.RegistrantOrg = vcardValue(entity.VCardArray, "org")
				reg.RegistrantCountry = vcardCountry(entity.VCardArray)
			}
		}
	}
	return reg
}

// vcardValue digs the named property out of a jCard ["vcard", [[name, {},
// type, value], ...]] structure.
func vcardValue(raw json.RawMessage, name string) string {
	for _, item := range vcardItems(raw) {
		if len(item) < 4 {
			continue
		}
		if n, _ := item[0].(string); n != name {
			continue
		}
		if v, ok := item[3].(string); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// vcardCountry reads the last component of the structured adr value.
func vcardCountry(raw json.RawMessage) string {
	for _, item := range vcardItems(raw) {
		if len(item) < 4 {
			continue
		}
		if n, _ := item[0].(string); n != "adr" {
			continue
		}
		parts, ok := item[3].([]any)
		if !ok || len(parts) == 0 {
			continue
		}
		if v, ok := parts[len(parts)-1].(string); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func vcardItems(raw json.RawMessage) [][]any {
	var vcard []any
	if err := json.Unmarshal(raw, &vcard); err != nil || len(vcard) < 2 {
		return nil
	}
	entries, ok := vcard[1].([]any)
	if !ok {
		return nil
	}
	var items [][]any
	for _, e := range entries {
		if item, ok := e.([]any); ok {
			items = append(items, item)
		}
	}
	return items
}

// Apply fills empty legal_name and country fields of res from the registry
// record. Existing values, whatever their source, are never overridden.
func Apply(res *model.CrawlResult, reg *Registration) bool {
	if reg == nil {
		return false
	}
	changed := false
	if !res.LegalName.IsSet() {
		name := reg.RegistrantOrg
		if name == "" {
			name = reg.RegistrantName
		}
		if name != "" {
			res.LegalName = model.Field{Value: name, Source: model.SourceRDAP, Confidence: ConfidenceRDAP}
			changed = true
		}
	}
	if !res.Country.IsSet() && reg.RegistrantCountry != "" {
		res.Country = model.Field{Value: reg.RegistrantCountry, Source: model.SourceRDAP, Confidence: ConfidenceRDAP}
		changed = true
	}
	return changed
}
