package validate

import (
	"time"

	"github.com/miekg/dns"
)

// NewMXLookup returns a LookupMX func querying the given DNS servers
// (host:port). Lookup failures count as "has MX": a transient resolver
// problem must not drop otherwise valid addresses.
func NewMXLookup(servers []string, timeout time.Duration) func(domain string) bool {
	client := &dns.Client{Timeout: timeout}
	return func(domain string) bool {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(domain), dns.TypeMX)
		msg.RecursionDesired = true
		for _, server := range servers {
			resp, _, err := client.Exchange(msg, server)
			if err != nil {
				continue
			}
			if resp.Rcode == dns.RcodeNameError {
				return false
			}
			if resp.Rcode != dns.RcodeSuccess {
				continue
			}
			for _, rr := range resp.Answer {
				if _, ok := rr.(*dns.MX); ok {
					return true
				}
			}
			return false
		}
		return true
	}
}
