package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// DNS failure classes. NXDomain and ServFail are permanent for the domain;
// a timeout is classified as a connection failure.
var (
	ErrNXDomain   = errors.New("dns: nxdomain")
	ErrServFail   = errors.New("dns: servfail")
	ErrDNSTimeout = errors.New("dns: timeout")
)

// Resolver answers existence queries (any A or AAAA record) against a fixed
// set of upstream servers.
type Resolver struct {
	client  *dns.Client
	servers []string
}

// NewResolver builds a resolver querying the given host:port servers.
func NewResolver(servers []string, timeout time.Duration) *Resolver {
	return &Resolver{
		client:  &dns.Client{Timeout: timeout},
		servers: servers,
	}
}

// Resolve reports whether host has at least one A or AAAA record. Each
// upstream is tried twice before the last error is returned.
func (r *Resolver) Resolve(ctx context.Context, host string) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		for _, server := range r.servers {
			found, err := r.query(ctx, host, server)
			if err == nil && found {
				return nil
			}
			if err == nil {
				// NOERROR with an empty answer section: no address records.
				lastErr = ErrNXDomain
				continue
			}
			lastErr = err
			if errors.Is(err, ErrNXDomain) {
				// Authoritative negative; retrying other servers is pointless.
				return err
			}
		}
	}
	if lastErr == nil {
		lastErr = ErrDNSTimeout
	}
	return lastErr
}

func (r *Resolver) query(ctx context.Context, host, server string) (bool, error) {
	fqdn := dns.Fqdn(host)
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		m := new(dns.Msg)
		m.SetQuestion(fqdn, qtype)
		m.RecursionDesired = true

		resp, _, err := r.client.ExchangeContext(ctx, m, server)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				return false, ErrDNSTimeout
			}
			if ctx.Err() != nil {
				return false, ErrDNSTimeout
			}
			return false, fmt.Errorf("dns exchange %s: %w", server, err)
		}
		switch resp.Rcode {
		case dns.RcodeSuccess:
			if len(resp.Answer) > 0 {
				return true, nil
			}
		case dns.RcodeNameError:
			return false, ErrNXDomain
		case dns.RcodeServerFailure:
			return false, ErrServFail
		}
	}
	return false, nil
}
