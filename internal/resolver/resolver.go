// Package resolver provides the default collab.Resolver implementation used
// to resolve upstream server hostnames at parse time (spec.md §4.6 step 4).
package resolver

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// DNS resolves hostnames to IPv4 addresses via a single upstream DNS server,
// using miekg/dns directly instead of the platform resolver so lookups are
// deterministic and don't depend on /etc/nsswitch.conf or cgo.
type DNS struct {
	// Server is the "host:port" of the upstream recursive resolver, e.g.
	// "1.1.1.1:53".
	Server  string
	Timeout time.Duration
}

// NewDNS returns a DNS resolver pointed at server with a 5s default timeout.
func NewDNS(server string) *DNS {
	return &DNS{Server: server, Timeout: 5 * time.Second}
}

// ResolveV4 issues a blocking A-record query for name and returns the first
// answer. If name is already a dotted-quad literal it is returned unchanged
// without a network round-trip.
func (r *DNS) ResolveV4(ctx context.Context, name string) (net.IP, error) {
	if ip := net.ParseIP(name); ip != nil && ip.To4() != nil {
		return ip, nil
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeA)
	m.RecursionDesired = true

	c := new(dns.Client)
	c.Timeout = r.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if until := time.Until(dl); until > 0 && until < c.Timeout {
			c.Timeout = until
		}
	}

	resp, _, err := c.Exchange(m, r.Server)
	if err != nil {
		return nil, fmt.Errorf("resolving %q via %s: %w", name, r.Server, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("resolving %q via %s: rcode %s", name, r.Server, dns.RcodeToString[resp.Rcode])
	}
	for _, ans := range resp.Answer {
		if a, ok := ans.(*dns.A); ok {
			return a.A, nil
		}
	}
	return nil, fmt.Errorf("resolving %q via %s: no A record in response", name, r.Server)
}
