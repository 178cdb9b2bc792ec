package component

import (
	"fmt"
	"net"
	"strings"

	"github.com/miekg/dns"
)

// Resolver abstracts the DNS lookups needed for reverse resolution and
// bot forward-confirmation, so tests can fake them.
type Resolver interface {
	// LookupAddr returns the PTR names for an IP, dot-terminated.
	LookupAddr(ip string) ([]string, error)
	// LookupHost returns the A/AAAA addresses for a hostname.
	LookupHost(host string) ([]string, error)
}

// DNSResolver queries a configured upstream directly.
type DNSResolver struct {
	client   *dns.Client
	upstream string
}

// NewDNSResolver creates a resolver against upstream ("host:port").
func NewDNSResolver(upstream string) *DNSResolver {
	return &DNSResolver{client: &dns.Client{}, upstream: upstream}
}

// LookupAddr implements Resolver with a PTR query.
func (r *DNSResolver) LookupAddr(ip string) ([]string, error) {
	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return nil, fmt.Errorf("building reverse name for %s: %w", ip, err)
	}

	m := new(dns.Msg)
	m.SetQuestion(arpa, dns.TypePTR)
	resp, _, err := r.client.Exchange(m, r.upstream)
	if err != nil {
		return nil, fmt.Errorf("PTR query for %s: %w", ip, err)
	}

	var names []string
	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			names = append(names, ptr.Ptr)
		}
	}
	return names, nil
}

// LookupHost implements Resolver with A and AAAA queries.
func (r *DNSResolver) LookupHost(host string) ([]string, error) {
	fqdn := dns.Fqdn(host)
	var addrs []string

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		m := new(dns.Msg)
		m.SetQuestion(fqdn, qtype)
		resp, _, err := r.client.Exchange(m, r.upstream)
		if err != nil {
			return nil, fmt.Errorf("address query for %s: %w", host, err)
		}
		for _, rr := range resp.Answer {
			switch a := rr.(type) {
			case *dns.A:
				addrs = append(addrs, a.A.String())
			case *dns.AAAA:
				addrs = append(addrs, a.AAAA.String())
			}
		}
	}
	return addrs, nil
}

// ReverseName resolves the visitor's hostname, best effort. Returns "" when
// no reverse record exists.
func ReverseName(r Resolver, ip string) string {
	names, err := r.LookupAddr(ip)
	if err != nil || len(names) == 0 {
		return ""
	}
	return strings.TrimSuffix(names[0], ".")
}

// systemResolver falls back to the libc resolver; the kernel uses it when
// no upstream address is configured.
type systemResolver struct{}

// NewSystemResolver returns a Resolver backed by the system stub.
func NewSystemResolver() Resolver {
	return systemResolver{}
}

func (systemResolver) LookupAddr(ip string) ([]string, error) {
	return net.LookupAddr(ip)
}

func (systemResolver) LookupHost(host string) ([]string, error) {
	return net.LookupHost(host)
}
