package sweep

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
)

var errNoName = errors.New("no PTR record")

const defaultDNSTimeout = 2 * time.Second

// SystemResolver asks the platform resolver for reverse names.
type SystemResolver struct {
	Resolver *net.Resolver
}

func (r SystemResolver) LookupName(ctx context.Context, address string) (string, error) {
	resolver := r.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	names, err := resolver.LookupAddr(ctx, address)
	if err != nil {
		return "", err
	}
	for _, name := range names {
		if trimmed := trimName(name); trimmed != "" {
			return trimmed, nil
		}
	}
	return "", errNoName
}

// DNSResolver sends PTR queries straight to the configured servers, in order,
// until one answers.
type DNSResolver struct {
	Servers []string
	client  *dns.Client
}

func NewDNSResolver(servers []string, timeout time.Duration) *DNSResolver {
	if timeout <= 0 {
		timeout = defaultDNSTimeout
	}
	normalized := make([]string, 0, len(servers))
	for _, server := range servers {
		if server = strings.TrimSpace(server); server != "" {
			normalized = append(normalized, withDNSPort(server))
		}
	}
	return &DNSResolver{
		Servers: normalized,
		client:  &dns.Client{Net: "udp", Timeout: timeout},
	}
}

func (r *DNSResolver) LookupName(ctx context.Context, address string) (string, error) {
	arpa, err := dns.ReverseAddr(address)
	if err != nil {
		return "", err
	}
	msg := new(dns.Msg)
	msg.SetQuestion(arpa, dns.TypePTR)

	lastErr := errNoName
	for _, server := range r.Servers {
		in, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = errors.Wrapf(err, "query %s", server)
			continue
		}
		if in.Rcode != dns.RcodeSuccess {
			lastErr = errors.Errorf("query %s: %s", server, dns.RcodeToString[in.Rcode])
			continue
		}
		for _, rr := range in.Answer {
			if ptr, ok := rr.(*dns.PTR); ok {
				if name := trimName(ptr.Ptr); name != "" {
					return name, nil
				}
			}
		}
	}
	return "", lastErr
}

func withDNSPort(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, "53")
}

func trimName(name string) string {
	return strings.TrimSuffix(strings.TrimSpace(name), ".")
}
