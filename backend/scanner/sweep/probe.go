package sweep

import (
	"context"
	"time"
)

// Prober checks one candidate address. A false second return means the host
// did not answer; it is the common outcome and never an error.
type Prober interface {
	Probe(ctx context.Context, address string) (Observation, bool)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, address string) (Observation, bool)

func (f ProberFunc) Probe(ctx context.Context, address string) (Observation, bool) {
	return f(ctx, address)
}

// Pinger sends a single reachability check and reports whether it was answered
// within timeout. No retries.
type Pinger interface {
	Ping(ctx context.Context, address string, timeout time.Duration) error
}

// Checker is implemented by probers and pingers that can verify, once per
// sweep, that probing is possible at all. A failed Check aborts the sweep.
type Checker interface {
	Check(ctx context.Context) error
}

// NameResolver maps an address to a display name.
type NameResolver interface {
	LookupName(ctx context.Context, address string) (string, error)
}

// HostProber pings an address and, when it answers, resolves its name.
// It holds no mutable state and is safe for concurrent use.
type HostProber struct {
	Pinger      Pinger
	Resolver    NameResolver
	Timeout     time.Duration
	UnknownHost string

	now func() time.Time
}

// NewHostProber wires the pinger and resolver selected by params.
func NewHostProber(params ScanParams) *HostProber {
	params = params.WithDefaults(DefaultOptions{})

	var pinger Pinger
	switch params.Method {
	case ProbeMethodExec:
		pinger = NewCommandPinger()
	case ProbeMethodICMPRaw:
		pinger = NewICMPPinger(true)
	default:
		pinger = NewICMPPinger(false)
	}

	var resolver NameResolver = SystemResolver{}
	if len(params.DNSServers) > 0 {
		resolver = NewDNSResolver(params.DNSServers, 0)
	}

	return &HostProber{
		Pinger:      pinger,
		Resolver:    resolver,
		Timeout:     params.Timeout,
		UnknownHost: params.UnknownHost,
	}
}

func (p *HostProber) Probe(ctx context.Context, address string) (Observation, bool) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if err := p.Pinger.Ping(ctx, address, timeout); err != nil {
		return Observation{}, false
	}
	observedAt := p.clock()()

	return Observation{
		Address:     address,
		DisplayName: p.displayName(ctx, address),
		ObservedAt:  observedAt,
	}, true
}

// Check delegates to the pinger when it supports it.
func (p *HostProber) Check(ctx context.Context) error {
	if c, ok := p.Pinger.(Checker); ok {
		return c.Check(ctx)
	}
	return nil
}

func (p *HostProber) displayName(ctx context.Context, address string) string {
	fallback := p.UnknownHost
	if fallback == "" {
		fallback = DefaultUnknownHost
	}
	if p.Resolver == nil {
		return fallback
	}
	name, err := p.Resolver.LookupName(ctx, address)
	if err != nil || name == "" {
		return fallback
	}
	return name
}

func (p *HostProber) clock() func() time.Time {
	if p.now != nil {
		return p.now
	}
	return time.Now
}
