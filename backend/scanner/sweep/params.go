package sweep

import (
	"strconv"
	"strings"
	"time"
)

// ProbeMethod selects how reachability is checked.
type ProbeMethod string

const (
	// ProbeMethodICMP sends echo requests over an unprivileged datagram ICMP socket.
	ProbeMethodICMP ProbeMethod = "icmp"
	// ProbeMethodICMPRaw sends echo requests over a raw socket and needs elevated privileges.
	ProbeMethodICMPRaw ProbeMethod = "icmp-raw"
	// ProbeMethodExec shells out to the platform ping binary.
	ProbeMethodExec ProbeMethod = "exec"
)

const (
	DefaultTimeout     = 300 * time.Millisecond
	DefaultWorkers     = 100
	DefaultFirstHost   = 1
	DefaultLastHost    = 254
	DefaultUnknownHost = "unknown host"
)

// DefaultOptions captures the baseline tuning values applied to a scan request
// when the caller leaves a field empty.
type DefaultOptions struct {
	Timeout     time.Duration
	Workers     int
	FirstHost   int
	LastHost    int
	Method      ProbeMethod
	DNSServers  []string
	UnknownHost string
	MaxPPS      int
}

// ScanParams models the caller supplied parameters of one sweep.
type ScanParams struct {
	// Prefix is concatenated with every host number, e.g. "172.16.5.".
	// It is never validated here.
	Prefix string `json:"prefix"`

	Timeout     time.Duration `json:"timeout"`
	Workers     int           `json:"workers"`
	FirstHost   int           `json:"firstHost"`
	LastHost    int           `json:"lastHost"`
	Method      ProbeMethod   `json:"method"`
	DNSServers  []string      `json:"dnsServers,omitempty"`
	UnknownHost string        `json:"unknownHost"`
	MaxPPS      int           `json:"maxPps,omitempty"`
}

// WithDefaults returns a copy of the scan parameters where empty fields are
// populated from the provided defaults. The prefix is left untouched.
func (p ScanParams) WithDefaults(d DefaultOptions) ScanParams {
	cp := p
	d = normalizeDefaults(d)
	if cp.Timeout <= 0 {
		cp.Timeout = d.Timeout
	}
	if cp.Workers <= 0 {
		cp.Workers = d.Workers
	}
	if cp.FirstHost <= 0 {
		cp.FirstHost = d.FirstHost
	}
	if cp.LastHost <= 0 {
		cp.LastHost = d.LastHost
	}
	if cp.FirstHost > DefaultLastHost || cp.LastHost > DefaultLastHost || cp.FirstHost > cp.LastHost {
		cp.FirstHost, cp.LastHost = d.FirstHost, d.LastHost
	}
	if normalizeMethod(cp.Method) == "" {
		cp.Method = d.Method
	} else {
		cp.Method = normalizeMethod(cp.Method)
	}
	if len(cp.DNSServers) == 0 && len(d.DNSServers) > 0 {
		cp.DNSServers = append([]string(nil), d.DNSServers...)
	}
	if strings.TrimSpace(cp.UnknownHost) == "" {
		cp.UnknownHost = d.UnknownHost
	}
	if cp.MaxPPS <= 0 {
		cp.MaxPPS = d.MaxPPS
	}
	return cp
}

// HostCount is the number of probes one sweep dispatches.
func (p ScanParams) HostCount() int {
	if p.LastHost < p.FirstHost {
		return 0
	}
	return p.LastHost - p.FirstHost + 1
}

// ExpandPrefix builds the candidate addresses {prefix + i : first <= i <= last}.
func ExpandPrefix(prefix string, first, last int) []string {
	if last < first {
		return nil
	}
	out := make([]string, 0, last-first+1)
	for i := first; i <= last; i++ {
		out = append(out, prefix+strconv.Itoa(i))
	}
	return out
}

func normalizeDefaults(d DefaultOptions) DefaultOptions {
	out := d
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.Workers <= 0 {
		out.Workers = DefaultWorkers
	}
	if out.FirstHost <= 0 || out.FirstHost > DefaultLastHost {
		out.FirstHost = DefaultFirstHost
	}
	if out.LastHost <= 0 || out.LastHost > DefaultLastHost {
		out.LastHost = DefaultLastHost
	}
	if out.FirstHost > out.LastHost {
		out.FirstHost, out.LastHost = DefaultFirstHost, DefaultLastHost
	}
	out.Method = normalizeMethod(out.Method)
	if out.Method == "" {
		out.Method = ProbeMethodICMP
	}
	if strings.TrimSpace(out.UnknownHost) == "" {
		out.UnknownHost = DefaultUnknownHost
	}
	if out.MaxPPS < 0 {
		out.MaxPPS = 0
	}
	cleaned := make([]string, 0, len(out.DNSServers))
	for _, server := range out.DNSServers {
		if server = strings.TrimSpace(server); server != "" {
			cleaned = append(cleaned, server)
		}
	}
	out.DNSServers = cleaned
	return out
}

func normalizeMethod(method ProbeMethod) ProbeMethod {
	switch strings.ToLower(strings.TrimSpace(string(method))) {
	case string(ProbeMethodICMP):
		return ProbeMethodICMP
	case string(ProbeMethodICMPRaw), "raw":
		return ProbeMethodICMPRaw
	case string(ProbeMethodExec), "ping":
		return ProbeMethodExec
	default:
		return ""
	}
}
