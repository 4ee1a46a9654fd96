package netutil

import (
	"context"
	"net"
	"strconv"

	"github.com/pkg/errors"
	psnet "github.com/shirou/gopsutil/v4/net"
)

// LocalPrefixes returns the "a.b.c." prefixes of the IPv4 networks this host
// is attached to, loopback and down interfaces excluded.
func LocalPrefixes(ctx context.Context) ([]string, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list interfaces")
	}
	return prefixesFromInterfaces(ifaces), nil
}

func prefixesFromInterfaces(ifaces psnet.InterfaceStatList) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, 2)
	for _, iface := range ifaces {
		if !hasFlag(iface.Flags, "up") || hasFlag(iface.Flags, "loopback") {
			continue
		}
		for _, addr := range iface.Addrs {
			prefix := prefixOf(addr.Addr)
			if prefix == "" {
				continue
			}
			if _, ok := seen[prefix]; ok {
				continue
			}
			seen[prefix] = struct{}{}
			out = append(out, prefix)
		}
	}
	return out
}

// prefixOf accepts "192.168.1.7/24" or a bare address.
func prefixOf(addr string) string {
	ip, _, err := net.ParseCIDR(addr)
	if err != nil {
		ip = net.ParseIP(addr)
	}
	ip4 := ip.To4()
	if ip4 == nil || ip4.IsLoopback() || ip4.IsLinkLocalUnicast() {
		return ""
	}
	return strconv.Itoa(int(ip4[0])) + "." + strconv.Itoa(int(ip4[1])) + "." + strconv.Itoa(int(ip4[2])) + "."
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}
