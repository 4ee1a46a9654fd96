package netutil

import (
	"reflect"
	"testing"

	psnet "github.com/shirou/gopsutil/v4/net"
)

func TestPrefixesFromInterfaces(t *testing.T) {
	ifaces := psnet.InterfaceStatList{
		{Name: "lo", Flags: []string{"up", "loopback"}, Addrs: psnet.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
		{Name: "eth0", Flags: []string{"up", "broadcast"}, Addrs: psnet.InterfaceAddrList{
			{Addr: "172.16.5.23/24"},
			{Addr: "fe80::1/64"},
			{Addr: "169.254.3.4/16"},
		}},
		{Name: "eth1", Flags: []string{"broadcast"}, Addrs: psnet.InterfaceAddrList{{Addr: "10.9.9.9/24"}}},
		{Name: "wlan0", Flags: []string{"up"}, Addrs: psnet.InterfaceAddrList{
			{Addr: "192.168.1.40/24"},
			{Addr: "172.16.5.99/24"},
		}},
	}
	got := prefixesFromInterfaces(ifaces)
	want := []string{"172.16.5.", "192.168.1."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestPrefixOf(t *testing.T) {
	cases := map[string]string{
		"10.1.2.3/8": "10.1.2.",
		"10.1.2.3":   "10.1.2.",
		"::1":        "",
		"garbage":    "",
	}
	for in, want := range cases {
		if got := prefixOf(in); got != want {
			t.Fatalf("prefixOf(%q) = %q, want %q", in, got, want)
		}
	}
}
