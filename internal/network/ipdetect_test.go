package network

import (
	"net"
	"testing"
)

func ipNet(s string) *net.IPNet {
	ip, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	n.IP = ip
	return n
}

func TestRoutableIPv4(t *testing.T) {
	ifaces := []ifaceView{
		{flags: net.FlagUp | net.FlagLoopback, addrs: []net.Addr{ipNet("127.0.0.1/8")}},
		{flags: 0, addrs: []net.Addr{ipNet("10.9.9.9/24")}},
		{flags: net.FlagUp, addrs: []net.Addr{
			ipNet("fe80::1/64"),
			ipNet("169.254.10.20/16"),
			ipNet("192.168.1.10/24"),
		}},
		{flags: net.FlagUp, addrs: []net.Addr{&net.IPAddr{IP: net.ParseIP("10.0.0.5")}}},
	}

	got := routableIPv4(ifaces)
	want := []string{"192.168.1.10", "10.0.0.5"}
	if len(got) != len(want) {
		t.Fatalf("routableIPv4() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("routableIPv4()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRoutableIPv4_None(t *testing.T) {
	if got := routableIPv4(nil); len(got) != 0 {
		t.Errorf("expected no addresses, got %v", got)
	}
}

func TestIPv4Addresses_Live(t *testing.T) {
	ips, err := IPv4Addresses()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range ips {
		ip := net.ParseIP(s)
		if ip == nil || ip.To4() == nil || ip.IsLoopback() {
			t.Errorf("%q is not a routable IPv4 address", s)
		}
	}
	if primary := PrimaryIPv4(); len(ips) > 0 && primary != ips[0] {
		t.Errorf("PrimaryIPv4() = %q, want %q", primary, ips[0])
	}
}
