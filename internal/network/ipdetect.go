package network

import (
	"net"
)

// PrimaryIPv4 returns the address reported as the agent's "ip" tag: the first
// routable IPv4 address of an up, non-loopback interface, or "" when there
// is none.
func PrimaryIPv4() string {
	ips, err := IPv4Addresses()
	if err != nil || len(ips) == 0 {
		return ""
	}
	return ips[0]
}

// IPv4Addresses lists routable IPv4 addresses in interface order.
func IPv4Addresses() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	views := make([]ifaceView, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		views = append(views, ifaceView{flags: iface.Flags, addrs: addrs})
	}
	return routableIPv4(views), nil
}

type ifaceView struct {
	flags net.Flags
	addrs []net.Addr
}

// routableIPv4 skips down and loopback interfaces as well as loopback and
// link-local (169.254/16, assigned when DHCP fails) addresses.
func routableIPv4(ifaces []ifaceView) []string {
	var ips []string
	for _, iface := range ifaces {
		if iface.flags&net.FlagLoopback != 0 || iface.flags&net.FlagUp == 0 {
			continue
		}
		for _, addr := range iface.addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			ip4 := ip.To4()
			if ip4 == nil || ip4.IsLoopback() || ip4.IsLinkLocalUnicast() {
				continue
			}
			ips = append(ips, ip4.String())
		}
	}
	return ips
}
