// subnet.go: network-based authentication bypass.
package security

import (
	"net"
	"strings"

	"github.com/mousetube/mousetube-go/internal/conf"
)

// IsInLocalSubnet checks if the given IP is in the same subnet as any
// local network interface.
func IsInLocalSubnet(clientIP net.IP) bool {
	if clientIP == nil {
		return false
	}

	// In a container the interface addresses are the bridge network,
	// compare against the host subnet instead.
	if conf.RunningInContainer() {
		return conf.IsInHostSubnet(clientIP)
	}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		logger.Warn("failed to get network interface addresses", "error", err)
		return false
	}

	clientSubnet := getIPv4Subnet(clientIP)
	if clientSubnet == nil {
		return false
	}

	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if serverSubnet := getIPv4Subnet(ipnet.IP); serverSubnet != nil && clientSubnet.Equal(serverSubnet) {
			return true
		}
	}
	return false
}

// getIPv4Subnet converts an IP address to its /24 subnet address.
func getIPv4Subnet(ip net.IP) net.IP {
	if ip == nil {
		return nil
	}
	ipv4 := ip.To4()
	if ipv4 == nil {
		return nil
	}
	return ipv4.Mask(net.CIDRMask(IPv4SubnetMaskBits, IPv4TotalAddressBits))
}

// IsRequestFromAllowedSubnet checks the IP against the configured
// bypass CIDR list. Loopback always passes when bypass is enabled.
func (m *Manager) IsRequestFromAllowedSubnet(ipStr string) bool {
	bypass := m.Settings.Security.AllowSubnetBypass
	if !bypass.Enabled || ipStr == "" {
		return false
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		logger.Warn("failed to parse IP for subnet bypass check", "ip", ipStr)
		return false
	}

	if ip.IsLoopback() {
		return true
	}

	for _, cidr := range strings.Split(bypass.Subnet, ",") {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		_, subnet, err := net.ParseCIDR(cidr)
		if err != nil {
			logger.Warn("invalid bypass subnet CIDR", "cidr", cidr, "error", err)
			continue
		}
		if subnet.Contains(ip) {
			return true
		}
	}
	return false
}

// IsAuthenticationEnabled reports whether the request from the given IP
// must authenticate.
func (m *Manager) IsAuthenticationEnabled(ip string) bool {
	if m.IsRequestFromAllowedSubnet(ip) {
		return false
	}
	return m.Settings.Security.BasicAuth.Enabled || m.Settings.Security.OrcidAuth.Enabled
}
