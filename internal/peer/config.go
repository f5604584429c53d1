package peer

import (
	"net"
	"strings"

	"github.com/BioHazard786/warpcall/internal/config"
	"github.com/pion/webrtc/v4"
)

// Configuration builds the ICE setup from client configuration. The relay
// policy is forced when asked to, or when the network looks like a VPN or
// CGNAT, but only if a TURN server is available.
func Configuration(cfg *config.Config) webrtc.Configuration {
	iceServers := []webrtc.ICEServer{{URLs: cfg.GetSTUNServers()}}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || ShouldForceRelay()) {
		policy = webrtc.ICETransportPolicyRelay
	}

	return webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}

// cgnat is 100.64.0.0/10, used by carrier NAT, Tailscale and WARP.
var cgnat = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

var tunnelNames = []string{"tun", "tap", "wg", "ppp", "warp", "utun"}

// ShouldForceRelay reports whether an active interface looks like a tunnel
// or carries a CGNAT address, where direct paths usually fail.
func ShouldForceRelay() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if restrictive(iface.Name, addrs) {
			return true
		}
	}
	return false
}

func restrictive(name string, addrs []net.Addr) bool {
	name = strings.ToLower(name)
	for _, prefix := range tunnelNames {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}

	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip != nil && cgnat.Contains(ip) {
			return true
		}
	}
	return false
}
