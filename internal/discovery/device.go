package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Gateway represents an OpenMotics gateway found on the network
type Gateway struct {
	// Instance is the advertised service instance name
	Instance string

	// Hostname is the mDNS hostname (e.g., "openmotics-gw.local.")
	Hostname string

	// IP is the address to connect to, IPv4 when the gateway has one
	IP string

	Port int

	// Scheme is https or http, taken from the advertised service type
	Scheme string

	// Metadata contains the TXT record data
	Metadata map[string]string

	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the gateway
func (g *Gateway) String() string {
	return fmt.Sprintf("OpenMotics gateway %s (%s) at %s", g.Instance, g.Hostname, g.Address())
}

// Address returns host:port, bracketing IPv6 addresses.
func (g *Gateway) Address() string {
	return net.JoinHostPort(g.IP, strconv.Itoa(g.Port))
}

// BaseURL returns the API base URL of the gateway
func (g *Gateway) BaseURL() string {
	return g.Scheme + "://" + g.Address()
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (g *Gateway) GetMetadata(key string) string {
	if g.Metadata == nil {
		return ""
	}
	return g.Metadata[key]
}
