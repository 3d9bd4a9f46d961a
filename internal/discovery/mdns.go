package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"golang.org/x/sync/errgroup"
)

const (
	// ServiceHTTPS and ServiceHTTP are the service types gateways advertise
	ServiceHTTPS = "_https._tcp"
	ServiceHTTP  = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for gateway discovery
	DefaultScanTimeout = 5 * time.Second
)

// gatewayPattern matches instance or host names of OpenMotics gateways
var gatewayPattern = regexp.MustCompile(`(?i)openmotics`)

// Scanner handles mDNS gateway discovery
type Scanner struct {
	// Timeout is the maximum time to wait for answers
	Timeout time.Duration

	// Services lists the service types to browse
	Services []string

	// browse is replaced in tests
	browse func(ctx context.Context, service string, entries chan<- *zeroconf.ServiceEntry) error
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout:  DefaultScanTimeout,
		Services: []string{ServiceHTTPS, ServiceHTTP},
		browse:   browseZeroconf,
	}
}

func browseZeroconf(ctx context.Context, service string, entries chan<- *zeroconf.ServiceEntry) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}
	if err := resolver.Browse(ctx, service, ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for %s services: %w", service, err)
	}
	return nil
}

// Scan browses every configured service type until the timeout expires and
// returns the gateways found, each address reported once. A gateway
// advertising both https and http is reported with https.
func (s *Scanner) Scan(ctx context.Context) ([]*Gateway, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var (
		mu    sync.Mutex
		found = make(map[string]*Gateway)
		order []string
	)
	add := func(gw *Gateway) {
		mu.Lock()
		defer mu.Unlock()
		if prev, ok := found[gw.IP]; ok {
			if prev.Scheme == "http" && gw.Scheme == "https" {
				found[gw.IP] = gw
			}
			return
		}
		found[gw.IP] = gw
		order = append(order, gw.IP)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, service := range s.Services {
		service := service
		g.Go(func() error {
			entries := make(chan *zeroconf.ServiceEntry, 8)
			if err := s.browse(gctx, service, entries); err != nil {
				return err
			}
			for {
				select {
				case entry, ok := <-entries:
					if !ok {
						return nil
					}
					if gw := parseServiceEntry(entry, service); gw != nil {
						add(gw)
					}
				case <-gctx.Done():
					return nil
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	gateways := make([]*Gateway, 0, len(order))
	for _, ip := range order {
		gateways = append(gateways, found[ip])
	}
	return gateways, nil
}

// parseServiceEntry converts a zeroconf service entry to a Gateway
// Returns nil if the entry is not an OpenMotics gateway
func parseServiceEntry(entry *zeroconf.ServiceEntry, service string) *Gateway {
	if entry == nil {
		return nil
	}
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	if !gatewayPattern.MatchString(entry.Instance) &&
		!gatewayPattern.MatchString(entry.HostName) &&
		!gatewayPattern.MatchString(metadata["vendor"]) {
		return nil
	}

	// Get IP address (prefer IPv4)
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	scheme, port := "https", 443
	if service == ServiceHTTP {
		scheme, port = "http", 80
	}
	if entry.Port != 0 {
		port = entry.Port
	}

	return &Gateway{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Scheme:       scheme,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// Scan is a convenience function to scan with a custom timeout
func Scan(ctx context.Context, timeout time.Duration) ([]*Gateway, error) {
	scanner := NewScanner()
	if timeout > 0 {
		scanner.Timeout = timeout
	}
	return scanner.Scan(ctx)
}
