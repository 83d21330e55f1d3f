package tlsutil

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/dnscache"
	"github.com/rs/zerolog/log"
)

const defaultRefreshInterval = 5 * time.Minute

var (
	// Shared resolver so every outbound API client hits the same cache.
	globalResolver     *dnscache.Resolver
	globalResolverOnce sync.Once
	refreshMu          sync.Mutex
	refreshInterval    = defaultRefreshInterval

	dialer = &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
)

// GetDNSResolver returns the process-wide caching resolver.
func GetDNSResolver() *dnscache.Resolver {
	globalResolverOnce.Do(func() {
		globalResolver = &dnscache.Resolver{}
	})
	return globalResolver
}

// SetDNSRefreshInterval changes the interval used by subsequent calls to
// StartDNSRefresher. Non-positive values restore the default.
func SetDNSRefreshInterval(d time.Duration) {
	refreshMu.Lock()
	defer refreshMu.Unlock()
	if d <= 0 {
		d = defaultRefreshInterval
	}
	refreshInterval = d
}

// StartDNSRefresher refreshes the cache until ctx is done. Entries that were
// not used since the previous refresh are evicted.
func StartDNSRefresher(ctx context.Context) {
	refreshMu.Lock()
	interval := refreshInterval
	refreshMu.Unlock()

	resolver := GetDNSResolver()
	log.Debug().Dur("interval", interval).Msg("Starting DNS cache refresher")

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				resolver.Refresh(true)
				log.Debug().Msg("DNS cache refreshed")
			}
		}
	}()
}

// DialContextWithCache dials address after resolving its host through the
// shared cache. Each resolved address is tried in order.
func DialContextWithCache(ctx context.Context, network, address string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}

	if ip := net.ParseIP(host); ip != nil {
		return dialer.DialContext(ctx, network, address)
	}

	ips, err := GetDNSResolver().LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, &net.DNSError{Err: "no IP addresses found", Name: host}
	}

	var lastErr error
	for _, ip := range ips {
		conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
