package server

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/lawnchairsociety/combatroller/internal/config"
)

// ConnStats is a point-in-time view of a ConnLimiter.
type ConnStats struct {
	Total     int
	UniqueIPs int
}

// ConnLimiter caps concurrent sessions per IP and in total. A zero limit
// means unlimited.
type ConnLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

// NewConnLimiter creates a new connection limiter with the given config.
func NewConnLimiter(cfg config.ConnectionsConfig) *ConnLimiter {
	return &ConnLimiter{
		perIP:    make(map[string]int),
		maxPerIP: cfg.MaxPerIP,
		maxTotal: cfg.MaxTotal,
	}
}

// TryAcquire takes a slot for ip. It returns false, taking nothing, when
// either limit is already reached.
func (c *ConnLimiter) TryAcquire(ip string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxTotal > 0 && c.total >= c.maxTotal {
		return false
	}
	if c.maxPerIP > 0 && c.perIP[ip] >= c.maxPerIP {
		return false
	}

	c.perIP[ip]++
	c.total++
	return true
}

// Release gives back a slot taken by TryAcquire. Releasing an IP with no
// slots is a no-op.
func (c *ConnLimiter) Release(ip string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.perIP[ip]
	if !ok {
		return
	}
	if n <= 1 {
		delete(c.perIP, ip)
	} else {
		c.perIP[ip] = n - 1
	}
	c.total--
}

// Stats returns the current connection counts.
func (c *ConnLimiter) Stats() ConnStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConnStats{Total: c.total, UniqueIPs: len(c.perIP)}
}

// IPCount returns the current connection count for a specific IP.
func (c *ConnLimiter) IPCount(ip string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.perIP[ip]
}

// extractIP extracts the IP address from a remote address string (ip:port format).
func extractIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// getRealIP returns the client IP for r. Proxy headers are only consulted
// when trustProxy is set: the first X-Forwarded-For entry, then X-Real-IP,
// then the connection's remote address.
func getRealIP(r *http.Request, trustProxy bool) string {
	if !trustProxy {
		return extractIP(r.RemoteAddr)
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	return extractIP(r.RemoteAddr)
}
