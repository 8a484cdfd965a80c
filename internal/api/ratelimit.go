// Per-client metering for the export endpoint. Solid exports walk the
// whole octree mesher, so runs are charged by artifact kind rather than
// counted flat: a sketch-only run spends a fraction of a full CAD run.
package api

import (
	"net/http"
	"sync"
	"time"
)

// ExportBudget grants each client a fixed number of export credits per
// sliding window.
type ExportBudget struct {
	mu      sync.Mutex
	clients map[string]*allowance
	credits int           // credits granted per window
	window  time.Duration // window length
}

type allowance struct {
	left      int
	lastReset time.Time
}

// NewExportBudget creates a budget of credits per window per client.
func NewExportBudget(credits int, window time.Duration) *ExportBudget {
	b := &ExportBudget{
		clients: make(map[string]*allowance),
		credits: credits,
		window:  window,
	}
	// Periodic cleanup of stale entries.
	go func() {
		for {
			time.Sleep(time.Hour)
			b.cleanup()
		}
	}()
	return b
}

// Spend charges cost credits to the client. It returns false, charging
// nothing, when the remaining allowance cannot cover the cost.
func (b *ExportBudget) Spend(ip string, cost int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	a, ok := b.clients[ip]
	now := time.Now()

	if !ok || now.Sub(a.lastReset) >= b.window {
		a = &allowance{left: b.credits, lastReset: now}
		b.clients[ip] = a
	}

	if a.left < cost {
		return false
	}
	a.left -= cost
	return true
}

// RetryAfter returns how many seconds until the window resets for this
// client.
func (b *ExportBudget) RetryAfter(ip string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	a, ok := b.clients[ip]
	if !ok {
		return 0
	}
	remaining := b.window - time.Since(a.lastReset)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1
}

func (b *ExportBudget) cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	for ip, a := range b.clients {
		if now.Sub(a.lastReset) > 2*b.window {
			delete(b.clients, ip)
		}
	}
}

// clientIP resolves the requesting client: the first X-Forwarded-For entry
// when proxied, otherwise RemoteAddr without the port.
func clientIP(r *http.Request) string {
	ip := r.RemoteAddr
	for i := len(ip) - 1; i >= 0; i-- {
		if ip[i] == ':' {
			ip = ip[:i]
			break
		}
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip = xff
		for i, c := range xff {
			if c == ',' {
				ip = xff[:i]
				break
			}
		}
	}
	return ip
}
