package socketio

import (
	"net/netip"
	"strings"
	"sync"
)

// ClientLimiter caps the number of concurrent remote management clients.
// Loopback clients are always admitted and never counted. When a new remote
// client exceeds the cap, the oldest remote client is evicted.
type ClientLimiter struct {
	mu        sync.Mutex
	maxRemote int
	// remote client IDs, oldest first
	remote []string
	// every tracked client: id -> loopback
	clients map[string]bool
}

// NewClientLimiter creates a limiter admitting up to maxRemote remote clients.
// A non-positive maxRemote disables the cap.
func NewClientLimiter(maxRemote int) *ClientLimiter {
	return &ClientLimiter{
		maxRemote: maxRemote,
		clients:   make(map[string]bool),
	}
}

// Admit registers a client connecting from addr and returns the ID of any
// client evicted to make room, or "".
func (cl *ClientLimiter) Admit(id, addr string) (evicted string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, ok := cl.clients[id]; ok {
		return ""
	}

	loopback := isLoopback(addr)
	cl.clients[id] = loopback
	if loopback {
		return ""
	}

	cl.remote = append(cl.remote, id)
	if cl.maxRemote <= 0 || len(cl.remote) <= cl.maxRemote {
		return ""
	}

	evicted = cl.remote[0]
	cl.remote = cl.remote[1:]
	delete(cl.clients, evicted)
	return evicted
}

// Remove forgets a client when it disconnects.
func (cl *ClientLimiter) Remove(id string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	loopback, ok := cl.clients[id]
	if !ok {
		return
	}
	delete(cl.clients, id)
	if loopback {
		return
	}
	for i, r := range cl.remote {
		if r == id {
			cl.remote = append(cl.remote[:i], cl.remote[i+1:]...)
			break
		}
	}
}

// Remote returns the number of tracked remote clients.
func (cl *ClientLimiter) Remote() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.remote)
}

// isLoopback accepts a bare address or host:port. Unparseable input is
// treated as remote.
func isLoopback(addr string) bool {
	if ap, err := netip.ParseAddrPort(addr); err == nil {
		return ap.Addr().Unmap().IsLoopback()
	}
	a, err := netip.ParseAddr(strings.Trim(addr, "[]"))
	if err != nil {
		return false
	}
	return a.Unmap().IsLoopback()
}
