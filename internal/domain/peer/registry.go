package peer

import (
	"net/netip"
	"time"
)

// Registry keeps at most one Peer per MAC, in first-seen order.
// It is not safe for concurrent use; the owning session serializes access.
type Registry struct {
	peers map[MAC]*Peer
	order []MAC
	now   func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		peers: make(map[MAC]*Peer),
		now:   time.Now,
	}
}

// SetClock replaces the time source used for FirstSeen/LastSeen.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// Upsert inserts mac or merges the present fields of u into the existing record.
// A connected peer is never marked disconnected here; use SetConnected.
func (r *Registry) Upsert(mac MAC, u Update) Peer {
	now := r.now()
	p, ok := r.peers[mac]
	if !ok {
		p = &Peer{MAC: mac, FirstSeen: now}
		r.peers[mac] = p
		r.order = append(r.order, mac)
	}
	p.LastSeen = now

	if u.InterfaceAddr != nil {
		p.InterfaceAddr = *u.InterfaceAddr
	}
	if u.Name != nil {
		p.Name = truncateName(*u.Name)
	}
	if u.Channel != nil {
		p.Channel = *u.Channel
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.SubCategory != nil {
		p.SubCategory = *u.SubCategory
	}
	if u.WPSMethods != nil {
		p.WPSMethods = *u.WPSMethods
	}
	if u.IsGroupOwner != nil {
		p.IsGroupOwner = *u.IsGroupOwner
	}
	if u.IsPersistentGO != nil {
		p.IsPersistentGO = *u.IsPersistentGO
	}
	if u.Connected != nil && *u.Connected {
		p.Connected = true
	}
	if u.Services != nil {
		p.Services = *u.Services
	}
	if u.IsWFDDevice != nil {
		p.IsWFDDevice = *u.IsWFDDevice
	}
	if u.IsP2P != nil {
		p.IsP2P = *u.IsP2P
	}
	if u.IP != nil && (u.IP.IsValid() || !p.Connected) {
		p.IP = *u.IP
	}
	return *p
}

// SetConnected is the explicit connection and disconnection path.
// Disconnecting clears the assigned IP. Unknown MACs are ignored.
func (r *Registry) SetConnected(mac MAC, connected bool) bool {
	p, ok := r.peers[mac]
	if !ok {
		return false
	}
	p.Connected = connected
	if !connected {
		p.IP = netip.Addr{}
	}
	return true
}

// Remove deletes mac. Removing an unknown MAC is a no-op.
func (r *Registry) Remove(mac MAC) bool {
	if _, ok := r.peers[mac]; !ok {
		return false
	}
	delete(r.peers, mac)
	for i, m := range r.order {
		if m == mac {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a copy of the record for mac.
func (r *Registry) Get(mac MAC) (Peer, bool) {
	p, ok := r.peers[mac]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// Has reports whether mac is known.
func (r *Registry) Has(mac MAC) bool {
	_, ok := r.peers[mac]
	return ok
}

// List returns copies of all peers in insertion order.
func (r *Registry) List() []Peer {
	out := make([]Peer, 0, len(r.order))
	for _, m := range r.order {
		out = append(out, *r.peers[m])
	}
	return out
}

// Connected returns the connected peers in insertion order.
func (r *Registry) Connected() []Peer {
	var out []Peer
	for _, m := range r.order {
		if p := r.peers[m]; p.Connected {
			out = append(out, *p)
		}
	}
	return out
}

// FoundSince returns peers seen at or after t, in insertion order.
func (r *Registry) FoundSince(t time.Time) []Peer {
	var out []Peer
	for _, m := range r.order {
		if p := r.peers[m]; !p.LastSeen.Before(t) {
			out = append(out, *p)
		}
	}
	return out
}

// ExpireStale removes disconnected peers last seen before cutoff and returns
// them. Peers for which keep returns true are retained; keep may be nil.
func (r *Registry) ExpireStale(cutoff time.Time, keep func(Peer) bool) []Peer {
	var expired []Peer
	kept := r.order[:0]
	for _, m := range r.order {
		p := r.peers[m]
		if !p.Connected && p.LastSeen.Before(cutoff) && (keep == nil || !keep(*p)) {
			expired = append(expired, *p)
			delete(r.peers, m)
			continue
		}
		kept = append(kept, m)
	}
	r.order = kept
	return expired
}

// Len returns the number of known peers.
func (r *Registry) Len() int {
	return len(r.order)
}

// Reset forgets every peer.
func (r *Registry) Reset() {
	r.peers = make(map[MAC]*Peer)
	r.order = nil
}
