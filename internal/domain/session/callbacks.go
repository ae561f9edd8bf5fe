package session

import (
	"net/netip"
	"sync"

	"github.com/tizenorg/wfd-manager/internal/domain/display"
	"github.com/tizenorg/wfd-manager/internal/domain/peer"
	"github.com/tizenorg/wfd-manager/internal/domain/service"
)

// ActivationNotice is delivered when the radio lifecycle changes.
type ActivationNotice struct {
	State ActivationState
	Err   error
}

// DiscoveryNotice is delivered on discovery phase changes. Peers is set on
// DiscoveryFinished and lists every peer seen since discovery started.
type DiscoveryNotice struct {
	Kind  DiscoveryKind
	Peers []peer.Peer
	Err   error
}

// ConnectionNotice is delivered for connection and group signals.
// MAC is zero for group notices.
type ConnectionNotice struct {
	State ConnectionState
	MAC   peer.MAC
	Err   error
}

// PeerNotice is delivered when a peer is found or lost.
type PeerNotice struct {
	Kind DiscoveryKind
	Peer peer.Peer
}

// IPAssignedNotice is delivered when a connected peer gets an address.
type IPAssignedNotice struct {
	MAC       peer.MAC
	IP        netip.Addr
	Interface string
}

// ServiceNotice is delivered for service-discovery signals.
type ServiceNotice struct {
	Kind    ServiceDiscoveryKind
	Type    service.Type
	MAC     peer.MAC
	Data    string
	Bonjour *service.Bonjour
}

// DisplayNotice is delivered when a peer's display capability is negotiated.
type DisplayNotice struct {
	MAC        peer.MAC
	Capability display.Capability
}

// slot holds at most one callback. Setting it replaces the previous one.
type slot[T any] struct {
	mu sync.RWMutex
	fn func(T)
}

func (s *slot[T]) set(fn func(T)) {
	s.mu.Lock()
	s.fn = fn
	s.mu.Unlock()
}

func (s *slot[T]) fire(v T) {
	s.mu.RLock()
	fn := s.fn
	s.mu.RUnlock()
	if fn != nil {
		fn(v)
	}
}

// callbacks groups the per-category slots.
type callbacks struct {
	activation slot[ActivationNotice]
	discovery  slot[DiscoveryNotice]
	connection slot[ConnectionNotice]
	peer       slot[PeerNotice]
	ipAssigned slot[IPAssignedNotice]
	service    slot[ServiceNotice]
	display    slot[DisplayNotice]
}

// OnActivation registers the activation-changed callback. Nil clears it.
func (s *Session) OnActivation(fn func(ActivationNotice)) { s.cb.activation.set(fn) }

// OnDiscovery registers the discovery-state-changed callback.
func (s *Session) OnDiscovery(fn func(DiscoveryNotice)) { s.cb.discovery.set(fn) }

// OnConnection registers the connection-state-changed callback.
func (s *Session) OnConnection(fn func(ConnectionNotice)) { s.cb.connection.set(fn) }

// OnPeer registers the peer-found/lost callback.
func (s *Session) OnPeer(fn func(PeerNotice)) { s.cb.peer.set(fn) }

// OnIPAssigned registers the ip-assigned callback.
func (s *Session) OnIPAssigned(fn func(IPAssignedNotice)) { s.cb.ipAssigned.set(fn) }

// OnService registers the service-discovery callback.
func (s *Session) OnService(fn func(ServiceNotice)) { s.cb.service.set(fn) }

// OnDisplay registers the display-capability callback.
func (s *Session) OnDisplay(fn func(DisplayNotice)) { s.cb.display.set(fn) }

// outbox collects notifications while the session lock is held so they can
// be delivered after it is released.
type outbox []func()

func (o *outbox) add(f func()) {
	*o = append(*o, f)
}

func (o outbox) flush() {
	for _, f := range o {
		f()
	}
}
