package session

import (
	"net/netip"
	"time"

	"github.com/tizenorg/wfd-manager/internal/domain/peer"
	"github.com/tizenorg/wfd-manager/internal/domain/service"
)

// Event is an inbound daemon notification. The set of implementations is closed.
type Event interface {
	isEvent()
}

// ActivationEvent reports the outcome of an activation request.
type ActivationEvent struct {
	Code ResultCode
}

// DeactivationEvent reports that the radio was switched off.
type DeactivationEvent struct {
	Code ResultCode
}

// DiscoveryEvent reports a discovery phase change: DiscoveryStarted,
// DiscoveryListenStarted or DiscoveryFinished.
type DiscoveryEvent struct {
	Kind DiscoveryKind
}

// PeerFoundEvent reports a peer sighting.
type PeerFoundEvent struct {
	MAC peer.MAC
}

// PeerLostEvent reports that a peer is no longer visible.
type PeerLostEvent struct {
	MAC peer.MAC
}

// ConnectionEvent is a Connection signal.
type ConnectionEvent struct {
	Code  ResultCode
	State ConnectionState
	MAC   peer.MAC
}

// DisconnectionEvent is a Disconnection signal.
type DisconnectionEvent struct {
	Code  ResultCode
	State ConnectionState
	MAC   peer.MAC
}

// IPAssignedEvent reports the address leased to a connected peer.
type IPAssignedEvent struct {
	MAC peer.MAC
	IP  netip.Addr
}

// GroupCreatedEvent reports that the local group came up.
type GroupCreatedEvent struct{}

// GroupDestroyedEvent reports that the local group went down.
type GroupDestroyedEvent struct{}

// ServiceStartedEvent reports that service discovery began.
type ServiceStartedEvent struct{}

// ServiceFoundEvent is one service-discovery response.
type ServiceFoundEvent struct {
	Type service.Type
	Data string
	MAC  peer.MAC
}

// ServiceFinishedEvent closes the queries selected by MAC and Type.
// The bus signal carries no payload, so both default to wildcards.
type ServiceFinishedEvent struct {
	Type service.Type
	MAC  peer.MAC
}

// SweepEvent asks the session to expire stale peers.
type SweepEvent struct {
	Now time.Time
}

func (ActivationEvent) isEvent()      {}
func (DeactivationEvent) isEvent()    {}
func (DiscoveryEvent) isEvent()       {}
func (PeerFoundEvent) isEvent()       {}
func (PeerLostEvent) isEvent()        {}
func (ConnectionEvent) isEvent()      {}
func (DisconnectionEvent) isEvent()   {}
func (IPAssignedEvent) isEvent()      {}
func (GroupCreatedEvent) isEvent()    {}
func (GroupDestroyedEvent) isEvent()  {}
func (ServiceStartedEvent) isEvent()  {}
func (ServiceFoundEvent) isEvent()    {}
func (ServiceFinishedEvent) isEvent() {}
func (SweepEvent) isEvent()           {}
