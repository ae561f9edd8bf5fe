package session

import (
	"context"
	"fmt"

	"github.com/tizenorg/wfd-manager/internal/domain/peer"
)

// HandleEvent applies one daemon notification. Callbacks run after the
// session lock is released, in the order their changes were applied.
// Events that do not fit the current state are dropped.
func (s *Session) HandleEvent(ctx context.Context, ev Event) {
	var out outbox

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	switch e := ev.(type) {
	case ActivationEvent:
		s.onActivation(e, &out)
	case DeactivationEvent:
		s.onDeactivation(e, &out)
	case DiscoveryEvent:
		s.onDiscovery(ctx, e, &out)
	case PeerFoundEvent:
		s.onPeerFound(e, &out)
	case PeerLostEvent:
		s.onPeerLost(e, &out)
	case ConnectionEvent:
		s.onConnection(ctx, e, &out)
	case DisconnectionEvent:
		s.onDisconnection(e, &out)
	case IPAssignedEvent:
		s.onIPAssigned(ctx, e, &out)
	case GroupCreatedEvent:
		s.onGroupCreated(ctx, &out)
	case GroupDestroyedEvent:
		s.onGroupDestroyed(&out)
	case ServiceStartedEvent:
		s.onServiceStarted(&out)
	case ServiceFoundEvent:
		s.onServiceFound(e, &out)
	case ServiceFinishedEvent:
		s.onServiceFinished(e, &out)
	case SweepEvent:
		s.onSweep(e, &out)
	default:
		s.logger.Warn().Str("event", fmt.Sprintf("%T", ev)).Msg("Dropping unknown event")
	}
	s.mu.Unlock()

	out.flush()
}

func (s *Session) onActivation(e ActivationEvent, out *outbox) {
	if err := resultError("activate", e.Code); err != nil {
		if s.activation == Activating {
			s.activation = Deactivated
		}
		s.logger.Warn().Int32("code", int32(e.Code)).Msg("Activation failed")
		n := ActivationNotice{State: s.activation, Err: err}
		out.add(func() { s.cb.activation.fire(n) })
		return
	}
	if s.activation == Activated {
		return
	}
	s.activation = Activated
	s.logger.Info().Msg("Activated")
	out.add(func() { s.cb.activation.fire(ActivationNotice{State: Activated}) })
}

func (s *Session) onDeactivation(e DeactivationEvent, out *outbox) {
	requested := s.deactivating
	s.deactivating = false
	if err := resultError("deactivate", e.Code); err != nil {
		n := ActivationNotice{State: s.activation, Err: err}
		out.add(func() { s.cb.activation.fire(n) })
		return
	}
	if s.activation == Deactivated {
		// Teardown already ran in Deactivate; the confirmation still notifies.
		if requested {
			out.add(func() { s.cb.activation.fire(ActivationNotice{State: Deactivated}) })
		}
		return
	}
	s.teardown()
	s.logger.Info().Msg("Deactivated")
	out.add(func() { s.cb.activation.fire(ActivationNotice{State: Deactivated}) })
}

func (s *Session) onDiscovery(ctx context.Context, e DiscoveryEvent, out *outbox) {
	if s.activation != Activated {
		return
	}
	n := DiscoveryNotice{Kind: e.Kind}
	switch e.Kind {
	case DiscoveryStarted:
		if s.discovery == DiscoveryIdle {
			s.discoveryStart = s.now()
		}
		s.discovery = DiscoveryActive
	case DiscoveryListenStarted:
		if s.discovery == DiscoveryIdle {
			s.discoveryStart = s.now()
		}
		s.discovery = DiscoveryListenOnly
	case DiscoveryFinished:
		if err := s.enumerate(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to enumerate peers after discovery")
			n.Err = err
		}
		n.Peers = s.peers.FoundSince(s.discoveryStart)
		s.discovery = DiscoveryIdle
		s.logger.Info().Int("peers", len(n.Peers)).Msg("Discovery finished")
	default:
		return
	}
	out.add(func() { s.cb.discovery.fire(n) })
}

func (s *Session) onPeerFound(e PeerFoundEvent, out *outbox) {
	if s.activation != Activated {
		return
	}
	p := s.peers.Upsert(e.MAC, peer.Update{})
	s.logger.Debug().Str("mac", e.MAC.String()).Msg("Peer found")
	out.add(func() {
		s.cb.peer.fire(PeerNotice{Kind: DiscoveryFound, Peer: p})
		s.cb.discovery.fire(DiscoveryNotice{Kind: DiscoveryFound, Peers: []peer.Peer{p}})
	})
}

func (s *Session) onPeerLost(e PeerLostEvent, out *outbox) {
	p, ok := s.peers.Get(e.MAC)
	if !ok {
		return
	}
	if _, busy := s.conns[e.MAC]; busy || p.Connected {
		s.logger.Debug().Str("mac", e.MAC.String()).Msg("Keeping record of lost connected peer")
	} else {
		s.peers.Remove(e.MAC)
		s.display.Forget(e.MAC)
	}
	out.add(func() {
		s.cb.peer.fire(PeerNotice{Kind: DiscoveryLost, Peer: p})
		s.cb.discovery.fire(DiscoveryNotice{Kind: DiscoveryLost, Peers: []peer.Peer{p}})
	})
}

func (s *Session) onConnection(ctx context.Context, e ConnectionEvent, out *outbox) {
	if s.activation != Activated {
		return
	}
	log := s.logger.With().Str("mac", e.MAC.String()).Str("state", e.State.String()).Logger()
	n := ConnectionNotice{State: e.State, MAC: e.MAC}

	switch e.State {
	case ConnectionReq:
		s.peers.Upsert(e.MAC, peer.Update{})
		if s.connState(e.MAC) == ConnNone {
			s.conns[e.MAC] = &conn{state: ConnConnecting, incoming: true}
		}
		log.Info().Msg("Incoming connection request")
	case ConnectionWPSReq, ConnectionInProgress:
		s.peers.Upsert(e.MAC, peer.Update{})
		if s.connState(e.MAC) == ConnNone {
			s.conns[e.MAC] = &conn{state: ConnConnecting}
		}
	case ConnectionRsp:
		if err := resultError("connect", e.Code); err != nil {
			if s.connState(e.MAC) == ConnConnecting {
				delete(s.conns, e.MAC)
			}
			n.Err = err
			log.Warn().Int32("code", int32(e.Code)).Msg("Connection failed")
			break
		}
		s.markConnected(ctx, e.MAC)
		log.Info().Str("role", s.group.Role.String()).Msg("Connected")
		out.add(func() { s.cb.connection.fire(n) })
		s.negotiateDisplay(ctx, e.MAC, out)
		return
	default:
		return
	}
	out.add(func() { s.cb.connection.fire(n) })
}

// negotiateDisplay reads the capability of a freshly connected display peer.
func (s *Session) negotiateDisplay(ctx context.Context, mac peer.MAC, out *outbox) {
	if !s.cfg.Features.Display || !s.display.Local().Initialized {
		return
	}
	p, ok := s.peers.Get(mac)
	if !ok || !p.IsWFDDevice {
		return
	}
	c, err := s.fetchPeerDisplay(ctx, mac)
	if err != nil {
		s.logger.Warn().Err(err).Str("mac", mac.String()).Msg("Failed to read peer display capability")
		return
	}
	out.add(func() { s.cb.display.fire(DisplayNotice{MAC: mac, Capability: c}) })
}

func (s *Session) onDisconnection(e DisconnectionEvent, out *outbox) {
	switch e.State {
	case DisassociationInd, DisconnectionRsp, DisconnectionInd:
	default:
		return
	}
	groupGone := false
	switch s.connState(e.MAC) {
	case ConnConnected:
		groupGone = s.dropConnection(e.MAC)
	case ConnConnecting:
		delete(s.conns, e.MAC)
	}
	s.display.Forget(e.MAC)
	s.logger.Info().
		Str("mac", e.MAC.String()).
		Str("state", e.State.String()).
		Bool("groupDestroyed", groupGone).
		Msg("Disconnected")

	n := ConnectionNotice{State: e.State, MAC: e.MAC, Err: resultError("disconnect", e.Code)}
	out.add(func() { s.cb.connection.fire(n) })
	if groupGone {
		out.add(func() { s.cb.connection.fire(ConnectionNotice{State: GroupDestroyed}) })
	}
}

func (s *Session) onIPAssigned(ctx context.Context, e IPAssignedEvent, out *outbox) {
	if s.connState(e.MAC) != ConnConnected || !e.IP.IsValid() {
		return
	}
	ip := e.IP
	s.peers.Upsert(e.MAC, peer.Update{IP: &ip})

	ifname := s.settings.InterfaceName
	if name, err := s.callString(ctx, IfaceConfig, "GetInterfaceName"); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read interface name")
	} else {
		s.cacheInterfaceName(name)
		ifname = name
	}
	s.logger.Info().Str("mac", e.MAC.String()).Str("ip", ip.String()).Str("iface", ifname).Msg("Peer ip assigned")
	n := IPAssignedNotice{MAC: e.MAC, IP: ip, Interface: ifname}
	out.add(func() { s.cb.ipAssigned.fire(n) })
}

func (s *Session) onGroupCreated(ctx context.Context, out *outbox) {
	if s.activation != Activated {
		return
	}
	if s.group == nil {
		s.resolveGroup(ctx)
		s.logger.Info().Str("role", s.group.Role.String()).Msg("Group created by daemon")
	}
	out.add(func() { s.cb.connection.fire(ConnectionNotice{State: GroupCreated}) })
}

func (s *Session) onGroupDestroyed(out *outbox) {
	if s.group != nil {
		s.clearGroup()
		s.logger.Info().Msg("Group destroyed by daemon")
	}
	out.add(func() { s.cb.connection.fire(ConnectionNotice{State: GroupDestroyed}) })
}

func (s *Session) onServiceStarted(out *outbox) {
	if !s.cfg.Features.ServiceDiscovery {
		return
	}
	out.add(func() { s.cb.service.fire(ServiceNotice{Kind: ServiceDiscoveryStarted}) })
}

func (s *Session) onServiceFound(e ServiceFoundEvent, out *outbox) {
	if !s.cfg.Features.ServiceDiscovery {
		return
	}
	f, ok := s.services.ResolveFound(e.MAC, e.Type, e.Data)
	if !ok {
		s.logger.Debug().Str("mac", e.MAC.String()).Str("type", e.Type.String()).Msg("Dropping unsolicited service response")
		return
	}
	n := ServiceNotice{
		Kind:    ServiceDiscoveryFound,
		Type:    f.Type,
		MAC:     f.MAC,
		Data:    f.Payload,
		Bonjour: f.Bonjour,
	}
	out.add(func() { s.cb.service.fire(n) })
}

func (s *Session) onServiceFinished(e ServiceFinishedEvent, out *outbox) {
	if !s.cfg.Features.ServiceDiscovery {
		return
	}
	closed := s.services.Finish(e.MAC, e.Type)
	s.logger.Debug().Int("queries", len(closed)).Msg("Service discovery finished")
	n := ServiceNotice{Kind: ServiceDiscoveryFinished, Type: e.Type, MAC: e.MAC}
	out.add(func() { s.cb.service.fire(n) })
}

func (s *Session) onSweep(e SweepEvent, out *outbox) {
	now := e.Now
	if now.IsZero() {
		now = s.now()
	}
	busy := func(p peer.Peer) bool {
		_, ok := s.conns[p.MAC]
		return ok
	}
	expired := s.peers.ExpireStale(now.Add(-s.cfg.PeerStaleAfter), busy)
	if len(expired) == 0 {
		return
	}
	for _, p := range expired {
		s.display.Forget(p.MAC)
	}
	s.logger.Debug().Int("peers", len(expired)).Msg("Expired stale peers")
	out.add(func() {
		for _, p := range expired {
			s.cb.peer.fire(PeerNotice{Kind: DiscoveryLost, Peer: p})
		}
	})
}
