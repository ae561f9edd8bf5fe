package session

import (
	"context"

	"github.com/tizenorg/wfd-manager/internal/domain/peer"
)

// DiscoveryOptions parameterize StartDiscovery. Timeout is in seconds; zero
// lets the daemon pick its default.
type DiscoveryOptions struct {
	ListenOnly bool
	Timeout    int
	Channel    Channel
}

// Activate asks the daemon to switch the radio on. The session moves to
// Activating; the Activation event completes the transition.
func (s *Session) Activate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activation != Deactivated {
		return ErrAlreadyInitialized
	}
	if _, err := s.call(ctx, IfaceManage, "Activate"); err != nil {
		return err
	}
	s.activation = Activating
	s.deactivating = false
	s.logger.Info().Msg("Activation requested")
	return nil
}

// Deactivate switches the radio off. Connections, the group, discovery and
// pending service queries are torn down before the session reports Deactivated.
func (s *Session) Deactivate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activation == Deactivated {
		return ErrNotInitialized
	}
	if _, err := s.call(ctx, IfaceManage, "Deactivate"); err != nil {
		return err
	}
	s.logger.Info().
		Int("connected", s.connectedCount()).
		Bool("group", s.group != nil).
		Msg("Deactivating")
	s.teardown()
	s.deactivating = true
	return nil
}

// StartDiscovery begins a device scan, or listen-only mode.
func (s *Session) StartDiscovery(ctx context.Context, opts DiscoveryOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActivated(); err != nil {
		return err
	}
	if opts.Timeout < 0 {
		return invalidParam("negative discovery timeout %d", opts.Timeout)
	}
	if !opts.Channel.Valid() {
		return invalidParam("unsupported discovery channel %d", int(opts.Channel))
	}
	if s.discovery != DiscoveryIdle {
		return notPermitted("discovery already %s", s.discovery)
	}

	params := map[string]interface{}{
		"Mode":    opts.ListenOnly,
		"Timeout": int32(opts.Timeout),
		"Channel": int32(opts.Channel),
	}
	if _, err := s.call(ctx, IfaceManage, "StartDiscovery", params); err != nil {
		return err
	}

	s.discovery = DiscoveryActive
	if opts.ListenOnly {
		s.discovery = DiscoveryListenOnly
	}
	s.discoveryStart = s.now()
	s.logger.Info().
		Bool("listenOnly", opts.ListenOnly).
		Int("timeout", opts.Timeout).
		Int("channel", int(opts.Channel)).
		Msg("Discovery started")
	return nil
}

// CancelDiscovery stops a running scan. It is a no-op when discovery is idle.
func (s *Session) CancelDiscovery(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActivated(); err != nil {
		return err
	}
	if s.discovery == DiscoveryIdle {
		return nil
	}
	if _, err := s.call(ctx, IfaceManage, "StopDiscovery"); err != nil {
		return err
	}
	s.discovery = DiscoveryIdle
	return nil
}

// IsDiscoverable reports whether the device is scanning or listening.
func (s *Session) IsDiscoverable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.discovery != DiscoveryIdle
}

// IsListeningOnly reports whether the device is in listen-only mode.
func (s *Session) IsListeningOnly() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.discovery == DiscoveryListenOnly
}

// RefreshPeers re-enumerates discovered peers from the daemon and merges
// them into the registry.
func (s *Session) RefreshPeers(ctx context.Context) ([]peer.Peer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActivated(); err != nil {
		return nil, err
	}
	if err := s.enumerate(ctx); err != nil {
		return nil, err
	}
	return s.peers.List(), nil
}

// enumerate merges GetDiscoveredPeers into the registry. Connection state is
// owned by connection events, so IsConnected from the daemon is ignored here.
func (s *Session) enumerate(ctx context.Context) error {
	body, err := s.call(ctx, IfaceManage, "GetDiscoveredPeers")
	if err != nil {
		return err
	}
	dicts, err := replyDicts("GetDiscoveredPeers", body, 0)
	if err != nil {
		return err
	}
	for _, d := range dicts {
		mac, u, err := DecodePeerDict(d)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Skipping malformed peer entry")
			continue
		}
		u.Connected = nil
		if s.connState(mac) != ConnConnected {
			u.IP = nil
		}
		s.peers.Upsert(mac, u)
	}
	return nil
}

// Connect starts negotiation with a discovered peer.
func (s *Session) Connect(ctx context.Context, mac peer.MAC) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActivated(); err != nil {
		return err
	}
	if !s.peers.Has(mac) {
		return invalidParam("unknown peer %s", mac)
	}
	switch s.connState(mac) {
	case ConnConnecting:
		return notPermitted("already connecting to %s", mac)
	case ConnConnected:
		return notPermitted("already connected to %s", mac)
	}

	if _, err := s.call(ctx, IfaceManage, "Connect", mac.String()); err != nil {
		return err
	}
	s.conns[mac] = &conn{state: ConnConnecting}
	s.logger.Info().Str("mac", mac.String()).Msg("Connecting")
	return nil
}

// CancelConnection aborts an outgoing or incoming negotiation.
func (s *Session) CancelConnection(ctx context.Context, mac peer.MAC) error {
	return s.abortConnecting(ctx, "CancelConnection", mac)
}

// RejectConnection declines an in-progress negotiation.
func (s *Session) RejectConnection(ctx context.Context, mac peer.MAC) error {
	return s.abortConnecting(ctx, "RejectConnection", mac)
}

func (s *Session) abortConnecting(ctx context.Context, method string, mac peer.MAC) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActivated(); err != nil {
		return err
	}
	if s.connState(mac) != ConnConnecting {
		return notPermitted("not connecting to %s", mac)
	}
	if _, err := s.call(ctx, IfaceManage, method, mac.String()); err != nil {
		return err
	}
	delete(s.conns, mac)
	s.logger.Info().Str("mac", mac.String()).Str("op", method).Msg("Negotiation aborted")
	return nil
}

// AcceptConnection accepts an incoming connection request.
func (s *Session) AcceptConnection(ctx context.Context, mac peer.MAC) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActivated(); err != nil {
		return err
	}
	c, ok := s.conns[mac]
	if !ok || c.state != ConnConnecting || !c.incoming {
		return notPermitted("no incoming request from %s", mac)
	}
	if _, err := s.call(ctx, IfaceManage, "AcceptConnection", mac.String()); err != nil {
		return err
	}
	c.incoming = false
	return nil
}

// Disconnect drops one connected peer.
func (s *Session) Disconnect(ctx context.Context, mac peer.MAC) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActivated(); err != nil {
		return err
	}
	if s.connState(mac) != ConnConnected {
		return notPermitted("not connected to %s", mac)
	}
	if _, err := s.call(ctx, IfaceManage, "Disconnect", mac.String()); err != nil {
		return err
	}
	if s.dropConnection(mac) {
		s.logger.Info().Msg("Last member left, group destroyed")
	}
	return nil
}

// DisconnectAll drops every connected peer.
func (s *Session) DisconnectAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActivated(); err != nil {
		return err
	}
	if s.connectedCount() == 0 {
		return notPermitted("no connected peers")
	}
	if _, err := s.call(ctx, IfaceManage, "DisconnectAll"); err != nil {
		return err
	}
	for mac, c := range s.conns {
		if c.state == ConnConnected {
			s.dropConnection(mac)
		}
	}
	return nil
}

// markConnected moves mac to Connected and resolves the group role when no
// group is known yet.
func (s *Session) markConnected(ctx context.Context, mac peer.MAC) {
	s.peers.Upsert(mac, peer.Update{})
	s.peers.SetConnected(mac, true)
	s.conns[mac] = &conn{state: ConnConnected}
	s.resolveGroup(ctx)
}

// dropConnection returns mac to None and reports whether that implicitly
// destroyed the group: a client losing its owner, or the last member leaving
// a negotiated group this device owns. Autonomous groups survive.
func (s *Session) dropConnection(mac peer.MAC) bool {
	delete(s.conns, mac)
	s.peers.SetConnected(mac, false)
	if s.group == nil {
		return false
	}
	switch s.group.Role {
	case GroupClient:
		s.group = nil
		return true
	case GroupOwner:
		if !s.group.Autonomous && s.connectedCount() == 0 {
			s.group = nil
			return true
		}
	}
	return false
}

// resolveGroup creates the group record after negotiation, asking the daemon
// which side became owner.
func (s *Session) resolveGroup(ctx context.Context) {
	if s.group != nil {
		return
	}
	role := GroupClient
	owner, err := s.callBool(ctx, IfaceGroup, "IsGroupOwner")
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to resolve group role, assuming client")
	} else if owner {
		role = GroupOwner
	}
	s.group = s.newGroup(role, false)
}

func (s *Session) newGroup(role GroupRole, autonomous bool) *Group {
	return &Group{
		Role:       role,
		Autonomous: autonomous,
		Intent:     s.settings.GroupOwnerIntent,
		MaxClients: s.settings.MaxClients,
		Persistent: s.settings.PersistentGroup,
	}
}
