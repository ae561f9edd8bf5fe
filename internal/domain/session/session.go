// Package session implements the Wi-Fi Direct connection and group state
// machine. A Session owns the peer registry, the service registry and the
// display tracker; it is mutated only by request operations and by
// HandleEvent, both under one exclusive lock.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tizenorg/wfd-manager/internal/domain/display"
	"github.com/tizenorg/wfd-manager/internal/domain/peer"
	"github.com/tizenorg/wfd-manager/internal/domain/service"
)

// conn is the connection sub-state of one peer. Peers in ConnNone have no entry.
type conn struct {
	state    ConnState
	incoming bool
}

// Session is the single process-wide Wi-Fi Direct session.
type Session struct {
	mu sync.RWMutex

	id     string
	caller Caller
	store  Store
	cfg    Config
	now    func() time.Time
	logger zerolog.Logger

	activation     ActivationState
	discovery      DiscoveryState
	discoveryStart time.Time
	conns          map[peer.MAC]*conn
	group          *Group
	settings       Settings
	closed         bool
	// set by a requested deactivation until the daemon confirms it
	deactivating   bool

	peers    *peer.Registry
	services *service.Registry
	display  *display.Tracker

	cb callbacks
}

// New creates a deactivated session. store may be nil.
func New(caller Caller, store Store, cfg Config) *Session {
	id := uuid.NewString()
	s := &Session{
		id:       id,
		caller:   caller,
		store:    store,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		logger:   log.With().Str("session", id).Logger(),
		conns:    make(map[peer.MAC]*conn),
		settings: loadSettings(store),
		peers:    peer.NewRegistry(),
		services: service.NewRegistry(),
		display:  display.NewTracker(),
	}
	s.logger.Info().
		Int("goIntent", s.settings.GroupOwnerIntent).
		Int("maxClients", s.settings.MaxClients).
		Str("wpsType", s.settings.WPSType.String()).
		Msg("Session created")
	return s
}

// SetClock replaces the time source. Intended for tests.
func (s *Session) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	s.peers.SetClock(now)
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Close tears the session down. Local state is discarded without contacting
// the daemon; call Deactivate first to switch the radio off.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.teardown()
	s.services.Clear()
	s.logger.Info().Msg("Session closed")
}

// call performs one bounded round-trip. Callers hold s.mu. A leading int32
// in the reply is the daemon result code and is stripped from the body.
func (s *Session) call(ctx context.Context, iface, method string, args ...interface{}) ([]interface{}, error) {
	if s.closed {
		return nil, fmt.Errorf("%w: session closed", ErrNotInitialized)
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	reply, err := s.caller.Call(ctx, iface, method, args...)
	if err != nil {
		s.logger.Warn().Err(err).Str("iface", iface).Str("method", method).Msg("Daemon call failed")
		return nil, fmt.Errorf("%w: %s: %v", ErrCommunicationFailed, method, err)
	}
	if len(reply) > 0 {
		if code, ok := reply[0].(int32); ok {
			if err := resultError(method, ResultCode(code)); err != nil {
				s.logger.Debug().Str("method", method).Int32("code", code).Msg("Daemon rejected request")
				return nil, err
			}
			return reply[1:], nil
		}
	}
	return reply, nil
}

func (s *Session) callInt(ctx context.Context, iface, method string, args ...interface{}) (int, error) {
	body, err := s.call(ctx, iface, method, args...)
	if err != nil {
		return 0, err
	}
	return replyInt(method, body, 0)
}

func (s *Session) callString(ctx context.Context, iface, method string, args ...interface{}) (string, error) {
	body, err := s.call(ctx, iface, method, args...)
	if err != nil {
		return "", err
	}
	return replyString(method, body, 0)
}

func (s *Session) callBool(ctx context.Context, iface, method string, args ...interface{}) (bool, error) {
	body, err := s.call(ctx, iface, method, args...)
	if err != nil {
		return false, err
	}
	return replyBool(method, body, 0)
}

// teardown resets all radio-dependent state to Deactivated. Callers hold s.mu.
func (s *Session) teardown() {
	s.activation = Deactivated
	s.discovery = DiscoveryIdle
	s.discoveryStart = time.Time{}
	s.conns = make(map[peer.MAC]*conn)
	s.group = nil
	s.peers.Reset()
	s.services.Reset()
	s.display.Reset()
}

func (s *Session) requireActivated() error {
	switch s.activation {
	case Activated:
		return nil
	case Activating:
		return notPermitted("activation in progress")
	default:
		return ErrNotInitialized
	}
}

func (s *Session) requireFeature(enabled bool, name string) error {
	if !enabled {
		return fmt.Errorf("%w: %s", ErrNotSupported, name)
	}
	return nil
}

func (s *Session) connState(mac peer.MAC) ConnState {
	if c, ok := s.conns[mac]; ok {
		return c.state
	}
	return ConnNone
}

func (s *Session) connectedCount() int {
	n := 0
	for _, c := range s.conns {
		if c.state == ConnConnected {
			n++
		}
	}
	return n
}

// deviceState derives the internal device state. Callers hold s.mu.
func (s *Session) deviceState() DeviceState {
	switch s.activation {
	case Deactivated:
		return StateDeactivated
	case Activating:
		return StateActivating
	}
	if s.group != nil && s.group.Role == GroupOwner {
		return StateGroupOwner
	}
	if s.connectedCount() > 0 || s.group != nil {
		return StateConnected
	}
	for _, c := range s.conns {
		if c.state == ConnConnecting {
			return StateConnecting
		}
	}
	if s.discovery != DiscoveryIdle {
		return StateDiscovering
	}
	return StateActivated
}

// GetState returns the public device state. GroupOwner is reported as Connected;
// use IsGroupOwner to distinguish the roles.
func (s *Session) GetState() DeviceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.deviceState()
	if st == StateGroupOwner {
		return StateConnected
	}
	return st
}

// Activation returns the activation sub-state.
func (s *Session) Activation() ActivationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activation
}

// Discovery returns the discovery sub-state.
func (s *Session) Discovery() DiscoveryState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.discovery
}

// ConnectionState returns the connection sub-state of mac.
func (s *Session) ConnectionState(mac peer.MAC) ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connState(mac)
}

// Settings returns the current persisted preferences.
func (s *Session) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Snapshot returns a consistent copy of the whole session.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		ID:          s.id,
		Activation:  s.activation,
		Discovery:   s.discovery,
		State:       s.deviceState(),
		Peers:       s.peers.List(),
		Connections: make(map[string]string, len(s.conns)),
		Services:    s.services.Records(),
		Queries:     s.services.Pending(),
		Display:     s.display.Local(),
		Settings:    s.settings,
	}
	if snap.State == StateGroupOwner {
		snap.State = StateConnected
	}
	for mac, c := range s.conns {
		snap.Connections[mac.String()] = c.state.String()
	}
	if s.group != nil {
		g := *s.group
		snap.Group = &g
	}
	return snap
}

// ListPeers returns every known peer in first-seen order.
func (s *Session) ListPeers() []peer.Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peers.List()
}

// GetPeerInfo returns the record for mac.
func (s *Session) GetPeerInfo(mac peer.MAC) (peer.Peer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activation == Deactivated {
		return peer.Peer{}, ErrNotInitialized
	}
	p, ok := s.peers.Get(mac)
	if !ok {
		return peer.Peer{}, invalidParam("unknown peer %s", mac)
	}
	return p, nil
}

// ListConnectedPeers returns connected peers in first-seen order.
func (s *Session) ListConnectedPeers() ([]peer.Peer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activation == Deactivated {
		return nil, ErrNotInitialized
	}
	return s.peers.Connected(), nil
}

// Group returns a copy of the current group, or nil.
func (s *Session) Group() *Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.group == nil {
		return nil
	}
	g := *s.group
	return &g
}

// Services returns local advertisements ordered by id.
func (s *Session) Services() []service.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.services.Records()
}

// PendingQueries returns open service-discovery queries in start order.
func (s *Session) PendingQueries() []service.Query {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.services.Pending()
}
