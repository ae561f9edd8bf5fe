package session

import (
	"context"
	"fmt"

	"github.com/tizenorg/wfd-manager/internal/domain/display"
	"github.com/tizenorg/wfd-manager/internal/domain/peer"
)

func (s *Session) requireDisplay() error {
	if err := s.requireFeature(s.cfg.Features.Display, "wi-fi display"); err != nil {
		return err
	}
	return s.requireActivated()
}

// InitDisplay enables the local Wi-Fi Display subsystem.
func (s *Session) InitDisplay(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireDisplay(); err != nil {
		return err
	}
	if s.display.Local().Initialized {
		return ErrAlreadyInitialized
	}
	if _, err := s.call(ctx, IfaceDisplay, "Init"); err != nil {
		return err
	}
	s.display.Init()
	return nil
}

// DeinitDisplay disables the local Wi-Fi Display subsystem.
func (s *Session) DeinitDisplay(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireDisplay(); err != nil {
		return err
	}
	if !s.display.Local().Initialized {
		return ErrNotInitialized
	}
	if _, err := s.call(ctx, IfaceDisplay, "Deinit"); err != nil {
		return err
	}
	s.display.Deinit()
	return nil
}

// SetLocalDisplay configures the advertised display role, RTSP port and HDCP version.
func (s *Session) SetLocalDisplay(ctx context.Context, t display.Type, port, hdcp int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireDisplay(); err != nil {
		return err
	}
	if err := display.ValidateLocal(t, port, hdcp); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	if !s.display.Local().Initialized {
		return ErrNotInitialized
	}
	if _, err := s.call(ctx, IfaceDisplay, "SetConfig", int32(t), int32(port), int32(hdcp)); err != nil {
		return err
	}
	return s.display.SetLocal(t, port, hdcp)
}

// SetDisplayAvailability toggles whether the local display accepts sessions.
func (s *Session) SetDisplayAvailability(ctx context.Context, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireDisplay(); err != nil {
		return err
	}
	if !s.display.Local().Initialized {
		return ErrNotInitialized
	}
	v := int32(0)
	if available {
		v = 1
	}
	if _, err := s.call(ctx, IfaceDisplay, "SetAvailability", v); err != nil {
		return err
	}
	return s.display.SetAvailability(available)
}

// LocalDisplay returns the local display configuration.
func (s *Session) LocalDisplay() display.Local {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.display.Local()
}

// PeerDisplay returns the last negotiated capability of mac.
func (s *Session) PeerDisplay(mac peer.MAC) (display.Capability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireFeature(s.cfg.Features.Display, "wi-fi display"); err != nil {
		return display.Unknown, err
	}
	if s.activation == Deactivated {
		return display.Unknown, ErrNotInitialized
	}
	if !s.peers.Has(mac) {
		return display.Unknown, invalidParam("unknown peer %s", mac)
	}
	return s.display.Peer(mac), nil
}

// PeerDisplayType returns the display role of mac.
func (s *Session) PeerDisplayType(mac peer.MAC) (display.Type, error) {
	c, err := s.PeerDisplay(mac)
	return c.Type, err
}

// PeerDisplayPort returns the RTSP control port of mac.
func (s *Session) PeerDisplayPort(mac peer.MAC) (int, error) {
	c, err := s.PeerDisplay(mac)
	return c.Port, err
}

// PeerDisplayHDCP returns the HDCP version of mac.
func (s *Session) PeerDisplayHDCP(mac peer.MAC) (int, error) {
	c, err := s.PeerDisplay(mac)
	return c.HDCP, err
}

// PeerDisplayThroughput returns the maximum throughput of mac in Mbps.
func (s *Session) PeerDisplayThroughput(mac peer.MAC) (int, error) {
	c, err := s.PeerDisplay(mac)
	return c.Throughput, err
}

// PeerDisplayAvailability reports whether mac accepts display sessions.
func (s *Session) PeerDisplayAvailability(mac peer.MAC) (bool, error) {
	c, err := s.PeerDisplay(mac)
	return c.Available, err
}

// RefreshPeerDisplay re-reads the capability of mac from the daemon.
func (s *Session) RefreshPeerDisplay(ctx context.Context, mac peer.MAC) (display.Capability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireDisplay(); err != nil {
		return display.Unknown, err
	}
	if !s.peers.Has(mac) {
		return display.Unknown, invalidParam("unknown peer %s", mac)
	}
	return s.fetchPeerDisplay(ctx, mac)
}

// fetchPeerDisplay queries every capability attribute and records the result.
// Callers hold s.mu.
func (s *Session) fetchPeerDisplay(ctx context.Context, mac peer.MAC) (display.Capability, error) {
	addr := mac.String()
	var c display.Capability
	fields := []struct {
		method string
		dst    *int
	}{
		{"GetPeerType", (*int)(&c.Type)},
		{"GetPeerPort", &c.Port},
		{"GetPeerHdcp", &c.HDCP},
		{"GetPeerThroughput", &c.Throughput},
	}
	for _, f := range fields {
		v, err := s.callInt(ctx, IfaceDisplay, f.method, addr)
		if err != nil {
			return display.Unknown, err
		}
		*f.dst = v
	}
	avail, err := s.callInt(ctx, IfaceDisplay, "GetPeerAvailability", addr)
	if err != nil {
		return display.Unknown, err
	}
	c.Available = avail != 0
	return s.display.Record(mac, c), nil
}
