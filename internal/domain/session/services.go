package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/tizenorg/wfd-manager/internal/domain/peer"
	"github.com/tizenorg/wfd-manager/internal/domain/service"
)

// serviceError maps registry errors onto session sentinels.
func serviceError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidParameter):
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	case errors.Is(err, service.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

// RegisterService advertises a local service and returns its id.
func (s *Session) RegisterService(ctx context.Context, t service.Type, info1, info2 string) (service.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireFeature(s.cfg.Features.ServiceDiscovery, "service discovery"); err != nil {
		return 0, err
	}
	if err := service.Validate(t, info1, info2); err != nil {
		return 0, serviceError(err)
	}
	wire := info1 + service.Separator + info2
	handle, err := s.callInt(ctx, IfaceService, "Register", int32(t), wire)
	if err != nil {
		return 0, err
	}
	id, err := s.services.Register(t, info1, info2)
	if err != nil {
		return 0, serviceError(err)
	}
	s.services.Bind(id, int32(handle))
	s.logger.Info().
		Uint32("id", uint32(id)).
		Str("type", t.String()).
		Int("handle", handle).
		Msg("Service registered")
	return id, nil
}

// DeregisterService withdraws a local advertisement. Unknown ids fail with
// ErrNotFound without contacting the daemon.
func (s *Session) DeregisterService(ctx context.Context, id service.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireFeature(s.cfg.Features.ServiceDiscovery, "service discovery"); err != nil {
		return err
	}
	rec, ok := s.services.Get(id)
	if !ok {
		return fmt.Errorf("%w: service %d", ErrNotFound, id)
	}
	if _, err := s.call(ctx, IfaceService, "Deregister", rec.Handle); err != nil {
		return err
	}
	return serviceError(s.services.Deregister(id))
}

// StartServiceDiscovery queries target for services of type t. The zero MAC
// (peer.Broadcast) queries every peer.
func (s *Session) StartServiceDiscovery(ctx context.Context, target peer.MAC, t service.Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireFeature(s.cfg.Features.ServiceDiscovery, "service discovery"); err != nil {
		return err
	}
	if err := s.requireActivated(); err != nil {
		return err
	}
	if !t.Discoverable() {
		return invalidParam("service type %d is not discoverable", int(t))
	}
	if _, err := s.call(ctx, IfaceService, "StartDiscovery", int32(t), target.String()); err != nil {
		return err
	}
	s.services.StartQuery(target, t)
	s.logger.Info().Str("mac", target.String()).Str("type", t.String()).Msg("Service discovery started")
	return nil
}

// CancelServiceDiscovery closes a pending query without notification.
func (s *Session) CancelServiceDiscovery(ctx context.Context, target peer.MAC, t service.Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireFeature(s.cfg.Features.ServiceDiscovery, "service discovery"); err != nil {
		return err
	}
	if err := s.requireActivated(); err != nil {
		return err
	}
	if !t.Discoverable() {
		return invalidParam("service type %d is not discoverable", int(t))
	}
	pending := false
	for _, q := range s.services.Pending() {
		if q.Target == target && q.Type == t {
			pending = true
			break
		}
	}
	if !pending {
		return notPermitted("no pending %s query for %s", t, target)
	}
	if _, err := s.call(ctx, IfaceService, "StopDiscovery", int32(t), target.String()); err != nil {
		return err
	}
	s.services.CancelQuery(target, t)
	return nil
}
