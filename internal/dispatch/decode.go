// Package dispatch turns daemon bus signals into session events and feeds
// them to the session one at a time.
package dispatch

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/tizenorg/wfd-manager/internal/domain/peer"
	"github.com/tizenorg/wfd-manager/internal/domain/service"
	"github.com/tizenorg/wfd-manager/internal/domain/session"
)

var (
	// ErrUnknownSignal is returned for signals with no decoder.
	ErrUnknownSignal = errors.New("unknown signal")
	// ErrMalformed is returned when a signal payload does not match its signature.
	ErrMalformed = errors.New("malformed signal")
)

type decoder func(body []interface{}) (session.Event, error)

type member struct {
	iface string
	name  string
}

var decoders = map[member]decoder{
	{session.IfaceManage, "Activation"}:        decodeActivation,
	{session.IfaceManage, "Deactivation"}:      decodeDeactivation,
	{session.IfaceManage, "DiscoveryStarted"}:  discovery(session.DiscoveryStarted),
	{session.IfaceManage, "ListenStarted"}:     discovery(session.DiscoveryListenStarted),
	{session.IfaceManage, "DiscoveryFinished"}: discovery(session.DiscoveryFinished),
	{session.IfaceManage, "PeerFound"}:         decodePeerFound,
	{session.IfaceManage, "PeerLost"}:          decodePeerLost,
	{session.IfaceManage, "Connection"}:        decodeConnection,
	{session.IfaceManage, "Disconnection"}:     decodeDisconnection,
	{session.IfaceManage, "PeerIPAssigned"}:    decodeIPAssigned,

	{session.IfaceGroup, "Created"}:   constant(session.GroupCreatedEvent{}),
	{session.IfaceGroup, "Destroyed"}: constant(session.GroupDestroyedEvent{}),

	{session.IfaceService, "DiscoveryStarted"}:  constant(session.ServiceStartedEvent{}),
	{session.IfaceService, "DiscoveryFound"}:    decodeServiceFound,
	{session.IfaceService, "DiscoveryFinished"}: constant(session.ServiceFinishedEvent{}),
}

// Decode maps a bus signal onto its session event.
func Decode(sig session.Signal) (session.Event, error) {
	dec, ok := decoders[member{sig.Interface, sig.Name}]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownSignal, sig.Interface, sig.Name)
	}
	ev, err := dec(sig.Body)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", sig.Interface, sig.Name, err)
	}
	return ev, nil
}

func constant(ev session.Event) decoder {
	return func([]interface{}) (session.Event, error) { return ev, nil }
}

func discovery(kind session.DiscoveryKind) decoder {
	return func([]interface{}) (session.Event, error) {
		return session.DiscoveryEvent{Kind: kind}, nil
	}
}

func decodeActivation(body []interface{}) (session.Event, error) {
	code, err := intArg(body, 0)
	if err != nil {
		return nil, err
	}
	return session.ActivationEvent{Code: session.ResultCode(code)}, nil
}

func decodeDeactivation(body []interface{}) (session.Event, error) {
	code, err := intArg(body, 0)
	if err != nil {
		return nil, err
	}
	return session.DeactivationEvent{Code: session.ResultCode(code)}, nil
}

func decodePeerFound(body []interface{}) (session.Event, error) {
	mac, err := macArg(body, 0)
	if err != nil {
		return nil, err
	}
	return session.PeerFoundEvent{MAC: mac}, nil
}

func decodePeerLost(body []interface{}) (session.Event, error) {
	mac, err := macArg(body, 0)
	if err != nil {
		return nil, err
	}
	return session.PeerLostEvent{MAC: mac}, nil
}

// connectionArgs reads the (iis) code, state, mac triple.
func connectionArgs(body []interface{}) (session.ResultCode, session.ConnectionState, peer.MAC, error) {
	code, err := intArg(body, 0)
	if err != nil {
		return 0, 0, peer.MAC{}, err
	}
	state, err := intArg(body, 1)
	if err != nil {
		return 0, 0, peer.MAC{}, err
	}
	if state < int(session.ConnectionReq) || state > int(session.GroupDestroyed) {
		return 0, 0, peer.MAC{}, fmt.Errorf("%w: connection state %d", ErrMalformed, state)
	}
	mac, err := macArg(body, 2)
	if err != nil {
		return 0, 0, peer.MAC{}, err
	}
	return session.ResultCode(code), session.ConnectionState(state), mac, nil
}

func decodeConnection(body []interface{}) (session.Event, error) {
	code, state, mac, err := connectionArgs(body)
	if err != nil {
		return nil, err
	}
	return session.ConnectionEvent{Code: code, State: state, MAC: mac}, nil
}

func decodeDisconnection(body []interface{}) (session.Event, error) {
	code, state, mac, err := connectionArgs(body)
	if err != nil {
		return nil, err
	}
	return session.DisconnectionEvent{Code: code, State: state, MAC: mac}, nil
}

func decodeIPAssigned(body []interface{}) (session.Event, error) {
	mac, err := macArg(body, 0)
	if err != nil {
		return nil, err
	}
	raw, err := stringArg(body, 1)
	if err != nil {
		return nil, err
	}
	ip, err := netip.ParseAddr(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: ip %q", ErrMalformed, raw)
	}
	return session.IPAssignedEvent{MAC: mac, IP: ip}, nil
}

func decodeServiceFound(body []interface{}) (session.Event, error) {
	t, err := intArg(body, 0)
	if err != nil {
		return nil, err
	}
	data, err := stringArg(body, 1)
	if err != nil {
		return nil, err
	}
	mac, err := macArg(body, 2)
	if err != nil {
		return nil, err
	}
	return session.ServiceFoundEvent{Type: service.Type(t), Data: data, MAC: mac}, nil
}

func intArg(body []interface{}, i int) (int, error) {
	if i >= len(body) {
		return 0, fmt.Errorf("%w: missing arg %d", ErrMalformed, i)
	}
	v, ok := session.ToInt(body[i])
	if !ok {
		return 0, fmt.Errorf("%w: arg %d: want int, got %T", ErrMalformed, i, body[i])
	}
	return v, nil
}

func stringArg(body []interface{}, i int) (string, error) {
	if i >= len(body) {
		return "", fmt.Errorf("%w: missing arg %d", ErrMalformed, i)
	}
	v, ok := body[i].(string)
	if !ok {
		return "", fmt.Errorf("%w: arg %d: want string, got %T", ErrMalformed, i, body[i])
	}
	return v, nil
}

func macArg(body []interface{}, i int) (peer.MAC, error) {
	raw, err := stringArg(body, i)
	if err != nil {
		return peer.MAC{}, err
	}
	mac, err := peer.ParseMAC(raw)
	if err != nil {
		return peer.MAC{}, fmt.Errorf("%w: arg %d: %v", ErrMalformed, i, err)
	}
	return mac, nil
}
