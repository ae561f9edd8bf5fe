package socketio

import (
	"github.com/tizenorg/wfd-manager/internal/domain/display"
	"github.com/tizenorg/wfd-manager/internal/domain/peer"
	"github.com/tizenorg/wfd-manager/internal/domain/session"
)

func resultPayload(op string, err error) map[string]interface{} {
	out := map[string]interface{}{
		"op":    op,
		"ok":    err == nil,
		"code":  int32(session.Code(err)),
		"error": "",
	}
	if err != nil {
		out["error"] = err.Error()
	}
	return out
}

// withError adds the error fields carried by failed notices.
func withError(out map[string]interface{}, err error) map[string]interface{} {
	out["code"] = int32(session.Code(err))
	if err != nil {
		out["error"] = err.Error()
	}
	return out
}

func peersPayload(peers []peer.Peer) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(peers))
	for _, p := range peers {
		out = append(out, p.ToJSON())
	}
	return out
}

func activationPayload(n session.ActivationNotice) map[string]interface{} {
	return withError(map[string]interface{}{
		"state": n.State.String(),
	}, n.Err)
}

func discoveryPayload(n session.DiscoveryNotice) map[string]interface{} {
	out := map[string]interface{}{
		"kind": n.Kind.String(),
	}
	if n.Kind == session.DiscoveryFinished {
		out["peers"] = peersPayload(n.Peers)
	}
	return withError(out, n.Err)
}

func peerPayload(n session.PeerNotice) map[string]interface{} {
	return map[string]interface{}{
		"kind": n.Kind.String(),
		"peer": n.Peer.ToJSON(),
	}
}

func connectionPayload(n session.ConnectionNotice) map[string]interface{} {
	out := map[string]interface{}{
		"state": n.State.String(),
	}
	if n.MAC != (peer.MAC{}) {
		out["mac"] = n.MAC.String()
	}
	return withError(out, n.Err)
}

func ipAssignedPayload(n session.IPAssignedNotice) map[string]interface{} {
	return map[string]interface{}{
		"mac":       n.MAC.String(),
		"ip":        n.IP.String(),
		"interface": n.Interface,
	}
}

func servicePayload(n session.ServiceNotice) map[string]interface{} {
	out := map[string]interface{}{
		"kind": n.Kind.String(),
	}
	if n.Kind != session.ServiceDiscoveryStarted {
		out["type"] = n.Type.String()
		out["mac"] = n.MAC.String()
	}
	if n.Data != "" {
		out["data"] = n.Data
	}
	if n.Bonjour != nil {
		out["bonjour"] = n.Bonjour
	}
	return out
}

func displayPayload(mac peer.MAC, c display.Capability) map[string]interface{} {
	return map[string]interface{}{
		"mac":        mac.String(),
		"type":       c.Type.String(),
		"port":       c.Port,
		"hdcp":       c.HDCP,
		"throughput": c.Throughput,
		"available":  c.Available,
		"negotiated": c.Negotiated,
	}
}

// wpsTypesPayload lists the methods in the supported bitmask by name.
func wpsTypesPayload(supported, local, requested session.WPSType) map[string]interface{} {
	names := make([]string, 0, 3)
	for _, t := range []session.WPSType{session.WPSPBC, session.WPSPinDisplay, session.WPSPinKeypad} {
		if supported&t != 0 {
			names = append(names, t.String())
		}
	}
	return map[string]interface{}{
		"supported":     int(supported),
		"supportedList": names,
		"local":         local.String(),
		"requested":     requested.String(),
	}
}
