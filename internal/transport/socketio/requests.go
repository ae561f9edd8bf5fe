package socketio

import (
	"context"
	"fmt"
	"math"

	"github.com/miekg/dns"
	"github.com/rs/zerolog/log"

	"github.com/tizenorg/wfd-manager/internal/domain/display"
	"github.com/tizenorg/wfd-manager/internal/domain/peer"
	"github.com/tizenorg/wfd-manager/internal/domain/service"
	"github.com/tizenorg/wfd-manager/internal/domain/session"
)

// request runs one client request. A non-empty push is emitted to the
// requesting client with data before the pushResult.
type request func(ctx context.Context, args map[string]interface{}) (push string, data interface{}, err error)

type response struct {
	result map[string]interface{}
	push   string
	data   interface{}
}

// handle runs op with the raw socket arguments.
func (s *Server) handle(op string, raw []any) response {
	req, ok := s.requests[op]
	if !ok {
		err := fmt.Errorf("%w: unknown request %q", session.ErrNotSupported, op)
		return response{result: resultPayload(op, err)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.RequestTimeout)
	defer cancel()

	push, data, err := req(ctx, argMap(raw))
	if err != nil {
		log.Warn().Err(err).Str("op", op).Int32("code", int32(session.Code(err))).Msg("Request failed")
		return response{result: resultPayload(op, err)}
	}
	return response{result: resultPayload(op, nil), push: push, data: data}
}

func (s *Server) requestTable() map[string]request {
	sess := s.session
	return map[string]request{
		"activate":   noArgs(sess.Activate),
		"deactivate": noArgs(sess.Deactivate),
		"getState": func(context.Context, map[string]interface{}) (string, interface{}, error) {
			return "pushState", sess.Snapshot().ToJSON(), nil
		},

		// Discovery
		"startDiscovery": func(ctx context.Context, m map[string]interface{}) (string, interface{}, error) {
			var opts session.DiscoveryOptions
			var err error
			if opts.ListenOnly, err = optBool(m, "listenOnly", false); err != nil {
				return "", nil, err
			}
			if opts.Timeout, err = optInt(m, "timeout", 0); err != nil {
				return "", nil, err
			}
			ch, err := optInt(m, "channel", int(session.ChannelFullScan))
			if err != nil {
				return "", nil, err
			}
			opts.Channel = session.Channel(ch)
			return "", nil, sess.StartDiscovery(ctx, opts)
		},
		"cancelDiscovery": noArgs(sess.CancelDiscovery),
		"getPeers": func(context.Context, map[string]interface{}) (string, interface{}, error) {
			return "pushPeers", peersPayload(sess.ListPeers()), nil
		},
		"refreshPeers": func(ctx context.Context, _ map[string]interface{}) (string, interface{}, error) {
			peers, err := sess.RefreshPeers(ctx)
			if err != nil {
				return "", nil, err
			}
			return "pushPeers", peersPayload(peers), nil
		},
		"getPeerInfo": func(_ context.Context, m map[string]interface{}) (string, interface{}, error) {
			mac, err := macArg(m, "mac")
			if err != nil {
				return "", nil, err
			}
			p, err := sess.GetPeerInfo(mac)
			if err != nil {
				return "", nil, err
			}
			return "pushPeerInfo", p.ToJSON(), nil
		},
		"getConnectedPeers": func(context.Context, map[string]interface{}) (string, interface{}, error) {
			peers, err := sess.ListConnectedPeers()
			if err != nil {
				return "", nil, err
			}
			return "pushConnectedPeers", peersPayload(peers), nil
		},

		// Connections
		"connect":          withMAC(sess.Connect),
		"cancelConnection": withMAC(sess.CancelConnection),
		"rejectConnection": withMAC(sess.RejectConnection),
		"acceptConnection": withMAC(sess.AcceptConnection),
		"disconnect":       withMAC(sess.Disconnect),
		"disconnectAll":    noArgs(sess.DisconnectAll),

		// Group and WPS
		"createGroup":        noArgs(sess.CreateGroup),
		"destroyGroup":       noArgs(sess.DestroyGroup),
		"activatePushButton": noArgs(sess.ActivatePushButton),
		"setGoIntent": func(ctx context.Context, m map[string]interface{}) (string, interface{}, error) {
			intent, err := intArg(m, "intent")
			if err != nil {
				return "", nil, err
			}
			return "", nil, sess.SetGroupOwnerIntent(ctx, intent)
		},
		"setMaxClients": func(ctx context.Context, m map[string]interface{}) (string, interface{}, error) {
			n, err := intArg(m, "max")
			if err != nil {
				return "", nil, err
			}
			return "", nil, sess.SetMaxClients(ctx, n)
		},
		"setWpsPin": func(ctx context.Context, m map[string]interface{}) (string, interface{}, error) {
			pin, err := stringArg(m, "pin")
			if err != nil {
				return "", nil, err
			}
			return "", nil, sess.SetPIN(ctx, pin)
		},
		"getWpsPin": func(ctx context.Context, _ map[string]interface{}) (string, interface{}, error) {
			pin, err := sess.GetPIN(ctx)
			if err != nil {
				return "", nil, err
			}
			return "pushWpsPin", map[string]interface{}{"pin": pin}, nil
		},
		"setWpsType": func(ctx context.Context, m map[string]interface{}) (string, interface{}, error) {
			t, err := wpsTypeArg(m, "type")
			if err != nil {
				return "", nil, err
			}
			return "", nil, sess.SetRequestedWPSType(ctx, t)
		},
		"setPassphrase": func(ctx context.Context, m map[string]interface{}) (string, interface{}, error) {
			p, err := stringArg(m, "passphrase")
			if err != nil {
				return "", nil, err
			}
			return "", nil, sess.SetPassphrase(ctx, p)
		},
		"setDeviceName": func(ctx context.Context, m map[string]interface{}) (string, interface{}, error) {
			name, err := stringArg(m, "name")
			if err != nil {
				return "", nil, err
			}
			return "", nil, sess.SetDeviceName(ctx, name)
		},
		"getWpsTypes": func(ctx context.Context, _ map[string]interface{}) (string, interface{}, error) {
			supported, err := sess.SupportedWPSTypes(ctx)
			if err != nil {
				return "", nil, err
			}
			local, err := sess.LocalWPSType(ctx)
			if err != nil {
				return "", nil, err
			}
			return "pushWpsTypes", wpsTypesPayload(supported, local, sess.RequestedWPSType()), nil
		},
		"getDeviceName": func(ctx context.Context, _ map[string]interface{}) (string, interface{}, error) {
			name, err := sess.DeviceName(ctx)
			if err != nil {
				return "", nil, err
			}
			return "pushDeviceName", map[string]interface{}{"name": name}, nil
		},
		"setAutoConnection":     withBool("enabled", sess.SetAutoConnection),
		"setAutoConnectionPeer": withMAC(sess.SetAutoConnectionPeer),
		"getAutoConnection": func(context.Context, map[string]interface{}) (string, interface{}, error) {
			return "pushAutoConnection", map[string]interface{}{"enabled": sess.IsAutoConnection()}, nil
		},
		"setPersistentGroup": withBool("enabled", sess.SetPersistentGroupEnabled),
		"getPersistentGroup": func(context.Context, map[string]interface{}) (string, interface{}, error) {
			return "pushPersistentGroup", map[string]interface{}{"enabled": sess.IsPersistentGroupEnabled()}, nil
		},
		"getPersistentGroups": func(ctx context.Context, _ map[string]interface{}) (string, interface{}, error) {
			groups, err := sess.PersistentGroups(ctx)
			if err != nil {
				return "", nil, err
			}
			out := make([]map[string]interface{}, 0, len(groups))
			for _, g := range groups {
				out = append(out, map[string]interface{}{"goAddress": g.GOAddress.String(), "ssid": g.SSID})
			}
			return "pushPersistentGroups", out, nil
		},
		"removePersistentGroup": func(ctx context.Context, m map[string]interface{}) (string, interface{}, error) {
			mac, err := macArg(m, "mac")
			if err != nil {
				return "", nil, err
			}
			ssid, err := stringArg(m, "ssid")
			if err != nil {
				return "", nil, err
			}
			return "", nil, sess.RemovePersistentGroup(ctx, mac, ssid)
		},
		"getGroupCredentials": func(ctx context.Context, _ map[string]interface{}) (string, interface{}, error) {
			c, err := sess.GroupCredentials(ctx)
			if err != nil {
				return "", nil, err
			}
			return "pushGroupCredentials", map[string]interface{}{
				"ssid":       c.SSID,
				"passphrase": c.Passphrase,
				"psk":        c.PSK,
				"qr":         c.QR(),
			}, nil
		},
		"getNetwork": func(ctx context.Context, _ map[string]interface{}) (string, interface{}, error) {
			return s.network(ctx)
		},

		// Services
		"registerService": func(ctx context.Context, m map[string]interface{}) (string, interface{}, error) {
			t, info1, info2, err := serviceArgs(m)
			if err != nil {
				return "", nil, err
			}
			id, err := sess.RegisterService(ctx, t, info1, info2)
			if err != nil {
				return "", nil, err
			}
			return "pushServiceRegistered", map[string]interface{}{"id": uint32(id), "type": t.String()}, nil
		},
		"deregisterService": func(ctx context.Context, m map[string]interface{}) (string, interface{}, error) {
			id, err := intArg(m, "id")
			if err != nil {
				return "", nil, err
			}
			if id <= 0 {
				return "", nil, fmt.Errorf("%w: service id %d", session.ErrInvalidParameter, id)
			}
			return "", nil, sess.DeregisterService(ctx, service.ID(id))
		},
		"startServiceDiscovery":  withQuery(sess.StartServiceDiscovery),
		"cancelServiceDiscovery": withQuery(sess.CancelServiceDiscovery),

		// Display
		"initDisplay":   noArgs(sess.InitDisplay),
		"deinitDisplay": noArgs(sess.DeinitDisplay),
		"setDisplay": func(ctx context.Context, m map[string]interface{}) (string, interface{}, error) {
			t, err := intArg(m, "type")
			if err != nil {
				return "", nil, err
			}
			port, err := intArg(m, "port")
			if err != nil {
				return "", nil, err
			}
			hdcp, err := optInt(m, "hdcp", 0)
			if err != nil {
				return "", nil, err
			}
			return "", nil, sess.SetLocalDisplay(ctx, display.Type(t), port, hdcp)
		},
		"setDisplayAvailability": withBool("available", sess.SetDisplayAvailability),
		"getDisplay": func(context.Context, map[string]interface{}) (string, interface{}, error) {
			return "pushDisplay", sess.LocalDisplay(), nil
		},
		"getPeerDisplay": func(ctx context.Context, m map[string]interface{}) (string, interface{}, error) {
			mac, err := macArg(m, "mac")
			if err != nil {
				return "", nil, err
			}
			refresh, err := optBool(m, "refresh", false)
			if err != nil {
				return "", nil, err
			}
			var c display.Capability
			if refresh {
				c, err = sess.RefreshPeerDisplay(ctx, mac)
			} else {
				c, err = sess.PeerDisplay(mac)
			}
			if err != nil {
				return "", nil, err
			}
			return "pushPeerDisplay", displayPayload(mac, c), nil
		},
	}
}

// network collects the addressing of the current connection.
func (s *Server) network(ctx context.Context) (string, interface{}, error) {
	ip, err := s.session.GetIPAddress(ctx)
	if err != nil {
		return "", nil, err
	}
	out := map[string]interface{}{"ip": ip.String()}
	if mask, err := s.session.GetSubnetMask(ctx); err == nil {
		out["subnet"] = mask.String()
	}
	if gw, err := s.session.GetGateway(ctx); err == nil {
		out["gateway"] = gw.String()
	}
	if name, err := s.session.GetInterfaceName(ctx); err == nil {
		out["interface"] = name
	}
	if mac, err := s.session.GetMACAddress(ctx); err == nil {
		out["mac"] = mac.String()
	}
	if ssid, err := s.session.GetSSID(ctx); err == nil {
		out["ssid"] = ssid
	}
	if ch, err := s.session.GetOperatingChannel(ctx); err == nil {
		out["channel"] = ch
	}
	return "pushNetwork", out, nil
}

// serviceArgs parses {type, info1, info2}, or the Bonjour form
// {name, rrtype?, txt} which is encoded into info1 and info2.
func serviceArgs(m map[string]interface{}) (service.Type, string, string, error) {
	if _, ok := m["name"]; !ok {
		t, err := intArg(m, "type")
		if err != nil {
			return 0, "", "", err
		}
		info1, err := stringArg(m, "info1")
		if err != nil {
			return 0, "", "", err
		}
		info2, _ := m["info2"].(string)
		return service.Type(t), info1, info2, nil
	}

	t, err := optInt(m, "type", int(service.TypeBonjour))
	if err != nil {
		return 0, "", "", err
	}
	if service.Type(t) != service.TypeBonjour {
		return 0, "", "", fmt.Errorf("%w: name is only valid for bonjour services", session.ErrInvalidParameter)
	}
	name, err := stringArg(m, "name")
	if err != nil {
		return 0, "", "", err
	}
	rrtype, err := optInt(m, "rrtype", int(dns.TypeTXT))
	if err != nil {
		return 0, "", "", err
	}
	if rrtype <= 0 || rrtype > math.MaxUint16 {
		return 0, "", "", fmt.Errorf("%w: rrtype %d", session.ErrInvalidParameter, rrtype)
	}
	info1, err := service.BonjourQuery(name, uint16(rrtype))
	if err != nil {
		return 0, "", "", fmt.Errorf("%w: %v", session.ErrInvalidParameter, err)
	}

	list, ok := m["txt"].([]interface{})
	if !ok || len(list) == 0 {
		return 0, "", "", fmt.Errorf("%w: txt must be a non-empty list of strings", session.ErrInvalidParameter)
	}
	txt := make([]string, 0, len(list))
	for _, v := range list {
		entry, ok := v.(string)
		if !ok {
			return 0, "", "", fmt.Errorf("%w: txt must be a non-empty list of strings", session.ErrInvalidParameter)
		}
		txt = append(txt, entry)
	}
	info2, err := service.BonjourTXT(txt)
	if err != nil {
		return 0, "", "", fmt.Errorf("%w: %v", session.ErrInvalidParameter, err)
	}
	return service.TypeBonjour, info1, info2, nil
}

func noArgs(fn func(context.Context) error) request {
	return func(ctx context.Context, _ map[string]interface{}) (string, interface{}, error) {
		return "", nil, fn(ctx)
	}
}

func withMAC(fn func(context.Context, peer.MAC) error) request {
	return func(ctx context.Context, m map[string]interface{}) (string, interface{}, error) {
		mac, err := macArg(m, "mac")
		if err != nil {
			return "", nil, err
		}
		return "", nil, fn(ctx, mac)
	}
}

func withBool(key string, fn func(context.Context, bool) error) request {
	return func(ctx context.Context, m map[string]interface{}) (string, interface{}, error) {
		v, ok := m[key].(bool)
		if !ok {
			return "", nil, fmt.Errorf("%w: %s must be a boolean", session.ErrInvalidParameter, key)
		}
		return "", nil, fn(ctx, v)
	}
}

// withQuery parses {mac?, type}. A missing mac queries every peer.
func withQuery(fn func(context.Context, peer.MAC, service.Type) error) request {
	return func(ctx context.Context, m map[string]interface{}) (string, interface{}, error) {
		target := peer.Broadcast
		if _, ok := m["mac"]; ok {
			mac, err := macArg(m, "mac")
			if err != nil {
				return "", nil, err
			}
			target = mac
		}
		t, err := optInt(m, "type", int(service.TypeAll))
		if err != nil {
			return "", nil, err
		}
		return "", nil, fn(ctx, target, service.Type(t))
	}
}

// argMap returns the first argument as an object, or an empty one.
func argMap(raw []any) map[string]interface{} {
	if len(raw) > 0 {
		if m, ok := raw[0].(map[string]interface{}); ok {
			return m
		}
	}
	return map[string]interface{}{}
}

func macArg(m map[string]interface{}, key string) (peer.MAC, error) {
	s, ok := m[key].(string)
	if !ok {
		return peer.MAC{}, fmt.Errorf("%w: %s is required", session.ErrInvalidParameter, key)
	}
	mac, err := peer.ParseMAC(s)
	if err != nil {
		return peer.MAC{}, fmt.Errorf("%w: %s: %v", session.ErrInvalidParameter, key, err)
	}
	return mac, nil
}

func stringArg(m map[string]interface{}, key string) (string, error) {
	s, ok := m[key].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", session.ErrInvalidParameter, key)
	}
	return s, nil
}

// intArg accepts JSON numbers, which arrive as float64, when they are integral.
func intArg(m map[string]interface{}, key string) (int, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", session.ErrInvalidParameter, key)
	}
	if f, ok := v.(float64); ok {
		if f != math.Trunc(f) || math.IsInf(f, 0) || f > math.MaxInt32 || f < math.MinInt32 {
			return 0, fmt.Errorf("%w: %s must be an integer", session.ErrInvalidParameter, key)
		}
		return int(f), nil
	}
	if n, ok := session.ToInt(v); ok {
		return n, nil
	}
	return 0, fmt.Errorf("%w: %s must be an integer", session.ErrInvalidParameter, key)
}

func optInt(m map[string]interface{}, key string, def int) (int, error) {
	if _, ok := m[key]; !ok {
		return def, nil
	}
	return intArg(m, key)
}

func optBool(m map[string]interface{}, key string, def bool) (bool, error) {
	v, ok := m[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a boolean", session.ErrInvalidParameter, key)
	}
	return b, nil
}

var wpsNames = map[string]session.WPSType{
	"pbc":         session.WPSPBC,
	"pin-display": session.WPSPinDisplay,
	"pin-keypad":  session.WPSPinKeypad,
}

// wpsTypeArg accepts the method name or its bitmask value.
func wpsTypeArg(m map[string]interface{}, key string) (session.WPSType, error) {
	if s, ok := m[key].(string); ok {
		t, ok := wpsNames[s]
		if !ok {
			return 0, fmt.Errorf("%w: unknown WPS type %q", session.ErrInvalidParameter, s)
		}
		return t, nil
	}
	n, err := intArg(m, key)
	if err != nil {
		return 0, err
	}
	return session.WPSType(n), nil
}
