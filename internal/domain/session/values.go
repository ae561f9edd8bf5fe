package session

import (
	"fmt"
	"net/netip"

	"github.com/tizenorg/wfd-manager/internal/domain/peer"
)

// ErrMalformedReply is returned when a reply body does not have the expected
// shape. It matches ErrOperationFailed.
var ErrMalformedReply = fmt.Errorf("%w: malformed reply", ErrOperationFailed)

func malformed(method string, i int, want string, got interface{}) error {
	return fmt.Errorf("%w: %s arg %d: want %s, got %T", ErrMalformedReply, method, i, want, got)
}

// replyInt reads an integer argument. All bus integer widths are accepted.
func replyInt(method string, body []interface{}, i int) (int, error) {
	if i >= len(body) {
		return 0, malformed(method, i, "int", nil)
	}
	if v, ok := ToInt(body[i]); ok {
		return v, nil
	}
	return 0, malformed(method, i, "int", body[i])
}

func replyString(method string, body []interface{}, i int) (string, error) {
	if i < len(body) {
		if v, ok := body[i].(string); ok {
			return v, nil
		}
		return "", malformed(method, i, "string", body[i])
	}
	return "", malformed(method, i, "string", nil)
}

func replyBool(method string, body []interface{}, i int) (bool, error) {
	if i < len(body) {
		if v, ok := body[i].(bool); ok {
			return v, nil
		}
		return false, malformed(method, i, "bool", body[i])
	}
	return false, malformed(method, i, "bool", nil)
}

func replyDicts(method string, body []interface{}, i int) ([]map[string]interface{}, error) {
	if i < len(body) {
		if v, ok := body[i].([]map[string]interface{}); ok {
			return v, nil
		}
		return nil, malformed(method, i, "aa{sv}", body[i])
	}
	return nil, malformed(method, i, "aa{sv}", nil)
}

func replyDict(method string, body []interface{}, i int) (map[string]interface{}, error) {
	if i < len(body) {
		if v, ok := body[i].(map[string]interface{}); ok {
			return v, nil
		}
		return nil, malformed(method, i, "a{sv}", body[i])
	}
	return nil, malformed(method, i, "a{sv}", nil)
}

// ToInt converts any bus integer type to int.
func ToInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int32:
		return int(n), true
	case uint32:
		return int(n), true
	case int16:
		return int(n), true
	case uint16:
		return int(n), true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case byte:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

// DecodePeerDict converts a peer a{sv} dictionary into its MAC and an Update
// holding only the keys present.
func DecodePeerDict(d map[string]interface{}) (peer.MAC, peer.Update, error) {
	var u peer.Update

	raw, ok := d["DeviceAddress"].([]byte)
	if !ok {
		return peer.MAC{}, u, fmt.Errorf("%w: peer without DeviceAddress", ErrMalformedReply)
	}
	mac, err := peer.MACFromBytes(raw)
	if err != nil {
		return peer.MAC{}, u, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	if b, ok := d["InterfaceAddress"].([]byte); ok {
		if ia, err := peer.MACFromBytes(b); err == nil {
			u.InterfaceAddr = &ia
		}
	}
	if v, ok := d["DeviceName"].(string); ok {
		u.Name = &v
	}
	if v, ok := ToInt(d["Channel"]); ok {
		u.Channel = &v
	}
	if v, ok := ToInt(d["Category"]); ok {
		c := uint16(v)
		u.Category = &c
	}
	if v, ok := ToInt(d["SubCategory"]); ok {
		c := uint16(v)
		u.SubCategory = &c
	}
	if v, ok := ToInt(d["WpsCfgMethods"]); ok {
		m := uint32(v)
		u.WPSMethods = &m
	}
	if v, ok := ToInt(d["Services"]); ok {
		m := uint32(v)
		u.Services = &m
	}
	if v, ok := d["IsGroupOwner"].(bool); ok {
		u.IsGroupOwner = &v
	}
	if v, ok := d["IsPersistentGO"].(bool); ok {
		u.IsPersistentGO = &v
	}
	if v, ok := d["IsConnected"].(bool); ok {
		u.Connected = &v
	}
	if v, ok := d["IsWfdDevice"].(bool); ok {
		u.IsWFDDevice = &v
	}
	if v, ok := d["IsP2P"].(bool); ok {
		u.IsP2P = &v
	}
	if b, ok := d["IPAddress"].([]byte); ok && len(b) == 4 {
		ip := netip.AddrFrom4([4]byte{b[0], b[1], b[2], b[3]})
		u.IP = &ip
	}
	return mac, u, nil
}
