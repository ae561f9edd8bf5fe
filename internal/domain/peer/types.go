// Package peer provides the registry of remote Wi-Fi Direct devices seen over the air.
package peer

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxNameLen is the longest device name a peer record keeps, in bytes.
const MaxNameLen = 32

// ErrInvalidMAC is returned when a string is not a 6-byte colon-separated address.
var ErrInvalidMAC = errors.New("invalid MAC address")

// MAC is a 6-byte hardware address.
type MAC [6]byte

// Broadcast addresses every peer; service queries use it as a wildcard target.
var Broadcast = MAC{}

// ParseMAC parses "aa:bb:cc:dd:ee:ff".
func ParseMAC(s string) (MAC, error) {
	var m MAC
	if len(s) != 17 {
		return m, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
	}
	hw, err := net.ParseMAC(s)
	if err != nil || len(hw) != 6 {
		return m, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
	}
	copy(m[:], hw)
	return m, nil
}

// MACFromBytes converts a bus byte-array payload, which must be exactly 6 bytes.
func MACFromBytes(b []byte) (MAC, error) {
	var m MAC
	if len(b) != len(m) {
		return m, fmt.Errorf("%w: %d bytes", ErrInvalidMAC, len(b))
	}
	copy(m[:], b)
	return m, nil
}

// String formats the address in lower-case colon notation.
func (m MAC) String() string {
	return net.HardwareAddr(m[:]).String()
}

// IsBroadcast reports whether m is the all-zero address.
func (m MAC) IsBroadcast() bool {
	return m == Broadcast
}

// MarshalText implements encoding.TextMarshaler.
func (m MAC) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MAC) UnmarshalText(b []byte) error {
	v, err := ParseMAC(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Peer is one remote device. MAC is immutable once the record exists.
type Peer struct {
	MAC            MAC        `json:"mac"`
	InterfaceAddr  MAC        `json:"interfaceAddress"`
	Name           string     `json:"name"`
	Channel        int        `json:"channel"`
	Category       uint16     `json:"category"`
	SubCategory    uint16     `json:"subCategory"`
	WPSMethods     uint32     `json:"wpsMethods"`
	IsGroupOwner   bool       `json:"isGroupOwner"`
	IsPersistentGO bool       `json:"isPersistentGO"`
	Connected      bool       `json:"connected"`
	Services       uint32     `json:"services"`
	IsWFDDevice    bool       `json:"isWfdDevice"`
	IsP2P          bool       `json:"isP2P"`
	IP             netip.Addr `json:"ip,omitzero"`
	FirstSeen      time.Time  `json:"firstSeen"`
	LastSeen       time.Time  `json:"lastSeen"`
}

// Update carries the fields present in one event. Nil means absent.
type Update struct {
	InterfaceAddr  *MAC
	Name           *string
	Channel        *int
	Category       *uint16
	SubCategory    *uint16
	WPSMethods     *uint32
	IsGroupOwner   *bool
	IsPersistentGO *bool
	Connected      *bool
	Services       *uint32
	IsWFDDevice    *bool
	IsP2P          *bool
	IP             *netip.Addr
}

// ToJSON converts the peer to the map form pushed to socket clients.
func (p Peer) ToJSON() map[string]interface{} {
	out := map[string]interface{}{
		"mac":              p.MAC.String(),
		"interfaceAddress": p.InterfaceAddr.String(),
		"name":             p.Name,
		"channel":          p.Channel,
		"category":         p.Category,
		"subCategory":      p.SubCategory,
		"isGroupOwner":     p.IsGroupOwner,
		"isPersistentGO":   p.IsPersistentGO,
		"connected":        p.Connected,
		"isWfdDevice":      p.IsWFDDevice,
	}
	if p.IP.IsValid() {
		out["ip"] = p.IP.String()
	}
	return out
}

// truncateName trims s to MaxNameLen bytes without splitting a rune.
func truncateName(s string) string {
	s = strings.TrimRight(s, "\x00")
	if len(s) <= MaxNameLen {
		return s
	}
	cut := MaxNameLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Ptr returns a pointer to v, for building an Update inline.
func Ptr[T any](v T) *T {
	return &v
}
