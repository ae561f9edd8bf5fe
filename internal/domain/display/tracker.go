// Package display tracks Wi-Fi Display (Miracast) capabilities of the local
// device and of connected peers.
package display

import (
	"errors"
	"fmt"
	"time"

	"github.com/tizenorg/wfd-manager/internal/domain/peer"
)

// Type is the Wi-Fi Display device role.
type Type int

const (
	TypeUnknown       Type = -1
	TypeSource        Type = 0
	TypePrimarySink   Type = 1
	TypeSecondarySink Type = 2
	TypeDual          Type = 3
)

func (t Type) String() string {
	switch t {
	case TypeSource:
		return "source"
	case TypePrimarySink:
		return "primary-sink"
	case TypeSecondarySink:
		return "secondary-sink"
	case TypeDual:
		return "dual"
	default:
		return "unknown"
	}
}

// Valid reports whether t is a concrete role.
func (t Type) Valid() bool {
	return t >= TypeSource && t <= TypeDual
}

// MaxPort is the highest RTSP control port accepted.
const MaxPort = 65535

var (
	// ErrInvalidParameter is returned for out-of-range configuration values.
	ErrInvalidParameter = errors.New("invalid display parameter")
	// ErrNotInitialized is returned when the local display has not been initialized.
	ErrNotInitialized = errors.New("display not initialized")
)

// Capability is the last-known display negotiation result for a peer.
type Capability struct {
	Type       Type      `json:"type"`
	Port       int       `json:"port"`
	HDCP       int       `json:"hdcp"`
	Throughput int       `json:"throughput"`
	Available  bool      `json:"available"`
	Negotiated bool      `json:"negotiated"`
	UpdatedAt  time.Time `json:"updatedAt,omitzero"`
}

// Unknown is reported for peers with no negotiation yet.
var Unknown = Capability{Type: TypeUnknown}

// Local is this device's advertised display configuration.
type Local struct {
	Initialized bool `json:"initialized"`
	Type        Type `json:"type"`
	Port        int  `json:"port"`
	HDCP        int  `json:"hdcp"`
	Available   bool `json:"available"`
}

// ValidateLocal checks a local configuration without storing it.
func ValidateLocal(t Type, port, hdcp int) error {
	if !t.Valid() {
		return fmt.Errorf("%w: type %d", ErrInvalidParameter, int(t))
	}
	if port < 0 || port > MaxPort {
		return fmt.Errorf("%w: port %d", ErrInvalidParameter, port)
	}
	if hdcp < 0 {
		return fmt.Errorf("%w: hdcp %d", ErrInvalidParameter, hdcp)
	}
	return nil
}

// Tracker is not safe for concurrent use; the owning session serializes access.
type Tracker struct {
	local Local
	peers map[peer.MAC]Capability
	now   func() time.Time
}

// NewTracker creates a tracker with an uninitialized local display.
func NewTracker() *Tracker {
	return &Tracker{
		local: Local{Type: TypeUnknown},
		peers: make(map[peer.MAC]Capability),
		now:   time.Now,
	}
}

// Init marks the local display as initialized.
func (t *Tracker) Init() {
	t.local.Initialized = true
}

// Deinit resets the local display configuration.
func (t *Tracker) Deinit() {
	t.local = Local{Type: TypeUnknown}
}

// Local returns the local configuration.
func (t *Tracker) Local() Local {
	return t.local
}

// SetLocal stores a validated local configuration.
func (t *Tracker) SetLocal(typ Type, port, hdcp int) error {
	if err := ValidateLocal(typ, port, hdcp); err != nil {
		return err
	}
	t.local.Type = typ
	t.local.Port = port
	t.local.HDCP = hdcp
	return nil
}

// SetAvailability toggles whether the local display accepts sessions.
func (t *Tracker) SetAvailability(available bool) error {
	if !t.local.Initialized {
		return ErrNotInitialized
	}
	t.local.Available = available
	return nil
}

// Record stores the negotiated capability of mac.
func (t *Tracker) Record(mac peer.MAC, c Capability) Capability {
	c.Negotiated = true
	c.UpdatedAt = t.now()
	t.peers[mac] = c
	return c
}

// Peer returns the last-known capability of mac, or Unknown.
func (t *Tracker) Peer(mac peer.MAC) Capability {
	if c, ok := t.peers[mac]; ok {
		return c
	}
	return Unknown
}

// Forget drops the record for mac.
func (t *Tracker) Forget(mac peer.MAC) {
	delete(t.peers, mac)
}

// Reset drops all peer records. The local configuration is kept.
func (t *Tracker) Reset() {
	t.peers = make(map[peer.MAC]Capability)
}
