package session

import (
	"fmt"

	"github.com/tizenorg/wfd-manager/internal/domain/display"
	"github.com/tizenorg/wfd-manager/internal/domain/peer"
	"github.com/tizenorg/wfd-manager/internal/domain/service"
)

// ActivationState is the radio lifecycle.
type ActivationState int

const (
	Deactivated ActivationState = iota
	Activating
	Activated
)

func (s ActivationState) String() string {
	switch s {
	case Deactivated:
		return "deactivated"
	case Activating:
		return "activating"
	case Activated:
		return "activated"
	}
	return fmt.Sprintf("activation(%d)", int(s))
}

// DiscoveryState is orthogonal to activation.
type DiscoveryState int

const (
	DiscoveryIdle DiscoveryState = iota
	DiscoveryListenOnly
	DiscoveryActive
)

func (s DiscoveryState) String() string {
	switch s {
	case DiscoveryIdle:
		return "idle"
	case DiscoveryListenOnly:
		return "listen-only"
	case DiscoveryActive:
		return "discovering"
	}
	return fmt.Sprintf("discovery(%d)", int(s))
}

// ConnState is the per-peer connection sub-state.
type ConnState int

const (
	ConnNone ConnState = iota
	ConnConnecting
	ConnConnected
)

func (s ConnState) String() string {
	switch s {
	case ConnNone:
		return "none"
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	}
	return fmt.Sprintf("conn(%d)", int(s))
}

// GroupRole is the whole-session group sub-state.
type GroupRole int

const (
	NoGroup GroupRole = iota
	GroupOwner
	GroupClient
)

func (r GroupRole) String() string {
	switch r {
	case NoGroup:
		return "none"
	case GroupOwner:
		return "owner"
	case GroupClient:
		return "client"
	}
	return fmt.Sprintf("group(%d)", int(r))
}

// DeviceState is the public state reported by GetState.
type DeviceState int

const (
	StateDeactivated DeviceState = iota
	StateDeactivating
	StateActivating
	StateActivated
	StateDiscovering
	StateConnecting
	StateDisconnecting
	StateConnected
	StateGroupOwner
)

var deviceStateNames = [...]string{
	"deactivated", "deactivating", "activating", "activated", "discovering",
	"connecting", "disconnecting", "connected", "group-owner",
}

func (s DeviceState) String() string {
	if s >= 0 && int(s) < len(deviceStateNames) {
		return deviceStateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// WPSType is a WPS configuration method bitmask value.
type WPSType int

const (
	WPSNone       WPSType = 0x00
	WPSPBC        WPSType = 0x01
	WPSPinDisplay WPSType = 0x02
	WPSPinKeypad  WPSType = 0x04
)

// Single reports whether t is exactly one concrete method.
func (t WPSType) Single() bool {
	return t == WPSPBC || t == WPSPinDisplay || t == WPSPinKeypad
}

func (t WPSType) String() string {
	switch t {
	case WPSNone:
		return "none"
	case WPSPBC:
		return "pbc"
	case WPSPinDisplay:
		return "pin-display"
	case WPSPinKeypad:
		return "pin-keypad"
	}
	return fmt.Sprintf("wps(%#x)", int(t))
}

// Channel selects the radio channels scanned during discovery.
type Channel int

const (
	ChannelFullScan Channel = 0
	Channel1        Channel = 1
	Channel6        Channel = 6
	Channel11       Channel = 11
	ChannelSocial   Channel = 1611
)

// Valid reports whether c is a supported discovery channel selector.
func (c Channel) Valid() bool {
	switch c {
	case ChannelFullScan, Channel1, Channel6, Channel11, ChannelSocial:
		return true
	}
	return false
}

// ConnectionState is the state carried in Connection/Disconnection signals
// and delivered to connection callbacks.
type ConnectionState int

const (
	ConnectionReq ConnectionState = iota
	ConnectionWPSReq
	ConnectionInProgress
	ConnectionRsp
	DisassociationInd
	DisconnectionRsp
	DisconnectionInd
	GroupCreated
	GroupDestroyed
)

var connectionStateNames = [...]string{
	"connection-req", "wps-req", "in-progress", "connection-rsp",
	"disassociation-ind", "disconnection-rsp", "disconnection-ind",
	"group-created", "group-destroyed",
}

func (s ConnectionState) String() string {
	if s >= 0 && int(s) < len(connectionStateNames) {
		return connectionStateNames[s]
	}
	return fmt.Sprintf("connection(%d)", int(s))
}

// DiscoveryKind is the discovery notification delivered to callbacks.
type DiscoveryKind int

const (
	DiscoveryListenStarted DiscoveryKind = iota
	DiscoveryStarted
	DiscoveryFound
	DiscoveryFinished
	DiscoveryLost
)

func (k DiscoveryKind) String() string {
	switch k {
	case DiscoveryListenStarted:
		return "listen-started"
	case DiscoveryStarted:
		return "started"
	case DiscoveryFound:
		return "found"
	case DiscoveryFinished:
		return "finished"
	case DiscoveryLost:
		return "lost"
	}
	return fmt.Sprintf("discovery-kind(%d)", int(k))
}

// ServiceDiscoveryKind is the service-discovery notification delivered to callbacks.
type ServiceDiscoveryKind int

const (
	ServiceDiscoveryStarted ServiceDiscoveryKind = iota
	ServiceDiscoveryFound
	ServiceDiscoveryFinished
)

func (k ServiceDiscoveryKind) String() string {
	switch k {
	case ServiceDiscoveryStarted:
		return "started"
	case ServiceDiscoveryFound:
		return "found"
	case ServiceDiscoveryFinished:
		return "finished"
	}
	return fmt.Sprintf("service-discovery(%d)", int(k))
}

// Group is the one local group, if any.
type Group struct {
	Role       GroupRole `json:"role"`
	Autonomous bool      `json:"autonomous"`
	Intent     int       `json:"intent"`
	Passphrase string    `json:"-"`
	SSID       string    `json:"ssid"`
	MaxClients int       `json:"maxClients"`
	Persistent bool      `json:"persistent"`
}

// PersistentGroup is a stored group the daemon can re-invoke.
type PersistentGroup struct {
	GOAddress peer.MAC `json:"goAddress"`
	SSID      string   `json:"ssid"`
}

// Snapshot is a consistent read of the whole session.
type Snapshot struct {
	ID          string            `json:"id"`
	Activation  ActivationState   `json:"-"`
	Discovery   DiscoveryState    `json:"-"`
	State       DeviceState       `json:"-"`
	Group       *Group            `json:"group,omitempty"`
	Peers       []peer.Peer       `json:"peers"`
	Connections map[string]string `json:"connections"`
	Services    []service.Record  `json:"services"`
	Queries     []service.Query   `json:"queries"`
	Display     display.Local     `json:"display"`
	Settings    Settings          `json:"settings"`
}

// ToJSON returns the snapshot as a map suitable for pushState-style payloads.
func (s Snapshot) ToJSON() map[string]interface{} {
	peers := make([]map[string]interface{}, 0, len(s.Peers))
	for _, p := range s.Peers {
		peers = append(peers, p.ToJSON())
	}
	out := map[string]interface{}{
		"id":          s.ID,
		"activation":  s.Activation.String(),
		"discovery":   s.Discovery.String(),
		"state":       s.State.String(),
		"stateCode":   int(s.State),
		"peers":       peers,
		"connections": s.Connections,
		"services":    len(s.Services),
		"queries":     len(s.Queries),
		"display":     s.Display,
		"goIntent":    s.Settings.GroupOwnerIntent,
		"maxClients":  s.Settings.MaxClients,
		"wpsType":     s.Settings.WPSType.String(),
		"deviceName":  s.Settings.DeviceName,
	}
	if s.Group != nil {
		out["group"] = map[string]interface{}{
			"role":       s.Group.Role.String(),
			"autonomous": s.Group.Autonomous,
			"ssid":       s.Group.SSID,
			"persistent": s.Group.Persistent,
		}
	}
	return out
}
