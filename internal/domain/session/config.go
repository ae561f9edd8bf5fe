package session

import (
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Store is the persistent key/value configuration collaborator.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Store keys. Runtime keys mirror the daemon's memory-backed entries.
const (
	KeyGroupOwnerIntent = "db/wifi_direct/go_intent"
	KeyMaxClients       = "db/wifi_direct/max_clients"
	KeyWPSType          = "db/wifi_direct/wps_type"
	KeyPersistentGroup  = "db/wifi_direct/persistent_group"
	KeyDeviceName       = "db/wifi_direct/device_name"
	KeyAutoConnection   = "db/wifi_direct/auto_connection"

	KeyInterfaceName = "memory/private/wifi_direct_manager/p2p_ifname"
	KeyLocalIP       = "memory/private/wifi_direct_manager/p2p_local_ip"
	KeySubnetMask    = "memory/private/wifi_direct_manager/p2p_subnet_mask"
	KeyGateway       = "memory/private/wifi_direct_manager/p2p_gateway"
)

// Limits on client-supplied values.
const (
	MaxIntent        = 15
	MaxDeviceNameLen = 32
	MaxSSIDLen       = 32
	MaxPINLen        = 8
	MinPassphraseLen = 8
	MaxPassphraseLen = 63
)

// Settings are the persisted local preferences.
type Settings struct {
	GroupOwnerIntent int     `json:"goIntent"`
	MaxClients       int     `json:"maxClients"`
	WPSType          WPSType `json:"wpsType"`
	PersistentGroup  bool    `json:"persistentGroup"`
	DeviceName       string  `json:"deviceName"`
	AutoConnection   bool    `json:"autoConnection"`
	InterfaceName    string  `json:"interfaceName"`
}

// DefaultSettings are used for keys missing from the store.
func DefaultSettings() Settings {
	return Settings{
		GroupOwnerIntent: 7,
		MaxClients:       8,
		WPSType:          WPSPBC,
	}
}

// Features gates optional subsystems. Disabled features answer ErrNotSupported.
type Features struct {
	Display          bool
	ServiceDiscovery bool
}

// Config configures a Session.
type Config struct {
	CallTimeout    time.Duration
	PeerStaleAfter time.Duration
	Features       Features
}

// DefaultConfig enables every feature and keeps stale peers for five minutes.
func DefaultConfig() Config {
	return Config{
		CallTimeout:    DefaultCallTimeout,
		PeerStaleAfter: 5 * time.Minute,
		Features:       Features{Display: true, ServiceDiscovery: true},
	}
}

func (c Config) withDefaults() Config {
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.PeerStaleAfter <= 0 {
		c.PeerStaleAfter = DefaultConfig().PeerStaleAfter
	}
	return c
}

// loadSettings reads persisted settings. Unreadable values fall back to defaults.
func loadSettings(store Store) Settings {
	s := DefaultSettings()
	if store == nil {
		return s
	}

	if v, ok := readInt(store, KeyGroupOwnerIntent); ok && v >= 0 && v <= MaxIntent {
		s.GroupOwnerIntent = v
	}
	if v, ok := readInt(store, KeyMaxClients); ok && v > 0 {
		s.MaxClients = v
	}
	if v, ok := readInt(store, KeyWPSType); ok && WPSType(v).Single() {
		s.WPSType = WPSType(v)
	}
	if v, ok := readBool(store, KeyPersistentGroup); ok {
		s.PersistentGroup = v
	}
	if v, ok := readString(store, KeyDeviceName); ok && len(v) <= MaxDeviceNameLen {
		s.DeviceName = v
	}
	if v, ok := readBool(store, KeyAutoConnection); ok {
		s.AutoConnection = v
	}
	if v, ok := readString(store, KeyInterfaceName); ok {
		s.InterfaceName = v
	}
	return s
}

func readString(store Store, key string) (string, bool) {
	v, ok, err := store.Get(key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to read setting")
		return "", false
	}
	return v, ok
}

func readInt(store Store, key string) (int, bool) {
	raw, ok := readString(store, key)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("Ignoring malformed integer setting")
		return 0, false
	}
	return v, true
}

func readBool(store Store, key string) (bool, bool) {
	raw, ok := readString(store, key)
	if !ok {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("Ignoring malformed boolean setting")
		return false, false
	}
	return v, true
}

// persist writes one setting. Store failures are logged, not returned: the
// daemon already accepted the change.
func (s *Session) persist(key, value string) {
	if s.store == nil {
		return
	}
	if err := s.store.Set(key, value); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to persist setting")
	}
}
