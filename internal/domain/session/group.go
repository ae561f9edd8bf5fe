package session

import (
	"context"
	"net/netip"
	"strconv"

	"github.com/tizenorg/wfd-manager/internal/domain/peer"
)

// CreateGroup brings up an autonomous group with this device as owner.
func (s *Session) CreateGroup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActivated(); err != nil {
		return err
	}
	if s.group != nil {
		return notPermitted("group already exists (%s)", s.group.Role)
	}
	if _, err := s.call(ctx, IfaceGroup, "CreateGroup"); err != nil {
		return err
	}
	s.group = s.newGroup(GroupOwner, true)
	s.logger.Info().Bool("persistent", s.group.Persistent).Msg("Autonomous group created")
	return nil
}

// DestroyGroup tears the group down, disconnecting every member.
func (s *Session) DestroyGroup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActivated(); err != nil {
		return err
	}
	if s.group == nil {
		return notPermitted("no group")
	}
	if _, err := s.call(ctx, IfaceGroup, "DestroyGroup"); err != nil {
		return err
	}
	s.clearGroup()
	s.logger.Info().Msg("Group destroyed")
	return nil
}

// clearGroup drops the group and every connected member. Negotiations in
// progress are left alone.
func (s *Session) clearGroup() {
	for mac, c := range s.conns {
		if c.state == ConnConnected {
			delete(s.conns, mac)
			s.peers.SetConnected(mac, false)
		}
	}
	s.group = nil
}

// IsGroupOwner reports whether this device owns the current group.
func (s *Session) IsGroupOwner() (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activation == Deactivated {
		return false, ErrNotInitialized
	}
	return s.group != nil && s.group.Role == GroupOwner, nil
}

// IsAutonomousGroup reports whether the current group was created by CreateGroup.
func (s *Session) IsAutonomousGroup() (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activation == Deactivated {
		return false, ErrNotInitialized
	}
	return s.group != nil && s.group.Autonomous, nil
}

// SetGroupOwnerIntent sets the GO intent used in future negotiations.
func (s *Session) SetGroupOwnerIntent(ctx context.Context, intent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if intent < 0 || intent > MaxIntent {
		return invalidParam("group owner intent %d outside [0,%d]", intent, MaxIntent)
	}
	if _, err := s.call(ctx, IfaceConfig, "SetGoIntent", int32(intent)); err != nil {
		return err
	}
	s.settings.GroupOwnerIntent = intent
	s.persist(KeyGroupOwnerIntent, strconv.Itoa(intent))
	return nil
}

// GroupOwnerIntent returns the configured GO intent.
func (s *Session) GroupOwnerIntent() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.GroupOwnerIntent
}

// SetMaxClients sets the most clients an owned group admits. The upper
// bound is enforced by the driver.
func (s *Session) SetMaxClients(ctx context.Context, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 {
		return invalidParam("max clients %d must be positive", n)
	}
	if _, err := s.call(ctx, IfaceConfig, "SetMaxClient", int32(n)); err != nil {
		return err
	}
	s.settings.MaxClients = n
	if s.group != nil {
		s.group.MaxClients = n
	}
	s.persist(KeyMaxClients, strconv.Itoa(n))
	return nil
}

// MaxClients returns the configured client limit.
func (s *Session) MaxClients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.MaxClients
}

// SetPassphrase sets the WPA2 passphrase used by the next group.
func (s *Session) SetPassphrase(ctx context.Context, passphrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validatePassphrase(passphrase); err != nil {
		return err
	}
	if _, err := s.call(ctx, IfaceGroup, "SetPassphrase", passphrase); err != nil {
		return err
	}
	return nil
}

func validatePassphrase(p string) error {
	if len(p) < MinPassphraseLen || len(p) > MaxPassphraseLen {
		return invalidParam("passphrase length %d outside [%d,%d]", len(p), MinPassphraseLen, MaxPassphraseLen)
	}
	for i := 0; i < len(p); i++ {
		if p[i] < 0x20 || p[i] > 0x7e {
			return invalidParam("passphrase must be printable ASCII")
		}
	}
	return nil
}

// GetPassphrase returns the passphrase of the current group.
func (s *Session) GetPassphrase(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActivated(); err != nil {
		return "", err
	}
	if s.group == nil {
		return "", notPermitted("no group")
	}
	p, err := s.callString(ctx, IfaceGroup, "GetPassphrase")
	if err != nil {
		return "", err
	}
	s.group.Passphrase = p
	return p, nil
}

// SetPersistentGroupEnabled toggles whether new groups are stored for reinvocation.
func (s *Session) SetPersistentGroupEnabled(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.call(ctx, IfaceGroup, "SetPersistentGroupEnabled", enabled); err != nil {
		return err
	}
	s.settings.PersistentGroup = enabled
	s.persist(KeyPersistentGroup, strconv.FormatBool(enabled))
	return nil
}

// IsPersistentGroupEnabled reports the persistent-group preference.
func (s *Session) IsPersistentGroupEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.PersistentGroup
}

// PersistentGroups lists the groups the daemon has stored.
func (s *Session) PersistentGroups(ctx context.Context) ([]PersistentGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := s.call(ctx, IfaceGroup, "GetPersistentGroups")
	if err != nil {
		return nil, err
	}
	dicts, err := replyDicts("GetPersistentGroups", body, 0)
	if err != nil {
		return nil, err
	}
	groups := make([]PersistentGroup, 0, len(dicts))
	for _, d := range dicts {
		var g PersistentGroup
		g.SSID, _ = d["SSID"].(string)
		if b, ok := d["GOMacAddress"].([]byte); ok {
			if mac, err := peer.MACFromBytes(b); err == nil {
				g.GOAddress = mac
			}
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// RemovePersistentGroup forgets a stored group.
func (s *Session) RemovePersistentGroup(ctx context.Context, goAddr peer.MAC, ssid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ssid == "" || len(ssid) > MaxSSIDLen {
		return invalidParam("ssid length %d outside [1,%d]", len(ssid), MaxSSIDLen)
	}
	_, err := s.call(ctx, IfaceGroup, "RemovePersistentGroup", goAddr.String(), ssid)
	return err
}

// ActivatePushButton triggers WPS push-button on the owned group.
func (s *Session) ActivatePushButton(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActivated(); err != nil {
		return err
	}
	if s.group == nil || s.group.Role != GroupOwner {
		return notPermitted("push button requires group owner role")
	}
	_, err := s.call(ctx, IfaceGroup, "ActivatePushButton")
	return err
}

// SetPIN sets the WPS PIN used for PIN-based negotiation.
func (s *Session) SetPIN(ctx context.Context, pin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pin == "" || len(pin) > MaxPINLen {
		return invalidParam("pin length %d outside [1,%d]", len(pin), MaxPINLen)
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return invalidParam("pin must be numeric")
		}
	}
	_, err := s.call(ctx, IfaceConfig, "SetWpsPin", pin)
	return err
}

// GetPIN returns the current WPS PIN.
func (s *Session) GetPIN(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callString(ctx, IfaceConfig, "GetWpsPin")
}

// SetRequestedWPSType selects the WPS method requested from peers.
func (s *Session) SetRequestedWPSType(ctx context.Context, t WPSType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !t.Single() {
		return invalidParam("wps type %#x must be exactly one method", int(t))
	}
	if _, err := s.call(ctx, IfaceConfig, "SetReqWpsMode", int32(t)); err != nil {
		return err
	}
	s.settings.WPSType = t
	s.persist(KeyWPSType, strconv.Itoa(int(t)))
	return nil
}

// RequestedWPSType returns the configured WPS method.
func (s *Session) RequestedWPSType() WPSType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.WPSType
}

// SupportedWPSTypes returns the bitmask of WPS methods the device supports.
func (s *Session) SupportedWPSTypes(ctx context.Context) (WPSType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.callInt(ctx, IfaceConfig, "GetSupportedWpsMode")
	return WPSType(v), err
}

// LocalWPSType returns the WPS method the daemon will use locally.
func (s *Session) LocalWPSType(ctx context.Context) (WPSType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.callInt(ctx, IfaceConfig, "GetLocalWpsMode")
	return WPSType(v), err
}

// SetDeviceName sets the name advertised to peers.
func (s *Session) SetDeviceName(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" || len(name) > MaxDeviceNameLen {
		return invalidParam("device name length %d outside [1,%d]", len(name), MaxDeviceNameLen)
	}
	if _, err := s.call(ctx, IfaceConfig, "SetDeviceName", name); err != nil {
		return err
	}
	s.settings.DeviceName = name
	s.persist(KeyDeviceName, name)
	return nil
}

// DeviceName returns the name advertised to peers.
func (s *Session) DeviceName(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, err := s.callString(ctx, IfaceConfig, "GetDeviceName")
	if err != nil {
		return "", err
	}
	s.settings.DeviceName = name
	return name, nil
}

// SetAutoConnection toggles automatic acceptance of connection requests.
func (s *Session) SetAutoConnection(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.call(ctx, IfaceConfig, "SetAutoConnectionMode", enabled); err != nil {
		return err
	}
	s.settings.AutoConnection = enabled
	s.persist(KeyAutoConnection, strconv.FormatBool(enabled))
	return nil
}

// IsAutoConnection reports the auto-connection preference.
func (s *Session) IsAutoConnection() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.AutoConnection
}

// SetAutoConnectionPeer names the peer accepted automatically.
func (s *Session) SetAutoConnectionPeer(ctx context.Context, mac peer.MAC) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.call(ctx, IfaceConfig, "SetAutoConnectionPeer", mac.String())
	return err
}

// GetInterfaceName returns the P2P network interface name.
func (s *Session) GetInterfaceName(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActivated(); err != nil {
		return "", err
	}
	name, err := s.callString(ctx, IfaceConfig, "GetInterfaceName")
	if err != nil {
		return "", err
	}
	s.cacheInterfaceName(name)
	return name, nil
}

func (s *Session) cacheInterfaceName(name string) {
	if name == "" || name == s.settings.InterfaceName {
		return
	}
	s.settings.InterfaceName = name
	s.persist(KeyInterfaceName, name)
}

// GetMACAddress returns the local P2P device address.
func (s *Session) GetMACAddress(ctx context.Context) (peer.MAC, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.callString(ctx, IfaceConfig, "GetMacAddress")
	if err != nil {
		return peer.MAC{}, err
	}
	mac, err := peer.ParseMAC(raw)
	if err != nil {
		return peer.MAC{}, malformed("GetMacAddress", 0, "mac", raw)
	}
	return mac, nil
}

// GetIPAddress returns the local address on the P2P interface.
func (s *Session) GetIPAddress(ctx context.Context) (netip.Addr, error) {
	return s.connectedAddr(ctx, "GetIPAddress", KeyLocalIP)
}

// GetSubnetMask returns the netmask of the P2P interface.
func (s *Session) GetSubnetMask(ctx context.Context) (netip.Addr, error) {
	return s.connectedAddr(ctx, "GetSubnetMask", KeySubnetMask)
}

// GetGateway returns the gateway of the P2P interface.
func (s *Session) GetGateway(ctx context.Context) (netip.Addr, error) {
	return s.connectedAddr(ctx, "GetGateway", KeyGateway)
}

func (s *Session) connectedAddr(ctx context.Context, method, key string) (netip.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActivated(); err != nil {
		return netip.Addr{}, err
	}
	if st := s.deviceState(); st != StateConnected && st != StateGroupOwner {
		return netip.Addr{}, notPermitted("%s requires a connected link", method)
	}
	raw, err := s.callString(ctx, IfaceConfig, method)
	if err != nil {
		return netip.Addr{}, err
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Addr{}, malformed(method, 0, "ip address", raw)
	}
	s.persist(key, addr.String())
	return addr, nil
}

// GetSSID returns the SSID of the current group.
func (s *Session) GetSSID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActivated(); err != nil {
		return "", err
	}
	if s.group == nil {
		return "", notPermitted("no group")
	}
	ssid, err := s.callString(ctx, IfaceConfig, "GetSSID")
	if err != nil {
		return "", err
	}
	s.group.SSID = ssid
	return ssid, nil
}

// GetOperatingChannel returns the channel of the current group.
func (s *Session) GetOperatingChannel(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActivated(); err != nil {
		return 0, err
	}
	if s.group == nil {
		return 0, notPermitted("no group")
	}
	return s.callInt(ctx, IfaceConfig, "GetOperatingChannel")
}
