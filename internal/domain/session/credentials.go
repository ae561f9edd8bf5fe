package session

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// pskIterations and pskLen are fixed by IEEE 802.11i.
const (
	pskIterations = 4096
	pskLen        = 32
)

// Credentials let a legacy (non-P2P) client join the current group.
type Credentials struct {
	SSID       string `json:"ssid"`
	Passphrase string `json:"passphrase"`
	// PSK is the hex-encoded WPA2 pre-shared key derived from both.
	PSK string `json:"psk"`
}

// QR returns the credentials in the de-facto WIFI: URI form read by phone cameras.
func (c Credentials) QR() string {
	esc := strings.NewReplacer(`\`, `\\`, `;`, `\;`, `,`, `\,`, `:`, `\:`, `"`, `\"`)
	return "WIFI:T:WPA;S:" + esc.Replace(c.SSID) + ";P:" + esc.Replace(c.Passphrase) + ";;"
}

// DerivePSK computes the WPA2 PSK for passphrase on ssid.
func DerivePSK(passphrase, ssid string) string {
	key := pbkdf2.Key([]byte(passphrase), []byte(ssid), pskIterations, pskLen, sha1.New)
	return hex.EncodeToString(key)
}

// GroupCredentials reads the SSID and passphrase of the current group and
// derives its PSK. Only the owner can hand out credentials.
func (s *Session) GroupCredentials(ctx context.Context) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActivated(); err != nil {
		return Credentials{}, err
	}
	if s.group == nil {
		return Credentials{}, notPermitted("no group")
	}
	if s.group.Role != GroupOwner {
		return Credentials{}, notPermitted("not the group owner")
	}

	ssid, err := s.callString(ctx, IfaceConfig, "GetSSID")
	if err != nil {
		return Credentials{}, err
	}
	pass, err := s.callString(ctx, IfaceGroup, "GetPassphrase")
	if err != nil {
		return Credentials{}, err
	}
	s.group.SSID = ssid
	s.group.Passphrase = pass

	return Credentials{SSID: ssid, Passphrase: pass, PSK: DerivePSK(pass, ssid)}, nil
}
