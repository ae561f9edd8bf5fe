package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/tizenorg/wfd-manager/internal/domain/session"
)

func TestDerivePSK(t *testing.T) {
	tests := []struct {
		passphrase string
		ssid       string
		want       string
	}{
		// IEEE 802.11i Annex H.4 vectors
		{"password", "IEEE", "f42c6fc52df0ebef9ebb4b90b38a5f902e83fe1b135a70e23aed762e9710a12e"},
		{"ThisIsAPassword", "ThisIsASSID", "0dc0d6eb90555ed6419756b9a15ec3e3209b63df707dd508d14581f8982721af"},
	}

	for _, tt := range tests {
		if got := session.DerivePSK(tt.passphrase, tt.ssid); got != tt.want {
			t.Errorf("DerivePSK(%q, %q) = %s, expected %s", tt.passphrase, tt.ssid, got, tt.want)
		}
	}
}

func TestCredentialsQR(t *testing.T) {
	c := session.Credentials{SSID: "DIRECT-ab;TV", Passphrase: `p:a"ss`}
	want := `WIFI:T:WPA;S:DIRECT-ab\;TV;P:p\:a\"ss;;`
	if got := c.QR(); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestGroupCredentials(t *testing.T) {
	s, m := activated(t)
	ctx := context.Background()

	if _, err := s.GroupCredentials(ctx); !errors.Is(err, session.ErrNotPermitted) {
		t.Errorf("expected ErrNotPermitted without a group, got %v", err)
	}

	if err := s.CreateGroup(ctx); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	m.SetReply(session.IfaceConfig, "GetSSID", int32(0), "IEEE")
	m.SetReply(session.IfaceGroup, "GetPassphrase", int32(0), "password")

	c, err := s.GroupCredentials(ctx)
	if err != nil {
		t.Fatalf("GroupCredentials failed: %v", err)
	}
	if c.SSID != "IEEE" || c.Passphrase != "password" {
		t.Errorf("unexpected credentials %+v", c)
	}
	if c.PSK != "f42c6fc52df0ebef9ebb4b90b38a5f902e83fe1b135a70e23aed762e9710a12e" {
		t.Errorf("unexpected PSK %s", c.PSK)
	}
	if g := s.Group(); g == nil || g.SSID != "IEEE" {
		t.Errorf("expected group SSID cached, got %+v", g)
	}
}

func TestGroupCredentials_ClientRole(t *testing.T) {
	s, m := activated(t)
	connected(t, s, m, macA, false)

	if _, err := s.GroupCredentials(context.Background()); !errors.Is(err, session.ErrNotPermitted) {
		t.Errorf("expected ErrNotPermitted as client, got %v", err)
	}
}
