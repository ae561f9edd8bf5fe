package bus

import (
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestSplitName(t *testing.T) {
	tests := []struct {
		in     string
		iface  string
		member string
		ok     bool
	}{
		{"net.wifidirect.PeerFound", "net.wifidirect", "PeerFound", true},
		{"net.wifidirect.group.Created", "net.wifidirect.group", "Created", true},
		{"NoDots", "", "", false},
		{"trailing.", "", "", false},
		{".Leading", "", "", false},
	}

	for _, tt := range tests {
		iface, member, ok := splitName(tt.in)
		if ok != tt.ok || iface != tt.iface || member != tt.member {
			t.Errorf("splitName(%q) = %q, %q, %v; expected %q, %q, %v",
				tt.in, iface, member, ok, tt.iface, tt.member, tt.ok)
		}
	}
}

func TestToWire(t *testing.T) {
	in := map[string]interface{}{
		"Mode":    false,
		"Timeout": int32(10),
	}
	out, ok := toWire(in).(map[string]dbus.Variant)
	if !ok {
		t.Fatalf("expected map[string]dbus.Variant, got %T", toWire(in))
	}
	if got := out["Timeout"].Value(); got != int32(10) {
		t.Errorf("expected Timeout 10, got %v", got)
	}
	if sig := out["Mode"].Signature().String(); sig != "b" {
		t.Errorf("expected bool signature, got %q", sig)
	}

	if got := toWire("aa:bb"); got != "aa:bb" {
		t.Errorf("expected string passthrough, got %v", got)
	}
}

func TestNormalize(t *testing.T) {
	peers := []map[string]dbus.Variant{
		{
			"DeviceName":    dbus.MakeVariant("TV"),
			"DeviceAddress": dbus.MakeVariant([]byte{2, 0, 0, 0, 0, 1}),
			"Channel":       dbus.MakeVariant(int32(6)),
		},
	}

	got, ok := normalize(peers).([]map[string]interface{})
	if !ok {
		t.Fatalf("expected []map[string]interface{}, got %T", normalize(peers))
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 dict, got %d", len(got))
	}
	if got[0]["DeviceName"] != "TV" {
		t.Errorf("expected DeviceName TV, got %v", got[0]["DeviceName"])
	}
	if b, ok := got[0]["DeviceAddress"].([]byte); !ok || len(b) != 6 {
		t.Errorf("expected 6-byte address, got %T %v", got[0]["DeviceAddress"], got[0]["DeviceAddress"])
	}
	if got[0]["Channel"] != int32(6) {
		t.Errorf("expected channel 6, got %v", got[0]["Channel"])
	}

	if v := normalize(dbus.MakeVariant(dbus.MakeVariant("nested"))); v != "nested" {
		t.Errorf("expected nested variant unwrapped, got %v", v)
	}
	if v := normalize(dbus.ObjectPath("/net/wifidirect")); v != "/net/wifidirect" {
		t.Errorf("expected object path as string, got %T", v)
	}
}

func TestTranslate(t *testing.T) {
	s := &dbus.Signal{
		Sender: ":1.42",
		Path:   "/net/wifidirect",
		Name:   "net.wifidirect.Connection",
		Body:   []interface{}{int32(0), int32(3), "02:00:00:00:00:01"},
	}

	sig, ok := translate(s)
	if !ok {
		t.Fatal("expected signal to translate")
	}
	if sig.Interface != "net.wifidirect" || sig.Name != "Connection" {
		t.Errorf("unexpected member %s.%s", sig.Interface, sig.Name)
	}
	if len(sig.Body) != 3 || sig.Body[2] != "02:00:00:00:00:01" {
		t.Errorf("unexpected body %v", sig.Body)
	}

	if _, ok := translate(&dbus.Signal{Name: "bogus"}); ok {
		t.Error("expected malformed member name to be rejected")
	}
}
