package socketio

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"

	"github.com/tizenorg/wfd-manager/internal/domain/display"
	"github.com/tizenorg/wfd-manager/internal/domain/peer"
	"github.com/tizenorg/wfd-manager/internal/domain/service"
	"github.com/tizenorg/wfd-manager/internal/domain/session"
	"github.com/tizenorg/wfd-manager/internal/domain/session/sessiontest"
)

var testPeer = peer.MAC{0x02, 0x11, 0x22, 0x33, 0x44, 0x55}

type pushRecorder struct {
	mu     sync.Mutex
	events []string
	data   []interface{}
}

func (r *pushRecorder) record(event string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.data = append(r.data, data)
}

func (r *pushRecorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func (r *pushRecorder) last(event string) interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i] == event {
			return r.data[i]
		}
	}
	return nil
}

func newTestServer(t *testing.T) (*Server, *session.Session, *sessiontest.Transport, *pushRecorder) {
	t.Helper()
	m := sessiontest.NewTransport(8)
	cfg := session.DefaultConfig()
	cfg.CallTimeout = 50 * time.Millisecond
	sess := session.New(m, nil, cfg)
	t.Cleanup(sess.Close)

	s, err := NewServer(sess, Options{DebounceWindow: 50 * time.Millisecond, RequestTimeout: time.Second})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	rec := &pushRecorder{}
	s.broadcast = rec.record
	return s, sess, m, rec
}

func args(m map[string]interface{}) []any {
	return []any{m}
}

func activate(t *testing.T, s *Server, sess *session.Session) {
	t.Helper()
	if res := s.handle("activate", nil); res.result["ok"] != true {
		t.Fatalf("activate failed: %v", res.result)
	}
	sess.HandleEvent(context.Background(), session.ActivationEvent{})
}

func TestHandleUnknownRequest(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	res := s.handle("selfDestruct", nil)
	if res.result["ok"] != false {
		t.Error("expected unknown request to fail")
	}
	if res.result["code"] != int32(session.CodeNotSupported) {
		t.Errorf("expected not supported code, got %v", res.result["code"])
	}
	if res.result["op"] != "selfDestruct" {
		t.Errorf("expected op echoed, got %v", res.result["op"])
	}
}

func TestHandleActivate(t *testing.T) {
	s, sess, m, _ := newTestServer(t)

	res := s.handle("activate", nil)
	if res.result["ok"] != true || res.result["error"] != "" {
		t.Fatalf("expected success, got %v", res.result)
	}
	if got := m.CallCount(session.IfaceManage, "Activate"); got != 1 {
		t.Errorf("expected 1 Activate call, got %d", got)
	}
	if got := sess.Activation(); got != session.Activating {
		t.Errorf("expected activating, got %s", got)
	}

	res = s.handle("activate", nil)
	if res.result["code"] != int32(session.CodeAlreadyInitialized) {
		t.Errorf("expected already initialized code, got %v", res.result["code"])
	}
}

func TestHandleArgumentValidation(t *testing.T) {
	s, _, m, _ := newTestServer(t)

	tests := []struct {
		name string
		op   string
		args []any
	}{
		{"connect without mac", "connect", nil},
		{"connect with bad mac", "connect", args(map[string]interface{}{"mac": "zz"})},
		{"fractional intent", "setGoIntent", args(map[string]interface{}{"intent": 7.5})},
		{"string intent", "setGoIntent", args(map[string]interface{}{"intent": "7"})},
		{"missing max", "setMaxClients", nil},
		{"numeric pin", "setWpsPin", args(map[string]interface{}{"pin": 1234.0})},
		{"unknown wps name", "setWpsType", args(map[string]interface{}{"type": "nfc"})},
		{"non-bool enabled", "setAutoConnection", args(map[string]interface{}{"enabled": "yes"})},
		{"zero service id", "deregisterService", args(map[string]interface{}{"id": 0.0})},
		{"bad service mac", "startServiceDiscovery", args(map[string]interface{}{"mac": 3.0})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.handle(tt.op, tt.args)
			if res.result["code"] != int32(session.CodeInvalidParameter) {
				t.Errorf("expected invalid parameter code, got %v (%v)", res.result["code"], res.result["error"])
			}
			if res.push != "" {
				t.Errorf("expected no push on failure, got %s", res.push)
			}
		})
	}
	if got := len(m.Calls()); got != 0 {
		t.Errorf("expected no daemon calls for invalid arguments, got %d", got)
	}
}

func TestHandleSettings(t *testing.T) {
	s, sess, m, _ := newTestServer(t)

	if res := s.handle("setGoIntent", args(map[string]interface{}{"intent": 12.0})); res.result["ok"] != true {
		t.Fatalf("setGoIntent failed: %v", res.result)
	}
	if got := sess.GroupOwnerIntent(); got != 12 {
		t.Errorf("expected intent 12, got %d", got)
	}
	if got := m.CallCount(session.IfaceConfig, "SetGoIntent"); got != 1 {
		t.Errorf("expected 1 SetGoIntent call, got %d", got)
	}

	if res := s.handle("setWpsType", args(map[string]interface{}{"type": "pin-keypad"})); res.result["ok"] != true {
		t.Fatalf("setWpsType failed: %v", res.result)
	}
	if got := sess.RequestedWPSType(); got != session.WPSPinKeypad {
		t.Errorf("expected pin-keypad, got %s", got)
	}

	res := s.handle("setGoIntent", args(map[string]interface{}{"intent": 16.0}))
	if res.result["code"] != int32(session.CodeInvalidParameter) {
		t.Errorf("expected out-of-range intent rejected, got %v", res.result)
	}
}

func TestHandleQueries(t *testing.T) {
	s, sess, _, _ := newTestServer(t)
	activate(t, s, sess)
	sess.HandleEvent(context.Background(), session.PeerFoundEvent{MAC: testPeer})

	res := s.handle("getState", nil)
	if res.push != "pushState" {
		t.Fatalf("expected pushState, got %q", res.push)
	}
	state := res.data.(map[string]interface{})
	if state["activation"] != session.Activated.String() {
		t.Errorf("expected activated state, got %v", state["activation"])
	}

	res = s.handle("getPeers", nil)
	peers, ok := res.data.([]map[string]interface{})
	if res.push != "pushPeers" || !ok || len(peers) != 1 {
		t.Fatalf("expected one peer pushed, got %q %v", res.push, res.data)
	}
	if peers[0]["mac"] != testPeer.String() {
		t.Errorf("expected %s, got %v", testPeer, peers[0]["mac"])
	}

	res = s.handle("getPeerInfo", args(map[string]interface{}{"mac": testPeer.String()}))
	if res.push != "pushPeerInfo" || res.result["ok"] != true {
		t.Errorf("expected pushPeerInfo, got %q %v", res.push, res.result)
	}

	res = s.handle("getPeerInfo", args(map[string]interface{}{"mac": "02:00:00:00:00:99"}))
	if res.result["ok"] != false {
		t.Error("expected unknown peer to fail")
	}
}

func TestHandleServiceDiscoveryDefaultsToBroadcast(t *testing.T) {
	s, sess, m, _ := newTestServer(t)
	activate(t, s, sess)

	res := s.handle("startServiceDiscovery", args(map[string]interface{}{"type": 1.0}))
	if res.result["ok"] != true {
		t.Fatalf("startServiceDiscovery failed: %v", res.result)
	}
	calls := m.Calls()
	last := calls[len(calls)-1]
	if last.Method != "StartDiscovery" || last.Iface != session.IfaceService {
		t.Fatalf("unexpected call %s.%s", last.Iface, last.Method)
	}
	if got := last.Args[1]; got != peer.Broadcast.String() {
		t.Errorf("expected broadcast target, got %v", got)
	}

	pending := sess.PendingQueries()
	if len(pending) != 1 || !pending[0].Target.IsBroadcast() {
		t.Errorf("expected one broadcast query, got %v", pending)
	}
}

func TestNotificationsAreBroadcast(t *testing.T) {
	s, sess, _, rec := newTestServer(t)
	activate(t, s, sess)

	if got := rec.count("pushActivation"); got != 1 {
		t.Errorf("expected 1 pushActivation, got %d", got)
	}
	act := rec.last("pushActivation").(map[string]interface{})
	if act["state"] != session.Activated.String() {
		t.Errorf("expected activated, got %v", act["state"])
	}

	for i := 0; i < 5; i++ {
		mac := testPeer
		mac[5] = byte(i)
		sess.HandleEvent(context.Background(), session.PeerFoundEvent{MAC: mac})
	}
	if got := rec.count("pushPeer"); got != 5 {
		t.Errorf("expected 5 pushPeer, got %d", got)
	}

	time.Sleep(150 * time.Millisecond)

	if got := rec.count("pushPeers"); got != 1 {
		t.Errorf("expected debounced single pushPeers, got %d", got)
	}
	if got := rec.count("pushState"); got != 1 {
		t.Errorf("expected debounced single pushState, got %d", got)
	}
	peers := rec.last("pushPeers").([]map[string]interface{})
	if len(peers) != 5 {
		t.Errorf("expected 5 peers in pushPeers, got %d", len(peers))
	}
}

func TestResultPayload(t *testing.T) {
	ok := resultPayload("connect", nil)
	if ok["ok"] != true || ok["code"] != int32(0) || ok["error"] != "" {
		t.Errorf("unexpected success payload %v", ok)
	}

	failed := resultPayload("connect", session.ErrNotPermitted)
	if failed["ok"] != false || failed["code"] != int32(session.CodeNotPermitted) {
		t.Errorf("unexpected failure payload %v", failed)
	}
	if failed["error"] != session.ErrNotPermitted.Error() {
		t.Errorf("expected error text, got %v", failed["error"])
	}
}

func TestHandleGroupCredentials(t *testing.T) {
	s, sess, m, _ := newTestServer(t)
	activate(t, s, sess)

	if res := s.handle("getGroupCredentials", nil); res.result["code"] != int32(session.CodeNotPermitted) {
		t.Errorf("expected not permitted without a group, got %v", res.result)
	}

	if res := s.handle("createGroup", nil); res.result["ok"] != true {
		t.Fatalf("createGroup failed: %v", res.result)
	}
	m.SetReply(session.IfaceConfig, "GetSSID", int32(0), "DIRECT-tv")
	m.SetReply(session.IfaceGroup, "GetPassphrase", int32(0), "12345678")

	res := s.handle("getGroupCredentials", nil)
	if res.push != "pushGroupCredentials" {
		t.Fatalf("expected pushGroupCredentials, got %q (%v)", res.push, res.result)
	}
	data := res.data.(map[string]interface{})
	if data["qr"] != "WIFI:T:WPA;S:DIRECT-tv;P:12345678;;" {
		t.Errorf("unexpected qr %v", data["qr"])
	}
	if psk, _ := data["psk"].(string); len(psk) != 64 {
		t.Errorf("expected 64 hex digit psk, got %q", psk)
	}
}

func TestHandleConfigQueries(t *testing.T) {
	s, _, m, _ := newTestServer(t)

	m.SetReply(session.IfaceConfig, "GetSupportedWpsMode", int32(0), int32(0x07))
	m.SetReply(session.IfaceConfig, "GetLocalWpsMode", int32(0), int32(session.WPSPBC))
	res := s.handle("getWpsTypes", nil)
	if res.push != "pushWpsTypes" || res.result["ok"] != true {
		t.Fatalf("getWpsTypes = %q %v", res.push, res.result)
	}
	types := res.data.(map[string]interface{})
	if types["supported"] != 0x07 || types["local"] != "pbc" {
		t.Errorf("unexpected wps types %v", types)
	}
	if list := types["supportedList"].([]string); len(list) != 3 {
		t.Errorf("expected 3 supported methods, got %v", list)
	}

	m.SetReply(session.IfaceConfig, "GetDeviceName", int32(0), "Living Room TV")
	res = s.handle("getDeviceName", nil)
	if res.push != "pushDeviceName" || res.data.(map[string]interface{})["name"] != "Living Room TV" {
		t.Errorf("getDeviceName = %q %v", res.push, res.data)
	}

	tests := []struct {
		set, get, push string
	}{
		{"setAutoConnection", "getAutoConnection", "pushAutoConnection"},
		{"setPersistentGroup", "getPersistentGroup", "pushPersistentGroup"},
	}
	for _, tt := range tests {
		t.Run(tt.get, func(t *testing.T) {
			if res := s.handle(tt.set, args(map[string]interface{}{"enabled": true})); res.result["ok"] != true {
				t.Fatalf("%s failed: %v", tt.set, res.result)
			}
			res := s.handle(tt.get, nil)
			if res.push != tt.push || res.data.(map[string]interface{})["enabled"] != true {
				t.Errorf("%s = %q %v", tt.get, res.push, res.data)
			}
		})
	}

	if res := s.handle("setAutoConnectionPeer", args(map[string]interface{}{"mac": testPeer.String()})); res.result["ok"] != true {
		t.Fatalf("setAutoConnectionPeer failed: %v", res.result)
	}
	calls := m.Calls()
	last := calls[len(calls)-1]
	if last.Method != "SetAutoConnectionPeer" || last.Args[0] != testPeer.String() {
		t.Errorf("unexpected call %s %v", last.Method, last.Args)
	}
}

func TestHandleGetDisplay(t *testing.T) {
	s, sess, _, _ := newTestServer(t)
	activate(t, s, sess)

	if res := s.handle("initDisplay", nil); res.result["ok"] != true {
		t.Fatalf("initDisplay failed: %v", res.result)
	}
	res := s.handle("getDisplay", nil)
	local, ok := res.data.(display.Local)
	if res.push != "pushDisplay" || !ok || !local.Initialized {
		t.Errorf("getDisplay = %q %v", res.push, res.data)
	}
}

func TestHandleRegisterBonjourService(t *testing.T) {
	s, sess, m, _ := newTestServer(t)
	activate(t, s, sess)
	m.SetReply(session.IfaceService, "Register", int32(0), int32(7))

	res := s.handle("registerService", args(map[string]interface{}{
		"name": "_display._tcp.local",
		"txt":  []interface{}{"txtvers=1", "port=7236"},
	}))
	if res.result["ok"] != true {
		t.Fatalf("registerService failed: %v", res.result)
	}

	info1, err := service.BonjourQuery("_display._tcp.local", dns.TypeTXT)
	if err != nil {
		t.Fatalf("BonjourQuery failed: %v", err)
	}
	info2, err := service.BonjourTXT([]string{"txtvers=1", "port=7236"})
	if err != nil {
		t.Fatalf("BonjourTXT failed: %v", err)
	}
	calls := m.Calls()
	last := calls[len(calls)-1]
	if want := info1 + service.Separator + info2; last.Args[1] != want {
		t.Errorf("register wire = %v, want %q", last.Args[1], want)
	}

	bad := []map[string]interface{}{
		{"name": "_display._tcp.local"},
		{"name": "_display._tcp.local", "txt": []interface{}{1.0}},
		{"name": "_display._tcp.local", "type": 2.0, "txt": []interface{}{"a=b"}},
		{"name": "_display._tcp.local", "rrtype": 70000.0, "txt": []interface{}{"a=b"}},
	}
	for _, a := range bad {
		if res := s.handle("registerService", args(a)); res.result["code"] != int32(session.CodeInvalidParameter) {
			t.Errorf("registerService(%v) = %v, want invalid parameter", a, res.result)
		}
	}
}
