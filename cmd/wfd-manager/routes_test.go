package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tizenorg/wfd-manager/internal/dispatch"
	"github.com/tizenorg/wfd-manager/internal/domain/peer"
	"github.com/tizenorg/wfd-manager/internal/domain/session"
	"github.com/tizenorg/wfd-manager/internal/domain/session/sessiontest"
	"github.com/tizenorg/wfd-manager/internal/version"
)

type fakeSettings struct {
	values map[string]string
	err    error
}

func (f fakeSettings) All() (map[string]string, error) { return f.values, f.err }

type fakeStats dispatch.Stats

func (f fakeStats) Stats() dispatch.Stats { return dispatch.Stats(f) }

func newTestRoutes(t *testing.T) (routes, *session.Session) {
	t.Helper()
	sess := session.New(sessiontest.NewTransport(1), nil, session.DefaultConfig())
	t.Cleanup(sess.Close)

	if err := sess.Activate(context.Background()); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	sess.HandleEvent(context.Background(), session.ActivationEvent{})
	sess.HandleEvent(context.Background(), session.PeerFoundEvent{MAC: peer.MAC{2, 0, 0, 0, 0, 1}})

	return routes{
		session:  sess,
		settings: fakeSettings{values: map[string]string{session.KeyDeviceName: "TV"}},
		stats:    fakeStats{Processed: 3, Dropped: 1},
	}, sess
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRoutes_Health(t *testing.T) {
	rt, sess := newTestRoutes(t)
	rec := get(t, rt.handler("*"), "/health")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["session"] != sess.ID() {
		t.Errorf("unexpected health body %v", body)
	}
	if body["state"] != session.StateActivated.String() {
		t.Errorf("state = %q, want %q", body["state"], session.StateActivated.String())
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected CORS header on health, got %q", got)
	}
}

func TestRoutes_Version(t *testing.T) {
	rt, _ := newTestRoutes(t)
	rec := get(t, rt.handler("*"), "/api/v1/version")

	var info version.Info
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Name != version.Name || info.API != version.APIVersion {
		t.Errorf("unexpected version info %+v", info)
	}
}

func TestRoutes_StateAndPeers(t *testing.T) {
	rt, _ := newTestRoutes(t)
	h := rt.handler("*")

	var state map[string]interface{}
	if err := json.NewDecoder(get(t, h, "/api/v1/state").Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state["activation"] != session.Activated.String() {
		t.Errorf("activation = %v, want %s", state["activation"], session.Activated)
	}

	var peers []map[string]interface{}
	if err := json.NewDecoder(get(t, h, "/api/v1/peers").Body).Decode(&peers); err != nil {
		t.Fatalf("decode peers: %v", err)
	}
	if len(peers) != 1 || peers[0]["mac"] != "02:00:00:00:00:01" {
		t.Errorf("unexpected peers %v", peers)
	}
}

func TestRoutes_Settings(t *testing.T) {
	rt, _ := newTestRoutes(t)

	var settings map[string]string
	if err := json.NewDecoder(get(t, rt.handler("*"), "/api/v1/settings").Body).Decode(&settings); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if settings[session.KeyDeviceName] != "TV" {
		t.Errorf("unexpected settings %v", settings)
	}

	rt.settings = fakeSettings{err: errors.New("disk gone")}
	if rec := get(t, rt.handler("*"), "/api/v1/settings"); rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestRoutes_Stats(t *testing.T) {
	rt, _ := newTestRoutes(t)

	var stats dispatch.Stats
	if err := json.NewDecoder(get(t, rt.handler("*"), "/api/v1/stats").Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Processed != 3 || stats.Dropped != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	rt, _ := newTestRoutes(t)
	rec := httptest.NewRecorder()
	rt.handler("*").ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/state", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}
