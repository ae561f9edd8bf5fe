package main

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/tizenorg/wfd-manager/internal/dispatch"
	"github.com/tizenorg/wfd-manager/internal/domain/peer"
	"github.com/tizenorg/wfd-manager/internal/domain/session"
	"github.com/tizenorg/wfd-manager/internal/version"
)

// sessionView is the read side of the session served over HTTP.
type sessionView interface {
	Snapshot() session.Snapshot
	ListPeers() []peer.Peer
}

type settingsView interface {
	All() (map[string]string, error)
}

type statsView interface {
	Stats() dispatch.Stats
}

type routes struct {
	session  sessionView
	settings settingsView
	stats    statsView
	socket   http.Handler
}

func (rt routes) handler(corsOrigin string) http.Handler {
	mux := http.NewServeMux()

	if rt.socket != nil {
		mux.Handle("/socket.io/", rt.socket)
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		snap := rt.session.Snapshot()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"state":   snap.State.String(),
			"session": snap.ID,
		})
	})

	mux.HandleFunc("GET /api/v1/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, version.GetInfo())
	})

	mux.HandleFunc("GET /api/v1/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, rt.session.Snapshot().ToJSON())
	})

	mux.HandleFunc("GET /api/v1/peers", func(w http.ResponseWriter, r *http.Request) {
		peers := rt.session.ListPeers()
		out := make([]map[string]interface{}, 0, len(peers))
		for _, p := range peers {
			out = append(out, p.ToJSON())
		}
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("GET /api/v1/settings", func(w http.ResponseWriter, r *http.Request) {
		if rt.settings == nil {
			writeJSON(w, http.StatusOK, map[string]string{})
			return
		}
		all, err := rt.settings.All()
		if err != nil {
			log.Error().Err(err).Msg("Failed to read settings")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, all)
	})

	mux.HandleFunc("GET /api/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		if rt.stats == nil {
			writeJSON(w, http.StatusOK, dispatch.Stats{})
			return
		}
		writeJSON(w, http.StatusOK, rt.stats.Stats())
	})

	return corsMiddleware(corsOrigin, mux)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}
