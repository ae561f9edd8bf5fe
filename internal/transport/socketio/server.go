// Package socketio provides the Socket.io server for management clients.
package socketio

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/tizenorg/wfd-manager/internal/domain/session"
)

const (
	// DefaultDebounceWindow bounds how often pushPeers and pushState are broadcast.
	DefaultDebounceWindow = 250 * time.Millisecond
	// DefaultRequestTimeout bounds one client request against the daemon.
	DefaultRequestTimeout = 15 * time.Second
	// DefaultMaxRemoteClients caps concurrent non-loopback clients.
	DefaultMaxRemoteClients = 4
)

// Options configure the server.
type Options struct {
	CorsOrigin       string
	MaxRemoteClients int
	DebounceWindow   time.Duration
	RequestTimeout   time.Duration
}

func (o Options) withDefaults() Options {
	if o.CorsOrigin == "" {
		o.CorsOrigin = "*"
	}
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = DefaultDebounceWindow
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	return o
}

// Server handles Socket.io connections and events.
type Server struct {
	io        *socket.Server
	session   *session.Session
	opts      Options
	requests  map[string]request
	limiter   *ClientLimiter
	debouncer *BroadcastDebouncer

	// broadcast sends to every connected client.
	broadcast func(event string, data interface{})

	mu      sync.RWMutex
	clients map[string]*socket.Socket
}

// NewServer creates a new Socket.io server bound to sess. It takes over the
// session's notification callbacks.
func NewServer(sess *session.Session, options Options) (*Server, error) {
	opts := options.withDefaults()

	serverOpts := socket.DefaultServerOptions()
	serverOpts.SetPingTimeout(20 * time.Second)
	serverOpts.SetPingInterval(25 * time.Second)
	serverOpts.SetCors(&types.Cors{
		Origin:      opts.CorsOrigin,
		Credentials: true,
	})

	io := socket.NewServer(nil, serverOpts)

	s := &Server{
		io:      io,
		session: sess,
		opts:    opts,
		limiter: NewClientLimiter(opts.MaxRemoteClients),
		clients: make(map[string]*socket.Socket),
	}
	s.broadcast = func(event string, data interface{}) {
		s.io.Emit(event, data)
	}
	s.requests = s.requestTable()
	s.debouncer = NewBroadcastDebouncer(opts.DebounceWindow, s.BroadcastState, s.BroadcastPeers)

	s.setupHandlers()
	s.subscribe()

	return s, nil
}

// setupHandlers registers all Socket.io event handlers.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())
		addr := client.Handshake().Address

		log.Info().Str("id", clientID).Str("addr", addr).Msg("Client connected")

		if evicted := s.limiter.Admit(clientID, addr); evicted != "" {
			s.evict(evicted)
		}

		s.mu.Lock()
		s.clients[clientID] = client
		s.mu.Unlock()

		// Send initial state after small delay
		go func() {
			time.Sleep(100 * time.Millisecond)
			client.Emit("pushState", s.session.Snapshot().ToJSON())
			client.Emit("pushPeers", peersPayload(s.session.ListPeers()))
		}()

		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Client disconnected")

			s.limiter.Remove(clientID)
			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
		})

		for op := range s.requests {
			op := op
			client.On(op, func(args ...any) {
				log.Debug().Str("id", clientID).Interface("data", args).Msg(op)
				res := s.handle(op, args)
				if res.push != "" {
					client.Emit(res.push, res.data)
				}
				client.Emit("pushResult", res.result)
			})
		}
	})
}

// evict disconnects a client pushed out by the remote client cap.
func (s *Server) evict(clientID string) {
	s.mu.Lock()
	client, ok := s.clients[clientID]
	delete(s.clients, clientID)
	s.mu.Unlock()

	if !ok {
		return
	}
	log.Warn().Str("id", clientID).Msg("Evicting client, remote client limit reached")
	client.Disconnect(true)
}

// subscribe forwards session notifications to every client.
func (s *Server) subscribe() {
	s.session.OnActivation(func(n session.ActivationNotice) {
		s.broadcast("pushActivation", activationPayload(n))
		s.debouncer.Trigger(ChangeState)
	})
	s.session.OnDiscovery(func(n session.DiscoveryNotice) {
		s.broadcast("pushDiscovery", discoveryPayload(n))
		if n.Kind == session.DiscoveryFinished {
			s.debouncer.Trigger(ChangePeers)
			return
		}
		s.debouncer.Trigger(ChangeState)
	})
	s.session.OnPeer(func(n session.PeerNotice) {
		s.broadcast("pushPeer", peerPayload(n))
		s.debouncer.Trigger(ChangePeers)
	})
	s.session.OnConnection(func(n session.ConnectionNotice) {
		s.broadcast("pushConnection", connectionPayload(n))
		s.debouncer.Trigger(ChangePeers)
	})
	s.session.OnIPAssigned(func(n session.IPAssignedNotice) {
		s.broadcast("pushIPAssigned", ipAssignedPayload(n))
		s.debouncer.Trigger(ChangePeers)
	})
	s.session.OnService(func(n session.ServiceNotice) {
		s.broadcast("pushService", servicePayload(n))
	})
	s.session.OnDisplay(func(n session.DisplayNotice) {
		s.broadcast("pushDisplay", displayPayload(n.MAC, n.Capability))
	})
}

// BroadcastState sends the session snapshot to all connected clients.
func (s *Server) BroadcastState() {
	state := s.session.Snapshot().ToJSON()
	s.broadcast("pushState", state)

	if log.Debug().Enabled() {
		data, _ := json.Marshal(state)
		log.Debug().RawJSON("state", data).Int("clients", s.ClientCount()).Msg("Broadcast state")
	}
}

// BroadcastPeers sends the peer list to all connected clients.
func (s *Server) BroadcastPeers() {
	s.broadcast("pushPeers", peersPayload(s.session.ListPeers()))
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close stops pending broadcasts and closes the Socket.io server.
func (s *Server) Close() error {
	s.debouncer.Stop()
	s.io.Close(nil)
	return nil
}
