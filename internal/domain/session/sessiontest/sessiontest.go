// Package sessiontest provides in-memory doubles for the session transport and
// settings store.
package sessiontest

import (
	"context"
	"sync"

	"github.com/tizenorg/wfd-manager/internal/domain/session"
)

var (
	_ session.Transport = (*Transport)(nil)
	_ session.Store     = (*Store)(nil)
)

// Call records one request made through Transport.
type Call struct {
	Iface  string
	Method string
	Args   []interface{}
}

// Transport is an in-memory session transport for tests. Unscripted methods
// succeed with a zero result code.
type Transport struct {
	mu      sync.Mutex
	calls   []Call
	replies map[string][]interface{}
	errs    map[string]error
	hang    map[string]bool
	signals chan session.Signal
	closed  bool
}

// NewTransport creates a transport whose signal channel buffers n signals.
func NewTransport(n int) *Transport {
	return &Transport{
		replies: make(map[string][]interface{}),
		errs:    make(map[string]error),
		hang:    make(map[string]bool),
		signals: make(chan session.Signal, n),
	}
}

func callKey(iface, method string) string {
	return iface + "." + method
}

// SetReply scripts the reply body of iface.method, result code included.
func (m *Transport) SetReply(iface, method string, body ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[callKey(iface, method)] = body
}

// SetError makes iface.method fail at the transport level.
func (m *Transport) SetError(iface, method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[callKey(iface, method)] = err
}

// SetHang makes iface.method block until its context is done.
func (m *Transport) SetHang(iface, method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hang[callKey(iface, method)] = true
}

// Call implements session.Caller.
func (m *Transport) Call(ctx context.Context, iface, method string, args ...interface{}) ([]interface{}, error) {
	key := callKey(iface, method)

	m.mu.Lock()
	m.calls = append(m.calls, Call{Iface: iface, Method: method, Args: args})
	hang := m.hang[key]
	err := m.errs[key]
	body, scripted := m.replies[key]
	m.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if !scripted {
		return []interface{}{int32(0)}, nil
	}
	return append([]interface{}(nil), body...), nil
}

// Calls returns every recorded request in order.
func (m *Transport) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallCount returns how many times iface.method was called.
func (m *Transport) CallCount(iface, method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Iface == iface && c.Method == method {
			n++
		}
	}
	return n
}

// ResetCalls forgets recorded requests. Scripts are kept.
func (m *Transport) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Subscribe implements session.Subscriber.
func (m *Transport) Subscribe(ctx context.Context, busName, path string) (<-chan session.Signal, error) {
	return m.signals, nil
}

// Emit delivers sig to the subscriber. It blocks when the buffer is full.
func (m *Transport) Emit(sig session.Signal) {
	m.signals <- sig
}

// Close closes the signal channel.
func (m *Transport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.signals)
	}
	return nil
}

// Store is an in-memory session store for tests.
type Store struct {
	mu     sync.Mutex
	values map[string]string
	Err    error
}

// NewStore creates a store preloaded with values.
func NewStore(values map[string]string) *Store {
	s := &Store{values: make(map[string]string, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Get implements session.Store.
func (s *Store) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", false, s.Err
	}
	v, ok := s.values[key]
	return v, ok, nil
}

// Set implements session.Store.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.values[key] = value
	return nil
}
