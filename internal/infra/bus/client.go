// Package bus provides the system-bus transport to the Wi-Fi Direct daemon.
package bus

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"

	"github.com/tizenorg/wfd-manager/internal/domain/session"
)

// signalBuffer is the per-subscription backlog held by the bus library.
const signalBuffer = 64

// Client wraps a private system-bus connection bound to the daemon object.
type Client struct {
	mu      sync.Mutex
	conn    *dbus.Conn
	obj     dbus.BusObject
	busName string
	path    dbus.ObjectPath
	closed  bool
}

var _ session.Transport = (*Client)(nil)

// Dial connects to the system bus and binds to the daemon's object.
func Dial(busName, path string) (*Client, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	log.Info().Str("bus", busName).Str("path", path).Msg("Connected to system bus")
	return newClient(conn, busName, path), nil
}

func newClient(conn *dbus.Conn, busName, path string) *Client {
	c := &Client{
		conn:    conn,
		busName: busName,
		path:    dbus.ObjectPath(path),
	}
	c.obj = conn.Object(busName, c.path)
	return c
}

// Call invokes iface.method on the daemon object. Reply values are converted
// to plain Go values.
func (c *Client) Call(ctx context.Context, iface, method string, args ...interface{}) ([]interface{}, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("bus connection closed")
	}
	obj := c.obj
	c.mu.Unlock()

	wire := make([]interface{}, len(args))
	for i, a := range args {
		wire[i] = toWire(a)
	}

	call := obj.CallWithContext(ctx, iface+"."+method, 0, wire...)
	if call.Err != nil {
		return nil, fmt.Errorf("%s.%s: %w", iface, method, call.Err)
	}
	body := make([]interface{}, len(call.Body))
	for i, v := range call.Body {
		body[i] = normalize(v)
	}
	return body, nil
}

// Subscribe delivers signals emitted by busName on path until ctx is done.
// The returned channel is closed afterwards.
func (c *Client) Subscribe(ctx context.Context, busName, path string) (<-chan session.Signal, error) {
	opts := []dbus.MatchOption{
		dbus.WithMatchSender(busName),
		dbus.WithMatchObjectPath(dbus.ObjectPath(path)),
	}
	if err := c.conn.AddMatchSignal(opts...); err != nil {
		return nil, fmt.Errorf("failed to add signal match: %w", err)
	}

	raw := make(chan *dbus.Signal, signalBuffer)
	c.conn.Signal(raw)

	out := make(chan session.Signal, signalBuffer)
	go func() {
		defer close(out)
		defer func() {
			c.conn.RemoveSignal(raw)
			if err := c.conn.RemoveMatchSignal(opts...); err != nil {
				log.Debug().Err(err).Msg("Failed to remove signal match")
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-raw:
				if !ok {
					log.Warn().Msg("Bus signal channel closed")
					return
				}
				if string(s.Path) != path {
					continue
				}
				sig, ok := translate(s)
				if !ok {
					continue
				}
				select {
				case out <- sig:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	log.Info().Str("sender", busName).Str("path", path).Msg("Subscribed to daemon signals")
	return out, nil
}

// Close closes the bus connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("failed to close bus connection: %w", err)
	}
	return nil
}

// translate converts a bus signal. The member name arrives as "iface.Member".
func translate(s *dbus.Signal) (session.Signal, bool) {
	iface, member, ok := splitName(s.Name)
	if !ok {
		return session.Signal{}, false
	}
	body := make([]interface{}, len(s.Body))
	for i, v := range s.Body {
		body[i] = normalize(v)
	}
	return session.Signal{
		Interface: iface,
		Name:      member,
		Path:      string(s.Path),
		Body:      body,
	}, true
}

func splitName(name string) (string, string, bool) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return "", "", false
	}
	return name[:i], name[i+1:], true
}

// toWire converts a{sv} maps to their bus form. Other values pass through.
func toWire(v interface{}) interface{} {
	m, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	out := make(map[string]dbus.Variant, len(m))
	for k, val := range m {
		out[k] = dbus.MakeVariant(toWire(val))
	}
	return out
}

// normalize strips variants and object paths from a reply value.
func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case dbus.Variant:
		return normalize(x.Value())
	case dbus.ObjectPath:
		return string(x)
	case map[string]dbus.Variant:
		return normalizeDict(x)
	case []map[string]dbus.Variant:
		out := make([]map[string]interface{}, len(x))
		for i, d := range x {
			out[i] = normalizeDict(d)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	}
	return v
}

func normalizeDict(d map[string]dbus.Variant) map[string]interface{} {
	out := make(map[string]interface{}, len(d))
	for k, val := range d {
		out[k] = normalize(val.Value())
	}
	return out
}
