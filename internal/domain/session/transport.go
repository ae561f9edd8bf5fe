package session

import (
	"context"
	"time"
)

// Bus coordinates of the Wi-Fi Direct daemon.
const (
	BusName    = "net.wifidirect"
	ObjectPath = "/net/wifidirect"

	IfaceManage  = BusName
	IfaceGroup   = BusName + ".group"
	IfaceConfig  = BusName + ".config"
	IfaceService = BusName + ".service"
	IfaceDisplay = BusName + ".display"
)

// DefaultCallTimeout bounds every request/response round-trip.
const DefaultCallTimeout = 10 * time.Second

// Signal is one inbound bus signal. Body holds plain Go values:
// int32, uint16, bool, string, []byte, map[string]interface{} for a{sv}
// and []map[string]interface{} for aa{sv}.
type Signal struct {
	Interface string
	Name      string
	Path      string
	Body      []interface{}
}

// Caller performs synchronous requests against the daemon. Reply bodies use
// the same plain value conventions as Signal.Body.
type Caller interface {
	Call(ctx context.Context, iface, method string, args ...interface{}) ([]interface{}, error)
}

// Subscriber delivers daemon signals in arrival order.
type Subscriber interface {
	Subscribe(ctx context.Context, busName, path string) (<-chan Signal, error)
}

// Transport is the full bus collaborator.
type Transport interface {
	Caller
	Subscriber
	Close() error
}
