// Package service tracks local service advertisements and correlates remote
// service-discovery queries with the responses that answer them.
package service

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tizenorg/wfd-manager/internal/domain/peer"
)

// Type identifies a service-discovery protocol.
type Type int

const (
	TypeAll         Type = 0
	TypeBonjour     Type = 1
	TypeUPnP        Type = 2
	TypeWSDiscovery Type = 3
	TypeWiFiDisplay Type = 4
	TypeBTAddr      Type = 5
	TypeContactInfo Type = 6
	TypeVendor      Type = 0xff
)

var typeNames = map[Type]string{
	TypeAll:         "all",
	TypeBonjour:     "bonjour",
	TypeUPnP:        "upnp",
	TypeWSDiscovery: "ws-discovery",
	TypeWiFiDisplay: "wifi-display",
	TypeBTAddr:      "bt-addr",
	TypeContactInfo: "contact-info",
	TypeVendor:      "vendor",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// Registrable reports whether t may be advertised locally.
func (t Type) Registrable() bool {
	_, ok := typeNames[t]
	return ok
}

// Discoverable reports whether t may be queried from peers.
func (t Type) Discoverable() bool {
	return t >= TypeAll && t <= TypeContactInfo
}

// Matches reports whether a pending query of type t accepts a response of type other.
func (t Type) Matches(other Type) bool {
	return t == TypeAll || t == other
}

// Separator joins the two info strings on the wire.
const Separator = "|"

var (
	// ErrInvalidParameter is returned for empty info strings or out-of-range types.
	ErrInvalidParameter = errors.New("invalid service parameter")
	// ErrNotFound is returned when deregistering an unknown id.
	ErrNotFound = errors.New("service not found")
)

// ID is a locally assigned service handle. IDs start at 1 and are never reused.
type ID uint32

// Record is one local advertisement.
type Record struct {
	ID     ID     `json:"id"`
	Type   Type   `json:"type"`
	Info1  string `json:"info1"`
	Info2  string `json:"info2"`
	Handle int32  `json:"handle"`
}

// Wire returns the info strings as sent to the daemon.
func (r Record) Wire() string {
	return r.Info1 + Separator + r.Info2
}

// Query is a pending remote service-discovery request.
type Query struct {
	Target peer.MAC `json:"target"`
	Type   Type     `json:"type"`
}

// Matches reports whether a response of type t from mac answers q.
func (q Query) Matches(mac peer.MAC, t Type) bool {
	if !q.Type.Matches(t) {
		return false
	}
	return q.Target.IsBroadcast() || q.Target == mac
}

// Found is one discovery response that matched at least one pending query.
type Found struct {
	MAC     peer.MAC
	Type    Type
	Payload string
	Queries []Query
	Bonjour *Bonjour
}

// Registry is not safe for concurrent use; the owning session serializes access.
type Registry struct {
	nextID  ID
	records map[ID]*Record
	pending map[Query]struct{}
	order   []Query
}

// NewRegistry creates an empty registry whose first id is 1.
func NewRegistry() *Registry {
	return &Registry{
		nextID:  1,
		records: make(map[ID]*Record),
		pending: make(map[Query]struct{}),
	}
}

// Validate checks a registration request without allocating an id.
func Validate(t Type, info1, info2 string) error {
	if !t.Registrable() {
		return fmt.Errorf("%w: type %d", ErrInvalidParameter, int(t))
	}
	if info1 == "" || info2 == "" {
		return fmt.Errorf("%w: empty info", ErrInvalidParameter)
	}
	return nil
}

// Register stores a new advertisement and returns its id.
func (r *Registry) Register(t Type, info1, info2 string) (ID, error) {
	if err := Validate(t, info1, info2); err != nil {
		return 0, err
	}
	id := r.nextID
	r.nextID++
	r.records[id] = &Record{ID: id, Type: t, Info1: info1, Info2: info2}
	return id, nil
}

// Bind attaches the daemon-side handle returned for a registration.
func (r *Registry) Bind(id ID, handle int32) {
	if rec, ok := r.records[id]; ok {
		rec.Handle = handle
	}
}

// Deregister removes id. Unknown ids fail with ErrNotFound.
func (r *Registry) Deregister(id ID) error {
	if _, ok := r.records[id]; !ok {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	delete(r.records, id)
	return nil
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id ID) (Record, bool) {
	rec, ok := r.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Records returns every local advertisement ordered by id.
func (r *Registry) Records() []Record {
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StartQuery records a pending query. Starting the same query twice is a no-op.
func (r *Registry) StartQuery(target peer.MAC, t Type) Query {
	q := Query{Target: target, Type: t}
	if _, ok := r.pending[q]; !ok {
		r.pending[q] = struct{}{}
		r.order = append(r.order, q)
	}
	return q
}

// ResolveFound matches a response against pending queries. Matched queries
// stay pending until Finish; ok is false when nothing was waiting for it.
func (r *Registry) ResolveFound(mac peer.MAC, t Type, payload string) (Found, bool) {
	f := Found{MAC: mac, Type: t, Payload: payload}
	for _, q := range r.order {
		if q.Matches(mac, t) {
			f.Queries = append(f.Queries, q)
		}
	}
	if len(f.Queries) == 0 {
		return Found{}, false
	}
	if t == TypeBonjour {
		if b, err := DecodeBonjour(payload); err == nil {
			f.Bonjour = b
		}
	}
	return f, true
}

// Finish closes the queries selected by target and t and returns them.
// A broadcast target or TypeAll acts as a wildcard.
func (r *Registry) Finish(target peer.MAC, t Type) []Query {
	return r.drop(func(q Query) bool {
		if t != TypeAll && q.Type != t {
			return false
		}
		return target.IsBroadcast() || q.Target == target
	})
}

// CancelQuery removes the exact query without notification.
func (r *Registry) CancelQuery(target peer.MAC, t Type) bool {
	want := Query{Target: target, Type: t}
	return len(r.drop(func(q Query) bool { return q == want })) > 0
}

// Pending returns the open queries in the order they were started.
func (r *Registry) Pending() []Query {
	return append([]Query(nil), r.order...)
}

// Reset drops all pending queries. Records and the id counter survive.
func (r *Registry) Reset() {
	r.pending = make(map[Query]struct{})
	r.order = nil
}

// Clear drops records and queries. The id counter survives.
func (r *Registry) Clear() {
	r.Reset()
	r.records = make(map[ID]*Record)
}

func (r *Registry) drop(match func(Query) bool) []Query {
	var dropped []Query
	kept := r.order[:0]
	for _, q := range r.order {
		if match(q) {
			dropped = append(dropped, q)
			delete(r.pending, q)
			continue
		}
		kept = append(kept, q)
	}
	r.order = kept
	return dropped
}
