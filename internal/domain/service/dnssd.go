package service

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// ErrMalformedResponse is returned when a Bonjour payload cannot be decoded.
var ErrMalformedResponse = errors.New("malformed bonjour response")

// Bonjour is a decoded DNS-SD service-discovery response.
type Bonjour struct {
	Name     string   `json:"name"`
	RRType   uint16   `json:"rrtype"`
	TypeName string   `json:"typeName"`
	Version  uint8    `json:"version"`
	Instance string   `json:"instance,omitempty"`
	TXT      []string `json:"txt,omitempty"`
}

// Bonjour payloads compress names against a fixed dictionary laid out as if
// they followed a DNS header and a "_tcp.local" question: 0x0c is
// "_tcp.local.", 0x11 is "local.", 0x1c is "_udp.local." and 0x27 is the
// query name of the response itself.
const queryOffset = 0x27

var compressionPrefix = func() []byte {
	b := make([]byte, 12, queryOffset)
	b = append(b, 4, '_', 't', 'c', 'p', 5, 'l', 'o', 'c', 'a', 'l', 0)
	b = append(b, 0, 0, 0, 0)
	b = append(b, 4, '_', 'u', 'd', 'p', 0xc0, 0x11)
	for len(b) < queryOffset {
		b = append(b, 0)
	}
	return b
}()

const (
	protocolBonjour = 1
	tlvHeaderLen    = 5
)

// DecodeBonjour decodes a hex payload. It accepts either a full service
// response TLV (length, protocol, transaction id, status) or only the
// vendor-specific part: DNS name, 16-bit type, version, RDATA.
func DecodeBonjour(payload string) (*Bonjour, error) {
	data, err := hex.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	data, err = stripTLV(data)
	if err != nil {
		return nil, err
	}

	msg := append(append([]byte(nil), compressionPrefix...), data...)
	name, off, err := dns.UnpackDomainName(msg, queryOffset)
	if err != nil {
		return nil, fmt.Errorf("%w: name: %v", ErrMalformedResponse, err)
	}
	if off+3 > len(msg) {
		return nil, fmt.Errorf("%w: truncated after name", ErrMalformedResponse)
	}
	b := &Bonjour{
		Name:    name,
		RRType:  binary.BigEndian.Uint16(msg[off:]),
		Version: msg[off+2],
	}
	b.TypeName = dns.TypeToString[b.RRType]
	rdata := msg[off+3:]
	if len(rdata) == 0 {
		return b, nil
	}

	// Wrap the RDATA in a synthetic resource record so dns.UnpackRR can
	// resolve pointers into the dictionary and the query name.
	rrOff := len(msg)
	hdr := make([]byte, 12)
	hdr[0], hdr[1] = 0xc0, queryOffset
	binary.BigEndian.PutUint16(hdr[2:], b.RRType)
	binary.BigEndian.PutUint16(hdr[4:], dns.ClassINET)
	binary.BigEndian.PutUint16(hdr[10:], uint16(len(rdata)))
	msg = append(append(msg, hdr...), rdata...)

	rr, _, err := dns.UnpackRR(msg, rrOff)
	if err != nil {
		return nil, fmt.Errorf("%w: rdata: %v", ErrMalformedResponse, err)
	}
	switch v := rr.(type) {
	case *dns.PTR:
		b.Instance = v.Ptr
	case *dns.TXT:
		b.TXT = v.Txt
	}
	return b, nil
}

func stripTLV(data []byte) ([]byte, error) {
	if len(data) < tlvHeaderLen {
		return data, nil
	}
	length := int(binary.LittleEndian.Uint16(data))
	if length+2 != len(data) || data[2] != protocolBonjour {
		return data, nil
	}
	if status := data[4]; status != 0 {
		return nil, fmt.Errorf("%w: status %d", ErrMalformedResponse, status)
	}
	return data[tlvHeaderLen:], nil
}

// BonjourQuery encodes the info1 string used to advertise or query a Bonjour
// record: uncompressed name, 16-bit type, version 1.
func BonjourQuery(name string, rrtype uint16) (string, error) {
	buf := make([]byte, 256+3)
	off, err := dns.PackDomainName(dns.Fqdn(name), buf, 0, nil, false)
	if err != nil {
		return "", fmt.Errorf("failed to pack name %q: %w", name, err)
	}
	binary.BigEndian.PutUint16(buf[off:], rrtype)
	buf[off+2] = 1
	return hex.EncodeToString(buf[:off+3]), nil
}

// BonjourTXT encodes TXT strings as the info2 RDATA of a Bonjour advertisement.
func BonjourTXT(txt []string) (string, error) {
	rr := &dns.TXT{
		Hdr: dns.RR_Header{Name: ".", Rrtype: dns.TypeTXT, Class: dns.ClassINET},
		Txt: txt,
	}
	buf := make([]byte, dns.MaxMsgSize)
	off, err := dns.PackRR(rr, buf, 0, nil, false)
	if err != nil {
		return "", fmt.Errorf("failed to pack txt: %w", err)
	}
	// Root name (1 byte) plus type, class, ttl and rdlength.
	const hdrLen = 1 + 10
	return hex.EncodeToString(buf[hdrLen:off]), nil
}
