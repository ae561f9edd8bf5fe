// Package mdns advertises the management endpoint on the local network.
package mdns

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultService is the mDNS service name without domain suffix.
	DefaultService = "_wfd-manager._tcp"
	// DefaultDomain is the mDNS domain.
	DefaultDomain = "local."
)

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error)

// Config controls the advertisement.
type Config struct {
	Instance string
	Service  string
	Domain   string
	Port     int
	// Text holds TXT record entries as key/value pairs.
	Text map[string]string
	// Interfaces restricts the advertisement; nil means all multicast interfaces.
	Interfaces []net.Interface

	registerFn registerFunc
}

func (c Config) withDefaults() Config {
	out := c
	if out.Service == "" {
		out.Service = DefaultService
	}
	if out.Domain == "" {
		out.Domain = DefaultDomain
	}
	if out.registerFn == nil {
		out.registerFn = zeroconf.Register
	}
	return out
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Instance) == "" {
		return errors.New("instance name is required")
	}
	if c.Port <= 0 {
		return errors.New("port must be > 0")
	}
	return nil
}

// Advertiser publishes one service instance.
type Advertiser struct {
	server *zeroconf.Server
	txt    []string
}

// Start registers the service and begins answering queries.
func Start(config Config) (*Advertiser, error) {
	cfg := config.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	txt := encodeTXT(cfg.Text)
	server, err := cfg.registerFn(cfg.Instance, cfg.Service, cfg.Domain, cfg.Port, txt, cfg.Interfaces)
	if err != nil {
		return nil, fmt.Errorf("register mDNS service: %w", err)
	}

	log.Info().
		Str("instance", cfg.Instance).
		Str("service", cfg.Service).
		Int("port", cfg.Port).
		Msg("mDNS advertisement started")
	return &Advertiser{server: server, txt: txt}, nil
}

// SetText replaces the TXT record.
func (a *Advertiser) SetText(text map[string]string) {
	if a == nil {
		return
	}
	a.txt = encodeTXT(text)
	if a.server != nil {
		a.server.SetText(a.txt)
	}
}

// Text returns the current TXT entries.
func (a *Advertiser) Text() []string {
	if a == nil {
		return nil
	}
	return append([]string(nil), a.txt...)
}

// Stop withdraws the advertisement.
func (a *Advertiser) Stop() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	log.Info().Msg("mDNS advertisement stopped")
}

// encodeTXT renders key=value entries in key order.
func encodeTXT(text map[string]string) []string {
	keys := make([]string, 0, len(text))
	for k := range text {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+text[k])
	}
	return out
}
