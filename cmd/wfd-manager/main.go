// Package main is the entry point for the Wi-Fi Direct session manager.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tizenorg/wfd-manager/internal/dispatch"
	"github.com/tizenorg/wfd-manager/internal/domain/session"
	"github.com/tizenorg/wfd-manager/internal/infra/bus"
	"github.com/tizenorg/wfd-manager/internal/infra/mdns"
	"github.com/tizenorg/wfd-manager/internal/infra/store"
	"github.com/tizenorg/wfd-manager/internal/transport/socketio"
	"github.com/tizenorg/wfd-manager/internal/version"
)

func main() {
	// Command line flags
	addr := flag.String("addr", ":8080", "HTTP listen address")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	dbPath := flag.String("db", store.DefaultDBPath, "Settings database path")
	busName := flag.String("bus-name", session.BusName, "Wi-Fi Direct daemon bus name")
	busPath := flag.String("bus-path", session.ObjectPath, "Wi-Fi Direct daemon object path")
	callTimeout := flag.Duration("call-timeout", session.DefaultCallTimeout, "Daemon reply timeout")
	peerStale := flag.Duration("peer-stale", 5*time.Minute, "Expire peers not seen for this long")
	queueSize := flag.Int("queue-size", dispatch.DefaultQueueSize, "Event queue capacity")
	sweep := flag.Duration("sweep", dispatch.DefaultSweepInterval, "Stale peer sweep interval (0 disables)")
	displayFeature := flag.Bool("display", true, "Enable Wi-Fi Display support")
	serviceFeature := flag.Bool("service-discovery", true, "Enable service discovery support")
	corsOrigin := flag.String("cors-origin", "*", "Allowed CORS origin")
	maxRemote := flag.Int("max-remote-clients", socketio.DefaultMaxRemoteClients, "Maximum concurrent non-loopback socket clients (0 = unlimited)")
	advertise := flag.Bool("mdns", false, "Advertise the management endpoint over mDNS")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default: hostname)")
	flag.Parse()

	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Print startup banner
	versionInfo := version.GetInfo()
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", versionInfo.String())
	log.Info().Msg("  Wi-Fi Direct Session Manager")
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().
		Str("addr", *addr).
		Str("db", *dbPath).
		Str("bus_name", *busName).
		Str("bus_path", *busPath).
		Dur("call_timeout", *callTimeout).
		Int("queue_size", *queueSize).
		Bool("display", *displayFeature).
		Bool("service_discovery", *serviceFeature).
		Msg("Configuration")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Settings store
	db := store.NewDB(*dbPath)
	if err := db.Open(); err != nil {
		log.Fatal().Err(err).Msg("Failed to open settings database")
	}
	defer db.Close()

	// Daemon connection
	client, err := bus.Dial(*busName, *busPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to system bus")
	}
	defer client.Close()

	sess := session.New(client, db, session.Config{
		CallTimeout:    *callTimeout,
		PeerStaleAfter: *peerStale,
		Features: session.Features{
			Display:          *displayFeature,
			ServiceDiscovery: *serviceFeature,
		},
	})
	defer sess.Close()

	// Create Socket.io server
	socketServer, err := socketio.NewServer(sess, socketio.Options{
		CorsOrigin:       *corsOrigin,
		MaxRemoteClients: *maxRemote,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Socket.io server")
	}
	defer socketServer.Close()

	// Start event dispatcher
	dispatcher := dispatch.New(client, sess,
		dispatch.WithQueueSize(*queueSize),
		dispatch.WithSweepInterval(*sweep),
	)
	if err := dispatcher.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start event dispatcher")
	}
	defer dispatcher.Stop()

	if *advertise {
		advertiser, err := startAdvertiser(*mdnsName, *addr, versionInfo)
		if err != nil {
			log.Warn().Err(err).Msg("mDNS advertisement disabled")
		}
		defer advertiser.Stop()
	}

	rt := routes{
		session:  sess,
		settings: db,
		stats:    dispatcher,
		socket:   socketServer,
	}
	server := &http.Server{
		Addr:         *addr,
		Handler:      rt.handler(*corsOrigin),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", *addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server error")
	}

	// Leave the radio off when the manager goes away
	if sess.Activation() != session.Deactivated {
		offCtx, cancel := context.WithTimeout(context.Background(), *callTimeout)
		if err := sess.Deactivate(offCtx); err != nil {
			log.Warn().Err(err).Msg("Deactivate on shutdown failed")
		}
		cancel()
	}

	log.Info().Msg("Server stopped")
}

// startAdvertiser announces the HTTP endpoint on the local network.
func startAdvertiser(instance, addr string, info version.Info) (*mdns.Advertiser, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	if instance == "" {
		if host, err := os.Hostname(); err == nil {
			instance = info.Name + " on " + host
		} else {
			instance = info.Name
		}
	}
	return mdns.Start(mdns.Config{
		Instance: instance,
		Port:     port,
		Text:     info.TXT(),
	})
}
