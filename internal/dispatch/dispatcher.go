package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tizenorg/wfd-manager/internal/domain/session"
)

const (
	// DefaultQueueSize bounds the number of events waiting for the session.
	DefaultQueueSize = 256
	// DefaultSweepInterval is how often stale peers are expired.
	DefaultSweepInterval = 30 * time.Second
)

// ErrStopped is returned by Start once the dispatcher has been stopped.
var ErrStopped = errors.New("dispatcher stopped")

// Handler consumes decoded events. *session.Session implements it.
type Handler interface {
	HandleEvent(ctx context.Context, ev session.Event)
}

// Stats are cumulative dispatcher counters.
type Stats struct {
	Processed uint64 `json:"processed"`
	Dropped   uint64 `json:"dropped"`
	Malformed uint64 `json:"malformed"`
	Unknown   uint64 `json:"unknown"`
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithQueueSize sets the queue capacity. Non-positive values keep the default.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithSweepInterval sets the stale-peer sweep period. Zero disables the sweep.
func WithSweepInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		d.sweepInterval = interval
	}
}

// WithClock replaces the time source used for sweep events.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// Dispatcher pumps bus signals into a bounded FIFO queue and hands them to
// the handler strictly one at a time.
type Dispatcher struct {
	sub     session.Subscriber
	handler Handler
	logger  zerolog.Logger

	queueSize     int
	sweepInterval time.Duration
	now           func() time.Time
	queue         chan session.Event

	processed atomic.Uint64
	dropped   atomic.Uint64
	malformed atomic.Uint64
	unknown   atomic.Uint64

	startOnce sync.Once
	stopOnce  sync.Once
	doneOnce  sync.Once

	// done is closed when the loops stop; producers only ever read it.
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a stopped dispatcher.
func New(sub session.Subscriber, handler Handler, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sub:           sub,
		handler:       handler,
		logger:        log.With().Str("component", "dispatch").Logger(),
		queueSize:     DefaultQueueSize,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.queue = make(chan session.Event, d.queueSize)
	return d
}

// Start subscribes to the daemon and starts the pump and handler loops.
func (d *Dispatcher) Start(ctx context.Context) error {
	if d.stopped() {
		return ErrStopped
	}
	var err error
	d.startOnce.Do(func() {
		d.ctx, d.cancel = context.WithCancel(ctx)

		var signals <-chan session.Signal
		signals, err = d.sub.Subscribe(d.ctx, session.BusName, session.ObjectPath)
		if err != nil {
			d.cancel()
			return
		}

		d.wg.Add(3)
		go d.watch()
		go d.pump(signals)
		go d.loop()
		if d.sweepInterval > 0 {
			d.wg.Add(1)
			go d.sweep()
		}
		d.logger.Info().
			Int("queueSize", d.queueSize).
			Dur("sweepInterval", d.sweepInterval).
			Msg("Dispatcher started")
	})
	return err
}

// Stop cancels the loops and waits for them. It is safe to call more than once.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.markDone()
		if d.cancel == nil {
			return
		}
		d.cancel()
		d.wg.Wait()
		s := d.Stats()
		d.logger.Info().
			Uint64("processed", s.Processed).
			Uint64("dropped", s.Dropped).
			Uint64("malformed", s.Malformed).
			Msg("Dispatcher stopped")
	})
}

// Enqueue injects an event without blocking. It reports false when the event
// was dropped because the queue is full or the dispatcher is stopped.
func (d *Dispatcher) Enqueue(ev session.Event) bool {
	if d.stopped() {
		return false
	}
	select {
	case d.queue <- ev:
		return true
	default:
		d.dropped.Add(1)
		d.logger.Warn().Msg("Event queue full, dropping event")
		return false
	}
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Processed: d.processed.Load(),
		Dropped:   d.dropped.Load(),
		Malformed: d.malformed.Load(),
		Unknown:   d.unknown.Load(),
	}
}

func (d *Dispatcher) markDone() {
	d.doneOnce.Do(func() { close(d.done) })
}

func (d *Dispatcher) stopped() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

// watch marks the dispatcher done when the parent context is cancelled.
func (d *Dispatcher) watch() {
	defer d.wg.Done()
	<-d.ctx.Done()
	d.markDone()
}

func (d *Dispatcher) pump(signals <-chan session.Signal) {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				d.logger.Warn().Msg("Signal channel closed")
				return
			}
			ev, err := Decode(sig)
			if err != nil {
				d.reject(sig, err)
				continue
			}
			d.Enqueue(ev)
		}
	}
}

func (d *Dispatcher) reject(sig session.Signal, err error) {
	if errors.Is(err, ErrUnknownSignal) {
		d.unknown.Add(1)
		d.logger.Debug().Str("iface", sig.Interface).Str("member", sig.Name).Msg("Ignoring unknown signal")
		return
	}
	d.malformed.Add(1)
	d.logger.Warn().Err(err).Msg("Dropping malformed signal")
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case ev := <-d.queue:
			d.handler.HandleEvent(d.ctx, ev)
			d.processed.Add(1)
		}
	}
}

func (d *Dispatcher) sweep() {
	defer d.wg.Done()
	ticker := time.NewTicker(d.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.Enqueue(session.SweepEvent{Now: d.now()})
		}
	}
}
