package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tizenorg/wfd-manager/internal/domain/peer"
	"github.com/tizenorg/wfd-manager/internal/domain/session"
	"github.com/tizenorg/wfd-manager/internal/domain/session/sessiontest"
)

type recorder struct {
	mu     sync.Mutex
	events []session.Event
}

func (r *recorder) HandleEvent(_ context.Context, ev session.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []session.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]session.Event(nil), r.events...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestDispatcher_FIFO(t *testing.T) {
	m := sessiontest.NewTransport(16)
	rec := &recorder{}
	d := New(m, rec, WithSweepInterval(0))
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	addrs := []string{"02:00:00:00:00:01", "02:00:00:00:00:02", "02:00:00:00:00:03"}
	for _, a := range addrs {
		m.Emit(sig(session.IfaceManage, "PeerFound", a))
	}

	waitFor(t, func() bool { return len(rec.snapshot()) == len(addrs) })
	for i, ev := range rec.snapshot() {
		found, ok := ev.(session.PeerFoundEvent)
		if !ok {
			t.Fatalf("event %d: expected PeerFoundEvent, got %T", i, ev)
		}
		if found.MAC.String() != addrs[i] {
			t.Errorf("event %d: expected %s, got %s", i, addrs[i], found.MAC)
		}
	}
}

func TestDispatcher_DropsBadSignals(t *testing.T) {
	m := sessiontest.NewTransport(16)
	rec := &recorder{}
	d := New(m, rec, WithSweepInterval(0))
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	m.Emit(sig(session.IfaceManage, "Connection", "oops"))
	m.Emit(sig(session.IfaceManage, "SomethingNew"))
	m.Emit(sig(session.IfaceGroup, "Created"))

	waitFor(t, func() bool { return d.Stats().Processed == 1 })
	stats := d.Stats()
	if stats.Malformed != 1 {
		t.Errorf("expected 1 malformed, got %d", stats.Malformed)
	}
	if stats.Unknown != 1 {
		t.Errorf("expected 1 unknown, got %d", stats.Unknown)
	}
	if _, ok := rec.snapshot()[0].(session.GroupCreatedEvent); !ok {
		t.Errorf("expected GroupCreatedEvent, got %T", rec.snapshot()[0])
	}
}

func TestDispatcher_QueueFull(t *testing.T) {
	d := New(sessiontest.NewTransport(1), &recorder{}, WithQueueSize(2))

	for i := 0; i < 2; i++ {
		if !d.Enqueue(session.GroupCreatedEvent{}) {
			t.Fatalf("enqueue %d: expected accepted", i)
		}
	}
	if d.Enqueue(session.GroupCreatedEvent{}) {
		t.Error("expected full queue to drop the event")
	}
	if got := d.Stats().Dropped; got != 1 {
		t.Errorf("expected 1 dropped, got %d", got)
	}
}

func TestDispatcher_Sweep(t *testing.T) {
	fixed := time.Unix(1700000000, 0)
	rec := &recorder{}
	d := New(sessiontest.NewTransport(1), rec,
		WithSweepInterval(10*time.Millisecond),
		WithClock(func() time.Time { return fixed }),
	)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	waitFor(t, func() bool { return len(rec.snapshot()) > 0 })
	sweep, ok := rec.snapshot()[0].(session.SweepEvent)
	if !ok {
		t.Fatalf("expected SweepEvent, got %T", rec.snapshot()[0])
	}
	if !sweep.Now.Equal(fixed) {
		t.Errorf("expected sweep at %v, got %v", fixed, sweep.Now)
	}
}

func TestDispatcher_StopIsIdempotent(t *testing.T) {
	d := New(sessiontest.NewTransport(1), &recorder{})
	d.Stop()

	d = New(sessiontest.NewTransport(1), &recorder{}, WithSweepInterval(0))
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	d.Stop()
	d.Stop()
	if d.Enqueue(session.GroupCreatedEvent{}) {
		t.Error("expected enqueue after stop to fail")
	}
}

func TestDispatcher_EnqueueDuringStart(t *testing.T) {
	d := New(sessiontest.NewTransport(1), &recorder{}, WithSweepInterval(0))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			d.Enqueue(session.GroupCreatedEvent{})
		}
	}()
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	wg.Wait()
	d.Stop()

	if err := d.Start(context.Background()); err != ErrStopped {
		t.Errorf("expected ErrStopped on restart, got %v", err)
	}
}

func TestDispatcher_ParentCancelStopsEnqueue(t *testing.T) {
	d := New(sessiontest.NewTransport(1), &recorder{}, WithSweepInterval(0))
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	cancel()
	waitFor(t, d.stopped)
	if d.Enqueue(session.GroupCreatedEvent{}) {
		t.Error("expected enqueue after parent cancel to fail")
	}
}

func TestDispatcher_DrivesSession(t *testing.T) {
	m := sessiontest.NewTransport(16)
	s := session.New(m, nil, session.DefaultConfig())
	defer s.Close()
	d := New(m, s, WithSweepInterval(0))
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	if err := s.Activate(context.Background()); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	m.Emit(sig(session.IfaceManage, "Activation", int32(0)))
	m.Emit(sig(session.IfaceManage, "PeerFound", testAddr))

	waitFor(t, func() bool { return d.Stats().Processed == 2 })
	if got := s.Activation(); got != session.Activated {
		t.Errorf("expected activated, got %s", got)
	}
	peers := s.ListPeers()
	if len(peers) != 1 || peers[0].MAC != (peer.MAC{0x02, 0x11, 0x22, 0x33, 0x44, 0x55}) {
		t.Errorf("expected the found peer, got %v", peers)
	}
}
