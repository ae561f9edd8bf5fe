package socketio

import (
	"sync/atomic"
	"testing"
	"time"
)

func newCountingDebouncer(window time.Duration) (*BroadcastDebouncer, *int32, *int32) {
	var stateCalls, peersCalls int32
	d := NewBroadcastDebouncer(window,
		func() { atomic.AddInt32(&stateCalls, 1) },
		func() { atomic.AddInt32(&peersCalls, 1) },
	)
	return d, &stateCalls, &peersCalls
}

func TestDebouncerPeerBurstCollapsesToOne(t *testing.T) {
	d, stateCalls, peersCalls := newCountingDebouncer(50 * time.Millisecond)
	defer d.Stop()

	// A discovery round reporting many peers
	for i := 0; i < 25; i++ {
		d.Trigger(ChangePeers)
	}

	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt32(peersCalls); got != 1 {
		t.Errorf("expected 1 peers callback, got %d", got)
	}
	if got := atomic.LoadInt32(stateCalls); got != 1 {
		t.Errorf("expected 1 state callback, got %d", got)
	}
}

func TestDebouncerStateOnlyDoesNotPushPeers(t *testing.T) {
	d, stateCalls, peersCalls := newCountingDebouncer(50 * time.Millisecond)
	defer d.Stop()

	for i := 0; i < 10; i++ {
		d.Trigger(ChangeState)
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt32(stateCalls); got != 1 {
		t.Errorf("expected 1 state callback, got %d", got)
	}
	if got := atomic.LoadInt32(peersCalls); got != 0 {
		t.Errorf("expected 0 peers callbacks, got %d", got)
	}
}

func TestDebouncerMixedChangesWithinWindow(t *testing.T) {
	d, stateCalls, peersCalls := newCountingDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Trigger(ChangeState)
	d.Trigger(ChangePeers)
	d.Trigger(ChangeState)

	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt32(stateCalls); got != 1 {
		t.Errorf("expected 1 state callback, got %d", got)
	}
	if got := atomic.LoadInt32(peersCalls); got != 1 {
		t.Errorf("expected 1 peers callback, got %d", got)
	}
}

func TestDebouncerSeparateWindowsFireIndependently(t *testing.T) {
	d, stateCalls, _ := newCountingDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Trigger(ChangeState)
	time.Sleep(100 * time.Millisecond)

	d.Trigger(ChangeState)
	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt32(stateCalls); got != 2 {
		t.Errorf("expected 2 state callbacks for separate windows, got %d", got)
	}
}

func TestDebouncerStopPreventsCallbacks(t *testing.T) {
	d, stateCalls, peersCalls := newCountingDebouncer(50 * time.Millisecond)

	d.Trigger(ChangePeers)
	d.Stop()

	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt32(stateCalls) + atomic.LoadInt32(peersCalls); got != 0 {
		t.Errorf("expected no callbacks after stop, got %d", got)
	}
}

func TestDebouncerTriggerAfterStopIsIgnored(t *testing.T) {
	d, stateCalls, _ := newCountingDebouncer(50 * time.Millisecond)

	d.Stop()
	d.Trigger(ChangeState)

	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt32(stateCalls); got != 0 {
		t.Errorf("expected 0 state callbacks after stop+trigger, got %d", got)
	}
}
