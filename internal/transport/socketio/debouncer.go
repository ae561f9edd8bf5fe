package socketio

import (
	"sync"
	"time"
)

// Change names what a session notification invalidated on the client side.
type Change int

const (
	// ChangeState invalidates pushState.
	ChangeState Change = iota
	// ChangePeers invalidates pushPeers and pushState.
	ChangePeers
)

// BroadcastDebouncer collapses bursts of session notifications into batched
// broadcasts. A discovery round can report dozens of peers in a second; each
// affected push is sent once per window.
type BroadcastDebouncer struct {
	window        time.Duration
	stateCallback func()
	peersCallback func()

	mu           sync.Mutex
	pendingState bool
	pendingPeers bool
	timer        *time.Timer
	stopped      bool
}

// NewBroadcastDebouncer creates a debouncer with the given window duration.
// stateCallback is called when the session snapshot needs broadcasting.
// peersCallback is called when the peer list needs broadcasting.
func NewBroadcastDebouncer(window time.Duration, stateCallback, peersCallback func()) *BroadcastDebouncer {
	return &BroadcastDebouncer{
		window:        window,
		stateCallback: stateCallback,
		peersCallback: peersCallback,
	}
}

// Trigger records a change. The callbacks are deferred until the window
// elapses without further triggers.
func (d *BroadcastDebouncer) Trigger(c Change) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	switch c {
	case ChangeState:
		d.pendingState = true
	case ChangePeers:
		d.pendingState = true
		d.pendingPeers = true
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *BroadcastDebouncer) flush() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	doState := d.pendingState
	doPeers := d.pendingPeers
	d.pendingState = false
	d.pendingPeers = false
	d.mu.Unlock()

	if doPeers && d.peersCallback != nil {
		d.peersCallback()
	}
	if doState && d.stateCallback != nil {
		d.stateCallback()
	}
}

// Stop prevents any further callbacks from firing.
func (d *BroadcastDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pendingState = false
	d.pendingPeers = false
}
