package socketio

import (
	"fmt"
	"testing"
)

func TestClientLimiterLoopbackAlwaysAdmitted(t *testing.T) {
	cl := NewClientLimiter(1)

	for i := 0; i < 10; i++ {
		if evicted := cl.Admit(fmt.Sprintf("local-%d", i), "127.0.0.1"); evicted != "" {
			t.Errorf("loopback client %d should not evict anyone, got %s", i, evicted)
		}
	}
	if got := cl.Remote(); got != 0 {
		t.Errorf("expected 0 remote clients, got %d", got)
	}
}

func TestClientLimiterSecondRemoteEvictsOldest(t *testing.T) {
	cl := NewClientLimiter(1)

	if evicted := cl.Admit("ext-1", "192.168.49.10"); evicted != "" {
		t.Errorf("first remote should not evict anyone, got %s", evicted)
	}
	if evicted := cl.Admit("ext-2", "192.168.49.11"); evicted != "ext-1" {
		t.Errorf("expected eviction of ext-1, got %q", evicted)
	}
	if evicted := cl.Admit("ext-3", "192.168.49.12"); evicted != "ext-2" {
		t.Errorf("expected eviction of ext-2, got %q", evicted)
	}
}

func TestClientLimiterLoopbackUnaffectedByCap(t *testing.T) {
	cl := NewClientLimiter(1)
	cl.Admit("ext-1", "192.168.49.10")

	if evicted := cl.Admit("local-1", "[::1]:40000"); evicted != "" {
		t.Errorf("loopback client should not evict anyone, got %s", evicted)
	}
}

func TestClientLimiterRemoveFreesSlot(t *testing.T) {
	cl := NewClientLimiter(1)
	cl.Admit("ext-1", "192.168.49.10")
	cl.Remove("ext-1")

	if evicted := cl.Admit("ext-2", "192.168.49.11"); evicted != "" {
		t.Errorf("should not evict after removal freed a slot, got %s", evicted)
	}
}

func TestClientLimiterDuplicateAdmitIsIdempotent(t *testing.T) {
	cl := NewClientLimiter(1)
	cl.Admit("ext-1", "192.168.49.10")

	if evicted := cl.Admit("ext-1", "192.168.49.10"); evicted != "" {
		t.Errorf("duplicate admit should not evict, got %s", evicted)
	}
	if got := cl.Remote(); got != 1 {
		t.Errorf("expected 1 remote client, got %d", got)
	}
}

func TestClientLimiterUnlimited(t *testing.T) {
	cl := NewClientLimiter(0)
	for i := 0; i < 5; i++ {
		if evicted := cl.Admit(fmt.Sprintf("ext-%d", i), "10.0.0.1"); evicted != "" {
			t.Errorf("unlimited limiter evicted %s", evicted)
		}
	}
	cl.Remove("nonexistent")
}

func TestIsLoopback(t *testing.T) {
	tests := []struct {
		addr     string
		expected bool
	}{
		{"127.0.0.1", true},
		{"127.0.0.1:8080", true},
		{"::1", true},
		{"[::1]:8080", true},
		{"::ffff:127.0.0.1", true},
		{"192.168.49.1", false},
		{"0.0.0.0", false},
		{"", false},
		{"not-an-ip", false},
	}

	for _, tc := range tests {
		if got := isLoopback(tc.addr); got != tc.expected {
			t.Errorf("isLoopback(%q) = %v, want %v", tc.addr, got, tc.expected)
		}
	}
}
