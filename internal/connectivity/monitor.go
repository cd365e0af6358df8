// Package connectivity maintains the online/offline signal from the host
// environment's transition events.
//
// The monitor does not own the event source: the host adapter (or a test)
// feeds discrete transitions into a channel, and the monitor tracks the
// current state and fires a hook on each offline-to-online edge. Other
// components read the signal; none of them block waiting for a transition.
package connectivity

import (
	"context"
	"net"
	"sync"
	"time"
)

// Monitor tracks the online/offline signal and fires OnOnline once per
// offline-to-online transition.
type Monitor struct {
	transitions <-chan bool
	onOnline    func()

	mu     sync.Mutex
	online bool

	done    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// New creates a Monitor. initial is the state read once from the host
// environment at startup; transitions delivers subsequent online/offline
// edges; onOnline (may be nil) fires on each offline-to-online transition.
func New(initial bool, transitions <-chan bool, onOnline func()) *Monitor {
	return &Monitor{
		transitions: transitions,
		onOnline:    onOnline,
		online:      initial,
		done:        make(chan struct{}),
	}
}

// Start begins consuming transition events. It returns immediately.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.consume()
}

// Stop stops consuming transition events and waits for the consumer to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.done)
	m.wg.Wait()
}

// Online returns the current connectivity signal.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// consume is the transition event loop.
func (m *Monitor) consume() {
	defer m.wg.Done()

	for {
		select {
		case <-m.done:
			return

		case online, ok := <-m.transitions:
			if !ok {
				return
			}

			m.mu.Lock()
			wasOnline := m.online
			m.online = online
			m.mu.Unlock()

			// Edge-triggered: only the offline->online transition acts.
			// Going offline just flips the signal; in-flight remote work
			// fails naturally and burns retry budget as usual.
			if online && !wasOnline && m.onOnline != nil {
				m.onOnline()
			}
		}
	}
}

// Probe reports whether the host currently has a network path to addr
// (host:port). It is used once at startup to seed the initial signal.
func Probe(addr string, timeout time.Duration) bool {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(context.Background(), "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
