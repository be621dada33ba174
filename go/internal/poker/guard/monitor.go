package guard

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Expiry describes why a monitor gave up on a connection.
type Expiry int

const (
	// ExpiryHeartbeat means a liveness probe went unanswered.
	ExpiryHeartbeat Expiry = iota + 1
	// ExpiryIdle means no inbound message arrived within the idle timeout.
	ExpiryIdle
)

func (e Expiry) String() string {
	switch e {
	case ExpiryHeartbeat:
		return "heartbeat"
	case ExpiryIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// Monitor drives the heartbeat and idle timers of one connection.
type Monitor struct {
	clock             clockwork.Clock
	heartbeatInterval time.Duration
	idleTimeout       time.Duration

	awaitingPong atomic.Bool
	lastActivity atomic.Int64

	done     chan struct{}
	stopOnce sync.Once
}

// NewMonitor creates a monitor; Run starts its timers.
func NewMonitor(clock clockwork.Clock, cfg Config) *Monitor {
	m := &Monitor{
		clock:             clock,
		heartbeatInterval: cfg.HeartbeatInterval,
		idleTimeout:       cfg.IdleTimeout,
		done:              make(chan struct{}),
	}
	m.lastActivity.Store(clock.Now().UnixNano())
	return m
}

// Touch records inbound activity.
func (m *Monitor) Touch() {
	m.lastActivity.Store(m.clock.Now().UnixNano())
}

// Pong records an answered liveness probe.
func (m *Monitor) Pong() {
	m.awaitingPong.Store(false)
}

// LastActivity returns the time of the last inbound message.
func (m *Monitor) LastActivity() time.Time {
	return time.Unix(0, m.lastActivity.Load())
}

// Stop cancels both timers. Only the first call has an effect; it reports
// whether this call was the one that stopped the monitor.
func (m *Monitor) Stop() bool {
	stopped := false
	m.stopOnce.Do(func() {
		close(m.done)
		stopped = true
	})
	return stopped
}

// Run blocks until the monitor is stopped or the connection expires. probe
// sends a liveness probe; expire is called at most once, from Run's
// goroutine, with the reason the connection should be terminated.
func (m *Monitor) Run(probe func() error, expire func(Expiry)) {
	heartbeat := m.clock.NewTicker(m.heartbeatInterval)
	idle := m.clock.NewTimer(m.idleTimeout)
	defer func() {
		heartbeat.Stop()
		stopAndDrain(idle)
	}()

	for {
		select {
		case <-m.done:
			return

		case <-heartbeat.Chan():
			if m.awaitingPong.Load() {
				expire(ExpiryHeartbeat)
				return
			}
			m.awaitingPong.Store(true)
			if err := probe(); err != nil {
				expire(ExpiryHeartbeat)
				return
			}

		case <-idle.Chan():
			remaining := m.idleTimeout - m.clock.Since(m.LastActivity())
			if remaining <= 0 {
				expire(ExpiryIdle)
				return
			}
			idle.Reset(remaining)
		}
	}
}

// stopAndDrain stops a timer and drains its channel if it already fired.
func stopAndDrain(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
