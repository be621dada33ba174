package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_FixedWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewLimiter(clock, time.Minute, 3)

	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow(), "fourth message in the window must be denied")
	assert.False(t, l.Allow())

	clock.Advance(59 * time.Second)
	assert.False(t, l.Allow(), "window has not rolled over yet")

	clock.Advance(time.Second)
	assert.True(t, l.Allow(), "new window resets the counter")
}

type monitorHarness struct {
	clock   *clockwork.FakeClock
	monitor *Monitor
	probes  chan struct{}
	expired chan Expiry
	done    chan struct{}
}

func startMonitor(t *testing.T, cfg Config, probeErr error) *monitorHarness {
	t.Helper()
	h := &monitorHarness{
		clock:   clockwork.NewFakeClock(),
		probes:  make(chan struct{}, 8),
		expired: make(chan Expiry, 1),
		done:    make(chan struct{}),
	}
	h.monitor = NewMonitor(h.clock, cfg)
	go func() {
		defer close(h.done)
		h.monitor.Run(func() error {
			h.probes <- struct{}{}
			return probeErr
		}, func(e Expiry) {
			h.expired <- e
		})
	}()
	t.Cleanup(func() {
		h.monitor.Stop()
		<-h.done
	})
	h.waitForTimers(t)
	return h
}

func (h *monitorHarness) waitForTimers(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(ctx, 2))
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for monitor")
	}
	var zero T
	return zero
}

func TestMonitor_UnansweredProbeExpires(t *testing.T) {
	h := startMonitor(t, Config{HeartbeatInterval: 10 * time.Second, IdleTimeout: time.Hour}, nil)

	h.clock.Advance(10 * time.Second)
	receive(t, h.probes)

	h.clock.Advance(10 * time.Second)
	assert.Equal(t, ExpiryHeartbeat, receive(t, h.expired))
}

func TestMonitor_AnsweredProbeKeepsConnection(t *testing.T) {
	h := startMonitor(t, Config{HeartbeatInterval: 10 * time.Second, IdleTimeout: time.Hour}, nil)

	for i := 0; i < 3; i++ {
		h.clock.Advance(10 * time.Second)
		receive(t, h.probes)
		h.monitor.Pong()
	}

	select {
	case e := <-h.expired:
		t.Fatalf("unexpected expiry %s", e)
	default:
	}
}

func TestMonitor_ProbeFailureExpires(t *testing.T) {
	h := startMonitor(t, Config{HeartbeatInterval: 10 * time.Second, IdleTimeout: time.Hour}, errors.New("broken pipe"))

	h.clock.Advance(10 * time.Second)
	receive(t, h.probes)
	assert.Equal(t, ExpiryHeartbeat, receive(t, h.expired))
}

func TestMonitor_IdleTimeout(t *testing.T) {
	h := startMonitor(t, Config{HeartbeatInterval: time.Hour, IdleTimeout: 30 * time.Minute}, nil)

	h.clock.Advance(30 * time.Minute)
	assert.Equal(t, ExpiryIdle, receive(t, h.expired))
}

func TestMonitor_ActivityDefersIdleTimeout(t *testing.T) {
	h := startMonitor(t, Config{HeartbeatInterval: time.Hour, IdleTimeout: 30 * time.Minute}, nil)

	h.clock.Advance(20 * time.Minute)
	h.monitor.Touch()

	// The idle timer fires at 30m, sees activity at 20m and re-arms for 20m.
	h.clock.Advance(10 * time.Minute)
	h.waitForTimers(t)

	select {
	case e := <-h.expired:
		t.Fatalf("unexpected expiry %s", e)
	default:
	}

	h.clock.Advance(20 * time.Minute)
	assert.Equal(t, ExpiryIdle, receive(t, h.expired))
}

func TestMonitor_StopOnce(t *testing.T) {
	m := NewMonitor(clockwork.NewFakeClock(), DefaultConfig())
	assert.True(t, m.Stop())
	assert.False(t, m.Stop())
}

func TestExpiryString(t *testing.T) {
	assert.Equal(t, "heartbeat", ExpiryHeartbeat.String())
	assert.Equal(t, "idle", ExpiryIdle.String())
	assert.Equal(t, "unknown", Expiry(0).String())
}
