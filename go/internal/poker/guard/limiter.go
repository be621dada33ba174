// Package guard implements per-connection message-rate accounting and
// liveness detection.
package guard

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Config holds guard limits.
type Config struct {
	RateWindow        time.Duration `yaml:"rate_window"`
	MaxMessages       int           `yaml:"max_messages"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
}

// DefaultConfig returns the production limits.
func DefaultConfig() Config {
	return Config{
		RateWindow:        60 * time.Second,
		MaxMessages:       100,
		HeartbeatInterval: 30 * time.Second,
		IdleTimeout:       30 * time.Minute,
	}
}

// Limiter counts messages in fixed windows. It never blocks: Allow answers
// immediately. A Limiter belongs to a single connection and is not safe for
// concurrent use.
type Limiter struct {
	clock       clockwork.Clock
	window      time.Duration
	max         int
	windowStart time.Time
	count       int
}

// NewLimiter creates a limiter allowing max messages per window.
func NewLimiter(clock clockwork.Clock, window time.Duration, max int) *Limiter {
	return &Limiter{
		clock:       clock,
		window:      window,
		max:         max,
		windowStart: clock.Now(),
	}
}

// Allow records one message and reports whether it is within the limit.
func (l *Limiter) Allow() bool {
	now := l.clock.Now()
	if now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 0
	}
	l.count++
	return l.count <= l.max
}
