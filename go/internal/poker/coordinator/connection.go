package coordinator

import (
	"time"

	"github.com/mcdev12/planningpoker/go/internal/poker/events"
	"github.com/mcdev12/planningpoker/go/internal/poker/guard"
	"github.com/rs/zerolog/log"
)

// ConnectionContext is the dispatcher's record of one live connection.
type ConnectionContext struct {
	ID            string
	ParticipantID string
	Joined        bool
	ConnectedAt   time.Time

	limiter *guard.Limiter
	monitor *guard.Monitor
}

func (c *Coordinator) handleConnected(connectionID string) {
	if _, exists := c.conns[connectionID]; exists {
		log.Warn().Str("connection_id", connectionID).Msg("duplicate connection id ignored")
		return
	}

	cc := &ConnectionContext{
		ID:          connectionID,
		ConnectedAt: c.clock.Now(),
		limiter:     guard.NewLimiter(c.clock, c.cfg.Guard.RateWindow, c.cfg.Guard.MaxMessages),
		monitor:     guard.NewMonitor(c.clock, c.cfg.Guard),
	}
	c.conns[connectionID] = cc

	go cc.monitor.Run(
		func() error { return c.transport.Ping(connectionID) },
		func(reason guard.Expiry) {
			_ = c.post(expiredEvent{connectionID: connectionID, reason: reason})
		},
	)

	log.Debug().
		Str("connection_id", connectionID).
		Int("connections", len(c.conns)).
		Msg("connection registered")
}

func (c *Coordinator) handleExpired(e expiredEvent) {
	if _, ok := c.conns[e.connectionID]; !ok {
		return
	}

	log.Info().
		Str("connection_id", e.connectionID).
		Stringer("reason", e.reason).
		Msg("connection expired")

	if e.reason == guard.ExpiryIdle {
		c.sendTo(e.connectionID, sessionTimeoutMessage())
	}
	c.transport.Close(e.connectionID)
	c.removeConnection(e.connectionID, e.reason.String())
}

// removeConnection runs the leave cleanup exactly once per connection.
func (c *Coordinator) removeConnection(connectionID, reason string) {
	cc, ok := c.conns[connectionID]
	if !ok {
		return
	}
	delete(c.conns, connectionID)
	cc.monitor.Stop()

	logger := log.With().
		Str("connection_id", connectionID).
		Str("reason", reason).
		Logger()

	if !cc.Joined {
		logger.Debug().Msg("connection closed before joining")
		return
	}

	result, err := c.state.Leave(cc.ParticipantID)
	if err != nil {
		logger.Error().Err(err).Str("participant_id", cc.ParticipantID).Msg("failed to remove participant")
		return
	}

	logger.Info().
		Str("participant_id", result.Removed.ID).
		Str("username", result.Removed.DisplayName).
		Bool("room_empty", result.Empty).
		Msg("participant left")

	c.publish(events.TypeParticipantLeft, events.ParticipantPayload{
		ParticipantID: result.Removed.ID,
		Username:      result.Removed.DisplayName,
	})

	if result.Empty {
		return
	}

	if result.Promoted != nil {
		promoted := *result.Promoted
		logger.Info().
			Str("participant_id", promoted.ID).
			Str("username", promoted.DisplayName).
			Msg("host reassigned")
		c.sendTo(promoted.ConnectionID, currentUserMessage(promoted))
		c.publish(events.TypeHostChanged, events.HostChangedPayload{
			ParticipantID: promoted.ID,
			Username:      promoted.DisplayName,
		})
	}

	c.broadcastUsers()
	c.broadcastVotingState()
}
