// Package coordinator runs the planning poker session: one goroutine owns
// all session state and processes connection events strictly in order.
package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/poker/events"
	"github.com/mcdev12/planningpoker/go/internal/poker/guard"
	"github.com/mcdev12/planningpoker/go/internal/poker/session"
	"github.com/rs/zerolog/log"
)

// ErrStopped is returned by calls made after Run has returned.
var ErrStopped = errors.New("coordinator stopped")

// Transport delivers frames to client connections.
type Transport interface {
	Send(connectionID string, payload []byte)
	Broadcast(payload []byte)
	Ping(connectionID string) error
	Close(connectionID string)
}

// TicketSource is the external issue tracker.
type TicketSource interface {
	FetchTickets(ctx context.Context, cfg models.SourceConfig, filters models.TicketFilters) ([]models.Ticket, error)
	UpdateEstimate(ctx context.Context, cfg models.SourceConfig, ticketID string, value float64) error
}

// Config holds coordinator settings.
type Config struct {
	Room          string
	Guard         guard.Config
	SourceTimeout time.Duration
	EventBuffer   int
	SeedTickets   []models.Ticket
}

// DefaultConfig returns default coordinator settings.
func DefaultConfig() Config {
	return Config{
		Room:          "default",
		Guard:         guard.DefaultConfig(),
		SourceTimeout: 15 * time.Second,
		EventBuffer:   1024,
	}
}

// Coordinator is the composition root of a room.
type Coordinator struct {
	cfg       Config
	clock     clockwork.Clock
	state     *session.State
	transport Transport
	source    TicketSource
	publisher events.Publisher

	conns map[string]*ConnectionContext

	events chan event
	done   chan struct{}
	runCtx context.Context
}

// New creates a coordinator. Run must be called to process events.
func New(cfg Config, clock clockwork.Clock, transport Transport, source TicketSource, publisher events.Publisher) *Coordinator {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultConfig().EventBuffer
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = DefaultConfig().SourceTimeout
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Coordinator{
		cfg:       cfg,
		clock:     clock,
		state:     session.NewState(clock, cfg.SeedTickets),
		transport: transport,
		source:    source,
		publisher: publisher,
		conns:     make(map[string]*ConnectionContext),
		events:    make(chan event, cfg.EventBuffer),
		done:      make(chan struct{}),
	}
}

// Run processes events until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	c.runCtx = ctx
	defer close(c.done)

	log.Info().Str("room", c.cfg.Room).Msg("coordinator started")
	for {
		select {
		case <-ctx.Done():
			for _, cc := range c.conns {
				cc.monitor.Stop()
			}
			log.Info().Str("room", c.cfg.Room).Msg("coordinator shutting down")
			return nil
		case ev := <-c.events:
			c.dispatch(ev)
		}
	}
}

func (c *Coordinator) baseCtx() context.Context {
	if c.runCtx != nil {
		return c.runCtx
	}
	return context.Background()
}

func (c *Coordinator) post(ev event) error {
	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return ErrStopped
	}
}

// Connect registers a new connection.
func (c *Coordinator) Connect(connectionID string) error {
	return c.post(connectedEvent{connectionID: connectionID})
}

// Deliver hands an inbound frame to the dispatcher.
func (c *Coordinator) Deliver(connectionID string, data []byte) error {
	return c.post(messageEvent{connectionID: connectionID, data: data})
}

// Pong records an answered liveness probe.
func (c *Coordinator) Pong(connectionID string) error {
	return c.post(pongEvent{connectionID: connectionID})
}

// Disconnect tells the dispatcher a connection has closed.
func (c *Coordinator) Disconnect(connectionID string) error {
	return c.post(closedEvent{connectionID: connectionID})
}

// Snapshot returns a non-secret view of the room, read on the dispatcher.
func (c *Coordinator) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := c.post(snapshotEvent{reply: reply}); err != nil {
		return Snapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-c.done:
		return Snapshot{}, ErrStopped
	}
}

func (c *Coordinator) publish(typ events.Type, payload any) {
	ev := events.New(c.cfg.Room, typ, c.clock.Now(), payload)
	if err := c.publisher.Publish(c.baseCtx(), ev); err != nil {
		log.Warn().Err(err).Str("event_type", string(typ)).Msg("failed to publish session event")
	}
}
