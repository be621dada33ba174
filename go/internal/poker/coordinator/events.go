package coordinator

import (
	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/poker/guard"
	"github.com/rs/zerolog/log"
)

// event is anything the dispatcher processes. The set is closed.
type event interface {
	isEvent()
}

type connectedEvent struct {
	connectionID string
}

type messageEvent struct {
	connectionID string
	data         []byte
}

type pongEvent struct {
	connectionID string
}

type closedEvent struct {
	connectionID string
}

type expiredEvent struct {
	connectionID string
	reason       guard.Expiry
}

type fetchResultEvent struct {
	connectionID     string
	sourceGeneration uint64
	fetchSeq         uint64
	tickets          []models.Ticket
	err              error
}

type updateResultEvent struct {
	connectionID string
	ticketID     string
	value        float64
	err          error
}

type snapshotEvent struct {
	reply chan<- Snapshot
}

func (connectedEvent) isEvent()    {}
func (messageEvent) isEvent()      {}
func (pongEvent) isEvent()         {}
func (closedEvent) isEvent()       {}
func (expiredEvent) isEvent()      {}
func (fetchResultEvent) isEvent()  {}
func (updateResultEvent) isEvent() {}
func (snapshotEvent) isEvent()     {}

func (c *Coordinator) dispatch(ev event) {
	switch e := ev.(type) {
	case connectedEvent:
		c.handleConnected(e.connectionID)
	case messageEvent:
		c.handleMessage(e.connectionID, e.data)
	case pongEvent:
		if cc, ok := c.conns[e.connectionID]; ok {
			cc.monitor.Pong()
		}
	case closedEvent:
		c.removeConnection(e.connectionID, "disconnected")
	case expiredEvent:
		c.handleExpired(e)
	case fetchResultEvent:
		c.handleFetchResult(e)
	case updateResultEvent:
		c.handleUpdateResult(e)
	case snapshotEvent:
		e.reply <- c.snapshot()
	default:
		log.Error().Msgf("unhandled coordinator event %T", ev)
	}
}
