package coordinator

import (
	"context"
	"errors"

	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/poker/events"
	"github.com/mcdev12/planningpoker/go/internal/poker/protocol"
	"github.com/mcdev12/planningpoker/go/internal/poker/session"
	"github.com/mcdev12/planningpoker/go/internal/poker/validation"
	"github.com/rs/zerolog/log"
)

const (
	maxTicketTitle       = 255
	maxTicketDescription = 2000
	maxTicketField       = 100
)

var errNoSource = errors.New("no ticket source available on this server")

// Ticket source calls run off the dispatcher. Their results come back as
// events and are applied only if the state they were issued against is
// still current.

func (c *Coordinator) startFetch(connectionID string, handle session.SourceHandle, filters models.TicketFilters) {
	if c.source == nil {
		c.sendError(connectionID, "Failed to fetch tickets: "+errNoSource.Error())
		return
	}

	seq := c.state.BeginFetch()
	log.Info().
		Str("connection_id", connectionID).
		Str("project", handle.Config.ProjectKey).
		Uint64("fetch_seq", seq).
		Msg("fetching tickets")

	ctx := c.baseCtx()
	go func() {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.SourceTimeout)
		defer cancel()
		tickets, err := c.source.FetchTickets(callCtx, handle.Config, filters)
		_ = c.post(fetchResultEvent{
			connectionID:     connectionID,
			sourceGeneration: handle.Generation,
			fetchSeq:         seq,
			tickets:          tickets,
			err:              err,
		})
	}()
}

func (c *Coordinator) handleFetchResult(e fetchResultEvent) {
	_, requesterConnected := c.conns[e.connectionID]
	logger := log.With().Str("connection_id", e.connectionID).Logger()

	if !c.state.IsLatestFetch(e.fetchSeq) {
		logger.Info().Uint64("fetch_seq", e.fetchSeq).Msg("discarding superseded ticket fetch")
		if requesterConnected {
			c.sendError(e.connectionID, "A newer ticket fetch superseded this one; results discarded")
		}
		return
	}

	if e.err != nil {
		logger.Warn().Err(e.err).Msg("ticket fetch failed")
		if requesterConnected {
			c.sendError(e.connectionID, "Failed to fetch tickets: "+e.err.Error())
		}
		return
	}

	if e.sourceGeneration != c.state.SourceGeneration() || c.state.Registry.Len() == 0 {
		logger.Info().Int("count", len(e.tickets)).Msg("discarding tickets fetched with a stale source configuration")
		if requesterConnected {
			c.sendError(e.connectionID, "Ticket source changed while fetching; results discarded")
		}
		return
	}

	tickets := make([]models.Ticket, 0, len(e.tickets))
	for _, t := range e.tickets {
		tickets = append(tickets, sanitizeTicket(t))
	}
	c.state.SetTickets(tickets)
	logger.Info().Int("count", len(tickets)).Msg("tickets loaded")

	if requesterConnected {
		c.sendTo(e.connectionID, protocol.TicketsFetchedMessage{
			Type:    protocol.TypeTicketsFetched,
			Tickets: tickets,
			Count:   len(tickets),
		})
	}
	c.broadcastTickets()
	c.broadcastCurrentTicket()
	c.broadcastVotingState()

	c.publish(events.TypeTicketsLoaded, events.TicketsLoadedPayload{Count: len(tickets)})
}

func sanitizeTicket(t models.Ticket) models.Ticket {
	return models.Ticket{
		ID:          validation.SanitizeFreeText(t.ID, maxTicketField),
		Title:       validation.SanitizeFreeText(t.Title, maxTicketTitle),
		Description: validation.SanitizeFreeText(t.Description, maxTicketDescription),
		Priority:    validation.SanitizeFreeText(t.Priority, maxTicketField),
		Status:      validation.SanitizeFreeText(t.Status, maxTicketField),
		Assignee:    validation.SanitizeFreeText(t.Assignee, maxTicketField),
		IssueType:   validation.SanitizeFreeText(t.IssueType, maxTicketField),
	}
}

func (c *Coordinator) startUpdate(connectionID string, cfg models.SourceConfig, ticketID string, value float64) {
	if c.source == nil {
		log.Warn().Str("ticket_id", ticketID).Msg("no ticket source available; estimate not pushed")
		return
	}

	log.Info().Str("ticket_id", ticketID).Float64("value", value).Msg("pushing estimate to ticket source")

	ctx := c.baseCtx()
	go func() {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.SourceTimeout)
		defer cancel()
		err := c.source.UpdateEstimate(callCtx, cfg, ticketID, value)
		_ = c.post(updateResultEvent{
			connectionID: connectionID,
			ticketID:     ticketID,
			value:        value,
			err:          err,
		})
	}()
}

// handleUpdateResult notifies the host that completed the round, or the
// current host if that connection is gone.
func (c *Coordinator) handleUpdateResult(e updateResultEvent) {
	target := e.connectionID
	if _, ok := c.conns[target]; !ok {
		target = ""
		if host, ok := c.state.Registry.Host(); ok {
			target = host.ConnectionID
		}
	}

	logger := log.With().Str("ticket_id", e.ticketID).Logger()
	if e.err != nil {
		logger.Warn().Err(e.err).Msg("estimate update failed")
	} else {
		logger.Info().Float64("value", e.value).Msg("estimate updated")
	}

	if target == "" {
		return
	}
	if e.err != nil {
		c.sendTo(target, protocol.SourceUpdateErrorMessage{
			Type:     protocol.TypeSourceUpdateError,
			TicketID: e.ticketID,
			Error:    e.err.Error(),
		})
		return
	}
	c.sendTo(target, protocol.SourceUpdateSuccessMessage{
		Type:        protocol.TypeSourceUpdateSuccess,
		TicketID:    e.ticketID,
		StoryPoints: e.value,
	})
}
