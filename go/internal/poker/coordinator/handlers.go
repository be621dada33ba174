package coordinator

import (
	"errors"

	"github.com/mcdev12/planningpoker/go/internal/poker/events"
	"github.com/mcdev12/planningpoker/go/internal/poker/protocol"
	"github.com/mcdev12/planningpoker/go/internal/poker/session"
	"github.com/mcdev12/planningpoker/go/internal/poker/validation"
	"github.com/rs/zerolog/log"
)

const (
	msgRateLimited    = "Rate limit exceeded. Please slow down."
	msgInvalidMessage = "Invalid message format"
	msgJoinFirst      = "Join the session first"
	msgNoTickets      = "No tickets to complete"
)

// hostOnly maps each host action to the error shown to a non-host.
var hostOnly = map[protocol.Kind]string{
	protocol.KindRevealVotes:     "Only the host can reveal votes",
	protocol.KindSetFinalResult:  "Only the host can set the final result",
	protocol.KindCompleteVoting:  "Only the host can complete voting",
	protocol.KindSetSourceConfig: "Only the host can configure the ticket source",
	protocol.KindFetchTickets:    "Only the host can fetch tickets",
	protocol.KindSelectTicket:    "Only the host can select tickets",
}

func (c *Coordinator) handleMessage(connectionID string, data []byte) {
	cc, ok := c.conns[connectionID]
	if !ok {
		log.Debug().Str("connection_id", connectionID).Msg("message for unknown connection dropped")
		return
	}

	cc.monitor.Touch()
	if !cc.limiter.Allow() {
		log.Warn().Str("connection_id", connectionID).Msg("rate limit exceeded")
		c.sendError(connectionID, msgRateLimited)
		return
	}

	msg, err := protocol.Decode(data)
	if err != nil {
		switch {
		case errors.Is(err, protocol.ErrUnknownKind):
			log.Debug().Err(err).Str("connection_id", connectionID).Msg("ignoring message")
		case errors.Is(err, protocol.ErrMalformed):
			log.Debug().Err(err).Str("connection_id", connectionID).Msg("malformed message")
			c.sendError(connectionID, msgInvalidMessage)
		default:
			c.sendError(connectionID, err.Error())
		}
		return
	}

	if join, ok := msg.(protocol.Join); ok {
		c.handleJoin(cc, join)
		return
	}
	if !cc.Joined {
		c.sendError(connectionID, msgJoinFirst)
		return
	}
	c.state.Registry.Touch(cc.ParticipantID, c.clock.Now())

	switch m := msg.(type) {
	case protocol.CastVote:
		c.handleCastVote(cc, m)
	case protocol.RevealVotes:
		c.handleReveal(cc)
	case protocol.SetFinalResult:
		c.handleSetFinalResult(cc, m)
	case protocol.CompleteVoting:
		c.handleComplete(cc)
	case protocol.SetSourceConfig:
		c.handleSetSourceConfig(cc, m)
	case protocol.FetchTickets:
		c.handleFetchTickets(cc, m)
	case protocol.SelectTicket:
		c.handleSelectTicket(cc, m)
	default:
		log.Error().Str("kind", string(msg.Kind())).Msg("unhandled message kind")
	}
}

// reject reports a failed action to its sender.
func (c *Coordinator) reject(cc *ConnectionContext, kind protocol.Kind, err error) {
	message := err.Error()
	switch {
	case errors.Is(err, session.ErrNotHost):
		message = hostOnly[kind]
	case errors.Is(err, session.ErrNoTickets):
		message = msgNoTickets
	case errors.Is(err, session.ErrTicketIndex):
		message = validation.ErrInvalidTicketIndex.Error()
	case errors.Is(err, validation.ErrInvalidSource):
		message = validation.ErrInvalidSource.Error()
	}
	log.Debug().
		Err(err).
		Str("connection_id", cc.ID).
		Str("participant_id", cc.ParticipantID).
		Str("kind", string(kind)).
		Msg("action rejected")
	c.sendError(cc.ID, message)
}

func (c *Coordinator) handleJoin(cc *ConnectionContext, m protocol.Join) {
	if cc.Joined {
		log.Debug().Str("connection_id", cc.ID).Msg("duplicate join ignored")
		return
	}

	name, err := validation.SanitizeDisplayName(m.Username)
	if err != nil {
		c.sendError(cc.ID, err.Error())
		return
	}

	p, err := c.state.Join(cc.ID, name)
	if err != nil {
		log.Warn().Err(err).Str("connection_id", cc.ID).Msg("join failed")
		return
	}
	cc.ParticipantID = p.ID
	cc.Joined = true

	log.Info().
		Str("connection_id", cc.ID).
		Str("participant_id", p.ID).
		Str("username", p.DisplayName).
		Bool("host", p.IsHost).
		Msg("participant joined")

	c.sendTo(cc.ID, currentUserMessage(p))
	c.sendTo(cc.ID, c.sourceStatusMessage())
	c.sendTo(cc.ID, c.ticketsMessage())
	c.broadcastUsers()
	c.broadcastCurrentTicket()
	c.broadcastVotingState()
	if c.state.Round.Revealed() {
		c.sendTo(cc.ID, c.votesRevealedMessage(c.state.Statistics()))
	}

	c.publish(events.TypeParticipantJoined, events.ParticipantPayload{
		ParticipantID: p.ID,
		Username:      p.DisplayName,
	})
}

func (c *Coordinator) handleCastVote(cc *ConnectionContext, m protocol.CastVote) {
	if err := c.state.CastVote(cc.ParticipantID, m.Points); err != nil {
		c.reject(cc, m.Kind(), err)
		return
	}
	c.broadcastVotingState()
}

func (c *Coordinator) handleReveal(cc *ConnectionContext) {
	stats, err := c.state.Reveal(cc.ParticipantID)
	if err != nil {
		c.reject(cc, protocol.KindRevealVotes, err)
		return
	}
	c.broadcastVotesRevealed(stats)

	payload := events.VotesRevealedPayload{
		TotalVotes: stats.TotalVotes,
		MostCommon: stats.MostCommon,
		FinalValue: stats.FinalValue,
	}
	if ticket, ok := c.state.Queue.Current(); ok {
		payload.TicketID = ticket.ID
	}
	c.publish(events.TypeVotesRevealed, payload)
}

func (c *Coordinator) handleSetFinalResult(cc *ConnectionContext, m protocol.SetFinalResult) {
	stats, err := c.state.SetFinalValue(cc.ParticipantID, m.Result)
	if err != nil {
		c.reject(cc, m.Kind(), err)
		return
	}
	c.broadcastVotesRevealed(stats)
}

func (c *Coordinator) handleComplete(cc *ConnectionContext) {
	completion, err := c.state.Complete(cc.ParticipantID)
	if err != nil {
		c.reject(cc, protocol.KindCompleteVoting, err)
		return
	}

	logger := log.With().
		Str("participant_id", cc.ParticipantID).
		Str("ticket_id", completion.Ticket.ID).
		Logger()

	switch {
	case completion.FinalValue == nil:
		logger.Debug().Msg("no final value; ticket source not updated")
	case !completion.HadTicket:
		logger.Debug().Msg("no current ticket; ticket source not updated")
	case completion.Source == nil:
		logger.Debug().Msg("ticket source not configured; estimate not pushed")
	default:
		c.startUpdate(cc.ID, *completion.Source, completion.Ticket.ID, *completion.FinalValue)
	}

	logger.Info().Int("next_index", c.state.Queue.Cursor()).Msg("voting completed")

	c.broadcastCurrentTicket()
	c.broadcastVotingState()

	c.publish(events.TypeVotingCompleted, events.VotingCompletedPayload{
		TicketID:   completion.Ticket.ID,
		FinalValue: completion.FinalValue,
		NextIndex:  c.state.Queue.Cursor(),
	})
}

func (c *Coordinator) handleSetSourceConfig(cc *ConnectionContext, m protocol.SetSourceConfig) {
	if err := c.state.ConfigureSource(cc.ParticipantID, m.Config); err != nil {
		c.reject(cc, m.Kind(), err)
		return
	}
	log.Info().Str("participant_id", cc.ParticipantID).Msg("ticket source configured")
	c.broadcast(c.sourceStatusMessage())
}

func (c *Coordinator) handleFetchTickets(cc *ConnectionContext, m protocol.FetchTickets) {
	handle, err := c.state.SourceForFetch(cc.ParticipantID)
	if err != nil {
		c.reject(cc, m.Kind(), err)
		return
	}
	c.startFetch(cc.ID, handle, m.Filters)
}

func (c *Coordinator) handleSelectTicket(cc *ConnectionContext, m protocol.SelectTicket) {
	if err := c.state.SelectTicket(cc.ParticipantID, m.TicketIndex); err != nil {
		c.reject(cc, m.Kind(), err)
		return
	}
	c.broadcastCurrentTicket()
	c.broadcastVotingState()
}
