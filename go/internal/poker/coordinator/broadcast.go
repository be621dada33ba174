package coordinator

import (
	"encoding/json"

	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/poker/protocol"
	"github.com/mcdev12/planningpoker/go/internal/poker/session"
	"github.com/rs/zerolog/log"
)

const sessionTimeoutText = "Session expired due to inactivity"

func (c *Coordinator) sendTo(connectionID string, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("connection_id", connectionID).Msgf("failed to marshal %T", msg)
		return
	}
	c.transport.Send(connectionID, payload)
}

func (c *Coordinator) broadcast(msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msgf("failed to marshal %T", msg)
		return
	}
	c.transport.Broadcast(payload)
}

func (c *Coordinator) sendError(connectionID, message string) {
	c.sendTo(connectionID, protocol.NewError(message))
}

func currentUserMessage(p models.Participant) protocol.CurrentUserMessage {
	return protocol.CurrentUserMessage{Type: protocol.TypeCurrentUser, User: protocol.NewUser(p)}
}

func sessionTimeoutMessage() protocol.SessionTimeoutMessage {
	return protocol.NewSessionTimeout(sessionTimeoutText)
}

func (c *Coordinator) sourceStatusMessage() protocol.SourceStatusMessage {
	return protocol.SourceStatusMessage{
		Type:       protocol.TypeSourceStatus,
		Configured: c.state.SourceConfigured(),
	}
}

func (c *Coordinator) usersMessage() protocol.UsersMessage {
	participants := c.state.Registry.All()
	users := make([]protocol.User, 0, len(participants))
	for _, p := range participants {
		users = append(users, protocol.NewUser(p))
	}
	return protocol.UsersMessage{Type: protocol.TypeUsers, Users: users}
}

func (c *Coordinator) ticketsMessage() protocol.TicketsMessage {
	return protocol.TicketsMessage{Type: protocol.TypeTickets, Tickets: c.state.Queue.Tickets()}
}

func (c *Coordinator) currentTicketMessage() protocol.CurrentTicketMessage {
	msg := protocol.CurrentTicketMessage{
		Type:         protocol.TypeCurrentTicket,
		TicketIndex:  c.state.Queue.Cursor(),
		TotalTickets: c.state.Queue.Len(),
	}
	if ticket, ok := c.state.Queue.Current(); ok {
		msg.Ticket = &ticket
	}
	return msg
}

func (c *Coordinator) votesRevealedMessage(stats session.Statistics) protocol.VotesRevealedMessage {
	ballots := c.state.Ballots()
	votes := make([]protocol.RevealedVote, 0, len(ballots))
	for _, b := range ballots {
		p, ok := c.state.Registry.Get(b.ParticipantID)
		if !ok {
			continue
		}
		votes = append(votes, protocol.RevealedVote{
			UserID:   p.ID,
			Username: p.DisplayName,
			Points:   b.Vote,
		})
	}
	return protocol.VotesRevealedMessage{
		Type:       protocol.TypeVotesRevealed,
		Votes:      votes,
		Statistics: stats,
		Revealed:   true,
	}
}

func (c *Coordinator) broadcastUsers() {
	c.broadcast(c.usersMessage())
}

func (c *Coordinator) broadcastCurrentTicket() {
	c.broadcast(c.currentTicketMessage())
}

func (c *Coordinator) broadcastTickets() {
	c.broadcast(c.ticketsMessage())
}

// broadcastVotingState sends the hidden round view to everyone, then each
// voter's own vote to that voter alone.
func (c *Coordinator) broadcastVotingState() {
	c.broadcast(protocol.VotingStateMessage{
		Type:        protocol.TypeVotingState,
		VotingState: c.state.VotingState(),
	})
	for _, b := range c.state.Ballots() {
		p, ok := c.state.Registry.Get(b.ParticipantID)
		if !ok {
			continue
		}
		c.sendTo(p.ConnectionID, protocol.UserVoteMessage{Type: protocol.TypeUserVote, Points: b.Vote})
	}
}

func (c *Coordinator) broadcastVotesRevealed(stats session.Statistics) {
	c.broadcast(c.votesRevealedMessage(stats))
}
