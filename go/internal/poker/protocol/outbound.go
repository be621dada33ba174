package protocol

import (
	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/poker/session"
)

// Outbound message types.
const (
	TypeCurrentUser         = "currentUser"
	TypeSourceStatus        = "ticket-source-status"
	TypeUsers               = "users"
	TypeTickets             = "tickets"
	TypeTicketsFetched      = "tickets-fetched"
	TypeCurrentTicket       = "currentTicket"
	TypeVotingState         = "votingState"
	TypeUserVote            = "userVote"
	TypeVotesRevealed       = "votesRevealed"
	TypeError               = "error"
	TypeSourceUpdateSuccess = "source-update-success"
	TypeSourceUpdateError   = "source-update-error"
	TypeSessionTimeout      = "session-timeout"
)

// User is the public view of a participant.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsHost   bool   `json:"isHost"`
}

// NewUser projects a participant to its public view.
func NewUser(p models.Participant) User {
	return User{ID: p.ID, Username: p.DisplayName, IsHost: p.IsHost}
}

// CurrentUserMessage tells a joiner who they are.
type CurrentUserMessage struct {
	Type string `json:"type"`
	User User   `json:"user"`
}

// SourceStatusMessage reports whether a ticket source is configured.
type SourceStatusMessage struct {
	Type       string `json:"type"`
	Configured bool   `json:"configured"`
}

// UsersMessage lists the participants in join order.
type UsersMessage struct {
	Type  string `json:"type"`
	Users []User `json:"users"`
}

// TicketsMessage carries the whole ticket queue.
type TicketsMessage struct {
	Type    string          `json:"type"`
	Tickets []models.Ticket `json:"tickets"`
}

// TicketsFetchedMessage answers the host that requested a fetch.
type TicketsFetchedMessage struct {
	Type    string          `json:"type"`
	Tickets []models.Ticket `json:"tickets"`
	Count   int             `json:"count"`
}

// CurrentTicketMessage points at the ticket being estimated. Ticket is nil
// when the queue is empty.
type CurrentTicketMessage struct {
	Type         string         `json:"type"`
	Ticket       *models.Ticket `json:"ticket"`
	TicketIndex  int            `json:"ticketIndex"`
	TotalTickets int            `json:"totalTickets"`
}

// VotingStateMessage is the hidden progress of the round.
type VotingStateMessage struct {
	Type string `json:"type"`
	session.VotingState
}

// UserVoteMessage echoes a vote back to its caster only.
type UserVoteMessage struct {
	Type   string      `json:"type"`
	Points models.Vote `json:"points"`
}

// RevealedVote is one ballot as shown after reveal.
type RevealedVote struct {
	UserID   string      `json:"userId"`
	Username string      `json:"username"`
	Points   models.Vote `json:"points"`
}

// VotesRevealedMessage exposes the ballots and statistics of a revealed round.
type VotesRevealedMessage struct {
	Type       string             `json:"type"`
	Votes      []RevealedVote     `json:"votes"`
	Statistics session.Statistics `json:"statistics"`
	Revealed   bool               `json:"revealed"`
}

// ErrorMessage reports a rejected request to one connection.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// SourceUpdateSuccessMessage confirms an estimate was written to the ticket source.
type SourceUpdateSuccessMessage struct {
	Type        string  `json:"type"`
	TicketID    string  `json:"ticketId"`
	StoryPoints float64 `json:"storyPoints"`
}

// SourceUpdateErrorMessage reports a failed estimate write.
type SourceUpdateErrorMessage struct {
	Type     string `json:"type"`
	TicketID string `json:"ticketId"`
	Error    string `json:"error"`
}

// SessionTimeoutMessage is sent before an idle connection is closed.
type SessionTimeoutMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewError builds an error frame.
func NewError(message string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: message}
}

// NewSessionTimeout builds the frame sent to an idle connection.
func NewSessionTimeout(message string) SessionTimeoutMessage {
	return SessionTimeoutMessage{Type: TypeSessionTimeout, Message: message}
}
