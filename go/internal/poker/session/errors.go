package session

import "errors"

var (
	ErrAlreadyJoined      = errors.New("connection has already joined")
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrNotHost            = errors.New("participant is not the host")
	ErrRoundRevealed      = errors.New("voting has already been revealed for this ticket")
	ErrRoundNotRevealed   = errors.New("cannot set final result before revealing votes")
	ErrNoTickets          = errors.New("no tickets in queue")
	ErrTicketIndex        = errors.New("ticket index out of range")
	ErrSourceNotSet       = errors.New("ticket source configuration not set")
)
