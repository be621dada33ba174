// Package protocol defines the JSON messages exchanged with clients.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/poker/validation"
)

// Kind identifies a client message.
type Kind string

const (
	KindJoin            Kind = "join"
	KindCastVote        Kind = "cast-vote"
	KindRevealVotes     Kind = "reveal-votes"
	KindSetFinalResult  Kind = "set-final-result"
	KindCompleteVoting  Kind = "complete-voting"
	KindSetSourceConfig Kind = "set-ticket-source-config"
	KindFetchTickets    Kind = "fetch-tickets"
	KindSelectTicket    Kind = "select-ticket"
)

// Older clients name the ticket source after Jira.
var kindAliases = map[string]Kind{
	"set-jira-config":    KindSetSourceConfig,
	"fetch-jira-tickets": KindFetchTickets,
}

var (
	// ErrMalformed is returned for payloads that are not valid messages.
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownKind is returned for well-formed messages of a kind this
	// server does not handle.
	ErrUnknownKind = errors.New("unknown message type")
)

// Message is a decoded client message. The set of implementations is closed.
type Message interface {
	Kind() Kind
	sealed()
}

// Join asks to enter the room under a display name.
type Join struct{ Username string }

// CastVote records or replaces the caller's vote.
type CastVote struct{ Points models.Vote }

// RevealVotes makes the round's votes visible. Host only.
type RevealVotes struct{}

// SetFinalResult overrides the final estimate. A nil Result restores the
// plurality. Host only.
type SetFinalResult struct{ Result *float64 }

// CompleteVoting closes the round and moves to the next ticket. Host only.
type CompleteVoting struct{}

// SetSourceConfig stores the ticket source credentials. Host only.
type SetSourceConfig struct{ Config models.SourceConfig }

// FetchTickets loads the queue from the ticket source. Host only.
type FetchTickets struct{ Filters models.TicketFilters }

// SelectTicket jumps to a ticket by index. Host only.
type SelectTicket struct{ TicketIndex int }

func (Join) Kind() Kind            { return KindJoin }
func (CastVote) Kind() Kind        { return KindCastVote }
func (RevealVotes) Kind() Kind     { return KindRevealVotes }
func (SetFinalResult) Kind() Kind  { return KindSetFinalResult }
func (CompleteVoting) Kind() Kind  { return KindCompleteVoting }
func (SetSourceConfig) Kind() Kind { return KindSetSourceConfig }
func (FetchTickets) Kind() Kind    { return KindFetchTickets }
func (SelectTicket) Kind() Kind    { return KindSelectTicket }

func (Join) sealed()            {}
func (CastVote) sealed()        {}
func (RevealVotes) sealed()     {}
func (SetFinalResult) sealed()  {}
func (CompleteVoting) sealed()  {}
func (SetSourceConfig) sealed() {}
func (FetchTickets) sealed()    {}
func (SelectTicket) sealed()    {}

type envelope struct {
	Type        string                `json:"type"`
	Username    *string               `json:"username"`
	Points      json.RawMessage       `json:"points"`
	Result      json.RawMessage       `json:"result"`
	Config      *models.SourceConfig  `json:"config"`
	Filters     *models.TicketFilters `json:"filters"`
	TicketIndex json.RawMessage       `json:"ticketIndex"`
}

// Decode parses one frame. Errors wrap ErrMalformed, ErrUnknownKind or a
// validation error.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	kind := Kind(env.Type)
	if alias, ok := kindAliases[env.Type]; ok {
		kind = alias
	}

	switch kind {
	case KindJoin:
		if env.Username == nil {
			return nil, fmt.Errorf("%w: username is required", ErrMalformed)
		}
		return Join{Username: *env.Username}, nil

	case KindCastVote:
		vote, err := validation.ParseVote(env.Points)
		if err != nil {
			return nil, err
		}
		return CastVote{Points: vote}, nil

	case KindRevealVotes:
		return RevealVotes{}, nil

	case KindSetFinalResult:
		result, err := decodeFinalValue(env.Result)
		if err != nil {
			return nil, err
		}
		return SetFinalResult{Result: result}, nil

	case KindCompleteVoting:
		return CompleteVoting{}, nil

	case KindSetSourceConfig:
		if env.Config == nil {
			return nil, fmt.Errorf("%w: config is required", ErrMalformed)
		}
		return SetSourceConfig{Config: *env.Config}, nil

	case KindFetchTickets:
		var filters models.TicketFilters
		if env.Filters != nil {
			filters = *env.Filters
		}
		return FetchTickets{Filters: validation.SanitizeFilters(filters)}, nil

	case KindSelectTicket:
		var index int
		if err := json.Unmarshal(env.TicketIndex, &index); err != nil {
			return nil, fmt.Errorf("%w: %v", validation.ErrInvalidTicketIndex, err)
		}
		return SelectTicket{TicketIndex: index}, nil

	case "":
		return nil, fmt.Errorf("%w: type is required", ErrMalformed)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
}

func decodeFinalValue(raw json.RawMessage) (*float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", validation.ErrInvalidFinalValue, err)
	}
	if !validation.IsValidFinalValue(&v) {
		return nil, validation.ErrInvalidFinalValue
	}
	return &v, nil
}
