// Package session holds the in-memory state of one planning poker room:
// who is connected and who is host, the votes for the current ticket, and
// the ticket queue. A State has exactly one mutator at a time; callers
// serialize access.
package session

import (
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/poker/validation"
)

// VotingState is the public, secrecy-preserving view of the round.
type VotingState struct {
	VoteCount  int  `json:"voteCount"`
	TotalUsers int  `json:"totalUsers"`
	Revealed   bool `json:"revealed"`
}

// Completion captures what a finished round leaves behind for the ticket
// source.
type Completion struct {
	Ticket     models.Ticket
	HadTicket  bool
	FinalValue *float64
	Source     *models.SourceConfig
}

// SourceHandle is a snapshot of the ticket source configuration together
// with the generation it was taken at.
type SourceHandle struct {
	Config     models.SourceConfig
	Generation uint64
}

// State is one room.
type State struct {
	Registry *Registry
	Round    *Round
	Queue    *Queue

	source           *models.SourceConfig
	sourceGeneration uint64
	fetchSeq         uint64
}

// NewState creates a room whose queue starts with seed.
func NewState(clock clockwork.Clock, seed []models.Ticket) *State {
	round := NewRound()
	return &State{
		Registry: NewRegistry(clock),
		Round:    round,
		Queue:    NewQueue(seed, round.Reset),
	}
}

// Join adds a participant on a connection.
func (s *State) Join(connectionID, name string) (models.Participant, error) {
	return s.Registry.Join(connectionID, name)
}

// Leave removes a participant and their vote. When the room empties the
// round, the cursor and the ticket source configuration are cleared.
func (s *State) Leave(participantID string) (LeaveResult, error) {
	result, err := s.Registry.Leave(participantID)
	if err != nil {
		return LeaveResult{}, err
	}
	s.Round.RemoveVote(participantID)
	if result.Empty {
		s.Queue.Rewind()
		s.Round.Reset()
		s.clearSource()
	}
	return result, nil
}

func (s *State) present(id string) bool {
	_, ok := s.Registry.Get(id)
	return ok
}

func (s *State) requireHost(participantID string) error {
	if !s.Registry.IsHost(participantID) {
		return ErrNotHost
	}
	return nil
}

// CastVote records a vote for a known participant.
func (s *State) CastVote(participantID string, vote models.Vote) error {
	if !s.present(participantID) {
		return ErrUnknownParticipant
	}
	return s.Round.CastVote(participantID, vote)
}

// Reveal exposes the votes. Host only.
func (s *State) Reveal(participantID string) (Statistics, error) {
	if err := s.requireHost(participantID); err != nil {
		return Statistics{}, err
	}
	return s.Round.Reveal(s.present), nil
}

// SetFinalValue overrides the final estimate. Host only, after reveal. A nil
// value restores the plurality.
func (s *State) SetFinalValue(participantID string, value *float64) (Statistics, error) {
	if err := s.requireHost(participantID); err != nil {
		return Statistics{}, err
	}
	if err := s.Round.SetFinalValue(value, s.present); err != nil {
		return Statistics{}, err
	}
	return s.Statistics(), nil
}

// Complete closes the round and advances to the next ticket. Host only.
func (s *State) Complete(participantID string) (Completion, error) {
	if err := s.requireHost(participantID); err != nil {
		return Completion{}, err
	}
	if s.Queue.Len() == 0 {
		return Completion{}, ErrNoTickets
	}

	ticket, ok := s.Queue.Current()
	completion := Completion{
		Ticket:     ticket,
		HadTicket:  ok && ticket.ID != "",
		FinalValue: s.Round.FinalValue(),
	}
	if s.source != nil {
		cfg := *s.source
		completion.Source = &cfg
	}

	if err := s.Queue.Advance(); err != nil {
		return Completion{}, err
	}
	return completion, nil
}

// SelectTicket jumps to a ticket. Host only.
func (s *State) SelectTicket(participantID string, index int) error {
	if err := s.requireHost(participantID); err != nil {
		return err
	}
	return s.Queue.Select(index)
}

// SetTickets replaces the queue; the round resets with it.
func (s *State) SetTickets(tickets []models.Ticket) {
	s.Queue.SetTickets(tickets)
}

// ConfigureSource stores the ticket source configuration. Host only.
func (s *State) ConfigureSource(participantID string, cfg models.SourceConfig) error {
	if err := s.requireHost(participantID); err != nil {
		return err
	}
	normalized, err := validation.ValidateSourceConfig(cfg)
	if err != nil {
		return err
	}
	s.source = &normalized
	s.sourceGeneration++
	return nil
}

// SourceForFetch returns the configuration a host may fetch with.
func (s *State) SourceForFetch(participantID string) (SourceHandle, error) {
	if err := s.requireHost(participantID); err != nil {
		return SourceHandle{}, err
	}
	if s.source == nil {
		return SourceHandle{}, ErrSourceNotSet
	}
	return SourceHandle{Config: *s.source, Generation: s.sourceGeneration}, nil
}

// SourceConfigured reports whether a ticket source is configured.
func (s *State) SourceConfigured() bool {
	return s.source != nil
}

// SourceGeneration changes whenever the configuration is set or cleared.
func (s *State) SourceGeneration() uint64 {
	return s.sourceGeneration
}

// BeginFetch starts a new ticket fetch and returns its sequence number.
// Earlier fetches still in flight become superseded.
func (s *State) BeginFetch() uint64 {
	s.fetchSeq++
	return s.fetchSeq
}

// IsLatestFetch reports whether seq belongs to the most recent fetch.
func (s *State) IsLatestFetch(seq uint64) bool {
	return seq == s.fetchSeq
}

func (s *State) clearSource() {
	if s.source == nil {
		return
	}
	s.source = nil
	s.sourceGeneration++
}

// VotingState returns the hidden view of the round.
func (s *State) VotingState() VotingState {
	return VotingState{
		VoteCount:  len(s.Round.Ballots(s.present)),
		TotalUsers: s.Registry.Len(),
		Revealed:   s.Round.Revealed(),
	}
}

// Ballots returns the votes of present participants in cast order.
func (s *State) Ballots() []Ballot {
	return s.Round.Ballots(s.present)
}

// Statistics returns the current statistics without changing state.
func (s *State) Statistics() Statistics {
	return s.Round.Tally(s.present)
}
