package session

import (
	"github.com/mcdev12/planningpoker/go/internal/models"
)

// RoundStatus is the visibility state of the current round.
type RoundStatus string

const (
	RoundHidden   RoundStatus = "hidden"
	RoundRevealed RoundStatus = "revealed"
)

// Ballot is one participant's vote.
type Ballot struct {
	ParticipantID string
	Vote          models.Vote
}

// Statistics summarizes a revealed round. MostCommon is the plurality among
// numeric votes; ties go to the lowest value.
type Statistics struct {
	MostCommon *int     `json:"mostCommon"`
	FinalValue *float64 `json:"finalValue"`
	TotalVotes int      `json:"totalVotes"`
}

// Round holds the votes for the current ticket.
type Round struct {
	votes      map[string]models.Vote
	order      []string
	status     RoundStatus
	finalValue *float64
}

// NewRound creates a hidden, empty round.
func NewRound() *Round {
	return &Round{
		votes:  make(map[string]models.Vote),
		status: RoundHidden,
	}
}

// Status returns the round's visibility state.
func (r *Round) Status() RoundStatus {
	return r.status
}

// Revealed reports whether votes are visible.
func (r *Round) Revealed() bool {
	return r.status == RoundRevealed
}

// CastVote records or replaces a participant's vote while the round is hidden.
func (r *Round) CastVote(participantID string, vote models.Vote) error {
	if r.status == RoundRevealed {
		return ErrRoundRevealed
	}
	if _, ok := r.votes[participantID]; !ok {
		r.order = append(r.order, participantID)
	}
	r.votes[participantID] = vote
	return nil
}

// RemoveVote drops a participant's vote, if any.
func (r *Round) RemoveVote(participantID string) bool {
	if _, ok := r.votes[participantID]; !ok {
		return false
	}
	delete(r.votes, participantID)
	for i, id := range r.order {
		if id == participantID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Vote returns a participant's vote.
func (r *Round) Vote(participantID string) (models.Vote, bool) {
	v, ok := r.votes[participantID]
	return v, ok
}

// Ballots returns the votes in cast order, skipping voters present rejects.
// A nil present keeps every ballot.
func (r *Round) Ballots(present func(string) bool) []Ballot {
	out := make([]Ballot, 0, len(r.order))
	for _, id := range r.order {
		if present != nil && !present(id) {
			continue
		}
		out = append(out, Ballot{ParticipantID: id, Vote: r.votes[id]})
	}
	return out
}

// Reveal makes votes visible and returns fresh statistics. When no final
// value has been chosen the plurality becomes the default.
func (r *Round) Reveal(present func(string) bool) Statistics {
	r.status = RoundRevealed
	stats := r.Tally(present)
	if r.finalValue == nil && stats.MostCommon != nil {
		v := float64(*stats.MostCommon)
		r.finalValue = &v
	}
	stats.FinalValue = r.FinalValue()
	return stats
}

// SetFinalValue overrides the round's final value. Only allowed once revealed.
// A nil value falls back to the plurality among present voters.
func (r *Round) SetFinalValue(v *float64, present func(string) bool) error {
	if r.status != RoundRevealed {
		return ErrRoundNotRevealed
	}
	if v == nil {
		r.finalValue = nil
		if mc := r.Tally(present).MostCommon; mc != nil {
			value := float64(*mc)
			r.finalValue = &value
		}
		return nil
	}
	value := *v
	r.finalValue = &value
	return nil
}

// FinalValue returns a copy of the final value.
func (r *Round) FinalValue() *float64 {
	if r.finalValue == nil {
		return nil
	}
	v := *r.finalValue
	return &v
}

// Tally computes statistics over the current ballots without changing state.
func (r *Round) Tally(present func(string) bool) Statistics {
	ballots := r.Ballots(present)
	counts := make(map[int]int)
	for _, b := range ballots {
		if n, ok := b.Vote.Numeric(); ok {
			counts[n]++
		}
	}

	var mostCommon *int
	best := 0
	for value, count := range counts {
		if count > best || (count == best && value < *mostCommon) {
			v := value
			mostCommon = &v
			best = count
		}
	}

	return Statistics{
		MostCommon: mostCommon,
		FinalValue: r.FinalValue(),
		TotalVotes: len(ballots),
	}
}

// Reset clears votes, hides the round and clears the final value.
func (r *Round) Reset() {
	r.votes = make(map[string]models.Vote)
	r.order = nil
	r.status = RoundHidden
	r.finalValue = nil
}
