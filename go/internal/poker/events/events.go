// Package events publishes session lifecycle events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type names a session event. It doubles as the subject suffix.
type Type string

const (
	TypeParticipantJoined Type = "participant.joined"
	TypeParticipantLeft   Type = "participant.left"
	TypeHostChanged       Type = "host.changed"
	TypeVotesRevealed     Type = "votes.revealed"
	TypeVotingCompleted   Type = "voting.completed"
	TypeTicketsLoaded     Type = "tickets.loaded"
)

// Event is one session occurrence.
type Event struct {
	ID        uuid.UUID
	Type      Type
	Room      string
	Timestamp time.Time
	Payload   any
}

// New stamps an event with a fresh id.
func New(room string, typ Type, at time.Time, payload any) Event {
	return Event{
		ID:        uuid.New(),
		Type:      typ,
		Room:      room,
		Timestamp: at,
		Payload:   payload,
	}
}

type ParticipantPayload struct {
	ParticipantID string `json:"participantId"`
	Username      string `json:"username"`
}

type HostChangedPayload struct {
	ParticipantID string `json:"participantId"`
	Username      string `json:"username"`
}

type VotesRevealedPayload struct {
	TicketID   string   `json:"ticketId,omitempty"`
	TotalVotes int      `json:"totalVotes"`
	MostCommon *int     `json:"mostCommon"`
	FinalValue *float64 `json:"finalValue"`
}

type VotingCompletedPayload struct {
	TicketID   string   `json:"ticketId,omitempty"`
	FinalValue *float64 `json:"finalValue"`
	NextIndex  int      `json:"nextIndex"`
}

type TicketsLoadedPayload struct {
	Count int `json:"count"`
}

// Publisher delivers events. Implementations must not block for long: the
// dispatcher calls Publish inline.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Encode renders the wire envelope of an event.
func Encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	envelope := struct {
		EventID   string          `json:"eventId"`
		EventType Type            `json:"eventType"`
		Room      string          `json:"room"`
		Timestamp time.Time       `json:"timestamp"`
		Payload   json.RawMessage `json:"payload"`
	}{
		EventID:   event.ID.String(),
		EventType: event.Type,
		Room:      event.Room,
		Timestamp: event.Timestamp,
		Payload:   payload,
	}
	return json.Marshal(envelope)
}

// NoopPublisher drops events. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                         { return nil }
