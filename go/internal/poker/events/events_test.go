package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := New("default", TypeParticipantJoined, at, ParticipantPayload{ParticipantID: "p1", Username: "Alice"})

	data, err := Encode(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, event.ID.String(), decoded["eventId"])
	assert.Equal(t, "participant.joined", decoded["eventType"])
	assert.Equal(t, "default", decoded["room"])
	assert.Equal(t, "2026-03-01T12:00:00Z", decoded["timestamp"])
	assert.Equal(t, map[string]any{"participantId": "p1", "username": "Alice"}, decoded["payload"])
}

func TestEncode_BadPayload(t *testing.T) {
	_, err := Encode(New("default", TypeTicketsLoaded, time.Now(), make(chan int)))
	assert.Error(t, err)
}

func TestSubject(t *testing.T) {
	event := New("team-a", TypeVotesRevealed, time.Now(), nil)
	assert.Equal(t, "poker.events.team-a.votes.revealed", Subject("poker.events", event))
}

func TestNewIDsAreUnique(t *testing.T) {
	a := New("r", TypeHostChanged, time.Now(), nil)
	b := New("r", TypeHostChanged, time.Now(), nil)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), New("r", TypeHostChanged, time.Now(), nil)))
	assert.NoError(t, p.Close())
}

func TestNewNATSPublisher_Unreachable(t *testing.T) {
	cfg := DefaultNATSConfig()
	cfg.URL = "nats://127.0.0.1:1"
	cfg.MaxReconnects = 0
	_, err := NewNATSPublisher(cfg)
	assert.Error(t, err)
}
