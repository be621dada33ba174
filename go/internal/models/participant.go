package models

import "time"

// Participant is a connected member of the session.
type Participant struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"username"`
	IsHost       bool      `json:"isHost"`
	ConnectionID string    `json:"-"`
	JoinedAt     time.Time `json:"-"`
	LastActivity time.Time `json:"-"`
}
