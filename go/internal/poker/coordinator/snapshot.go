package coordinator

import (
	"time"

	"github.com/mcdev12/planningpoker/go/internal/poker/protocol"
)

// Snapshot is a read-only view of the room for operational endpoints. It
// carries no votes.
type Snapshot struct {
	Room             string                `json:"room"`
	Connections      int                   `json:"connections"`
	Participants     []SnapshotParticipant `json:"participants"`
	Host             *protocol.User        `json:"host"`
	TicketIndex      int                   `json:"ticketIndex"`
	TotalTickets     int                   `json:"totalTickets"`
	VoteCount        int                   `json:"voteCount"`
	Revealed         bool                  `json:"revealed"`
	SourceConfigured bool                  `json:"sourceConfigured"`
}

// SnapshotParticipant adds presence timestamps to the public user view.
type SnapshotParticipant struct {
	protocol.User
	JoinedAt     time.Time `json:"joinedAt"`
	LastActivity time.Time `json:"lastActivity"`
}

func (c *Coordinator) snapshot() Snapshot {
	voting := c.state.VotingState()
	snap := Snapshot{
		Room:             c.cfg.Room,
		Connections:      len(c.conns),
		TicketIndex:      c.state.Queue.Cursor(),
		TotalTickets:     c.state.Queue.Len(),
		VoteCount:        voting.VoteCount,
		Revealed:         voting.Revealed,
		SourceConfigured: c.state.SourceConfigured(),
	}
	for _, p := range c.state.Registry.All() {
		snap.Participants = append(snap.Participants, SnapshotParticipant{
			User:         protocol.NewUser(p),
			JoinedAt:     p.JoinedAt,
			LastActivity: p.LastActivity,
		})
	}
	if host, ok := c.state.Registry.Host(); ok {
		user := protocol.NewUser(host)
		snap.Host = &user
	}
	return snap
}
