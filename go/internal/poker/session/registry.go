package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/planningpoker/go/internal/models"
)

// LeaveResult describes the effect of a participant leaving.
type LeaveResult struct {
	Removed  models.Participant
	Promoted *models.Participant
	Empty    bool
}

// Registry is the authoritative set of participants and the single owner of
// host identity. Participants are kept in join order; that order decides host
// succession.
type Registry struct {
	clock        clockwork.Clock
	participants map[string]*models.Participant
	order        []string
	byConnection map[string]string
	hostID       string
	newID        func() string
}

// NewRegistry creates an empty registry.
func NewRegistry(clock clockwork.Clock) *Registry {
	return &Registry{
		clock:        clock,
		participants: make(map[string]*models.Participant),
		byConnection: make(map[string]string),
		newID:        uuid.NewString,
	}
}

// Join adds a participant for the connection. The first participant of an
// empty registry becomes host; later joiners never do.
func (r *Registry) Join(connectionID, name string) (models.Participant, error) {
	if _, ok := r.byConnection[connectionID]; ok {
		return models.Participant{}, ErrAlreadyJoined
	}

	now := r.clock.Now()
	p := &models.Participant{
		ID:           r.newID(),
		DisplayName:  name,
		ConnectionID: connectionID,
		JoinedAt:     now,
		LastActivity: now,
	}
	if len(r.participants) == 0 {
		r.hostID = p.ID
		p.IsHost = true
	}

	r.participants[p.ID] = p
	r.order = append(r.order, p.ID)
	r.byConnection[connectionID] = p.ID
	return *p, nil
}

// Leave removes a participant. A departing host hands the role to the
// earliest-joined remaining participant.
func (r *Registry) Leave(id string) (LeaveResult, error) {
	p, ok := r.participants[id]
	if !ok {
		return LeaveResult{}, ErrUnknownParticipant
	}

	delete(r.participants, id)
	delete(r.byConnection, p.ConnectionID)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	result := LeaveResult{Removed: *p}
	if len(r.order) == 0 {
		r.hostID = ""
		result.Empty = true
		return result, nil
	}

	if r.hostID == id {
		successor := r.participants[r.order[0]]
		successor.IsHost = true
		r.hostID = successor.ID
		promoted := *successor
		result.Promoted = &promoted
	}
	return result, nil
}

// Get returns a participant by id.
func (r *Registry) Get(id string) (models.Participant, bool) {
	p, ok := r.participants[id]
	if !ok {
		return models.Participant{}, false
	}
	return *p, true
}

// ByConnection returns the participant joined on a connection.
func (r *Registry) ByConnection(connectionID string) (models.Participant, bool) {
	id, ok := r.byConnection[connectionID]
	if !ok {
		return models.Participant{}, false
	}
	return r.Get(id)
}

// Host returns the current host, if any.
func (r *Registry) Host() (models.Participant, bool) {
	if r.hostID == "" {
		return models.Participant{}, false
	}
	return r.Get(r.hostID)
}

// IsHost reports whether id holds the host role.
func (r *Registry) IsHost(id string) bool {
	return id != "" && id == r.hostID
}

// Touch records activity for a participant.
func (r *Registry) Touch(id string, at time.Time) {
	if p, ok := r.participants[id]; ok {
		p.LastActivity = at
	}
}

// All returns the participants in join order.
func (r *Registry) All() []models.Participant {
	out := make([]models.Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.participants[id])
	}
	return out
}

// Len returns the number of participants.
func (r *Registry) Len() int {
	return len(r.order)
}
