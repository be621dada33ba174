package session

import (
	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/poker/validation"
)

// Queue is the ordered list of tickets and the cursor on the one being
// estimated. Every change of the current ticket calls onChange.
type Queue struct {
	tickets  []models.Ticket
	cursor   int
	onChange func()
}

// NewQueue creates a queue holding tickets.
func NewQueue(tickets []models.Ticket, onChange func()) *Queue {
	q := &Queue{onChange: onChange}
	q.tickets = append([]models.Ticket(nil), tickets...)
	return q
}

// SetTickets replaces the queue and points the cursor at the first ticket.
func (q *Queue) SetTickets(tickets []models.Ticket) {
	q.tickets = append([]models.Ticket(nil), tickets...)
	q.moveTo(0)
}

// Advance moves to the next ticket, wrapping after the last one.
func (q *Queue) Advance() error {
	if len(q.tickets) == 0 {
		return ErrNoTickets
	}
	q.moveTo((q.cursor + 1) % len(q.tickets))
	return nil
}

// Select points the cursor at index.
func (q *Queue) Select(index int) error {
	if !validation.IsValidTicketIndex(index, len(q.tickets)) {
		return ErrTicketIndex
	}
	q.moveTo(index)
	return nil
}

// Rewind points the cursor back at the first ticket.
func (q *Queue) Rewind() {
	q.moveTo(0)
}

func (q *Queue) moveTo(index int) {
	q.cursor = index
	if q.onChange != nil {
		q.onChange()
	}
}

// Current returns the ticket at the cursor.
func (q *Queue) Current() (models.Ticket, bool) {
	if len(q.tickets) == 0 {
		return models.Ticket{}, false
	}
	return q.tickets[q.cursor], true
}

// Cursor returns the zero-based index of the current ticket.
func (q *Queue) Cursor() int {
	return q.cursor
}

// Len returns the number of tickets.
func (q *Queue) Len() int {
	return len(q.tickets)
}

// Tickets returns a copy of the queue.
func (q *Queue) Tickets() []models.Ticket {
	out := make([]models.Ticket, len(q.tickets))
	copy(out, q.tickets)
	return out
}
