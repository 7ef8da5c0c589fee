package protocol

import "time"

// TicketStatus represents the lifecycle state of a ticket.
// Transitions are monotonic: new → in_progress → completed.
type TicketStatus string

const (
	TicketNew        TicketStatus = "new"
	TicketInProgress TicketStatus = "in_progress"
	TicketCompleted  TicketStatus = "completed"
)

// Valid reports whether s is one of the three lifecycle states.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketNew, TicketInProgress, TicketCompleted:
		return true
	}
	return false
}

// Identity is a chat participant: a display handle plus the platform's
// numeric user id. For engineers resolved from the roster, Name carries
// the roster display name.
type Identity struct {
	Handle string `json:"handle"`
	ID     int64  `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
}

// Ticket is a repair/help request raised against a museum exhibit.
type Ticket struct {
	ID          int64        `json:"id"`
	Status      TicketStatus `json:"status"`
	Exhibit     string       `json:"exhibit"`
	Problem     string       `json:"problem"`
	Requester   Identity     `json:"requester"`
	Engineer    *Identity    `json:"engineer,omitempty"`
	Resolution  string       `json:"resolution,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// Terminal reports whether the ticket can no longer change state.
func (t *Ticket) Terminal() bool {
	return t.Status == TicketCompleted
}
