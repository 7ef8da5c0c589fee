package ticket

import (
	"errors"
	"time"

	"github.com/fixbot-io/fixbot/pkg/protocol"
)

// ErrNotFound is returned by FindByID when no row exists for the id.
// Store callers use it to tell "absent" apart from "backend unreachable".
var ErrNotFound = errors.New("ticket not found")

// TransitionFields are the cells written alongside a status change.
// Only the fields relevant to the target status are set: engineer fields
// for new → in_progress, completion fields for in_progress → completed.
type TransitionFields struct {
	EngineerHandle string
	EngineerName   string
	CompletedAt    *time.Time
	Resolution     string
}

// Engineer is a roster row: an authorized technician.
type Engineer struct {
	ChatID int64
	Name   string
}

// Exhibit is a catalog row: an exhibit and its known problem templates,
// in catalog order.
type Exhibit struct {
	Name     string
	Problems []string
}

// Store is the persistence facade over the ticket, roster and catalog tables.
type Store interface {
	// Create inserts a new ticket and returns its sequential id.
	Create(exhibit, problem string, requester protocol.Identity) (int64, error)
	// FindByID retrieves a ticket, returning ErrNotFound when absent.
	FindByID(id int64) (*protocol.Ticket, error)
	// ListByStatus returns all tickets in the given status, oldest first.
	ListByStatus(status protocol.TicketStatus) ([]*protocol.Ticket, error)
	// ListByRequester returns all tickets filed by the given user id.
	ListByRequester(requesterID int64) ([]*protocol.Ticket, error)
	// Transition performs a read-verify-write status change. It returns
	// (false, nil) when the row is absent or its status does not match
	// expected, and a non-nil error only when the store itself fails.
	Transition(id int64, expected, next protocol.TicketStatus, fields TransitionFields) (bool, error)
	// ListEngineers returns the authorized-technician roster.
	ListEngineers() ([]Engineer, error)
	// ListExhibits returns the exhibit → known-problems catalog.
	ListExhibits() ([]Exhibit, error)
}
