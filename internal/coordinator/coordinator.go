// Package coordinator owns the ticket lifecycle: creation, claim
// arbitration, and completion. All mutating operations on a given ticket id
// are serialized through a per-ticket critical section so the store's
// best-effort read-verify-write becomes a strict guarantee here.
package coordinator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fixbot-io/fixbot/internal/ticket"
	"github.com/fixbot-io/fixbot/internal/tracking"
	"github.com/fixbot-io/fixbot/pkg/protocol"
)

// ClaimResult is the outcome of a claim attempt.
type ClaimResult int

const (
	// ClaimError is the zero value so a result read alongside a non-nil
	// error never looks like success.
	ClaimError ClaimResult = iota
	ClaimOK
	ClaimAlreadyTaken
	ClaimUnauthorized
	ClaimNotFound
)

// CompleteResult is the outcome of a completion attempt.
type CompleteResult int

const (
	// CompleteError is the zero value, mirroring ClaimError.
	CompleteError CompleteResult = iota
	CompleteOK
	CompleteNotOwner
	CompleteNotInProgress
	CompleteNotFound
	CompleteEmptyResolution
)

// Roster answers authorization questions about engineers.
type Roster interface {
	IsEngineer(chatID int64) bool
	EngineerName(chatID int64) string
}

// Coordinator arbitrates claims and completions against the store.
type Coordinator struct {
	store   ticket.Store
	tracked *tracking.Registry
	cleaner *tracking.Cleaner
	roster  Roster
	logger  *slog.Logger

	// AllowAnyEngineer disables the ownership check on completion, letting
	// any authorized engineer complete a colleague's claimed ticket.
	AllowAnyEngineer bool

	// Now is the clock, overridable in tests.
	Now func() time.Time

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// New creates a coordinator.
func New(store ticket.Store, tracked *tracking.Registry, cleaner *tracking.Cleaner, roster Roster, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:   store,
		tracked: tracked,
		cleaner: cleaner,
		roster:  roster,
		logger:  logger,
		Now:     time.Now,
		locks:   make(map[int64]*sync.Mutex),
	}
}

// ticketLock returns the mutex serializing mutations for one ticket id.
func (c *Coordinator) ticketLock(id int64) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[id]
	if !ok {
		l = &sync.Mutex{}
		c.locks[id] = l
	}
	return l
}

// Open files a new ticket and returns its id.
func (c *Coordinator) Open(exhibit, problem string, requester protocol.Identity) (int64, error) {
	id, err := c.store.Create(exhibit, problem, requester)
	if err != nil {
		return 0, err
	}
	c.logger.Info("ticket opened", "ticket", id, "exhibit", exhibit, "requester", requester.Handle)
	return id, nil
}

// Claim binds an engineer to a new ticket, transitioning it to in_progress.
// Exactly one of any set of concurrent claimers for the same ticket gets
// ClaimOK; the rest get ClaimAlreadyTaken. On success the returned ticket
// reflects the claim.
func (c *Coordinator) Claim(ctx context.Context, id int64, actor protocol.Identity) (ClaimResult, *protocol.Ticket, error) {
	if !c.roster.IsEngineer(actor.ID) {
		return ClaimUnauthorized, nil, nil
	}

	l := c.ticketLock(id)
	l.Lock()
	defer l.Unlock()

	t, err := c.store.FindByID(id)
	if err == ticket.ErrNotFound {
		return ClaimNotFound, nil, nil
	}
	if err != nil {
		return ClaimError, nil, err
	}
	if t.Status != protocol.TicketNew {
		// Stale claim button; retract it so nobody else presses it.
		c.cleaner.RetractMessages(ctx, id)
		return ClaimAlreadyTaken, nil, nil
	}

	name := c.roster.EngineerName(actor.ID)
	if name == "" {
		name = actor.Handle
	}
	ok, err := c.store.Transition(id, protocol.TicketNew, protocol.TicketInProgress, ticket.TransitionFields{
		EngineerHandle: actor.Handle,
		EngineerName:   name,
	})
	if err != nil {
		return ClaimError, nil, err
	}
	if !ok {
		c.cleaner.RetractMessages(ctx, id)
		return ClaimAlreadyTaken, nil, nil
	}

	now := c.Now()
	c.cleaner.RetractMessages(ctx, id)
	c.tracked.StartTracking(id, actor.ID, now)

	t.Status = protocol.TicketInProgress
	t.Engineer = &protocol.Identity{Handle: actor.Handle, ID: actor.ID, Name: name}
	c.logger.Info("ticket claimed", "ticket", id, "engineer", actor.Handle)
	return ClaimOK, t, nil
}

// Complete transitions a claimed ticket to completed with the given
// resolution, then purges its tracking entry and tracked UI messages.
func (c *Coordinator) Complete(ctx context.Context, id int64, actor protocol.Identity, resolution string) (CompleteResult, *protocol.Ticket, error) {
	// A completed ticket always carries a non-empty resolution.
	if strings.TrimSpace(resolution) == "" {
		return CompleteEmptyResolution, nil, nil
	}

	l := c.ticketLock(id)
	l.Lock()
	defer l.Unlock()

	t, err := c.store.FindByID(id)
	if err == ticket.ErrNotFound {
		return CompleteNotFound, nil, nil
	}
	if err != nil {
		return CompleteError, nil, err
	}
	if t.Status != protocol.TicketInProgress {
		return CompleteNotInProgress, nil, nil
	}
	if !c.AllowAnyEngineer && !c.ownedBy(id, t, actor) {
		return CompleteNotOwner, t, nil
	}

	now := c.Now()
	ok, err := c.store.Transition(id, protocol.TicketInProgress, protocol.TicketCompleted, ticket.TransitionFields{
		CompletedAt: &now,
		Resolution:  resolution,
	})
	if err != nil {
		return CompleteError, nil, err
	}
	if !ok {
		return CompleteNotInProgress, nil, nil
	}

	c.cleaner.Purge(ctx, id)

	t.Status = protocol.TicketCompleted
	t.CompletedAt = &now
	t.Resolution = resolution
	c.logger.Info("ticket completed", "ticket", id, "engineer", actor.Handle)
	return CompleteOK, t, nil
}

// ownedBy reports whether actor is the engineer who claimed the ticket. The
// tracking entry's numeric chat id is authoritative when present; otherwise
// the persisted engineer handle decides (handles the case of tickets claimed
// before this process started tracking).
func (c *Coordinator) ownedBy(id int64, t *protocol.Ticket, actor protocol.Identity) bool {
	if e, ok := c.tracked.Lookup(id); ok && e.EngineerChatID != 0 {
		return e.EngineerChatID == actor.ID
	}
	return t.Engineer != nil && t.Engineer.Handle == actor.Handle
}
