// Package tracking holds the ephemeral per-ticket bookkeeping that is never
// persisted to the durable store: claim time, reminder time, and references
// to UI messages that must be retracted when the ticket leaves the state
// they were posted for.
package tracking

import (
	"sync"
	"time"

	"github.com/fixbot-io/fixbot/internal/connector"
)

// Entry is the tracking record for one active ticket.
type Entry struct {
	ClaimedAt      time.Time
	LastReminderAt time.Time // zero until the first reminder is sent
	EngineerChatID int64
	Messages       []connector.MessageRef
}

// Claimed reports whether the entry carries claim bookkeeping, as opposed to
// only tracked messages (e.g. the new-ticket broadcast before anyone claims,
// or ticket cards listed for a claim that predates this process).
func (e Entry) Claimed() bool {
	return !e.ClaimedAt.IsZero()
}

// Registry maps ticket ids to their tracking entries.
type Registry struct {
	mu      sync.Mutex
	entries map[int64]*Entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[int64]*Entry)}
}

// StartTracking records the claim for a ticket, preserving any messages
// already tracked against it.
func (r *Registry) StartTracking(id, engineerChatID int64, claimedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[id]
	if e == nil {
		e = &Entry{}
		r.entries[id] = e
	}
	e.ClaimedAt = claimedAt
	e.LastReminderAt = time.Time{}
	e.EngineerChatID = engineerChatID
}

// Track appends a UI message reference to the ticket's entry, creating the
// entry if none exists yet.
func (r *Registry) Track(id int64, ref connector.MessageRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[id]
	if e == nil {
		e = &Entry{}
		r.entries[id] = e
	}
	e.Messages = append(e.Messages, ref)
}

// Lookup returns a copy of the ticket's entry.
func (r *Registry) Lookup(id int64) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	out := *e
	out.Messages = append([]connector.MessageRef(nil), e.Messages...)
	return out, true
}

// MarkReminded sets the ticket's last-reminder time. It reports whether the
// ticket was tracked.
func (r *Registry) MarkReminded(id int64, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.LastReminderAt = at
	return true
}

// TakeMessages detaches and returns the tracked messages for a ticket. The
// entry itself survives only if it carries claim bookkeeping; a
// messages-only entry is removed outright.
func (r *Registry) TakeMessages(id int64) []connector.MessageRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	refs := e.Messages
	e.Messages = nil
	if !e.Claimed() {
		delete(r.entries, id)
	}
	return refs
}

// Remove deletes the ticket's entry entirely, returning whatever messages
// were still tracked.
func (r *Registry) Remove(id int64) []connector.MessageRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	delete(r.entries, id)
	return e.Messages
}

// Len returns the number of tracked tickets.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
