package tracking

import (
	"context"
	"log/slog"

	"github.com/fixbot-io/fixbot/internal/connector"
)

// Cleaner retracts tracked UI messages at lifecycle boundaries. Delete is a
// function field so the owning process can bind it to the chat platform after
// both sides are constructed.
type Cleaner struct {
	Registry *Registry
	Delete   func(ctx context.Context, ref connector.MessageRef) error
	Logger   *slog.Logger
}

// NewCleaner creates a cleaner over the given registry. Delete must be bound
// before the first purge.
func NewCleaner(reg *Registry, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{Registry: reg, Logger: logger}
}

// Track records a UI message against a ticket.
func (c *Cleaner) Track(id int64, ref connector.MessageRef) {
	c.Registry.Track(id, ref)
}

// Purge removes the ticket's tracking entry, retracting every tracked
// message first. Retraction failures (already deleted, insufficient
// permission) are logged and do not keep the entry alive.
func (c *Cleaner) Purge(ctx context.Context, id int64) {
	c.retract(ctx, id, c.Registry.Remove(id))
}

// RetractMessages deletes the ticket's tracked UI messages without ending
// claim tracking. Used when a ticket is claimed and its stale claim buttons
// must disappear while reminders keep running.
func (c *Cleaner) RetractMessages(ctx context.Context, id int64) {
	c.retract(ctx, id, c.Registry.TakeMessages(id))
}

func (c *Cleaner) retract(ctx context.Context, id int64, refs []connector.MessageRef) {
	for _, ref := range refs {
		if err := c.Delete(ctx, ref); err != nil {
			c.Logger.Warn("failed to delete tracked message",
				"ticket", id,
				"chat_id", ref.ChatID,
				"message_id", ref.MessageID,
				"error", err,
			)
		}
	}
}
