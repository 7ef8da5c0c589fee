// Package reminder sweeps in-progress tickets on a fixed cadence and nudges
// the engineer holding each stale one.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/fixbot-io/fixbot/internal/connector"
	"github.com/fixbot-io/fixbot/internal/ticket"
	"github.com/fixbot-io/fixbot/internal/tracking"
	"github.com/fixbot-io/fixbot/pkg/protocol"
)

// Config tunes the sweep policy.
type Config struct {
	// Threshold is how long a ticket may sit without activity before its
	// engineer is reminded, counted from claim time or the last reminder.
	Threshold time.Duration
	// RemindOnce suppresses repeat reminders: each ticket is nudged at most
	// once per claim.
	RemindOnce bool
}

// Scheduler runs the periodic reminder sweep.
type Scheduler struct {
	store    ticket.Store
	tracked  *tracking.Registry
	notifier connector.Notifier
	cfg      Config
	logger   *slog.Logger

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

// New creates a reminder scheduler.
func New(store ticket.Store, tracked *tracking.Registry, notifier connector.Notifier, cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    store,
		tracked:  tracked,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		Now:      time.Now,
	}
}

// Sweep checks every in-progress ticket once and sends at most one reminder
// per stale ticket. Per-ticket failures are logged and do not stop the
// remaining iteration.
func (s *Scheduler) Sweep(ctx context.Context) {
	now := s.Now()

	tickets, err := s.store.ListByStatus(protocol.TicketInProgress)
	if err != nil {
		s.logger.Error("reminder sweep: listing in-progress tickets failed", "error", err)
		return
	}

	var sent int
	for _, t := range tickets {
		entry, ok := s.tracked.Lookup(t.ID)
		if !ok || !entry.Claimed() {
			// Claimed before this process started tracking; the entry, if
			// any, holds only UI messages and no claim bookkeeping.
			s.logger.Debug("no claim bookkeeping for ticket", "ticket", t.ID)
			continue
		}
		if s.cfg.RemindOnce && !entry.LastReminderAt.IsZero() {
			continue
		}

		reference := entry.LastReminderAt
		if reference.IsZero() {
			reference = entry.ClaimedAt
		}
		if now.Sub(reference) < s.cfg.Threshold {
			continue
		}

		msg := connector.OutboundMessage{
			ChatID:  strconv.FormatInt(entry.EngineerChatID, 10),
			Content: reminderText(t, now.Sub(entry.ClaimedAt)),
		}
		if _, err := s.notifier.Send(ctx, msg); err != nil {
			s.logger.Error("reminder delivery failed",
				"ticket", t.ID,
				"engineer", entry.EngineerChatID,
				"error", err,
			)
			continue
		}

		s.tracked.MarkReminded(t.ID, now)
		sent++
	}

	if sent > 0 {
		s.logger.Info("reminders sent", "count", sent)
	}
}

func reminderText(t *protocol.Ticket, sinceClaim time.Duration) string {
	return fmt.Sprintf(
		"⏰ **Ticket reminder**\n\n"+
			"You claimed ticket #%d %s.\n\n"+
			"🏛 **Exhibit:** %s\n"+
			"🔧 **Problem:** %s\n\n"+
			"Please don't forget to complete the ticket once the problem is solved!",
		t.ID, elapsedText(sinceClaim), t.Exhibit, t.Problem,
	)
}

// elapsedText renders a rounded-down "more than ..." phrase for how long the
// ticket has been held.
func elapsedText(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("more than %d h %d min ago", hours, minutes)
	}
	return fmt.Sprintf("more than %d min ago", minutes)
}
