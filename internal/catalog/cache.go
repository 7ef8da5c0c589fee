// Package catalog caches the authorized-engineer roster and the exhibit →
// known-problems catalog as a single atomically swapped snapshot.
package catalog

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/fixbot-io/fixbot/internal/ticket"
)

// Source provides the roster and catalog rows, typically a ticket.Store.
type Source interface {
	ListEngineers() ([]ticket.Engineer, error)
	ListExhibits() ([]ticket.Exhibit, error)
}

// Snapshot is one internally consistent (roster, catalog) pair.
type Snapshot struct {
	Engineers map[int64]string // chat id → roster name
	Exhibits  []ticket.Exhibit
}

// Cache holds the current snapshot. Readers always see a complete pair;
// a failed refresh leaves the previous snapshot in place.
type Cache struct {
	source Source
	logger *slog.Logger
	snap   atomic.Pointer[Snapshot]
}

// New creates a cache seeded with an empty snapshot. Call Refresh to load.
func New(source Source, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{source: source, logger: logger}
	c.snap.Store(&Snapshot{Engineers: map[int64]string{}})
	return c
}

// Refresh rebuilds the snapshot wholesale from the source and swaps it in.
// On failure the prior snapshot stays and the error is logged.
func (c *Cache) Refresh() error {
	engineers, err := c.source.ListEngineers()
	if err != nil {
		c.logger.Error("roster refresh failed, keeping previous snapshot", "error", err)
		return fmt.Errorf("catalog: refresh roster: %w", err)
	}
	exhibits, err := c.source.ListExhibits()
	if err != nil {
		c.logger.Error("catalog refresh failed, keeping previous snapshot", "error", err)
		return fmt.Errorf("catalog: refresh exhibits: %w", err)
	}

	roster := make(map[int64]string, len(engineers))
	for _, e := range engineers {
		roster[e.ChatID] = e.Name
	}
	c.snap.Store(&Snapshot{Engineers: roster, Exhibits: exhibits})

	c.logger.Info("catalog refreshed", "engineers", len(roster), "exhibits", len(exhibits))
	return nil
}

// IsEngineer reports whether the chat id belongs to the roster.
func (c *Cache) IsEngineer(chatID int64) bool {
	_, ok := c.snap.Load().Engineers[chatID]
	return ok
}

// EngineerName returns the roster display name for a chat id, or "".
func (c *Cache) EngineerName(chatID int64) string {
	return c.snap.Load().Engineers[chatID]
}

// Exhibits returns the exhibit catalog in catalog order.
func (c *Cache) Exhibits() []ticket.Exhibit {
	return c.snap.Load().Exhibits
}

// Problems returns the known problem templates for an exhibit.
func (c *Cache) Problems(exhibit string) []string {
	for _, e := range c.snap.Load().Exhibits {
		if e.Name == exhibit {
			return e.Problems
		}
	}
	return nil
}
