// Package logring keeps the most recent log records in memory so the ops
// API can serve them without touching disk.
package logring

import (
	"log/slog"
	"sync"
	"time"
)

// Record is one captured log line.
type Record struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Ring is a fixed-capacity buffer of log records. Once full, each append
// evicts the oldest record.
type Ring struct {
	mu   sync.Mutex
	buf  []Record
	next int
	full bool
}

// New creates a ring holding up to capacity records.
func New(capacity int) *Ring {
	return &Ring{buf: make([]Record, capacity)}
}

// Append adds a record, evicting the oldest when the ring is full.
func (r *Ring) Append(rec Record) {
	r.mu.Lock()
	r.buf[r.next] = rec
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()
}

// Recent returns records at or above minLevel logged since the given time,
// oldest first. A zero since means no time filter; limit <= 0 means no cap.
// When limit trims the result, the newest records win.
func (r *Ring) Recent(since time.Time, minLevel slog.Level, limit int) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	oldest, n := 0, r.next
	if r.full {
		oldest, n = r.next, len(r.buf)
	}

	var out []Record
	for i := 0; i < n; i++ {
		rec := r.buf[(oldest+i)%len(r.buf)]
		if !since.IsZero() && rec.Time.Before(since) {
			continue
		}
		if levelOf(rec.Level) < minLevel {
			continue
		}
		out = append(out, rec)
	}

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func levelOf(s string) slog.Level {
	switch s {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
