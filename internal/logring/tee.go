package logring

import (
	"context"
	"log/slog"
)

// TeeHandler is an slog.Handler that captures every record into a Ring and
// forwards it to a wrapped handler.
type TeeHandler struct {
	next   slog.Handler
	ring   *Ring
	attrs  []slog.Attr
	groups []string
}

// Tee wraps next so records land in ring as well.
func Tee(next slog.Handler, ring *Ring) *TeeHandler {
	return &TeeHandler{next: next, ring: ring}
}

// Enabled always reports true: the ring captures every level even when the
// wrapped handler filters some out.
func (h *TeeHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *TeeHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]any)
	for _, a := range h.attrs {
		attrs[h.qualify(a.Key)] = flatten(a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[h.qualify(a.Key)] = flatten(a.Value)
		return true
	})
	if len(attrs) == 0 {
		attrs = nil
	}

	h.ring.Append(Record{
		Time:    r.Time,
		Level:   r.Level.String(),
		Message: r.Message,
		Attrs:   attrs,
	})

	// The wrapped handler keeps its own level filter.
	if h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *TeeHandler) qualify(key string) string {
	for _, g := range h.groups {
		key = g + "." + key
	}
	return key
}

// flatten resolves slog values into JSON-safe types. Errors become strings
// so they don't marshal to {}.
func flatten(v slog.Value) any {
	raw := v.Resolve().Any()
	if err, ok := raw.(error); ok {
		return err.Error()
	}
	return raw
}

func (h *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TeeHandler{
		next:   h.next.WithAttrs(attrs),
		ring:   h.ring,
		attrs:  append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...),
		groups: h.groups,
	}
}

func (h *TeeHandler) WithGroup(name string) slog.Handler {
	return &TeeHandler{
		next:   h.next.WithGroup(name),
		ring:   h.ring,
		attrs:  h.attrs,
		groups: append(h.groups[:len(h.groups):len(h.groups)], name),
	}
}
