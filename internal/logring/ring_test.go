package logring

import (
	"bytes"
	"log/slog"
	"testing"
	"time"
)

func rec(t time.Time, level, msg string) Record {
	return Record{Time: t, Level: level, Message: msg}
}

func TestAppendAndRecent(t *testing.T) {
	r := New(10)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	r.Append(rec(base, "INFO", "one"))
	r.Append(rec(base.Add(time.Second), "INFO", "two"))

	got := r.Recent(time.Time{}, slog.LevelDebug, 0)
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Message != "one" || got[1].Message != "two" {
		t.Errorf("order = %q, %q", got[0].Message, got[1].Message)
	}
}

func TestEviction(t *testing.T) {
	r := New(3)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, msg := range []string{"a", "b", "c", "d"} {
		r.Append(rec(base.Add(time.Duration(i)*time.Second), "INFO", msg))
	}

	got := r.Recent(time.Time{}, slog.LevelDebug, 0)
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Message != "b" || got[2].Message != "d" {
		t.Errorf("expected oldest evicted, got %q..%q", got[0].Message, got[2].Message)
	}
}

func TestRecentFilters(t *testing.T) {
	r := New(10)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	r.Append(rec(base, "DEBUG", "noise"))
	r.Append(rec(base.Add(time.Minute), "WARN", "delete failed"))
	r.Append(rec(base.Add(2*time.Minute), "ERROR", "store down"))

	got := r.Recent(time.Time{}, slog.LevelWarn, 0)
	if len(got) != 2 {
		t.Fatalf("level filter: len = %d", len(got))
	}

	got = r.Recent(base.Add(90*time.Second), slog.LevelDebug, 0)
	if len(got) != 1 || got[0].Message != "store down" {
		t.Fatalf("since filter: %+v", got)
	}

	got = r.Recent(time.Time{}, slog.LevelDebug, 1)
	if len(got) != 1 || got[0].Message != "store down" {
		t.Fatalf("limit should keep newest: %+v", got)
	}
}

func TestTeeCapturesBelowInnerLevel(t *testing.T) {
	ring := New(10)
	var sink bytes.Buffer
	inner := slog.NewJSONHandler(&sink, &slog.HandlerOptions{Level: slog.LevelWarn})
	logger := slog.New(Tee(inner, ring))

	logger.Debug("quiet", "ticket", 7)
	logger.Error("loud", "error", "boom")

	got := ring.Recent(time.Time{}, slog.LevelDebug, 0)
	if len(got) != 2 {
		t.Fatalf("ring should capture all levels, got %d", len(got))
	}
	if got[0].Attrs["ticket"] != int64(7) {
		t.Errorf("attrs = %v", got[0].Attrs)
	}

	// The wrapped handler keeps its own filter.
	if out := sink.String(); !bytes.Contains([]byte(out), []byte("loud")) ||
		bytes.Contains([]byte(out), []byte("quiet")) {
		t.Errorf("inner output = %q", out)
	}
}

func TestTeeWithAttrsAndGroup(t *testing.T) {
	ring := New(10)
	inner := slog.NewJSONHandler(&bytes.Buffer{}, nil)
	logger := slog.New(Tee(inner, ring)).With("component", "sweep").WithGroup("job")

	logger.Info("fired", "name", "reminder-sweep")

	got := ring.Recent(time.Time{}, slog.LevelDebug, 0)
	if len(got) != 1 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Attrs["component"] != "sweep" {
		t.Errorf("pre-bound attr missing: %v", got[0].Attrs)
	}
	if got[0].Attrs["job.name"] != "reminder-sweep" {
		t.Errorf("grouped attr missing: %v", got[0].Attrs)
	}
}
