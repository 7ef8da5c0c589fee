package reminder

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fixbot-io/fixbot/internal/connector"
	"github.com/fixbot-io/fixbot/internal/ticket"
	"github.com/fixbot-io/fixbot/internal/tracking"
	"github.com/fixbot-io/fixbot/pkg/protocol"
)

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []connector.OutboundMessage
	fails map[string]bool // chat id → always fail
}

func (f *fakeNotifier) Send(_ context.Context, msg connector.OutboundMessage) (connector.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails[msg.ChatID] {
		return connector.MessageRef{}, errors.New("delivery failed")
	}
	f.sent = append(f.sent, msg)
	return connector.MessageRef{ChatID: msg.ChatID, MessageID: "1"}, nil
}

func (f *fakeNotifier) Edit(_ context.Context, _ connector.MessageRef, _ string) error { return nil }
func (f *fakeNotifier) Delete(_ context.Context, _ connector.MessageRef) error         { return nil }

type fixture struct {
	sched    *Scheduler
	store    *ticket.SQLiteStore
	tracked  *tracking.Registry
	notifier *fakeNotifier
	claimed  time.Time
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	store, err := ticket.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { store.DB().Close() })

	f := &fixture{
		store:    store,
		tracked:  tracking.New(),
		notifier: &fakeNotifier{fails: map[string]bool{}},
		claimed:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.sched = New(store, f.tracked, f.notifier, cfg, nil)
	return f
}

// claimTicket creates a ticket, moves it to in_progress, and tracks the claim.
func (f *fixture) claimTicket(t *testing.T, engineerChatID int64) int64 {
	t.Helper()
	id, err := f.store.Create("Telescope", "won't rotate", protocol.Identity{Handle: "@anna", ID: 100})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ok, err := f.store.Transition(id, protocol.TicketNew, protocol.TicketInProgress, ticket.TransitionFields{
		EngineerHandle: "@boris",
		EngineerName:   "Boris",
	})
	if err != nil || !ok {
		t.Fatalf("transition: ok=%v err=%v", ok, err)
	}
	f.tracked.StartTracking(id, engineerChatID, f.claimed)
	return id
}

func (f *fixture) sweepAt(at time.Time) {
	f.sched.Now = func() time.Time { return at }
	f.sched.Sweep(context.Background())
}

func TestSweep_BeforeThreshold(t *testing.T) {
	f := newFixture(t, Config{Threshold: 30 * time.Minute})
	f.claimTicket(t, 500)

	f.sweepAt(f.claimed.Add(30*time.Minute - time.Second))
	if len(f.notifier.sent) != 0 {
		t.Fatalf("sent = %v", f.notifier.sent)
	}
}

func TestSweep_AfterThreshold(t *testing.T) {
	f := newFixture(t, Config{Threshold: 30 * time.Minute})
	f.claimTicket(t, 500)

	f.sweepAt(f.claimed.Add(30*time.Minute + time.Second))
	if len(f.notifier.sent) != 1 {
		t.Fatalf("sent %d reminders, want 1", len(f.notifier.sent))
	}
	msg := f.notifier.sent[0]
	if msg.ChatID != "500" {
		t.Errorf("chat = %q", msg.ChatID)
	}
	if !strings.Contains(msg.Content, "#1") || !strings.Contains(msg.Content, "Telescope") {
		t.Errorf("content = %q", msg.Content)
	}
}

func TestSweep_SecondSweepBeforeThresholdSendsNothing(t *testing.T) {
	f := newFixture(t, Config{Threshold: 30 * time.Minute})
	f.claimTicket(t, 500)

	f.sweepAt(f.claimed.Add(31 * time.Minute))
	f.sweepAt(f.claimed.Add(40 * time.Minute))
	if len(f.notifier.sent) != 1 {
		t.Fatalf("sent %d reminders, want 1", len(f.notifier.sent))
	}

	// After another full threshold from the first reminder, it repeats.
	f.sweepAt(f.claimed.Add(62 * time.Minute))
	if len(f.notifier.sent) != 2 {
		t.Fatalf("sent %d reminders, want 2", len(f.notifier.sent))
	}
}

func TestSweep_RemindOnce(t *testing.T) {
	f := newFixture(t, Config{Threshold: 30 * time.Minute, RemindOnce: true})
	f.claimTicket(t, 500)

	f.sweepAt(f.claimed.Add(31 * time.Minute))
	f.sweepAt(f.claimed.Add(3 * time.Hour))
	if len(f.notifier.sent) != 1 {
		t.Fatalf("sent %d reminders, want 1", len(f.notifier.sent))
	}
}

func TestSweep_SkipsUntrackedTickets(t *testing.T) {
	f := newFixture(t, Config{Threshold: 30 * time.Minute})
	id := f.claimTicket(t, 500)
	f.tracked.Remove(id)

	f.sweepAt(f.claimed.Add(2 * time.Hour))
	if len(f.notifier.sent) != 0 {
		t.Fatalf("sent = %v", f.notifier.sent)
	}
}

func TestSweep_SkipsMessagesOnlyEntry(t *testing.T) {
	f := newFixture(t, Config{Threshold: 30 * time.Minute})

	// A ticket claimed before this process started: in_progress in the store,
	// but nobody called StartTracking. Listing it for engineers tracks its
	// card message, leaving an entry with no claim bookkeeping.
	id, err := f.store.Create("Telescope", "won't rotate", protocol.Identity{Handle: "@anna", ID: 100})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ok, err := f.store.Transition(id, protocol.TicketNew, protocol.TicketInProgress, ticket.TransitionFields{
		EngineerHandle: "@boris",
		EngineerName:   "Boris",
	})
	if err != nil || !ok {
		t.Fatalf("transition: ok=%v err=%v", ok, err)
	}
	f.tracked.Track(id, connector.MessageRef{ChatID: "600", MessageID: "41"})

	f.sweepAt(f.claimed.Add(2 * time.Hour))
	if len(f.notifier.sent) != 0 {
		t.Fatalf("sent %d reminders, want 0; first = %+v", len(f.notifier.sent), f.notifier.sent[0])
	}
}

func TestSweep_FailureDoesNotStopSweep(t *testing.T) {
	f := newFixture(t, Config{Threshold: 30 * time.Minute})
	f.claimTicket(t, 500)
	f.claimTicket(t, 501)
	f.notifier.fails["500"] = true

	f.sweepAt(f.claimed.Add(31 * time.Minute))
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].ChatID != "501" {
		t.Fatalf("sent = %v", f.notifier.sent)
	}

	// The failed ticket was not marked reminded and retries next sweep.
	f.notifier.fails["500"] = false
	f.sweepAt(f.claimed.Add(32 * time.Minute))
	var chats []string
	for _, m := range f.notifier.sent {
		chats = append(chats, m.ChatID)
	}
	if len(f.notifier.sent) != 2 {
		t.Fatalf("chats = %v", chats)
	}
}

func TestSweep_SkipsCompletedBetweenListAndDispatch(t *testing.T) {
	f := newFixture(t, Config{Threshold: 30 * time.Minute})
	id := f.claimTicket(t, 500)

	// Ticket completes; its tracking entry is purged with it.
	f.store.Transition(id, protocol.TicketInProgress, protocol.TicketCompleted, ticket.TransitionFields{Resolution: "done"})
	f.tracked.Remove(id)

	f.sweepAt(f.claimed.Add(2 * time.Hour))
	if len(f.notifier.sent) != 0 {
		t.Fatalf("sent = %v", f.notifier.sent)
	}
}

func TestElapsedText(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{31 * time.Minute, "more than 31 min ago"},
		{90 * time.Minute, "more than 1 h 30 min ago"},
		{2*time.Hour + 5*time.Minute, "more than 2 h 5 min ago"},
	}
	for _, c := range cases {
		if got := elapsedText(c.d); got != c.want {
			t.Errorf("elapsedText(%v) = %q, want %q", c.d, got, c.want)
		}
	}
}
