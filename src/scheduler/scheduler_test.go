package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradeclient/src/model"
)

type recordingSettler struct {
	mu     sync.Mutex
	calls  []Trigger
	byID   map[string]int
	err    error
	fired  chan string
}

func newRecordingSettler() *recordingSettler {
	return &recordingSettler{
		byID:  map[string]int{},
		fired: make(chan string, 16),
	}
}

func (r *recordingSettler) Settle(_ context.Context, id string, trigger Trigger) error {
	r.mu.Lock()
	r.calls = append(r.calls, trigger)
	r.byID[id]++
	r.mu.Unlock()
	r.fired <- id
	return r.err
}

func (r *recordingSettler) count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id]
}

func (r *recordingSettler) lastTrigger() Trigger {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return ""
	}
	return r.calls[len(r.calls)-1]
}

type staticStore struct {
	mu        sync.Mutex
	positions []model.SimPosition
}

func (s *staticStore) List() []model.SimPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SimPosition(nil), s.positions...)
}

func (s *staticStore) set(positions ...model.SimPosition) {
	s.mu.Lock()
	s.positions = positions
	s.mu.Unlock()
}

func expiringPosition(id string, in time.Duration) model.SimPosition {
	now := time.Now()
	return model.SimPosition{
		ID:         id,
		Pair:       "BTCUSDT",
		Direction:  model.DirectionLong,
		EntryPrice: decimal.RequireFromString("50000"),
		Margin:     decimal.RequireFromString("10000"),
		Leverage:   10,
		OpenedAt:   now.Add(-time.Minute),
		ExpiresAt:  now.Add(in),
	}
}

func waitFired(t *testing.T, settler *recordingSettler, id string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-settler.fired:
			if got == id {
				return
			}
		case <-deadline:
			t.Fatalf("settlement for %s never fired", id)
		}
	}
}

func TestArmFiresAtDeadline(t *testing.T) {
	settler := newRecordingSettler()
	sched := NewExpiryScheduler(settler, &staticStore{}, time.Hour)

	sched.Arm(expiringPosition("a", 20*time.Millisecond))

	waitFired(t, settler, "a")
	if got := settler.lastTrigger(); got != TriggerTimer {
		t.Fatalf("expected timer trigger, got %q", got)
	}
}

func TestArmPastDeadlineFiresImmediately(t *testing.T) {
	settler := newRecordingSettler()
	sched := NewExpiryScheduler(settler, &staticStore{}, time.Hour)

	// Deadline already missed, as after a long-closed page.
	sched.Arm(expiringPosition("a", -time.Minute))

	waitFired(t, settler, "a")
	if got := settler.lastTrigger(); got != TriggerRecovery {
		t.Fatalf("expected recovery trigger, got %q", got)
	}
}

func TestCancelStopsPendingTimer(t *testing.T) {
	settler := newRecordingSettler()
	sched := NewExpiryScheduler(settler, &staticStore{}, time.Hour)

	sched.Arm(expiringPosition("a", 30*time.Millisecond))
	sched.Cancel("a")

	time.Sleep(80 * time.Millisecond)
	if n := settler.count("a"); n != 0 {
		t.Fatalf("cancelled timer still fired %d time(s)", n)
	}
}

func TestRearmReplacesPendingTimer(t *testing.T) {
	settler := newRecordingSettler()
	sched := NewExpiryScheduler(settler, &staticStore{}, time.Hour)

	sched.Arm(expiringPosition("a", 25*time.Millisecond))
	sched.Arm(expiringPosition("a", 50*time.Millisecond))

	waitFired(t, settler, "a")
	time.Sleep(80 * time.Millisecond)
	if n := settler.count("a"); n != 1 {
		t.Fatalf("expected exactly one settlement after re-arm, got %d", n)
	}
}

func TestSweepCatchesExpiredPositions(t *testing.T) {
	settler := newRecordingSettler()
	positions := &staticStore{}
	positions.set(
		expiringPosition("expired", -time.Second),
		expiringPosition("live", time.Hour),
	)
	sched := NewExpiryScheduler(settler, positions, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Start(ctx)

	waitFired(t, settler, "expired")
	if got := settler.lastTrigger(); got != TriggerSweep {
		t.Fatalf("expected sweep trigger, got %q", got)
	}
	if n := settler.count("live"); n != 0 {
		t.Fatalf("sweep settled a live position %d time(s)", n)
	}
}

func TestRecoverArmsAllOpenPositions(t *testing.T) {
	settler := newRecordingSettler()
	positions := &staticStore{}
	positions.set(
		expiringPosition("a", -time.Second),
		expiringPosition("b", 20*time.Millisecond),
	)
	sched := NewExpiryScheduler(settler, positions, time.Hour)

	sched.Recover()

	waitFired(t, settler, "a")
	waitFired(t, settler, "b")
}

func TestSettlementConflictIsSilentlyIgnored(t *testing.T) {
	settler := newRecordingSettler()
	settler.err = model.ErrSettlementConflict
	positions := &staticStore{}
	positions.set(expiringPosition("a", -time.Second))
	sched := NewExpiryScheduler(settler, positions, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Start(ctx)

	// Conflicts mean another trigger already claimed the id; the sweep keeps
	// running without treating it as a failure.
	waitFired(t, settler, "a")
	waitFired(t, settler, "a")
}
