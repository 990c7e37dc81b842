package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradeclient/src/model"
)

// Trigger identifies which path asked for a settlement. Timer and sweep may
// race for the same id; the engine's claim set makes that harmless.
type Trigger string

const (
	TriggerTimer    Trigger = "timer"
	TriggerSweep    Trigger = "sweep"
	TriggerRecovery Trigger = "recovery"
	TriggerManual   Trigger = "manual"
)

// Settler finalizes a position. engine.SettlementEngine satisfies it.
type Settler interface {
	Settle(ctx context.Context, id string, trigger Trigger) error
}

// OpenPositions is the store view the sweep scans. store.PositionStore
// satisfies it.
type OpenPositions interface {
	List() []model.SimPosition
}

// ExpiryScheduler guarantees settlement is triggered at or after each open
// position's deadline. Per position it arms a one-shot timer for the
// remaining time; a coarse repeating sweep re-scans all open positions and
// catches anything the one-shot missed (timer drift, suspended process).
// Both paths call the same engine, whose claim set keeps them safely
// redundant.
type ExpiryScheduler struct {
	settler  Settler
	store    OpenPositions
	interval time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer

	// base ctx for timer-fired settlements, set by Start.
	ctx context.Context
}

func NewExpiryScheduler(settler Settler, store OpenPositions, sweepInterval time.Duration) *ExpiryScheduler {
	if sweepInterval <= 0 {
		sweepInterval = time.Second
	}
	return &ExpiryScheduler{
		settler:  settler,
		store:    store,
		interval: sweepInterval,
		timers:   make(map[string]*time.Timer),
		ctx:      context.Background(),
	}
}

// Start runs the sweep until ctx is cancelled, then cancels all timers.
func (s *ExpiryScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.CancelAll()
			logger.Info("expiry scheduler stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Arm schedules the one-shot settlement trigger for a position. A deadline
// already in the past fires immediately (missed while the client was gone).
// Re-arming an id replaces its pending timer.
func (s *ExpiryScheduler) Arm(p model.SimPosition) {
	remaining := time.Until(p.ExpiresAt)
	if remaining <= 0 {
		go s.fire(p.ID, TriggerRecovery)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[p.ID]; ok {
		old.Stop()
	}

	id := p.ID
	s.timers[id] = time.AfterFunc(remaining, func() {
		s.forget(id)
		s.fire(id, TriggerTimer)
	})
}

// Cancel drops the pending one-shot for an id, if any. Called when a
// position settles before its deadline so the timer cannot fire late.
func (s *ExpiryScheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

// CancelAll drops every pending trigger. Used on logout/shutdown.
func (s *ExpiryScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// Recover arms every persisted open position after a reload. Positions whose
// deadline passed while the client was gone settle immediately.
func (s *ExpiryScheduler) Recover() {
	for _, p := range s.store.List() {
		s.Arm(p)
	}
}

// sweep triggers settlement for any open position whose deadline has passed
// but whose one-shot did not fire.
func (s *ExpiryScheduler) sweep(ctx context.Context) {
	now := time.Now()
	for _, p := range s.store.List() {
		if p.Expired(now) {
			s.settle(ctx, p.ID, TriggerSweep)
		}
	}
}

func (s *ExpiryScheduler) fire(id string, trigger Trigger) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	s.settle(ctx, id, trigger)
}

func (s *ExpiryScheduler) settle(ctx context.Context, id string, trigger Trigger) {
	err := s.settler.Settle(ctx, id, trigger)
	if err == nil || errors.Is(err, model.ErrSettlementConflict) {
		return
	}

	// Failures are retryable: the engine unclaimed the id and the next
	// sweep tick will try again.
	logger.WithError(err).WithFields(logger.Fields{
		"position_id": id,
		"trigger":     trigger,
	}).Warn("settlement attempt failed")
}

func (s *ExpiryScheduler) forget(id string) {
	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()
}
