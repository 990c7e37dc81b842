package engine

// SETTLEMENT STATE MACHINE
// Per id: open -> settling -> settled. The open -> settling transition is a
// check-and-insert on the claim set under one lock acquisition; that single
// step is what gives at-most-once semantics when the one-shot timer, the
// sweep and a manual close all race for the same id.

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradeclient/src/connectors"
	"tradeclient/src/ledger"
	"tradeclient/src/model"
	"tradeclient/src/pnl"
	"tradeclient/src/scheduler"
	"tradeclient/src/session"
	"tradeclient/src/store"
)

// SettlementLedger is the remote collaborator surface the engine needs.
// connectors.LedgerClient satisfies it.
type SettlementLedger interface {
	OpenPosition(ctx context.Context, req connectors.OpenPositionRequest) (*connectors.OpenPositionResponse, error)
	ClosePosition(ctx context.Context, req connectors.ClosePositionRequest) (*connectors.ClosePositionResponse, error)
	ActivePositions(ctx context.Context) ([]connectors.RemotePosition, error)
	SaveTradeHistory(ctx context.Context, rec model.TradeRecord) error
	GetBalance(ctx context.Context) (decimal.Decimal, error)
}

// PriceQuoter supplies the reference price. marketdata.Feed satisfies it.
type PriceQuoter interface {
	CurrentFor(pair string) decimal.Decimal
}

// TimerControl is the scheduler surface the engine drives. Set after
// construction because the scheduler also needs the engine as its Settler.
type TimerControl interface {
	Arm(p model.SimPosition)
	Cancel(id string)
	CancelAll()
}

type SettlementEngine struct {
	cfg        Config
	store      *store.PositionStore
	feed       PriceQuoter
	ledger     SettlementLedger
	reconciler *ledger.BalanceReconciler
	session    *session.State
	timers     TimerControl

	mu      sync.Mutex
	claimed map[string]struct{}

	now func() time.Time
}

func NewSettlementEngine(
	cfg Config,
	positions *store.PositionStore,
	feed PriceQuoter,
	remote SettlementLedger,
	reconciler *ledger.BalanceReconciler,
	state *session.State,
) *SettlementEngine {
	return &SettlementEngine{
		cfg:        cfg,
		store:      positions,
		feed:       feed,
		ledger:     remote,
		reconciler: reconciler,
		session:    state,
		claimed:    make(map[string]struct{}),
		now:        time.Now,
	}
}

// SetTimerControl wires the scheduler in once both sides exist.
func (e *SettlementEngine) SetTimerControl(t TimerControl) {
	e.timers = t
}

// Outcome is the realized result of one settlement.
type Outcome struct {
	PositionID string
	Direction  model.Direction
	Profit     decimal.Decimal // realized, signed; loss is capped at margin
	ROI        decimal.Decimal
	Credit     decimal.Decimal // amount returned to the balance
	NewBalance decimal.Decimal
}

// Settle finalizes a position. Safe to call concurrently and repeatedly for
// the same id from any trigger: the first caller claims the id, later ones
// get ErrSettlementConflict. On a retryable failure the id is unclaimed so
// the next sweep tick can try again.
func (e *SettlementEngine) Settle(ctx context.Context, id string, trigger scheduler.Trigger) error {
	pos, err := e.claim(id)
	if err != nil {
		return err
	}

	// Timer and claim set are independent; drop any pending one-shot so a
	// manual or sweep-triggered close cannot be followed by a late fire.
	if e.timers != nil {
		e.timers.Cancel(id)
	}

	outcome, err := e.settleClaimed(ctx, pos)
	if err != nil {
		// Retryable: give the id back so the next sweep tick re-attempts.
		e.unclaim(id)
		return err
	}

	logger.WithFields(logger.Fields{
		"position_id": id,
		"trigger":     trigger,
		"direction":   outcome.Direction,
		"profit":      outcome.Profit,
		"roi":         outcome.ROI,
		"credit":      outcome.Credit,
		"balance":     outcome.NewBalance,
	}).Info("position settled")

	return nil
}

// claim performs the open -> settling transition. The membership check and
// the insert happen under one lock acquisition with no remote call in
// between; that closes the duplicate-trigger race window.
func (e *SettlementEngine) claim(id string) (model.SimPosition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, busy := e.claimed[id]; busy {
		return model.SimPosition{}, fmt.Errorf("position %s: %w", id, model.ErrSettlementConflict)
	}

	pos, ok := e.store.Find(id)
	if !ok {
		// Already settled and removed, or never existed.
		return model.SimPosition{}, fmt.Errorf("position %s: %w", id, model.ErrSettlementConflict)
	}

	e.claimed[id] = struct{}{}
	return pos, nil
}

func (e *SettlementEngine) unclaim(id string) {
	e.mu.Lock()
	delete(e.claimed, id)
	e.mu.Unlock()
}

// settleClaimed runs steps 3-6 for a claimed position: resolve the outcome,
// apply the balance mutation through the reconciler, drop the position from
// the store, and record the realized trade.
func (e *SettlementEngine) settleClaimed(ctx context.Context, pos model.SimPosition) (*Outcome, error) {
	price := e.feed.CurrentFor(pos.Pair)
	outcome := e.resolveOutcome(pos, price)

	// The close round-trip is serialized with every other balance mutation.
	// Its response carries the authoritative balance.
	remoteID := pos.RemoteID
	if remoteID == "" {
		remoteID = pos.ID
	}
	newBalance, err := e.reconciler.Do(ctx, func(ctx context.Context) (decimal.Decimal, error) {
		resp, err := e.ledger.ClosePosition(ctx, connectors.ClosePositionRequest{
			PositionID:   remoteID,
			CurrentPrice: price,
			Pnl:          outcome.Profit,
		})
		if err != nil {
			return decimal.Zero, err
		}
		return resp.NewBalance, nil
	})
	if err != nil {
		return nil, err
	}
	outcome.NewBalance = newBalance

	// The ledger confirmed the close: from here settlement is final. The
	// local removal cannot fail, and a history hiccup must not trigger a
	// second settlement against an already-closed remote position.
	e.store.Remove(ctx, pos.ID)

	record := model.TradeRecord{
		PositionID: pos.ID,
		Pair:       pos.Pair,
		Type:       pos.Direction,
		Amount:     pos.Margin,
		Profit:     outcome.Profit,
		ROI:        outcome.ROI,
		ClosedAt:   e.now().UTC(),
	}
	if err := e.ledger.SaveTradeHistory(ctx, record); err != nil {
		logger.WithError(err).WithField("position_id", pos.ID).
			Warn("failed to record trade history")
	}

	return outcome, nil
}

// resolveOutcome maps a position to its realized result. The live indicative
// PnL and the realized amount are deliberately decoupled: display follows the
// market, settlement follows the product's fixed payout rules.
//
//   - automated: fixed payout, independent of price.
//   - long/short with negative live PnL: full loss of margin, never more.
//   - long/short with non-negative live PnL (zero included): margin back
//     plus the flat profit percentage.
//   - privileged accounts always take the profit branch.
func (e *SettlementEngine) resolveOutcome(pos model.SimPosition, price decimal.Decimal) *Outcome {
	out := &Outcome{PositionID: pos.ID, Direction: pos.Direction}

	switch {
	case pos.Direction == model.DirectionAutomated:
		out.Profit = e.cfg.automatedPayout(pos.Margin)
		out.ROI = decimal.NewFromFloat(e.cfg.AutomatedPayoutPct)
		out.Credit = pos.Margin.Add(out.Profit)

	case !e.session.IsAdmin() && pnl.Calculate(&pos, price).Diff.IsNegative():
		// Margin was already committed at open; the loss is realized by
		// crediting nothing back.
		out.Profit = pos.Margin.Neg()
		out.ROI = decimal.NewFromInt(-100)
		out.Credit = decimal.Zero

	default:
		out.Profit = e.cfg.profitPayout(pos.Margin)
		out.ROI = decimal.NewFromFloat(e.cfg.ProfitPct)
		out.Credit = pos.Margin.Add(out.Profit)
	}

	return out
}

// LivePnL is the indicative mark-to-market for display.
func (e *SettlementEngine) LivePnL(id string) (pnl.Result, error) {
	pos, ok := e.store.Find(id)
	if !ok {
		return pnl.Result{}, fmt.Errorf("position %s: %w", id, model.ErrInvalidPosition)
	}
	return pnl.Calculate(&pos, e.feed.CurrentFor(pos.Pair)), nil
}

// Settling reports whether an id is currently claimed. Test hook and debug
// surface.
func (e *SettlementEngine) Settling(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, busy := e.claimed[id]
	return busy
}

var _ scheduler.Settler = (*SettlementEngine)(nil)
