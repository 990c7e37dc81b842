package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradeclient/src/connectors"
	"tradeclient/src/model"
)

// OpenRequest is a user intent to open a simulated position.
type OpenRequest struct {
	Pair      string
	Direction model.Direction
	Margin    decimal.Decimal
	Leverage  int
	Duration  time.Duration
}

// Open validates the intent, debits the margin through the reconciler, and
// admits the position to the store with its expiry timer armed. Validation
// failures surface before anything is mutated.
func (e *SettlementEngine) Open(ctx context.Context, req OpenRequest) (*model.SimPosition, error) {
	if !e.session.Authenticated() {
		return nil, model.ErrSessionInvalid
	}
	if err := e.validateOpen(req); err != nil {
		return nil, err
	}

	price := e.feed.CurrentFor(req.Pair)
	if price.IsZero() {
		return nil, fmt.Errorf("no reference price for %s: %w", req.Pair, model.ErrNetworkFailure)
	}

	// The remote create debits the margin and is serialized with every
	// other balance mutation.
	var resp *connectors.OpenPositionResponse
	_, err := e.reconciler.Do(ctx, func(ctx context.Context) (decimal.Decimal, error) {
		var err error
		resp, err = e.ledger.OpenPosition(ctx, connectors.OpenPositionRequest{
			Type:            string(req.Direction),
			Amount:          req.Margin,
			Leverage:        req.Leverage,
			DurationSeconds: int64(req.Duration / time.Second),
			CurrentPrice:    price,
			Pair:            req.Pair,
		})
		if err != nil {
			return decimal.Zero, err
		}
		return resp.NewBalance, nil
	})
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	pos := model.SimPosition{
		ID:         uuid.NewString(),
		RemoteID:   resp.PositionID,
		Pair:       req.Pair,
		Direction:  req.Direction,
		EntryPrice: price,
		Margin:     req.Margin,
		Leverage:   req.Leverage,
		Notional:   req.Margin.Mul(decimal.NewFromInt(int64(req.Leverage))),
		OpenedAt:   now,
		ExpiresAt:  now.Add(req.Duration),
	}
	if resp.OpenedAt > 0 && resp.ExpiresAt > resp.OpenedAt {
		pos.OpenedAt = time.UnixMilli(resp.OpenedAt).UTC()
		pos.ExpiresAt = time.UnixMilli(resp.ExpiresAt).UTC()
	}

	if err := e.store.Open(ctx, pos); err != nil {
		// The margin is already committed remotely; refund it rather than
		// leaving an orphaned debit.
		if _, refundErr := e.reconciler.ApplyDelta(ctx, req.Margin); refundErr != nil {
			logger.WithError(refundErr).WithField("position_id", pos.ID).
				Error("failed to refund margin after rejected open")
		}
		return nil, err
	}

	if e.timers != nil {
		e.timers.Arm(pos)
	}

	logger.WithFields(logger.Fields{
		"position_id": pos.ID,
		"pair":        pos.Pair,
		"direction":   pos.Direction,
		"margin":      pos.Margin,
		"leverage":    pos.Leverage,
		"expires_at":  pos.ExpiresAt,
	}).Info("position opened")

	return &pos, nil
}

func (e *SettlementEngine) validateOpen(req OpenRequest) error {
	switch {
	case !req.Direction.Valid():
		return fmt.Errorf("%w: unknown direction %q", model.ErrInvalidPosition, req.Direction)
	case !e.cfg.PairSupported(req.Pair):
		return fmt.Errorf("%w: unsupported pair %q", model.ErrInvalidPosition, req.Pair)
	case req.Margin.LessThan(decimal.NewFromFloat(e.cfg.MinMargin)):
		return fmt.Errorf("%w: margin below minimum %.0f", model.ErrInvalidPosition, e.cfg.MinMargin)
	case req.Leverage < 1 || req.Leverage > e.cfg.MaxLeverage:
		return fmt.Errorf("%w: leverage must be 1..%d", model.ErrInvalidPosition, e.cfg.MaxLeverage)
	case req.Duration < e.cfg.MinDuration:
		return fmt.Errorf("%w: duration below minimum %s", model.ErrInvalidPosition, e.cfg.MinDuration)
	case req.Margin.GreaterThan(e.session.Balance()):
		return model.ErrInsufficientBalance
	case e.cfg.MaxOpenPos > 0 && e.store.Len() >= e.cfg.MaxOpenPos:
		return fmt.Errorf("%w: %d position(s) already open", model.ErrInvalidPosition, e.cfg.MaxOpenPos)
	}
	return nil
}

// Deposit applies a credit against the remote ledger.
func (e *SettlementEngine) Deposit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.LessThan(decimal.NewFromFloat(e.cfg.MinDeposit)) {
		return decimal.Zero, fmt.Errorf("%w: deposit below minimum %.0f", model.ErrInvalidPosition, e.cfg.MinDeposit)
	}
	return e.reconciler.ApplyDelta(ctx, amount)
}

// Withdraw debits the requested amount plus the product's commission.
func (e *SettlementEngine) Withdraw(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.LessThan(decimal.NewFromFloat(e.cfg.MinWithdraw)) {
		return decimal.Zero, fmt.Errorf("%w: withdrawal below minimum %.0f", model.ErrInvalidPosition, e.cfg.MinWithdraw)
	}

	commission := amount.Mul(decimal.NewFromFloat(e.cfg.WithdrawCommissionPct)).Div(decimal.NewFromInt(100))
	total := amount.Add(commission)
	if total.GreaterThan(e.session.Balance()) {
		return decimal.Zero, model.ErrInsufficientBalance
	}

	return e.reconciler.ApplyDelta(ctx, total.Neg())
}

// RefreshBalance pulls the authoritative balance into the session cache.
func (e *SettlementEngine) RefreshBalance(ctx context.Context) (decimal.Decimal, error) {
	balance, err := e.ledger.GetBalance(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	e.session.SetAuthoritativeBalance(balance)
	return balance, nil
}

// SyncRemote merges ledger-side open positions missing from the local store,
// so a reload on a fresh browser/profile still recovers in-flight positions.
// Local entries the ledger no longer knows are left to expire normally.
func (e *SettlementEngine) SyncRemote(ctx context.Context) error {
	remote, err := e.ledger.ActivePositions(ctx)
	if err != nil {
		return err
	}

	for _, rp := range remote {
		if rp.Status != "" && rp.Status != "open" {
			continue
		}
		if e.haveRemote(rp.PositionID) {
			continue
		}

		margin := rp.Amount
		pos := model.SimPosition{
			ID:         uuid.NewString(),
			RemoteID:   rp.PositionID,
			Pair:       rp.Pair,
			Direction:  model.Direction(rp.Type),
			EntryPrice: rp.CurrentPrice,
			Margin:     margin,
			Leverage:   rp.Leverage,
			Notional:   margin.Mul(decimal.NewFromInt(int64(max(rp.Leverage, 1)))),
			OpenedAt:   time.UnixMilli(rp.OpenedAt).UTC(),
			ExpiresAt:  time.UnixMilli(rp.ExpiresAt).UTC(),
		}

		if err := e.store.Open(ctx, pos); err != nil {
			logger.WithError(err).WithField("remote_id", rp.PositionID).
				Warn("skipping remote position during recovery")
			continue
		}
		if e.timers != nil {
			e.timers.Arm(pos)
		}
	}

	return nil
}

func (e *SettlementEngine) haveRemote(remoteID string) bool {
	for _, p := range e.store.List() {
		if p.RemoteID == remoteID {
			return true
		}
	}
	return false
}

// Logout cancels all pending triggers and discards local session state.
// Remote-persisted positions stay recoverable on the next login.
func (e *SettlementEngine) Logout(ctx context.Context) {
	if e.timers != nil {
		e.timers.CancelAll()
	}
	e.store.Clear(ctx)
	e.session.Invalidate()
	logger.Info("session ended, local position state discarded")
}
