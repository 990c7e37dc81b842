package ledger

import (
	"context"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// RemoteLedger applies a direct balance delta remotely and returns the new
// authoritative balance. connectors.LedgerClient satisfies it.
type RemoteLedger interface {
	UpdateBalance(ctx context.Context, amountChange decimal.Decimal) (decimal.Decimal, error)
}

// BalanceCache receives the authoritative balance after every round-trip.
// session.State satisfies it.
type BalanceCache interface {
	SetAuthoritativeBalance(b decimal.Decimal)
}

// MutationFunc performs one remote balance-mutating call and returns the new
// authoritative balance.
type MutationFunc func(ctx context.Context) (decimal.Decimal, error)

type balanceOp struct {
	ctx   context.Context
	fn    MutationFunc
	reply chan balanceResult
}

type balanceResult struct {
	balance decimal.Decimal
	err     error
}

// BalanceReconciler serializes every balance-mutating operation (open-margin
// debit, settlement credit, deposit, withdrawal) into a strict FIFO so two
// concurrent operations can never compute against a stale pre-update balance.
// A single worker goroutine drains the queue; each caller blocks until its
// own op completed against the remote ledger. After every successful call the
// local cache is overwritten with the server figure, discarding local drift;
// on failure the cache keeps its last-known value.
type BalanceReconciler struct {
	remote RemoteLedger
	cache  BalanceCache
	ops    chan balanceOp
}

func NewBalanceReconciler(remote RemoteLedger, cache BalanceCache) *BalanceReconciler {
	return &BalanceReconciler{
		remote: remote,
		cache:  cache,
		ops:    make(chan balanceOp, 16),
	}
}

// Start drains the queue until ctx is cancelled. Ops still queued at
// shutdown fail with the context error.
func (r *BalanceReconciler) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.drainFailed(ctx)
			return
		case op := <-r.ops:
			op.reply <- r.run(op)
		}
	}
}

// Do queues an arbitrary balance-mutating remote call behind everything
// already queued and waits for its authoritative result.
func (r *BalanceReconciler) Do(ctx context.Context, fn MutationFunc) (decimal.Decimal, error) {
	op := balanceOp{ctx: ctx, fn: fn, reply: make(chan balanceResult, 1)}

	select {
	case r.ops <- op:
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	}

	// The worker replies exactly once; the buffered channel keeps it from
	// blocking if we give up first.
	select {
	case res := <-op.reply:
		return res.balance, res.err
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	}
}

// ApplyDelta queues a direct delta against the remote ledger (deposits,
// withdrawals, admin corrections).
func (r *BalanceReconciler) ApplyDelta(ctx context.Context, delta decimal.Decimal) (decimal.Decimal, error) {
	return r.Do(ctx, func(ctx context.Context) (decimal.Decimal, error) {
		return r.remote.UpdateBalance(ctx, delta)
	})
}

func (r *BalanceReconciler) run(op balanceOp) balanceResult {
	if err := op.ctx.Err(); err != nil {
		return balanceResult{err: err}
	}

	balance, err := op.fn(op.ctx)
	if err != nil {
		logger.WithError(err).Warn("balance mutation failed, keeping last-known balance")
		return balanceResult{err: err}
	}

	// Server value always overrides local arithmetic.
	r.cache.SetAuthoritativeBalance(balance)
	return balanceResult{balance: balance}
}

func (r *BalanceReconciler) drainFailed(ctx context.Context) {
	for {
		select {
		case op := <-r.ops:
			op.reply <- balanceResult{err: ctx.Err()}
		default:
			return
		}
	}
}
