package marketdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// Streamer is a blocking per-pair price subscription.
// connectors.TickerStream satisfies it.
type Streamer interface {
	Run(ctx context.Context, pair string, onPrice func(decimal.Decimal)) error
}

const streamRedialWait = 5 * time.Second

// RunStream keeps a streaming subscription alive for the selected pair,
// redialing after drops and after instrument switches. Polling continues
// independently, so a dead stream only costs refresh latency.
func (f *Feed) RunStream(ctx context.Context, streamer Streamer) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pair := f.selector.Pair()
		if pair == "" {
			sleepCtx(ctx, streamRedialWait)
			continue
		}

		streamCtx, cancel := context.WithCancel(ctx)
		go f.cancelOnPairChange(streamCtx, cancel, pair)

		err := streamer.Run(streamCtx, pair, func(price decimal.Decimal) {
			f.Observe(pair, price)
		})
		cancel()

		if ctx.Err() != nil {
			return
		}
		logger.WithError(err).WithField("pair", pair).
			Debug("ticker stream ended, redialing")
		sleepCtx(ctx, streamRedialWait)
	}
}

func (f *Feed) cancelOnPairChange(ctx context.Context, cancel context.CancelFunc, pair string) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if f.selector.Pair() != pair {
				cancel()
				return
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
