package marketdata

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// PriceSource is the pollable public price source. connectors.MarketClient
// satisfies it.
type PriceSource interface {
	LastPrice(pair string) (decimal.Decimal, error)
}

// PairSelector yields the currently selected instrument. session.State
// satisfies it.
type PairSelector interface {
	Pair() string
}

// Feed polls the public price source for the selected instrument on a fixed
// interval and exposes the latest price. On fetch failure it synthesizes a
// small random walk around the last known price so PnL display never stalls.
// Degraded prices are usable for UI continuity only; settlement amounts come
// from the engine's fixed payout rules, never from a synthesized price.
type Feed struct {
	source   PriceSource
	selector PairSelector
	cfg      Config
	rng      *rand.Rand

	mu       sync.RWMutex
	prices   map[string]decimal.Decimal
	degraded bool
}

func NewFeed(source PriceSource, selector PairSelector, cfg Config) *Feed {
	return &Feed{
		source:   source,
		selector: selector,
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		prices:   make(map[string]decimal.Decimal),
	}
}

// Start polls until ctx is cancelled. One immediate refresh, then the
// configured cadence.
func (f *Feed) Start(ctx context.Context) {
	f.refresh()

	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("price feed stopped")
			return
		case <-ticker.C:
			f.refresh()
		}
	}
}

// Current returns the latest price for the selected instrument, zero if
// none has been observed yet.
func (f *Feed) Current() decimal.Decimal {
	return f.CurrentFor(f.selector.Pair())
}

func (f *Feed) CurrentFor(pair string) decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.prices[pair]
}

// Degraded reports whether the last refresh fell back to a synthetic price.
func (f *Feed) Degraded() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.degraded
}

// Observe records a price pushed from the streaming source.
func (f *Feed) Observe(pair string, price decimal.Decimal) {
	if price.IsZero() {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[pair] = price
	f.degraded = false
}

func (f *Feed) refresh() {
	pair := f.selector.Pair()
	if pair == "" {
		return
	}

	price, err := f.source.LastPrice(pair)
	if err != nil || price.IsZero() {
		f.degrade(pair, err)
		return
	}

	f.mu.Lock()
	f.prices[pair] = price
	f.degraded = false
	f.mu.Unlock()
}

// degrade keeps the UI alive while the source is down: a small random walk
// around the last known price, seeded with a constant when nothing has been
// observed yet.
func (f *Feed) degrade(pair string, cause error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	last := f.prices[pair]
	if last.IsZero() {
		last = decimal.NewFromFloat(f.cfg.FallbackSeedPrice)
	}

	walk := (f.rng.Float64() - 0.5) * 2 * f.cfg.DegradedWalkPct
	f.prices[pair] = last.Mul(decimal.NewFromFloat(1 + walk))
	f.degraded = true

	logger.WithError(cause).WithField("pair", pair).
		Warn("price fetch failed, using synthesized price")
}
