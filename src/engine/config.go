package engine

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Config carries the product's payout and threshold constants. The source
// product shipped several mutually inconsistent versions of these numbers,
// so they are configuration, not invariants; defaults follow the most
// complete variant.
type Config struct {
	// Automated mode credits margin plus this percent of margin, regardless
	// of price movement. Deliberate scripted product behavior.
	AutomatedPayoutPct float64 `envconfig:"AUTOMATED_PAYOUT_PCT" default:"92"`
	// Normal-mode wins credit margin plus this percent of margin. The live
	// indicative PnL shown while the position is open is cosmetic.
	ProfitPct float64 `envconfig:"PROFIT_PCT" default:"378"`

	MinMargin     float64       `envconfig:"MIN_MARGIN" default:"10000"`
	MaxLeverage   int           `envconfig:"MAX_LEVERAGE" default:"125"`
	MinDuration   time.Duration `envconfig:"MIN_DURATION" default:"30s"`
	MaxOpenPos    int           `envconfig:"MAX_OPEN_POSITIONS" default:"1"`
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1s"`

	MinDeposit            float64 `envconfig:"MIN_DEPOSIT" default:"500000"`
	MinWithdraw           float64 `envconfig:"MIN_WITHDRAW" default:"12000000"`
	WithdrawCommissionPct float64 `envconfig:"WITHDRAW_COMMISSION_PCT" default:"15"`

	Pairs []string `envconfig:"TRADING_PAIRS" default:"BTCUSDT,ETHUSDT,BNBUSDT,SOLUSDT,XRPUSDT,ADAUSDT"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

func (c Config) PairSupported(pair string) bool {
	for _, p := range c.Pairs {
		if p == pair {
			return true
		}
	}
	return false
}

func (c Config) automatedPayout(margin decimal.Decimal) decimal.Decimal {
	return margin.Mul(decimal.NewFromFloat(c.AutomatedPayoutPct)).Div(decimal.NewFromInt(100))
}

func (c Config) profitPayout(margin decimal.Decimal) decimal.Decimal {
	return margin.Mul(decimal.NewFromFloat(c.ProfitPct)).Div(decimal.NewFromInt(100))
}
