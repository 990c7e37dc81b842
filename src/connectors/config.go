package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	LedgerBaseURL string        `envconfig:"LEDGER_BASE_URL" default:"http://localhost:8000"`
	LedgerTimeout time.Duration `envconfig:"LEDGER_TIMEOUT" default:"15s"`

	MarketWSBaseURL string        `envconfig:"MARKET_WS_BASE_URL" default:"wss://stream.binance.com:9443/ws"`
	MarketWSTimeout time.Duration `envconfig:"MARKET_WS_TIMEOUT" default:"15s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
