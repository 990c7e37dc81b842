package marketdata

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"5s"`
	// Half-width of the synthetic random walk used while the source is down,
	// as a fraction of the last known price.
	DegradedWalkPct float64 `envconfig:"DEGRADED_WALK_PCT" default:"0.005"`
	// Seed price used when the source is down before any fetch succeeded.
	FallbackSeedPrice float64 `envconfig:"FALLBACK_SEED_PRICE" default:"50000"`
	EnableStream      bool    `envconfig:"ENABLE_PRICE_STREAM" default:"true"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
