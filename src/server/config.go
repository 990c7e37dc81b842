package server

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config for the local intent API the presentation layer talks to.
type Config struct {
	Port string `envconfig:"PORT" default:"8787"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
