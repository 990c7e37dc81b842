package database

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	SessionDBPath string `envconfig:"SESSION_DB_PATH" default:"tradeclient_session.db"`
	GormLogLevel  int    `envconfig:"GORM_LOG_LEVEL" default:"2"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
