package database

import (
	"fmt"

	logger "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tradeclient/src/model"
)

// SessionDB is the local sqlite database backing the session-scoped
// key-value store. Best-effort persistence only: losing this file loses
// nothing the remote ledger cannot restore.
var SessionDB *gorm.DB

func InitSessionDB() error {
	config := GetConfig()

	db, err := gorm.Open(sqlite.Open(config.SessionDBPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.LogLevel(config.GormLogLevel)),
	})
	if err != nil {
		return fmt.Errorf("open session db %s: %w", config.SessionDBPath, err)
	}

	if err := db.AutoMigrate(&model.SessionEntry{}); err != nil {
		return fmt.Errorf("migrate session db: %w", err)
	}

	SessionDB = db
	logger.WithField("path", config.SessionDBPath).Info("session database initialized")
	return nil
}
