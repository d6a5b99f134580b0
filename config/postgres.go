package config

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func NewPostgres(cfg PostgresConfig, l *logrus.Logger) (*gorm.DB, error) {
	if cfg.URI == "" {
		return nil, errors.New("POSTGRES_URI environment variable is not set")
	}

	level := gormlogger.Warn
	if l != nil && l.IsLevelEnabled(logrus.DebugLevel) {
		level = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.URI), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}
