package repository

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"agrolink/internal/domain/entity"
)

// OpenDatabase opens the relational store behind the persistence gateway.
func OpenDatabase(driver, dsn string, debug bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	logMode := gormlogger.Silent
	if debug {
		logMode = gormlogger.Warn
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gormlogger.Default.LogMode(logMode),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		// SQLite allows one writer; serialize through a single connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// AutoMigrate creates or updates every table the realtime core touches.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.ProductChat{},
		&entity.ChatParticipant{},
		&entity.Message{},
		&entity.SupportChat{},
		&entity.SupportMessage{},
		&entity.Agent{},
		&entity.Notification{},
	)
}
