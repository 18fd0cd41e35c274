// Package db opens connections to the supported databases
package db

import (
	"errors"
	"fmt"
	"os"
	"time"

	"bitwise74/account-api/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	// Type is one of mongo, postgres or sqlite
	Type     string
	DSN      string
	MongoURI string
	Name     string
	Timeout  time.Duration
}

// NewSQL opens a gorm connection for the postgres and sqlite backends and
// migrates the account tables
func NewSQL(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Type {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		// If running in a docker container don't allow the sqlite file to be created.
		// The host should instead mount it using volumes
		if inDocker() {
			if _, err := os.Stat(cfg.DSN); errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("SQLite database file not mounted, please use docker volumes to mount it to %s", cfg.DSN)
			}
		}

		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported sql database type %q", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s database, %w", cfg.Type, err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(model.Account{}, model.RefreshToken{}, model.Follow{})
	if err != nil {
		return fmt.Errorf("failed to automigrate tables, %w", err)
	}

	return nil
}

func inDocker() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
}
