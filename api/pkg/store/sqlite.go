package store

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewSQLiteStore opens a SQLite backed store. Used by the test suite and
// for single-node development deployments; production uses postgres.
func NewSQLiteStore(path string) (*PostgresStore, error) {
	gormDB, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: NewGormLogger(500*time.Millisecond, true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	store := &PostgresStore{
		gdb: gormDB,
	}

	if err := store.autoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}
