package store

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/bigkevmcd/capomastro/api/pkg/config"
	"github.com/bigkevmcd/capomastro/api/pkg/types"
)

type PostgresStore struct {
	cfg config.Store

	gdb *gorm.DB
}

var _ Store = &PostgresStore{}

func NewPostgresStore(cfg config.Store) (*PostgresStore, error) {
	sslMode := "disable"
	if cfg.SSL {
		sslMode = "require"
	}
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		cfg.Host, cfg.Username, cfg.Password, cfg.Database, cfg.Port, sslMode,
	)

	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: NewGormLogger(500*time.Millisecond, true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.IdleConns)
	sqlDB.SetConnMaxLifetime(cfg.MaxConnLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	store := &PostgresStore{
		cfg: cfg,
		gdb: gormDB,
	}

	if cfg.AutoMigrate {
		if err := store.autoMigrate(); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return store, nil
}

func (s *PostgresStore) autoMigrate() error {
	return s.gdb.AutoMigrate(
		&types.JenkinsServer{},
		&types.Job{},
		&types.Dependency{},
		&types.Project{},
		&types.ProjectDependency{},
		&types.Build{},
		&types.Artifact{},
		&types.ProjectBuild{},
		&types.ProjectBuildDependency{},
		&types.ProjectBuildCounter{},
		&types.Archive{},
		&types.ArchiveArtifact{},
		&types.User{},
	)
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
