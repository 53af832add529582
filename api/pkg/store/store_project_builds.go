package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bigkevmcd/capomastro/api/pkg/system"
	"github.com/bigkevmcd/capomastro/api/pkg/types"
)

func (s *PostgresStore) CreateProjectBuild(ctx context.Context, pb *types.ProjectBuild) (*types.ProjectBuild, error) {
	if pb.ID == "" {
		pb.ID = system.GenerateProjectBuildID()
	}
	if pb.Status == "" {
		pb.Status = types.ProjectBuildStatusIncomplete
	}
	if pb.RequestedAt.IsZero() {
		pb.RequestedAt = time.Now()
	}
	pb.CreatedAt = time.Now()
	if err := s.gdb.WithContext(ctx).Create(pb).Error; err != nil {
		return nil, fmt.Errorf("error creating project build: %w", err)
	}
	return pb, nil
}

func (s *PostgresStore) GetProjectBuild(ctx context.Context, id string) (*types.ProjectBuild, error) {
	if id == "" {
		return nil, fmt.Errorf("project build ID is required")
	}
	var pb types.ProjectBuild
	err := s.gdb.WithContext(ctx).Where("id = ?", id).First(&pb).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &pb, nil
}

func (s *PostgresStore) UpdateProjectBuild(ctx context.Context, pb *types.ProjectBuild) (*types.ProjectBuild, error) {
	if pb.ID == "" {
		return nil, fmt.Errorf("project build ID is required")
	}
	pb.UpdatedAt = time.Now()
	if err := s.gdb.WithContext(ctx).Save(pb).Error; err != nil {
		return nil, fmt.Errorf("error updating project build: %w", err)
	}
	return pb, nil
}

func (s *PostgresStore) ListProjectBuilds(ctx context.Context, q *ListProjectBuildsQuery) ([]*types.ProjectBuild, error) {
	query := s.gdb.WithContext(ctx).Model(&types.ProjectBuild{})
	if q.ProjectID != "" {
		query = query.Where("project_id = ?", q.ProjectID)
	}
	if q.BuildKey != "" {
		query = query.Where("build_key = ?", q.BuildKey)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}

	var pbs []*types.ProjectBuild
	if err := query.Order("requested_at DESC").Find(&pbs).Error; err != nil {
		return nil, fmt.Errorf("error listing project builds: %w", err)
	}
	return pbs, nil
}

// NextProjectBuildNumber allocates the next per-day sequence number for a
// project's build key. Allocation goes through a counter row held under a
// row lock for the duration of the transaction, so concurrent requests on
// the same project can never observe the same number.
func (s *PostgresStore) NextProjectBuildNumber(ctx context.Context, projectID string, day time.Time) (int, error) {
	dayKey := day.UTC().Format("20060102")

	var next int
	err := s.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "day"}},
			DoNothing: true,
		}).Create(&types.ProjectBuildCounter{
			ProjectID: projectID,
			Day:       dayKey,
		}).Error
		if err != nil {
			return fmt.Errorf("error ensuring counter row: %w", err)
		}

		query := tx.Where("project_id = ? AND day = ?", projectID, dayKey)
		if tx.Dialector.Name() == "postgres" {
			// sqlite serializes writers already, the row lock only
			// matters on postgres.
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var counter types.ProjectBuildCounter
		if err := query.First(&counter).Error; err != nil {
			return fmt.Errorf("error locking counter row: %w", err)
		}

		next = counter.Counter
		counter.Counter++
		if err := tx.Save(&counter).Error; err != nil {
			return fmt.Errorf("error incrementing counter: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (s *PostgresStore) CreateProjectBuildDependency(ctx context.Context, pbd *types.ProjectBuildDependency) (*types.ProjectBuildDependency, error) {
	if pbd.ID == "" {
		pbd.ID = system.GenerateProjectBuildDependencyID()
	}
	pbd.CreatedAt = time.Now()
	if err := s.gdb.WithContext(ctx).Create(pbd).Error; err != nil {
		return nil, fmt.Errorf("error creating project build dependency: %w", err)
	}
	return pbd, nil
}

func (s *PostgresStore) GetProjectBuildDependency(ctx context.Context, id string) (*types.ProjectBuildDependency, error) {
	if id == "" {
		return nil, fmt.Errorf("project build dependency ID is required")
	}
	var pbd types.ProjectBuildDependency
	err := s.gdb.WithContext(ctx).Where("id = ?", id).First(&pbd).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &pbd, nil
}

func (s *PostgresStore) UpdateProjectBuildDependency(ctx context.Context, pbd *types.ProjectBuildDependency) (*types.ProjectBuildDependency, error) {
	if pbd.ID == "" {
		return nil, fmt.Errorf("project build dependency ID is required")
	}
	pbd.UpdatedAt = time.Now()
	if err := s.gdb.WithContext(ctx).Save(pbd).Error; err != nil {
		return nil, fmt.Errorf("error updating project build dependency: %w", err)
	}
	return pbd, nil
}

func (s *PostgresStore) ListProjectBuildDependencies(ctx context.Context, q *ListProjectBuildDependenciesQuery) ([]*types.ProjectBuildDependency, error) {
	query := s.gdb.WithContext(ctx).Model(&types.ProjectBuildDependency{})
	if q.ProjectBuildID != "" {
		query = query.Where("project_build_id = ?", q.ProjectBuildID)
	}
	if q.DependencyID != "" {
		query = query.Where("dependency_id = ?", q.DependencyID)
	}
	if q.BuildID != "" {
		query = query.Where("build_id = ?", q.BuildID)
	}
	if q.Unbound {
		query = query.Where("build_id IS NULL")
	}

	var pbds []*types.ProjectBuildDependency
	if err := query.Order("created_at ASC").Find(&pbds).Error; err != nil {
		return nil, fmt.Errorf("error listing project build dependencies: %w", err)
	}
	return pbds, nil
}
