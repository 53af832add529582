package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/bigkevmcd/capomastro/api/pkg/system"
	"github.com/bigkevmcd/capomastro/api/pkg/types"
)

func (s *PostgresStore) CreateDependency(ctx context.Context, dependency *types.Dependency) (*types.Dependency, error) {
	if dependency.ID == "" {
		dependency.ID = system.GenerateDependencyID()
	}
	dependency.CreatedAt = time.Now()
	if err := s.gdb.WithContext(ctx).Create(dependency).Error; err != nil {
		return nil, fmt.Errorf("error creating dependency: %w", err)
	}
	return dependency, nil
}

func (s *PostgresStore) GetDependency(ctx context.Context, id string) (*types.Dependency, error) {
	if id == "" {
		return nil, fmt.Errorf("dependency ID is required")
	}
	var dependency types.Dependency
	err := s.gdb.WithContext(ctx).Where("id = ?", id).First(&dependency).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &dependency, nil
}

// ListDependenciesForJob returns every dependency backed by the job.
// Multiple dependencies can share a job, and a build of that job satisfies
// all of them.
func (s *PostgresStore) ListDependenciesForJob(ctx context.Context, jobID string) ([]*types.Dependency, error) {
	var dependencies []*types.Dependency
	err := s.gdb.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("name ASC").
		Find(&dependencies).Error
	if err != nil {
		return nil, fmt.Errorf("error listing dependencies for job: %w", err)
	}
	return dependencies, nil
}
