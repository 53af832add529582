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

func (s *PostgresStore) CreateProject(ctx context.Context, project *types.Project) (*types.Project, error) {
	if project.ID == "" {
		project.ID = system.GenerateProjectID()
	}
	project.CreatedAt = time.Now()
	if err := s.gdb.WithContext(ctx).Create(project).Error; err != nil {
		return nil, fmt.Errorf("error creating project: %w", err)
	}
	return project, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (*types.Project, error) {
	if id == "" {
		return nil, fmt.Errorf("project ID is required")
	}
	var project types.Project
	err := s.gdb.WithContext(ctx).Where("id = ?", id).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &project, nil
}

func (s *PostgresStore) CreateProjectDependency(ctx context.Context, pd *types.ProjectDependency) (*types.ProjectDependency, error) {
	if pd.ID == "" {
		pd.ID = system.GenerateProjectDependencyID()
	}
	pd.CreatedAt = time.Now()
	if err := s.gdb.WithContext(ctx).Create(pd).Error; err != nil {
		return nil, fmt.Errorf("error creating project dependency: %w", err)
	}
	return pd, nil
}

func (s *PostgresStore) UpdateProjectDependency(ctx context.Context, pd *types.ProjectDependency) (*types.ProjectDependency, error) {
	if pd.ID == "" {
		return nil, fmt.Errorf("project dependency ID is required")
	}
	pd.UpdatedAt = time.Now()
	if err := s.gdb.WithContext(ctx).Save(pd).Error; err != nil {
		return nil, fmt.Errorf("error updating project dependency: %w", err)
	}
	return pd, nil
}

func (s *PostgresStore) ListProjectDependencies(ctx context.Context, q *ListProjectDependenciesQuery) ([]*types.ProjectDependency, error) {
	query := s.gdb.WithContext(ctx).Model(&types.ProjectDependency{})
	if q.ProjectID != "" {
		query = query.Where("project_id = ?", q.ProjectID)
	}
	if q.DependencyID != "" {
		query = query.Where("dependency_id = ?", q.DependencyID)
	}
	if q.AutoTrack != nil {
		query = query.Where("auto_track = ?", *q.AutoTrack)
	}

	var pds []*types.ProjectDependency
	if err := query.Order("created_at ASC").Find(&pds).Error; err != nil {
		return nil, fmt.Errorf("error listing project dependencies: %w", err)
	}
	return pds, nil
}
