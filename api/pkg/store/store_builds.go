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

func (s *PostgresStore) CreateJenkinsServer(ctx context.Context, server *types.JenkinsServer) (*types.JenkinsServer, error) {
	if server.ID == "" {
		server.ID = system.GenerateServerID()
	}
	server.CreatedAt = time.Now()
	if err := s.gdb.WithContext(ctx).Create(server).Error; err != nil {
		return nil, fmt.Errorf("error creating jenkins server: %w", err)
	}
	return server, nil
}

func (s *PostgresStore) GetJenkinsServer(ctx context.Context, id string) (*types.JenkinsServer, error) {
	if id == "" {
		return nil, fmt.Errorf("server ID is required")
	}
	var server types.JenkinsServer
	err := s.gdb.WithContext(ctx).Where("id = ?", id).First(&server).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &server, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *types.Job) (*types.Job, error) {
	if job.ID == "" {
		job.ID = system.GenerateJobID()
	}
	job.CreatedAt = time.Now()
	if err := s.gdb.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("error creating job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*types.Job, error) {
	if id == "" {
		return nil, fmt.Errorf("job ID is required")
	}
	var job types.Job
	err := s.gdb.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (s *PostgresStore) GetJobByName(ctx context.Context, serverID, name string) (*types.Job, error) {
	var job types.Job
	err := s.gdb.WithContext(ctx).
		Where("server_id = ? AND name = ?", serverID, name).
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (s *PostgresStore) CreateBuild(ctx context.Context, build *types.Build) (*types.Build, error) {
	if build.ID == "" {
		build.ID = system.GenerateBuildID()
	}
	build.CreatedAt = time.Now()
	if err := s.gdb.WithContext(ctx).Create(build).Error; err != nil {
		return nil, fmt.Errorf("error creating build: %w", err)
	}
	return build, nil
}

func (s *PostgresStore) GetBuild(ctx context.Context, id string) (*types.Build, error) {
	if id == "" {
		return nil, fmt.Errorf("build ID is required")
	}
	var build types.Build
	err := s.gdb.WithContext(ctx).Where("id = ?", id).First(&build).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &build, nil
}

func (s *PostgresStore) UpdateBuild(ctx context.Context, build *types.Build) (*types.Build, error) {
	if build.ID == "" {
		return nil, fmt.Errorf("build ID is required")
	}
	build.UpdatedAt = time.Now()
	if err := s.gdb.WithContext(ctx).Save(build).Error; err != nil {
		return nil, fmt.Errorf("error updating build: %w", err)
	}
	return build, nil
}

func (s *PostgresStore) ListBuilds(ctx context.Context, q *ListBuildsQuery) ([]*types.Build, error) {
	query := s.gdb.WithContext(ctx).Model(&types.Build{})
	if q.JobID != "" {
		query = query.Where("job_id = ?", q.JobID)
	}
	if q.BuildKey != "" {
		query = query.Where("build_key = ?", q.BuildKey)
	}
	if q.Phase != "" {
		query = query.Where("phase = ?", q.Phase)
	}
	if q.Number != 0 {
		query = query.Where("number = ?", q.Number)
	}

	var builds []*types.Build
	if err := query.Order("number DESC").Find(&builds).Error; err != nil {
		return nil, fmt.Errorf("error listing builds: %w", err)
	}
	return builds, nil
}

// GetLatestFinalizedBuild returns the highest numbered FINALIZED build for
// a job, the build a dependency adopts when nothing newer has been
// requested.
func (s *PostgresStore) GetLatestFinalizedBuild(ctx context.Context, jobID string) (*types.Build, error) {
	var build types.Build
	err := s.gdb.WithContext(ctx).
		Where("job_id = ? AND phase = ?", jobID, types.BuildPhaseFinalized).
		Order("number DESC").
		First(&build).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &build, nil
}

func (s *PostgresStore) CreateArtifact(ctx context.Context, artifact *types.Artifact) (*types.Artifact, error) {
	if artifact.ID == "" {
		artifact.ID = system.GenerateArtifactID()
	}
	artifact.CreatedAt = time.Now()
	if err := s.gdb.WithContext(ctx).Create(artifact).Error; err != nil {
		return nil, fmt.Errorf("error creating artifact: %w", err)
	}
	return artifact, nil
}

func (s *PostgresStore) GetArtifact(ctx context.Context, id string) (*types.Artifact, error) {
	if id == "" {
		return nil, fmt.Errorf("artifact ID is required")
	}
	var artifact types.Artifact
	err := s.gdb.WithContext(ctx).Where("id = ?", id).First(&artifact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &artifact, nil
}

func (s *PostgresStore) ListArtifactsForBuild(ctx context.Context, buildID string) ([]*types.Artifact, error) {
	var artifacts []*types.Artifact
	err := s.gdb.WithContext(ctx).
		Where("build_id = ?", buildID).
		Order("filename ASC").
		Find(&artifacts).Error
	if err != nil {
		return nil, fmt.Errorf("error listing artifacts: %w", err)
	}
	return artifacts, nil
}
