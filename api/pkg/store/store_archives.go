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

func (s *PostgresStore) CreateArchive(ctx context.Context, archive *types.Archive) (*types.Archive, error) {
	if archive.ID == "" {
		archive.ID = system.GenerateArchiveID()
	}
	archive.CreatedAt = time.Now()
	if err := s.gdb.WithContext(ctx).Create(archive).Error; err != nil {
		return nil, fmt.Errorf("error creating archive: %w", err)
	}
	return archive, nil
}

func (s *PostgresStore) GetArchive(ctx context.Context, id string) (*types.Archive, error) {
	if id == "" {
		return nil, fmt.Errorf("archive ID is required")
	}
	var archive types.Archive
	err := s.gdb.WithContext(ctx).Where("id = ?", id).First(&archive).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &archive, nil
}

// GetDefaultArchive returns the archive used for automatic post-build
// processing. ErrNotFound when no archive is marked default is an expected
// condition for callers, not a failure.
func (s *PostgresStore) GetDefaultArchive(ctx context.Context) (*types.Archive, error) {
	var archive types.Archive
	err := s.gdb.WithContext(ctx).Where("is_default = ?", true).First(&archive).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &archive, nil
}

func (s *PostgresStore) CreateArchiveArtifact(ctx context.Context, item *types.ArchiveArtifact) (*types.ArchiveArtifact, error) {
	if item.ID == "" {
		item.ID = system.GenerateArchiveArtifactID()
	}
	item.CreatedAt = time.Now()
	if err := s.gdb.WithContext(ctx).Create(item).Error; err != nil {
		return nil, fmt.Errorf("error creating archive artifact: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) GetArchiveArtifact(ctx context.Context, id string) (*types.ArchiveArtifact, error) {
	if id == "" {
		return nil, fmt.Errorf("archive artifact ID is required")
	}
	var item types.ArchiveArtifact
	err := s.gdb.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *PostgresStore) UpdateArchiveArtifact(ctx context.Context, item *types.ArchiveArtifact) (*types.ArchiveArtifact, error) {
	if item.ID == "" {
		return nil, fmt.Errorf("archive artifact ID is required")
	}
	item.UpdatedAt = time.Now()
	if err := s.gdb.WithContext(ctx).Save(item).Error; err != nil {
		return nil, fmt.Errorf("error updating archive artifact: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListArchiveArtifacts(ctx context.Context, q *ListArchiveArtifactsQuery) ([]*types.ArchiveArtifact, error) {
	query := s.gdb.WithContext(ctx).Model(&types.ArchiveArtifact{})
	if q.ArchiveID != "" {
		query = query.Where("archive_id = ?", q.ArchiveID)
	}
	if q.BuildID != "" {
		query = query.Where("build_id = ?", q.BuildID)
	}
	if q.Unarchived {
		query = query.Where("archived_at IS NULL")
	}
	if !q.CreatedBefore.IsZero() {
		query = query.Where("created_at < ?", q.CreatedBefore)
	}

	var items []*types.ArchiveArtifact
	if err := query.Order("created_at ASC, id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("error listing archive artifacts: %w", err)
	}
	return items, nil
}
