package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bigkevmcd/capomastro/api/pkg/store"
	"github.com/bigkevmcd/capomastro/api/pkg/types"
)

// Archiver plans and executes the archival of build artifacts, one
// ArchiveArtifact row per physical copy.
type Archiver struct {
	store      store.Store
	transports TransportFactory
}

func NewArchiver(store store.Store, transports TransportFactory) *Archiver {
	if transports == nil {
		transports = NewTransport
	}
	return &Archiver{
		store:      store,
		transports: transports,
	}
}

// AddBuild registers every artifact of the build with the archive. Each
// artifact gets one build-scoped item, plus one project-scoped item per
// project build dependency currently bound to the build. Items for the
// same artifact are returned adjacent, build-scoped copy first, so the
// caller can link instead of fetching twice. Already registered items are
// returned rather than duplicated.
func (a *Archiver) AddBuild(ctx context.Context, archiveID, buildID string) ([]*types.ArchiveArtifact, error) {
	archive, err := a.store.GetArchive(ctx, archiveID)
	if err != nil {
		return nil, err
	}
	build, err := a.store.GetBuild(ctx, buildID)
	if err != nil {
		return nil, err
	}
	job, err := a.store.GetJob(ctx, build.JobID)
	if err != nil {
		return nil, err
	}
	artifacts, err := a.store.ListArtifactsForBuild(ctx, build.ID)
	if err != nil {
		return nil, err
	}

	existing, err := a.store.ListArchiveArtifacts(ctx, &store.ListArchiveArtifactsQuery{
		ArchiveID: archive.ID,
		BuildID:   build.ID,
	})
	if err != nil {
		return nil, err
	}
	registered := make(map[string]*types.ArchiveArtifact, len(existing))
	for _, item := range existing {
		registered[itemKey(item.ArtifactID, item.ProjectBuildDependencyID)] = item
	}

	scopes, err := a.projectScopes(ctx, build)
	if err != nil {
		return nil, err
	}

	policy := PolicyFor(archive.Policy)
	items := []*types.ArchiveArtifact{}
	for _, artifact := range artifacts {
		item, err := a.registerItem(ctx, registered, &types.ArchiveArtifact{
			ArchiveID:  archive.ID,
			ArtifactID: artifact.ID,
			BuildID:    build.ID,
			ArchivedPath: policy(PathContext{
				JobName:     job.Name,
				BuildNumber: build.Number,
				Filename:    artifact.Filename,
			}),
		})
		if err != nil {
			return nil, err
		}
		items = append(items, item)

		for _, scope := range scopes {
			pbdID := scope.row.ID
			item, err := a.registerItem(ctx, registered, &types.ArchiveArtifact{
				ArchiveID:                archive.ID,
				ArtifactID:               artifact.ID,
				BuildID:                  build.ID,
				ProjectBuildDependencyID: &pbdID,
				ArchivedPath: policy(PathContext{
					JobName:        job.Name,
					BuildNumber:    build.Number,
					ProjectName:    scope.projectName,
					BuildKey:       scope.buildKey,
					DependencyName: scope.dependencyName,
					Filename:       artifact.Filename,
				}),
			})
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
	}

	log.Info().
		Str("archive", archive.Name).
		Str("build_id", build.ID).
		Int("items", len(items)).
		Msg("registered build with archive")
	return items, nil
}

func (a *Archiver) registerItem(ctx context.Context, registered map[string]*types.ArchiveArtifact, item *types.ArchiveArtifact) (*types.ArchiveArtifact, error) {
	if found, ok := registered[itemKey(item.ArtifactID, item.ProjectBuildDependencyID)]; ok {
		return found, nil
	}
	return a.store.CreateArchiveArtifact(ctx, item)
}

func itemKey(artifactID string, pbdID *string) string {
	if pbdID == nil {
		return artifactID
	}
	return artifactID + "/" + *pbdID
}

type projectScope struct {
	row            *types.ProjectBuildDependency
	projectName    string
	buildKey       string
	dependencyName string
}

func (a *Archiver) projectScopes(ctx context.Context, build *types.Build) ([]projectScope, error) {
	rows, err := a.store.ListProjectBuildDependencies(ctx, &store.ListProjectBuildDependenciesQuery{
		BuildID: build.ID,
	})
	if err != nil {
		return nil, err
	}

	scopes := make([]projectScope, 0, len(rows))
	for _, row := range rows {
		projectBuild, err := a.store.GetProjectBuild(ctx, row.ProjectBuildID)
		if err != nil {
			return nil, err
		}
		project, err := a.store.GetProject(ctx, projectBuild.ProjectID)
		if err != nil {
			return nil, err
		}
		dependency, err := a.store.GetDependency(ctx, row.DependencyID)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, projectScope{
			row:            row,
			projectName:    project.Name,
			buildKey:       projectBuild.BuildKey,
			dependencyName: dependency.Name,
		})
	}
	return scopes, nil
}

// ArchiveItem fetches one registered item into its archive. Items that
// have already been archived are left alone.
func (a *Archiver) ArchiveItem(ctx context.Context, itemID string) error {
	item, err := a.store.GetArchiveArtifact(ctx, itemID)
	if err != nil {
		return err
	}
	if item.ArchivedAt != nil {
		log.Debug().Str("item_id", item.ID).Msg("item already archived")
		return nil
	}

	archive, err := a.store.GetArchive(ctx, item.ArchiveID)
	if err != nil {
		return err
	}
	artifact, err := a.store.GetArtifact(ctx, item.ArtifactID)
	if err != nil {
		return err
	}
	build, err := a.store.GetBuild(ctx, item.BuildID)
	if err != nil {
		return err
	}
	creds, err := a.fetchCredentials(ctx, build)
	if err != nil {
		return err
	}

	transport, err := a.transports(archive)
	if err != nil {
		return err
	}
	if err := transport.Start(ctx); err != nil {
		return fmt.Errorf("failed to start transport: %w", err)
	}
	defer transport.End()

	size, err := transport.FetchAndStore(ctx, artifact.URL, creds, item.ArchivedPath)
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", artifact.Filename, err)
	}

	now := time.Now()
	item.ArchivedSize = &size
	item.ArchivedAt = &now
	if _, err := a.store.UpdateArchiveArtifact(ctx, item); err != nil {
		return err
	}

	return a.maybePromote(ctx, transport, item, build)
}

// LinkItems populates the destination item from an already archived
// source item for the same artifact, avoiding a second fetch.
func (a *Archiver) LinkItems(ctx context.Context, sourceID, destID string) error {
	source, err := a.store.GetArchiveArtifact(ctx, sourceID)
	if err != nil {
		return err
	}
	if source.ArchivedAt == nil {
		return fmt.Errorf("source item %s has not been archived", source.ID)
	}
	dest, err := a.store.GetArchiveArtifact(ctx, destID)
	if err != nil {
		return err
	}
	if dest.ArchivedAt != nil {
		log.Debug().Str("item_id", dest.ID).Msg("item already archived")
		return nil
	}

	archive, err := a.store.GetArchive(ctx, dest.ArchiveID)
	if err != nil {
		return err
	}
	build, err := a.store.GetBuild(ctx, dest.BuildID)
	if err != nil {
		return err
	}

	transport, err := a.transports(archive)
	if err != nil {
		return err
	}
	if err := transport.Start(ctx); err != nil {
		return fmt.Errorf("failed to start transport: %w", err)
	}
	defer transport.End()

	if err := transport.LinkPaths(ctx, source.ArchivedPath, dest.ArchivedPath); err != nil {
		return fmt.Errorf("failed to link %s to %s: %w", source.ArchivedPath, dest.ArchivedPath, err)
	}

	now := time.Now()
	dest.ArchivedSize = source.ArchivedSize
	dest.ArchivedAt = &now
	if _, err := a.store.UpdateArchiveArtifact(ctx, dest); err != nil {
		return err
	}

	return a.maybePromote(ctx, transport, dest, build)
}

// maybePromote marks the item's directory current once the build is
// final and, for project-scoped items, the owning project build has
// completed too.
func (a *Archiver) maybePromote(ctx context.Context, transport Transport, item *types.ArchiveArtifact, build *types.Build) error {
	if build.Phase != types.BuildPhaseFinalized {
		return nil
	}
	if item.ProjectBuildDependencyID != nil {
		row, err := a.store.GetProjectBuildDependency(ctx, *item.ProjectBuildDependencyID)
		if err != nil {
			return err
		}
		projectBuild, err := a.store.GetProjectBuild(ctx, row.ProjectBuildID)
		if err != nil {
			return err
		}
		if projectBuild.Status == types.ProjectBuildStatusIncomplete {
			return nil
		}
	}
	return transport.PromoteToCurrent(ctx, item.ArchivedPath)
}

// GenerateChecksums writes checksum files next to every archived item of
// the build in the default archive. A missing default archive is not an
// error, there is simply nothing to do.
func (a *Archiver) GenerateChecksums(ctx context.Context, buildID string) error {
	archive, err := a.store.GetDefaultArchive(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Info().Str("build_id", buildID).Msg("no default archive, skipping checksum generation")
			return nil
		}
		return err
	}

	items, err := a.store.ListArchiveArtifacts(ctx, &store.ListArchiveArtifactsQuery{
		ArchiveID: archive.ID,
		BuildID:   buildID,
	})
	if err != nil {
		return err
	}

	transport, err := a.transports(archive)
	if err != nil {
		return err
	}
	if err := transport.Start(ctx); err != nil {
		return fmt.Errorf("failed to start transport: %w", err)
	}
	defer transport.End()

	for _, item := range items {
		if item.ArchivedAt == nil {
			continue
		}
		if err := transport.GenerateChecksum(ctx, item.ArchivedPath); err != nil {
			return fmt.Errorf("failed to checksum %s: %w", item.ArchivedPath, err)
		}
	}
	return nil
}

func (a *Archiver) fetchCredentials(ctx context.Context, build *types.Build) (Credentials, error) {
	job, err := a.store.GetJob(ctx, build.JobID)
	if err != nil {
		return Credentials{}, err
	}
	server, err := a.store.GetJenkinsServer(ctx, job.ServerID)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{
		Username: server.Username,
		Password: server.Password,
	}, nil
}
