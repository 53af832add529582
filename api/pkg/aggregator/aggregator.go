package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bigkevmcd/capomastro/api/pkg/store"
	"github.com/bigkevmcd/capomastro/api/pkg/types"
)

// Aggregator folds incoming builds into the project builds that are
// waiting on them.
type Aggregator struct {
	store   store.Store
	builder *Builder
}

func NewAggregator(store store.Store, builder *Builder) *Aggregator {
	return &Aggregator{
		store:   store,
		builder: builder,
	}
}

// ReconcileBuild processes a newly recorded build against every project
// that depends on its job. It updates tracked current builds, binds the
// build onto pending project builds with a matching build key, finalizes
// project builds that have all their builds in, and spins up automated
// project builds for auto-tracked projects that were not waiting.
//
// Safe to call more than once for the same build.
func (a *Aggregator) ReconcileBuild(ctx context.Context, buildID string) (string, error) {
	build, err := a.store.GetBuild(ctx, buildID)
	if err != nil {
		return "", fmt.Errorf("failed to get build %s: %w", buildID, err)
	}

	dependencies, err := a.store.ListDependenciesForJob(ctx, build.JobID)
	if err != nil {
		return "", err
	}
	if len(dependencies) == 0 {
		return build.ID, nil
	}

	for _, dependency := range dependencies {
		if err := a.reconcileDependency(ctx, build, dependency); err != nil {
			return "", fmt.Errorf("failed to reconcile dependency %s: %w", dependency.Name, err)
		}
	}

	return build.ID, nil
}

func (a *Aggregator) reconcileDependency(ctx context.Context, build *types.Build, dependency *types.Dependency) error {
	if err := a.trackCurrentBuild(ctx, build, dependency); err != nil {
		return err
	}

	// Projects already holding this build, or holding an open slot for
	// it, are excluded from automated project build creation below. The
	// snapshot has to cover both so that redelivering a notification
	// does not create a second project build.
	waiting, err := a.projectsWaitingFor(ctx, build, dependency)
	if err != nil {
		return err
	}

	touched, err := a.bindPendingRows(ctx, build, dependency)
	if err != nil {
		return err
	}
	for projectBuildID := range touched {
		if err := a.maybeFinalize(ctx, projectBuildID); err != nil {
			return err
		}
	}

	if build.Phase != types.BuildPhaseFinalized {
		return nil
	}
	return a.autoAggregate(ctx, build, dependency, waiting)
}

// trackCurrentBuild moves every auto-tracked project dependency onto the
// incoming build.
func (a *Aggregator) trackCurrentBuild(ctx context.Context, build *types.Build, dependency *types.Dependency) error {
	autoTrack := true
	tracked, err := a.store.ListProjectDependencies(ctx, &store.ListProjectDependenciesQuery{
		DependencyID: dependency.ID,
		AutoTrack:    &autoTrack,
	})
	if err != nil {
		return err
	}
	for _, pd := range tracked {
		if pd.CurrentBuildID != nil && *pd.CurrentBuildID == build.ID {
			continue
		}
		pd.CurrentBuildID = &build.ID
		if _, err := a.store.UpdateProjectDependency(ctx, pd); err != nil {
			return err
		}
		log.Debug().
			Str("project_id", pd.ProjectID).
			Str("dependency", dependency.Name).
			Str("build_id", build.ID).
			Msg("updated current build")
	}
	return nil
}

// projectsWaitingFor returns the projects that either have an unbound
// slot for the dependency on an incomplete project build, or have
// already bound this exact build somewhere.
func (a *Aggregator) projectsWaitingFor(ctx context.Context, build *types.Build, dependency *types.Dependency) (map[string]bool, error) {
	rows, err := a.store.ListProjectBuildDependencies(ctx, &store.ListProjectBuildDependenciesQuery{
		DependencyID: dependency.ID,
	})
	if err != nil {
		return nil, err
	}

	waiting := map[string]bool{}
	for _, row := range rows {
		unbound := row.BuildID == nil
		boundToThis := row.BuildID != nil && *row.BuildID == build.ID
		if !unbound && !boundToThis {
			continue
		}
		projectBuild, err := a.store.GetProjectBuild(ctx, row.ProjectBuildID)
		if err != nil {
			return nil, err
		}
		if boundToThis || projectBuild.Status == types.ProjectBuildStatusIncomplete {
			waiting[projectBuild.ProjectID] = true
		}
	}
	return waiting, nil
}

// bindPendingRows binds the build onto unbound dependency rows of project
// builds sharing the build's key, returning the ids of the project builds
// that now hold it.
func (a *Aggregator) bindPendingRows(ctx context.Context, build *types.Build, dependency *types.Dependency) (map[string]bool, error) {
	touched := map[string]bool{}
	if build.BuildKey == "" {
		return touched, nil
	}

	projectBuilds, err := a.store.ListProjectBuilds(ctx, &store.ListProjectBuildsQuery{
		BuildKey: build.BuildKey,
	})
	if err != nil {
		return nil, err
	}

	for _, projectBuild := range projectBuilds {
		rows, err := a.store.ListProjectBuildDependencies(ctx, &store.ListProjectBuildDependenciesQuery{
			ProjectBuildID: projectBuild.ID,
			DependencyID:   dependency.ID,
		})
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if row.BuildID != nil {
				if *row.BuildID == build.ID {
					touched[projectBuild.ID] = true
				}
				// bound once, never rebound
				continue
			}
			row.BuildID = &build.ID
			if _, err := a.store.UpdateProjectBuildDependency(ctx, row); err != nil {
				return nil, err
			}
			touched[projectBuild.ID] = true
			log.Info().
				Str("build_key", build.BuildKey).
				Str("dependency", dependency.Name).
				Str("project_build_id", projectBuild.ID).
				Msg("bound build to project build")
		}
	}
	return touched, nil
}

// maybeFinalize completes the project build if every dependency row has a
// finalized build. Already completed project builds are left alone.
func (a *Aggregator) maybeFinalize(ctx context.Context, projectBuildID string) error {
	projectBuild, err := a.store.GetProjectBuild(ctx, projectBuildID)
	if err != nil {
		return err
	}
	if projectBuild.Status != types.ProjectBuildStatusIncomplete {
		return nil
	}

	rows, err := a.store.ListProjectBuildDependencies(ctx, &store.ListProjectBuildDependenciesQuery{
		ProjectBuildID: projectBuild.ID,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	status := types.ProjectBuildStatusSuccess
	for _, row := range rows {
		if row.BuildID == nil {
			return nil
		}
		build, err := a.store.GetBuild(ctx, *row.BuildID)
		if err != nil {
			return err
		}
		if build.Phase != types.BuildPhaseFinalized {
			return nil
		}
		if build.Status != types.BuildStatusSuccess {
			status = types.ProjectBuildStatusFailure
		}
	}

	now := time.Now()
	projectBuild.Status = status
	projectBuild.Phase = types.BuildPhaseFinalized
	projectBuild.EndedAt = &now
	if _, err := a.store.UpdateProjectBuild(ctx, projectBuild); err != nil {
		return err
	}

	log.Info().
		Str("project_build_id", projectBuild.ID).
		Str("build_key", projectBuild.BuildKey).
		Str("status", string(status)).
		Msg("finalized project build")
	return nil
}

// autoAggregate creates an automated project build for every auto-tracked
// project that was not already waiting on the dependency, binding the
// incoming build into it directly.
func (a *Aggregator) autoAggregate(ctx context.Context, build *types.Build, dependency *types.Dependency, waiting map[string]bool) error {
	autoTrack := true
	tracked, err := a.store.ListProjectDependencies(ctx, &store.ListProjectDependenciesQuery{
		DependencyID: dependency.ID,
		AutoTrack:    &autoTrack,
	})
	if err != nil {
		return err
	}

	for _, pd := range tracked {
		if waiting[pd.ProjectID] {
			continue
		}

		projectBuild, err := a.builder.RequestBuild(ctx, pd.ProjectID, BuildOptions{
			DependencyIDs: []string{dependency.ID},
			Automated:     true,
			QueueBuild:    false,
		})
		if err != nil {
			return err
		}

		rows, err := a.store.ListProjectBuildDependencies(ctx, &store.ListProjectBuildDependenciesQuery{
			ProjectBuildID: projectBuild.ID,
			DependencyID:   dependency.ID,
		})
		if err != nil {
			return err
		}
		for _, row := range rows {
			if row.BuildID != nil {
				continue
			}
			row.BuildID = &build.ID
			if _, err := a.store.UpdateProjectBuildDependency(ctx, row); err != nil {
				return err
			}
		}

		log.Info().
			Str("project_id", pd.ProjectID).
			Str("build_key", projectBuild.BuildKey).
			Str("dependency", dependency.Name).
			Msg("created automated project build")

		if err := a.maybeFinalize(ctx, projectBuild.ID); err != nil {
			return err
		}
	}
	return nil
}
