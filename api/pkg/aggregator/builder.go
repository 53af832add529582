package aggregator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bigkevmcd/capomastro/api/pkg/store"
	"github.com/bigkevmcd/capomastro/api/pkg/types"
)

// BuildQueuer schedules a Jenkins build of a dependency's job, carrying
// the project build key so the completion notification can be correlated.
type BuildQueuer interface {
	QueueBuild(ctx context.Context, dependency *types.Dependency, buildKey string, user *types.User) error
}

type BuildOptions struct {
	// DependencyIDs is the explicit set of dependencies to rebuild.
	// Empty means every dependency for a manual request, and none for an
	// automated one.
	DependencyIDs []string
	User          *types.User
	Automated     bool
	// QueueBuild controls whether fresh Jenkins builds are requested for
	// the rebuilt dependencies. The automated aggregation path and tests
	// pass false.
	QueueBuild bool
}

// Builder creates project builds, snapshotting the project's dependency
// set at request time.
type Builder struct {
	store  store.Store
	queuer BuildQueuer
}

func NewBuilder(store store.Store, queuer BuildQueuer) *Builder {
	return &Builder{
		store:  store,
		queuer: queuer,
	}
}

// GenerateBuildKey allocates the daily-unique key for a new build of the
// project, e.g. "20140312.1".
func (b *Builder) GenerateBuildKey(ctx context.Context, projectID string, now time.Time) (string, error) {
	number, err := b.store.NextProjectBuildNumber(ctx, projectID, now)
	if err != nil {
		return "", fmt.Errorf("failed to allocate build number: %w", err)
	}
	return now.UTC().Format("20060102") + "." + strconv.Itoa(number), nil
}

// RequestBuild creates a ProjectBuild along with one ProjectBuildDependency
// row per dependency of the project. Rebuilt dependencies stay unbound
// until their build arrives, everything else snapshots the build the
// project currently uses.
func (b *Builder) RequestBuild(ctx context.Context, projectID string, opts BuildOptions) (*types.ProjectBuild, error) {
	project, err := b.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", projectID, err)
	}

	projectDeps, err := b.store.ListProjectDependencies(ctx, &store.ListProjectDependenciesQuery{
		ProjectID: project.ID,
	})
	if err != nil {
		return nil, err
	}

	rebuild := make(map[string]bool, len(opts.DependencyIDs))
	for _, id := range opts.DependencyIDs {
		rebuild[id] = true
	}
	if len(opts.DependencyIDs) == 0 && !opts.Automated {
		for _, pd := range projectDeps {
			rebuild[pd.DependencyID] = true
		}
	}

	buildKey, err := b.GenerateBuildKey(ctx, project.ID, time.Now())
	if err != nil {
		return nil, err
	}

	var requestedBy *string
	if opts.User != nil {
		requestedBy = &opts.User.ID
	}

	projectBuild, err := b.store.CreateProjectBuild(ctx, &types.ProjectBuild{
		ProjectID:     project.ID,
		BuildKey:      buildKey,
		Status:        types.ProjectBuildStatusIncomplete,
		Phase:         types.BuildPhaseStarted,
		RequestedByID: requestedBy,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("project", project.Name).
		Str("build_key", buildKey).
		Bool("automated", opts.Automated).
		Msg("requested project build")

	for _, pd := range projectDeps {
		row := &types.ProjectBuildDependency{
			ProjectBuildID: projectBuild.ID,
			DependencyID:   pd.DependencyID,
		}
		if !rebuild[pd.DependencyID] {
			row.BuildID = b.snapshotBuild(ctx, pd)
		}
		if _, err := b.store.CreateProjectBuildDependency(ctx, row); err != nil {
			return nil, err
		}

		if rebuild[pd.DependencyID] && opts.QueueBuild {
			dependency, err := b.store.GetDependency(ctx, pd.DependencyID)
			if err != nil {
				return nil, err
			}
			if err := b.queuer.QueueBuild(ctx, dependency, buildKey, opts.User); err != nil {
				return nil, fmt.Errorf("failed to queue build of %s: %w", dependency.Name, err)
			}
		}
	}

	return projectBuild, nil
}

// snapshotBuild resolves the build a non-rebuilt dependency should reuse,
// the project's current build or failing that the latest finalized build
// of the dependency's job.
func (b *Builder) snapshotBuild(ctx context.Context, pd *types.ProjectDependency) *string {
	if pd.CurrentBuildID != nil {
		return pd.CurrentBuildID
	}

	dependency, err := b.store.GetDependency(ctx, pd.DependencyID)
	if err != nil || dependency.JobID == nil {
		return nil
	}
	build, err := b.store.GetLatestFinalizedBuild(ctx, *dependency.JobID)
	if err != nil {
		return nil
	}
	return &build.ID
}
