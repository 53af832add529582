package store

import (
	"context"
	"errors"
	"time"

	"github.com/bigkevmcd/capomastro/api/pkg/types"
)

// ErrNotFound is returned when an explicit lookup misses.
var ErrNotFound = errors.New("not found")

type ListProjectDependenciesQuery struct {
	ProjectID    string `json:"project_id"`
	DependencyID string `json:"dependency_id"`
	AutoTrack    *bool  `json:"auto_track"`
}

type ListBuildsQuery struct {
	JobID    string           `json:"job_id"`
	BuildKey string           `json:"build_key"`
	Phase    types.BuildPhase `json:"phase"`
	// Number filters on the jenkins build number, 0 means any.
	Number int `json:"number"`
}

type ListProjectBuildsQuery struct {
	ProjectID string                   `json:"project_id"`
	BuildKey  string                   `json:"build_key"`
	Status    types.ProjectBuildStatus `json:"status"`
}

type ListProjectBuildDependenciesQuery struct {
	ProjectBuildID string `json:"project_build_id"`
	DependencyID   string `json:"dependency_id"`
	BuildID        string `json:"build_id"`
	// Unbound selects rows that have no build bound yet.
	Unbound bool `json:"unbound"`
}

type ListArchiveArtifactsQuery struct {
	ArchiveID string `json:"archive_id"`
	BuildID   string `json:"build_id"`
	// Unarchived selects items that have never been fetched.
	Unarchived bool `json:"unarchived"`
	// CreatedBefore additionally filters on row creation time.
	CreatedBefore time.Time `json:"created_before"`
}


type Store interface {
	// jenkins servers and jobs
	CreateJenkinsServer(ctx context.Context, server *types.JenkinsServer) (*types.JenkinsServer, error)
	GetJenkinsServer(ctx context.Context, id string) (*types.JenkinsServer, error)
	CreateJob(ctx context.Context, job *types.Job) (*types.Job, error)
	GetJob(ctx context.Context, id string) (*types.Job, error)
	GetJobByName(ctx context.Context, serverID, name string) (*types.Job, error)

	// builds and artifacts
	CreateBuild(ctx context.Context, build *types.Build) (*types.Build, error)
	GetBuild(ctx context.Context, id string) (*types.Build, error)
	UpdateBuild(ctx context.Context, build *types.Build) (*types.Build, error)
	ListBuilds(ctx context.Context, q *ListBuildsQuery) ([]*types.Build, error)
	GetLatestFinalizedBuild(ctx context.Context, jobID string) (*types.Build, error)
	CreateArtifact(ctx context.Context, artifact *types.Artifact) (*types.Artifact, error)
	GetArtifact(ctx context.Context, id string) (*types.Artifact, error)
	ListArtifactsForBuild(ctx context.Context, buildID string) ([]*types.Artifact, error)

	// dependencies
	CreateDependency(ctx context.Context, dependency *types.Dependency) (*types.Dependency, error)
	GetDependency(ctx context.Context, id string) (*types.Dependency, error)
	ListDependenciesForJob(ctx context.Context, jobID string) ([]*types.Dependency, error)

	// projects
	CreateProject(ctx context.Context, project *types.Project) (*types.Project, error)
	GetProject(ctx context.Context, id string) (*types.Project, error)
	CreateProjectDependency(ctx context.Context, pd *types.ProjectDependency) (*types.ProjectDependency, error)
	UpdateProjectDependency(ctx context.Context, pd *types.ProjectDependency) (*types.ProjectDependency, error)
	ListProjectDependencies(ctx context.Context, q *ListProjectDependenciesQuery) ([]*types.ProjectDependency, error)

	// project builds
	CreateProjectBuild(ctx context.Context, pb *types.ProjectBuild) (*types.ProjectBuild, error)
	GetProjectBuild(ctx context.Context, id string) (*types.ProjectBuild, error)
	UpdateProjectBuild(ctx context.Context, pb *types.ProjectBuild) (*types.ProjectBuild, error)
	ListProjectBuilds(ctx context.Context, q *ListProjectBuildsQuery) ([]*types.ProjectBuild, error)
	NextProjectBuildNumber(ctx context.Context, projectID string, day time.Time) (int, error)
	CreateProjectBuildDependency(ctx context.Context, pbd *types.ProjectBuildDependency) (*types.ProjectBuildDependency, error)
	GetProjectBuildDependency(ctx context.Context, id string) (*types.ProjectBuildDependency, error)
	UpdateProjectBuildDependency(ctx context.Context, pbd *types.ProjectBuildDependency) (*types.ProjectBuildDependency, error)
	ListProjectBuildDependencies(ctx context.Context, q *ListProjectBuildDependenciesQuery) ([]*types.ProjectBuildDependency, error)

	// archives
	CreateArchive(ctx context.Context, archive *types.Archive) (*types.Archive, error)
	GetArchive(ctx context.Context, id string) (*types.Archive, error)
	GetDefaultArchive(ctx context.Context) (*types.Archive, error)
	CreateArchiveArtifact(ctx context.Context, item *types.ArchiveArtifact) (*types.ArchiveArtifact, error)
	GetArchiveArtifact(ctx context.Context, id string) (*types.ArchiveArtifact, error)
	UpdateArchiveArtifact(ctx context.Context, item *types.ArchiveArtifact) (*types.ArchiveArtifact, error)
	ListArchiveArtifacts(ctx context.Context, q *ListArchiveArtifactsQuery) ([]*types.ArchiveArtifact, error)

	// users
	CreateUser(ctx context.Context, user *types.User) (*types.User, error)
	GetUser(ctx context.Context, id string) (*types.User, error)

	Close() error
}
