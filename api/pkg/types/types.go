package types

import (
	"time"

	"gorm.io/datatypes"
)

// BuildPhase tracks the lifecycle notifications Jenkins sends for a build.
type BuildPhase string

const (
	BuildPhaseStarted   BuildPhase = "STARTED"
	BuildPhaseCompleted BuildPhase = "COMPLETED"
	BuildPhaseFinalized BuildPhase = "FINALIZED"
)

// TranslateBuildPhase maps the legacy FINISHED phase that older Jenkins
// notification plugins send onto FINALIZED.
func TranslateBuildPhase(phase string) BuildPhase {
	if phase == "FINISHED" {
		return BuildPhaseFinalized
	}
	return BuildPhase(phase)
}

type BuildStatus string

const (
	BuildStatusSuccess BuildStatus = "SUCCESS"
	BuildStatusFailure BuildStatus = "FAILURE"
	BuildStatusAborted BuildStatus = "ABORTED"
)

type ProjectBuildStatus string

const (
	ProjectBuildStatusIncomplete ProjectBuildStatus = "INCOMPLETE"
	ProjectBuildStatusSuccess    ProjectBuildStatus = "SUCCESS"
	ProjectBuildStatusFailure    ProjectBuildStatus = "FAILURE"
)

// JenkinsServer is a Jenkins instance we trigger builds on and receive
// notifications from.
type JenkinsServer struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"uniqueIndex"`
	URL       string    `json:"url" gorm:"uniqueIndex"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Job is a buildable Jenkins job on a specific server.
type Job struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	ServerID  string    `json:"server_id" gorm:"index:idx_jobs_server_name,unique"`
	Name      string    `json:"name" gorm:"index:idx_jobs_server_name,unique"`
	CreatedAt time.Time `json:"created_at"`
}

// Dependency names a job whose builds can satisfy project requirements.
type Dependency struct {
	ID          string `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"uniqueIndex"`
	Description string `json:"description"`
	// JobID is nil while the dependency has no backing job yet.
	JobID *string `json:"job_id" gorm:"index"`
	// Parameters are passed along when a build of this dependency is
	// queued, e.g. {"THISVALUE": "mako"}.
	Parameters datatypes.JSONMap `json:"parameters" gorm:"type:jsonb"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Project is a named set of dependencies aggregated together.
type Project struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"uniqueIndex"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectDependency pins a dependency into a project together with the
// tracking policy and the build the project currently uses.
//
// e.g. project X can use build 20 of dependency Y while project Z is
// using build 23.
type ProjectDependency struct {
	ID           string `json:"id" gorm:"primaryKey"`
	ProjectID    string `json:"project_id" gorm:"index:idx_project_dependencies,unique"`
	DependencyID string `json:"dependency_id" gorm:"index:idx_project_dependencies,unique"`
	AutoTrack    bool   `json:"auto_track"`
	// CurrentBuildID is a weak reference, the build is owned by its job.
	CurrentBuildID *string   `json:"current_build_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Build is one recorded build of a job, immutable once FINALIZED.
type Build struct {
	ID    string `json:"id" gorm:"primaryKey"`
	JobID string `json:"job_id" gorm:"index"`
	// BuildKey correlates this build with the project build that
	// requested it, e.g. "20140312.1". Empty for unsolicited builds.
	BuildKey      string            `json:"build_key" gorm:"index"`
	Number        int               `json:"number" gorm:"index"`
	Duration      int64             `json:"duration"`
	URL           string            `json:"url"`
	Phase         BuildPhase        `json:"phase"`
	Status        BuildStatus       `json:"status"`
	ConsoleLog    string            `json:"console_log" gorm:"type:text"`
	Parameters    datatypes.JSONMap `json:"parameters" gorm:"type:jsonb"`
	RequestedByID *string           `json:"requested_by_id"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Artifact is one file produced by a build, still hosted on the Jenkins
// server until archived.
type Artifact struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	BuildID   string    `json:"build_id" gorm:"index"`
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectBuild is one versioned aggregation attempt for a project, keyed
// by a daily-unique build key.
type ProjectBuild struct {
	ID            string             `json:"id" gorm:"primaryKey"`
	ProjectID     string             `json:"project_id" gorm:"index:idx_project_builds_key,unique"`
	BuildKey      string             `json:"build_key" gorm:"index:idx_project_builds_key,unique"`
	Status        ProjectBuildStatus `json:"status"`
	Phase         BuildPhase         `json:"phase"`
	RequestedByID *string            `json:"requested_by_id"`
	RequestedAt   time.Time          `json:"requested_at"`
	// EndedAt is set exactly once, when the project build finalizes.
	EndedAt   *time.Time `json:"ended_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ProjectBuildDependency joins a project build to one of its dependencies,
// bound to a concrete build once one arrives.
type ProjectBuildDependency struct {
	ID             string `json:"id" gorm:"primaryKey"`
	ProjectBuildID string `json:"project_build_id" gorm:"index:idx_project_build_deps,unique"`
	DependencyID   string `json:"dependency_id" gorm:"index:idx_project_build_deps,unique"`
	// BuildID is nil until the matching build arrives.
	BuildID   *string   `json:"build_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Archive is a configured destination for publishing artifacts, a
// transport plus a path policy.
type Archive struct {
	ID   string `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex"`
	// Transport selects the backend, e.g. "local" or "gcs".
	Transport string `json:"transport"`
	// Basedir is the filesystem root for the local transport.
	Basedir string `json:"basedir"`
	// Bucket is the bucket name for the gcs transport.
	Bucket string `json:"bucket"`
	// ServiceAccountKeyFile optionally points at a credentials file for
	// the gcs transport, empty uses application default credentials.
	ServiceAccountKeyFile string `json:"service_account_key_file"`
	// Policy names the path layout, e.g. "default" or "cdimage".
	Policy string `json:"policy"`
	// Default marks the archive used by automatic post-build processing.
	Default   bool      `json:"default" gorm:"column:is_default"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ArchiveArtifact is one physical archived copy of one build artifact.
// Rows with a ProjectBuildDependencyID are project-scoped copies, rows
// without are build-scoped.
type ArchiveArtifact struct {
	ID         string `json:"id" gorm:"primaryKey"`
	ArchiveID  string `json:"archive_id" gorm:"index"`
	ArtifactID string `json:"artifact_id" gorm:"index"`
	BuildID    string `json:"build_id" gorm:"index"`
	// ProjectBuildDependencyID distinguishes a project-scoped copy from
	// the build-scoped copy of the same artifact.
	ProjectBuildDependencyID *string `json:"project_build_dependency_id" gorm:"index"`
	ArchivedPath             string  `json:"archived_path"`
	// ArchivedSize and ArchivedAt are nil until the artifact has been
	// fetched into the archive.
	ArchivedSize *int64     `json:"archived_size"`
	ArchivedAt   *time.Time `json:"archived_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ProjectBuildCounter serializes build key generation, one row per
// project per UTC day, incremented under a row lock.
type ProjectBuildCounter struct {
	ProjectID string `json:"project_id" gorm:"primaryKey"`
	Day       string `json:"day" gorm:"primaryKey"`
	Counter   int    `json:"counter"`
}

// User is the account that requested a build, used for notifications.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Username  string    `json:"username" gorm:"uniqueIndex"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}
