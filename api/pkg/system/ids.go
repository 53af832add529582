package system

import (
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
)

const (
	ServerPrefix                 = "srv_"
	JobPrefix                    = "job_"
	DependencyPrefix             = "dep_"
	ProjectPrefix                = "prj_"
	ProjectDependencyPrefix      = "pd_"
	BuildPrefix                  = "bld_"
	ArtifactPrefix               = "art_"
	ProjectBuildPrefix           = "pb_"
	ProjectBuildDependencyPrefix = "pbd_"
	ArchivePrefix                = "arc_"
	ArchiveArtifactPrefix        = "item_"
	UserPrefix                   = "usr_"
)

func newID() string {
	return strings.ToLower(ulid.Make().String())
}

func GenerateServerID() string {
	return fmt.Sprintf("%s%s", ServerPrefix, newID())
}

func GenerateJobID() string {
	return fmt.Sprintf("%s%s", JobPrefix, newID())
}

func GenerateDependencyID() string {
	return fmt.Sprintf("%s%s", DependencyPrefix, newID())
}

func GenerateProjectID() string {
	return fmt.Sprintf("%s%s", ProjectPrefix, newID())
}

func GenerateProjectDependencyID() string {
	return fmt.Sprintf("%s%s", ProjectDependencyPrefix, newID())
}

func GenerateBuildID() string {
	return fmt.Sprintf("%s%s", BuildPrefix, newID())
}

func GenerateArtifactID() string {
	return fmt.Sprintf("%s%s", ArtifactPrefix, newID())
}

func GenerateProjectBuildID() string {
	return fmt.Sprintf("%s%s", ProjectBuildPrefix, newID())
}

func GenerateProjectBuildDependencyID() string {
	return fmt.Sprintf("%s%s", ProjectBuildDependencyPrefix, newID())
}

func GenerateArchiveID() string {
	return fmt.Sprintf("%s%s", ArchivePrefix, newID())
}

func GenerateArchiveArtifactID() string {
	return fmt.Sprintf("%s%s", ArchiveArtifactPrefix, newID())
}

func GenerateUserID() string {
	return fmt.Sprintf("%s%s", UserPrefix, newID())
}
