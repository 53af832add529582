package store

import (
	"time"

	"github.com/bigkevmcd/capomastro/api/pkg/types"
)

func (suite *StoreTestSuite) TestNextProjectBuildNumber_Sequences() {
	project, err := suite.db.CreateProject(suite.ctx, &types.Project{Name: "testing"})
	suite.Require().NoError(err)

	day := time.Date(2014, 3, 12, 10, 30, 0, 0, time.UTC)

	for want := 0; want < 3; want++ {
		got, err := suite.db.NextProjectBuildNumber(suite.ctx, project.ID, day)
		suite.Require().NoError(err)
		suite.Equal(want, got)
	}
}

func (suite *StoreTestSuite) TestNextProjectBuildNumber_ResetsPerDay() {
	project, err := suite.db.CreateProject(suite.ctx, &types.Project{Name: "testing"})
	suite.Require().NoError(err)

	day1 := time.Date(2014, 3, 12, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2014, 3, 13, 0, 1, 0, 0, time.UTC)

	n, err := suite.db.NextProjectBuildNumber(suite.ctx, project.ID, day1)
	suite.Require().NoError(err)
	suite.Equal(0, n)

	n, err = suite.db.NextProjectBuildNumber(suite.ctx, project.ID, day1)
	suite.Require().NoError(err)
	suite.Equal(1, n)

	n, err = suite.db.NextProjectBuildNumber(suite.ctx, project.ID, day2)
	suite.Require().NoError(err)
	suite.Equal(0, n)
}

func (suite *StoreTestSuite) TestNextProjectBuildNumber_PerProject() {
	project1, err := suite.db.CreateProject(suite.ctx, &types.Project{Name: "testing-1"})
	suite.Require().NoError(err)
	project2, err := suite.db.CreateProject(suite.ctx, &types.Project{Name: "testing-2"})
	suite.Require().NoError(err)

	day := time.Date(2014, 3, 12, 10, 30, 0, 0, time.UTC)

	n, err := suite.db.NextProjectBuildNumber(suite.ctx, project1.ID, day)
	suite.Require().NoError(err)
	suite.Equal(0, n)

	n, err = suite.db.NextProjectBuildNumber(suite.ctx, project2.ID, day)
	suite.Require().NoError(err)
	suite.Equal(0, n)
}

func (suite *StoreTestSuite) TestListProjectBuildDependencies_Unbound() {
	project, err := suite.db.CreateProject(suite.ctx, &types.Project{Name: "testing"})
	suite.Require().NoError(err)

	pb, err := suite.db.CreateProjectBuild(suite.ctx, &types.ProjectBuild{
		ProjectID: project.ID,
		BuildKey:  "20140312.0",
	})
	suite.Require().NoError(err)
	suite.Equal(types.ProjectBuildStatusIncomplete, pb.Status)

	dependency, err := suite.db.CreateDependency(suite.ctx, &types.Dependency{Name: "dep-1"})
	suite.Require().NoError(err)

	bound, err := suite.db.CreateDependency(suite.ctx, &types.Dependency{Name: "dep-2"})
	suite.Require().NoError(err)

	_, err = suite.db.CreateProjectBuildDependency(suite.ctx, &types.ProjectBuildDependency{
		ProjectBuildID: pb.ID,
		DependencyID:   dependency.ID,
	})
	suite.Require().NoError(err)

	build, err := suite.db.CreateBuild(suite.ctx, &types.Build{JobID: "job", Number: 1})
	suite.Require().NoError(err)
	_, err = suite.db.CreateProjectBuildDependency(suite.ctx, &types.ProjectBuildDependency{
		ProjectBuildID: pb.ID,
		DependencyID:   bound.ID,
		BuildID:        &build.ID,
	})
	suite.Require().NoError(err)

	unbound, err := suite.db.ListProjectBuildDependencies(suite.ctx, &ListProjectBuildDependenciesQuery{
		ProjectBuildID: pb.ID,
		Unbound:        true,
	})
	suite.Require().NoError(err)
	suite.Require().Len(unbound, 1)
	suite.Equal(dependency.ID, unbound[0].DependencyID)
}

func (suite *StoreTestSuite) TestGetLatestFinalizedBuild() {
	job, err := suite.db.CreateJob(suite.ctx, &types.Job{ServerID: "srv", Name: "testing"})
	suite.Require().NoError(err)

	for number := 1; number <= 3; number++ {
		phase := types.BuildPhaseFinalized
		if number == 3 {
			phase = types.BuildPhaseStarted
		}
		_, err = suite.db.CreateBuild(suite.ctx, &types.Build{
			JobID:  job.ID,
			Number: number,
			Phase:  phase,
			Status: types.BuildStatusSuccess,
		})
		suite.Require().NoError(err)
	}

	build, err := suite.db.GetLatestFinalizedBuild(suite.ctx, job.ID)
	suite.Require().NoError(err)
	suite.Equal(2, build.Number)
}

func (suite *StoreTestSuite) TestGetLatestFinalizedBuild_NoBuilds() {
	_, err := suite.db.GetLatestFinalizedBuild(suite.ctx, "job_missing")
	suite.ErrorIs(err, ErrNotFound)
}
