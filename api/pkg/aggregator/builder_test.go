package aggregator

import (
	"regexp"
	"time"

	"github.com/bigkevmcd/capomastro/api/pkg/store"
	"github.com/bigkevmcd/capomastro/api/pkg/types"
)

func (suite *AggregatorTestSuite) TestGenerateBuildKey() {
	project, _ := suite.createProject("distro", false)

	now := time.Date(2014, 3, 12, 10, 30, 0, 0, time.UTC)

	key, err := suite.builder.GenerateBuildKey(suite.ctx, project.ID, now)
	suite.Require().NoError(err)
	suite.Equal("20140312.0", key)

	key, err = suite.builder.GenerateBuildKey(suite.ctx, project.ID, now)
	suite.Require().NoError(err)
	suite.Equal("20140312.1", key)

	// a different day starts a fresh sequence
	key, err = suite.builder.GenerateBuildKey(suite.ctx, project.ID, now.Add(24*time.Hour))
	suite.Require().NoError(err)
	suite.Equal("20140313.0", key)
}

func (suite *AggregatorTestSuite) TestRequestBuild_ManualRebuildsEverything() {
	dep1 := suite.createDependency("base")
	dep2 := suite.createDependency("installer")
	project, _ := suite.createProject("distro", false, dep1, dep2)

	projectBuild, err := suite.builder.RequestBuild(suite.ctx, project.ID, BuildOptions{QueueBuild: true})
	suite.Require().NoError(err)

	suite.Regexp(regexp.MustCompile(`^\d{8}\.\d+$`), projectBuild.BuildKey)
	suite.Equal(types.ProjectBuildStatusIncomplete, projectBuild.Status)

	rows, err := suite.db.ListProjectBuildDependencies(suite.ctx, &store.ListProjectBuildDependenciesQuery{
		ProjectBuildID: projectBuild.ID,
	})
	suite.Require().NoError(err)
	suite.Require().Len(rows, 2)
	for _, row := range rows {
		suite.Nil(row.BuildID)
	}

	suite.Require().Len(suite.queuer.queued, 2)
	for _, queued := range suite.queuer.queued {
		suite.Equal(projectBuild.BuildKey, queued.buildKey)
	}
}

func (suite *AggregatorTestSuite) TestRequestBuild_ExplicitSubsetSnapshotsRest() {
	dep1 := suite.createDependency("base")
	dep2 := suite.createDependency("installer")
	project, pds := suite.createProject("distro", false, dep1, dep2)

	current := suite.createBuild(dep2, 4, "", types.BuildPhaseFinalized, types.BuildStatusSuccess)
	pds[1].CurrentBuildID = &current.ID
	_, err := suite.db.UpdateProjectDependency(suite.ctx, pds[1])
	suite.Require().NoError(err)

	projectBuild, err := suite.builder.RequestBuild(suite.ctx, project.ID, BuildOptions{
		DependencyIDs: []string{dep1.ID},
		QueueBuild:    true,
	})
	suite.Require().NoError(err)

	rows, err := suite.db.ListProjectBuildDependencies(suite.ctx, &store.ListProjectBuildDependenciesQuery{
		ProjectBuildID: projectBuild.ID,
	})
	suite.Require().NoError(err)
	suite.Require().Len(rows, 2)

	bound := map[string]*string{}
	for _, row := range rows {
		bound[row.DependencyID] = row.BuildID
	}
	suite.Nil(bound[dep1.ID])
	suite.Require().NotNil(bound[dep2.ID])
	suite.Equal(current.ID, *bound[dep2.ID])

	// only the explicitly requested dependency gets rebuilt
	suite.Require().Len(suite.queuer.queued, 1)
	suite.Equal("base", suite.queuer.queued[0].dependency)
}

func (suite *AggregatorTestSuite) TestRequestBuild_AutomatedReusesKnownBuilds() {
	dep1 := suite.createDependency("base")
	dep2 := suite.createDependency("installer")
	project, pds := suite.createProject("distro", true, dep1, dep2)

	build1 := suite.createBuild(dep1, 1, "", types.BuildPhaseFinalized, types.BuildStatusSuccess)
	build2 := suite.createBuild(dep2, 1, "", types.BuildPhaseFinalized, types.BuildStatusSuccess)
	pds[0].CurrentBuildID = &build1.ID
	pds[1].CurrentBuildID = &build2.ID
	for _, pd := range pds {
		_, err := suite.db.UpdateProjectDependency(suite.ctx, pd)
		suite.Require().NoError(err)
	}

	projectBuild, err := suite.builder.RequestBuild(suite.ctx, project.ID, BuildOptions{
		Automated:  true,
		QueueBuild: false,
	})
	suite.Require().NoError(err)

	rows, err := suite.db.ListProjectBuildDependencies(suite.ctx, &store.ListProjectBuildDependenciesQuery{
		ProjectBuildID: projectBuild.ID,
	})
	suite.Require().NoError(err)
	suite.Require().Len(rows, 2)
	for _, row := range rows {
		suite.Require().NotNil(row.BuildID)
	}
	suite.Empty(suite.queuer.queued)
}

func (suite *AggregatorTestSuite) TestRequestBuild_FallsBackToLatestFinalizedBuild() {
	dependency := suite.createDependency("base")
	project, _ := suite.createProject("distro", false, dependency)

	// no current build tracked, but the job has finalized builds
	suite.createBuild(dependency, 1, "", types.BuildPhaseFinalized, types.BuildStatusSuccess)
	latest := suite.createBuild(dependency, 2, "", types.BuildPhaseFinalized, types.BuildStatusSuccess)
	suite.createBuild(dependency, 3, "", types.BuildPhaseStarted, "")

	projectBuild, err := suite.builder.RequestBuild(suite.ctx, project.ID, BuildOptions{
		Automated:  true,
		QueueBuild: false,
	})
	suite.Require().NoError(err)

	rows, err := suite.db.ListProjectBuildDependencies(suite.ctx, &store.ListProjectBuildDependenciesQuery{
		ProjectBuildID: projectBuild.ID,
	})
	suite.Require().NoError(err)
	suite.Require().Len(rows, 1)
	suite.Require().NotNil(rows[0].BuildID)
	suite.Equal(latest.ID, *rows[0].BuildID)
}

func (suite *AggregatorTestSuite) TestRequestBuild_RecordsRequestor() {
	dependency := suite.createDependency("base")
	project, _ := suite.createProject("distro", false, dependency)

	user, err := suite.db.CreateUser(suite.ctx, &types.User{
		Username: "admin",
		Email:    "admin@example.com",
	})
	suite.Require().NoError(err)

	projectBuild, err := suite.builder.RequestBuild(suite.ctx, project.ID, BuildOptions{
		User:       user,
		QueueBuild: false,
	})
	suite.Require().NoError(err)
	suite.Require().NotNil(projectBuild.RequestedByID)
	suite.Equal(user.ID, *projectBuild.RequestedByID)
}
