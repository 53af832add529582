package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bigkevmcd/capomastro/api/pkg/types"
)

func (suite *ServerTestSuite) createProjectWithDependency() (*types.Project, *types.Dependency) {
	dependency, err := suite.db.CreateDependency(suite.ctx, &types.Dependency{
		Name:  "base",
		JobID: &suite.job.ID,
	})
	suite.Require().NoError(err)

	project, err := suite.db.CreateProject(suite.ctx, &types.Project{Name: "distro"})
	suite.Require().NoError(err)
	_, err = suite.db.CreateProjectDependency(suite.ctx, &types.ProjectDependency{
		ProjectID:    project.ID,
		DependencyID: dependency.ID,
	})
	suite.Require().NoError(err)
	return project, dependency
}

func (suite *ServerTestSuite) TestRequestProjectBuild() {
	project, _ := suite.createProjectWithDependency()

	resp, err := http.Post(
		suite.server.URL+"/api/v1/projects/"+project.ID+"/builds",
		"application/json",
		strings.NewReader(`{}`),
	)
	suite.Require().NoError(err)
	defer resp.Body.Close()
	suite.Equal(http.StatusOK, resp.StatusCode)

	var projectBuild types.ProjectBuild
	suite.Require().NoError(json.NewDecoder(resp.Body).Decode(&projectBuild))
	suite.Equal(project.ID, projectBuild.ProjectID)
	suite.Equal(types.ProjectBuildStatusIncomplete, projectBuild.Status)
	suite.NotEmpty(projectBuild.BuildKey)
}

func (suite *ServerTestSuite) TestRequestProjectBuild_UnknownProject() {
	resp, err := http.Post(
		suite.server.URL+"/api/v1/projects/prj_missing/builds",
		"application/json",
		strings.NewReader(`{}`),
	)
	suite.Require().NoError(err)
	defer resp.Body.Close()
	suite.Equal(http.StatusNotFound, resp.StatusCode)
}

func (suite *ServerTestSuite) TestListProjectBuilds() {
	project, _ := suite.createProjectWithDependency()

	pb1, err := suite.db.CreateProjectBuild(suite.ctx, &types.ProjectBuild{
		ProjectID: project.ID,
		BuildKey:  "20140312.0",
	})
	suite.Require().NoError(err)
	_, err = suite.db.CreateProjectBuild(suite.ctx, &types.ProjectBuild{
		ProjectID: project.ID,
		BuildKey:  "20140312.1",
	})
	suite.Require().NoError(err)

	resp, err := http.Get(suite.server.URL + "/api/v1/projects/" + project.ID + "/builds")
	suite.Require().NoError(err)
	defer resp.Body.Close()
	suite.Equal(http.StatusOK, resp.StatusCode)

	var projectBuilds []*types.ProjectBuild
	suite.Require().NoError(json.NewDecoder(resp.Body).Decode(&projectBuilds))
	suite.Len(projectBuilds, 2)

	// detail view includes the dependency rows
	resp, err = http.Get(suite.server.URL + "/api/v1/projects/" + project.ID + "/builds/" + pb1.ID)
	suite.Require().NoError(err)
	defer resp.Body.Close()
	suite.Equal(http.StatusOK, resp.StatusCode)

	var detail struct {
		types.ProjectBuild
		Dependencies []*types.ProjectBuildDependency `json:"dependencies"`
	}
	suite.Require().NoError(json.NewDecoder(resp.Body).Decode(&detail))
	suite.Equal(pb1.ID, detail.ID)
}

func (suite *ServerTestSuite) TestGetProjectBuild_WrongProject() {
	project, _ := suite.createProjectWithDependency()
	other, err := suite.db.CreateProject(suite.ctx, &types.Project{Name: "other"})
	suite.Require().NoError(err)

	pb, err := suite.db.CreateProjectBuild(suite.ctx, &types.ProjectBuild{
		ProjectID: project.ID,
		BuildKey:  "20140312.0",
	})
	suite.Require().NoError(err)

	resp, err := http.Get(suite.server.URL + "/api/v1/projects/" + other.ID + "/builds/" + pb.ID)
	suite.Require().NoError(err)
	defer resp.Body.Close()
	suite.Equal(http.StatusNotFound, resp.StatusCode)
}
