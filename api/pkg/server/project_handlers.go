package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bigkevmcd/capomastro/api/pkg/aggregator"
	"github.com/bigkevmcd/capomastro/api/pkg/store"
	"github.com/bigkevmcd/capomastro/api/pkg/system"
	"github.com/bigkevmcd/capomastro/api/pkg/types"
)

type requestProjectBuildRequest struct {
	// DependencyIDs restricts the rebuild to a subset of the project's
	// dependencies, empty rebuilds everything.
	DependencyIDs []string `json:"dependency_ids"`
	UserID        string   `json:"user_id"`
}

func (apiServer *CapomastroAPIServer) requestProjectBuild(res http.ResponseWriter, req *http.Request) {
	system.Wrapper(func(res http.ResponseWriter, req *http.Request) (*types.ProjectBuild, *system.HTTPError) {
		ctx := req.Context()
		projectID := mux.Vars(req)["id"]

		var body requestProjectBuildRequest
		if req.Body != nil && req.ContentLength != 0 {
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				return nil, system.NewHTTPError400("failed to decode request: " + err.Error())
			}
		}

		var user *types.User
		if body.UserID != "" {
			found, err := apiServer.Store.GetUser(ctx, body.UserID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil, system.NewHTTPError400("unknown user " + body.UserID)
				}
				return nil, system.NewHTTPError500(err.Error())
			}
			user = found
		}

		projectBuild, err := apiServer.builder.RequestBuild(ctx, projectID, aggregator.BuildOptions{
			DependencyIDs: body.DependencyIDs,
			User:          user,
			QueueBuild:    true,
		})
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, system.NewHTTPError404("project not found")
			}
			return nil, system.NewHTTPError500(err.Error())
		}
		return projectBuild, nil
	})(res, req)
}

func (apiServer *CapomastroAPIServer) listProjectBuilds(res http.ResponseWriter, req *http.Request) {
	system.Wrapper(func(res http.ResponseWriter, req *http.Request) ([]*types.ProjectBuild, *system.HTTPError) {
		ctx := req.Context()
		projectID := mux.Vars(req)["id"]

		if _, err := apiServer.Store.GetProject(ctx, projectID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, system.NewHTTPError404("project not found")
			}
			return nil, system.NewHTTPError500(err.Error())
		}

		projectBuilds, err := apiServer.Store.ListProjectBuilds(ctx, &store.ListProjectBuildsQuery{
			ProjectID: projectID,
			Status:    types.ProjectBuildStatus(req.URL.Query().Get("status")),
		})
		if err != nil {
			return nil, system.NewHTTPError500(err.Error())
		}
		return projectBuilds, nil
	})(res, req)
}

type projectBuildDetail struct {
	*types.ProjectBuild
	Dependencies []*types.ProjectBuildDependency `json:"dependencies"`
}

func (apiServer *CapomastroAPIServer) getProjectBuild(res http.ResponseWriter, req *http.Request) {
	system.Wrapper(func(res http.ResponseWriter, req *http.Request) (*projectBuildDetail, *system.HTTPError) {
		ctx := req.Context()
		vars := mux.Vars(req)

		projectBuild, err := apiServer.Store.GetProjectBuild(ctx, vars["buildID"])
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, system.NewHTTPError404("project build not found")
			}
			return nil, system.NewHTTPError500(err.Error())
		}
		if projectBuild.ProjectID != vars["id"] {
			return nil, system.NewHTTPError404("project build not found")
		}

		rows, err := apiServer.Store.ListProjectBuildDependencies(ctx, &store.ListProjectBuildDependenciesQuery{
			ProjectBuildID: projectBuild.ID,
		})
		if err != nil {
			return nil, system.NewHTTPError500(err.Error())
		}

		return &projectBuildDetail{
			ProjectBuild: projectBuild,
			Dependencies: rows,
		}, nil
	})(res, req)
}
