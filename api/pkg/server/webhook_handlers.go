package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"

	"github.com/bigkevmcd/capomastro/api/pkg/jenkins"
	"github.com/bigkevmcd/capomastro/api/pkg/store"
	"github.com/bigkevmcd/capomastro/api/pkg/tasks"
	"github.com/bigkevmcd/capomastro/api/pkg/types"
)

// jenkinsNotification is the payload the Jenkins notification plugin
// POSTs on every phase transition of a build.
type jenkinsNotification struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Build struct {
		Number     int                    `json:"number"`
		Phase      string                 `json:"phase"`
		Status     string                 `json:"status"`
		FullURL    string                 `json:"full_url"`
		Parameters map[string]interface{} `json:"parameters"`
	} `json:"build"`
}

// jenkinsNotificationHandler records the build state Jenkins reports and,
// once a build finalizes, imports its details and kicks off the
// processing pipeline.
func (apiServer *CapomastroAPIServer) jenkinsNotificationHandler(res http.ResponseWriter, req *http.Request) {
	serverID := req.URL.Query().Get("server")
	if serverID == "" {
		http.Error(res, "server query parameter is required", http.StatusBadRequest)
		return
	}

	var notification jenkinsNotification
	if err := json.NewDecoder(req.Body).Decode(&notification); err != nil {
		http.Error(res, "failed to decode notification: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctx := req.Context()
	jenkinsServer, err := apiServer.Store.GetJenkinsServer(ctx, serverID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(res, "unknown jenkins server", http.StatusNotFound)
			return
		}
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}
	job, err := apiServer.Store.GetJobByName(ctx, jenkinsServer.ID, notification.Name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(res, "unknown job "+notification.Name, http.StatusNotFound)
			return
		}
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}

	build, err := apiServer.recordBuild(req, job, &notification)
	if err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}

	// the pipeline runs off the notification that finalized the build, a
	// redelivered earlier phase must not trigger it again
	if types.TranslateBuildPhase(notification.Build.Phase) == types.BuildPhaseFinalized {
		if _, err := apiServer.importer.ImportBuild(ctx, build.ID); err != nil {
			http.Error(res, "failed to import build details: "+err.Error(), http.StatusInternalServerError)
			return
		}
		err := apiServer.dispatcher.Enqueue(ctx, tasks.TopicProcessBuildDependencies, tasks.BuildTask{BuildID: build.ID})
		if err != nil {
			http.Error(res, "failed to enqueue build processing: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	res.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(res).Encode(build); err != nil {
		log.Err(err).Msg("error encoding webhook response")
	}
}

// recordBuild creates or updates the build row the notification is about,
// one row per (job, number).
func (apiServer *CapomastroAPIServer) recordBuild(req *http.Request, job *types.Job, notification *jenkinsNotification) (*types.Build, error) {
	ctx := req.Context()

	phase := types.TranslateBuildPhase(notification.Build.Phase)
	buildKey := ""
	if key, ok := notification.Build.Parameters[jenkins.BuildKeyParameter].(string); ok {
		buildKey = key
	}

	existing, err := apiServer.Store.ListBuilds(ctx, &store.ListBuildsQuery{
		JobID:  job.ID,
		Number: notification.Build.Number,
	})
	if err != nil {
		return nil, err
	}

	if len(existing) > 0 {
		build := existing[0]
		// a finalized build never changes, late or duplicated
		// notifications are ignored
		if build.Phase == types.BuildPhaseFinalized {
			return build, nil
		}
		build.Phase = phase
		build.Status = types.BuildStatus(notification.Build.Status)
		build.URL = notification.Build.FullURL
		if buildKey != "" {
			build.BuildKey = buildKey
		}
		if len(notification.Build.Parameters) > 0 {
			build.Parameters = datatypes.JSONMap(notification.Build.Parameters)
		}
		return apiServer.Store.UpdateBuild(ctx, build)
	}

	log.Info().
		Str("job", job.Name).
		Int("number", notification.Build.Number).
		Str("phase", string(phase)).
		Str("build_key", buildKey).
		Msg("recording build notification")

	return apiServer.Store.CreateBuild(ctx, &types.Build{
		JobID:      job.ID,
		Number:     notification.Build.Number,
		BuildKey:   buildKey,
		Phase:      phase,
		Status:     types.BuildStatus(notification.Build.Status),
		URL:        notification.Build.FullURL,
		Parameters: datatypes.JSONMap(notification.Build.Parameters),
	})
}
