package aggregator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/bigkevmcd/capomastro/api/pkg/jenkins"
	"github.com/bigkevmcd/capomastro/api/pkg/store"
	"github.com/bigkevmcd/capomastro/api/pkg/types"
)

// JenkinsQueuer queues dependency builds on the Jenkins server that hosts
// the dependency's job.
type JenkinsQueuer struct {
	store  store.Store
	client jenkins.Client
}

func NewJenkinsQueuer(store store.Store, client jenkins.Client) *JenkinsQueuer {
	return &JenkinsQueuer{
		store:  store,
		client: client,
	}
}

func (q *JenkinsQueuer) QueueBuild(ctx context.Context, dependency *types.Dependency, buildKey string, user *types.User) error {
	if dependency.JobID == nil {
		return fmt.Errorf("dependency %s has no job", dependency.Name)
	}
	job, err := q.store.GetJob(ctx, *dependency.JobID)
	if err != nil {
		return err
	}
	server, err := q.store.GetJenkinsServer(ctx, job.ServerID)
	if err != nil {
		return err
	}

	params := map[string]string{}
	for key, value := range dependency.Parameters {
		params[key] = fmt.Sprintf("%v", value)
	}
	if buildKey != "" {
		params[jenkins.BuildKeyParameter] = buildKey
	}
	if user != nil {
		params["REQUESTED_BY"] = user.Username
	}

	log.Info().
		Str("server", server.Name).
		Str("job", job.Name).
		Str("build_key", buildKey).
		Msg("queueing jenkins build")

	return q.client.TriggerBuild(ctx, server, job.Name, params)
}
