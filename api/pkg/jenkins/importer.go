package jenkins

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"

	"github.com/bigkevmcd/capomastro/api/pkg/store"
	"github.com/bigkevmcd/capomastro/api/pkg/types"
)

// Importer pulls the full detail of a build from its Jenkins server after
// a notification has recorded the bare Build row.
type Importer struct {
	store  store.Store
	client Client
}

func NewImporter(store store.Store, client Client) *Importer {
	return &Importer{
		store:  store,
		client: client,
	}
}

// ImportBuild updates a build with duration, status, console log and
// artifact details fetched from Jenkins. Re-importing is safe, artifact
// rows are only created for filenames not seen before. Returns the build
// ID for chaining.
func (i *Importer) ImportBuild(ctx context.Context, buildID string) (string, error) {
	build, err := i.store.GetBuild(ctx, buildID)
	if err != nil {
		return "", fmt.Errorf("failed to get build %s: %w", buildID, err)
	}

	job, err := i.store.GetJob(ctx, build.JobID)
	if err != nil {
		return "", fmt.Errorf("failed to get job for build %s: %w", buildID, err)
	}

	server, err := i.store.GetJenkinsServer(ctx, job.ServerID)
	if err != nil {
		return "", fmt.Errorf("failed to get server for job %s: %w", job.ID, err)
	}

	log.Info().
		Str("job", job.Name).
		Int("number", build.Number).
		Str("server_url", server.URL).
		Msg("processing build details")

	details, err := i.client.GetBuildDetails(ctx, server, job.Name, build.Number)
	if err != nil {
		return "", err
	}

	build.Duration = details.Duration
	if details.Result != "" {
		build.Status = types.BuildStatus(details.Result)
	}
	build.ConsoleLog = details.ConsoleLog
	if len(details.Parameters) > 0 {
		build.Parameters = datatypes.JSONMap(details.Parameters)
	}
	if details.URL != "" {
		build.URL = details.URL
	}
	if _, err := i.store.UpdateBuild(ctx, build); err != nil {
		return "", err
	}

	existing, err := i.store.ListArtifactsForBuild(ctx, build.ID)
	if err != nil {
		return "", err
	}
	seen := make(map[string]bool, len(existing))
	for _, artifact := range existing {
		seen[artifact.Filename] = true
	}

	for _, artifact := range details.Artifacts {
		filename := artifact.RelativePath
		if filename == "" {
			filename = artifact.FileName
		}
		if seen[filename] {
			continue
		}
		_, err := i.store.CreateArtifact(ctx, &types.Artifact{
			BuildID:  build.ID,
			Filename: filename,
			URL:      artifact.URL,
		})
		if err != nil {
			return "", err
		}
	}

	return build.ID, nil
}
