package jenkins

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkevmcd/capomastro/api/pkg/store"
	"github.com/bigkevmcd/capomastro/api/pkg/types"
)

// stubClient returns canned build details.
type stubClient struct {
	Client
	details *BuildDetails
	calls   int
}

func (c *stubClient) GetBuildDetails(context.Context, *types.JenkinsServer, string, int) (*BuildDetails, error) {
	c.calls++
	return c.details, nil
}

func TestImportBuild(t *testing.T) {
	ctx := context.Background()
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "capomastro.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	server, err := db.CreateJenkinsServer(ctx, &types.JenkinsServer{
		Name: "jenkins",
		URL:  "http://jenkins.example.com",
	})
	require.NoError(t, err)
	job, err := db.CreateJob(ctx, &types.Job{ServerID: server.ID, Name: "base-job"})
	require.NoError(t, err)
	build, err := db.CreateBuild(ctx, &types.Build{
		JobID:  job.ID,
		Number: 12,
		Phase:  types.BuildPhaseFinalized,
	})
	require.NoError(t, err)

	client := &stubClient{details: &BuildDetails{
		Duration:   19468,
		Result:     "SUCCESS",
		URL:        "http://jenkins.example.com/job/base-job/12/",
		ConsoleLog: "this is the log",
		Artifacts: []ArtifactDetails{
			{FileName: "testing.img", RelativePath: "build/testing.img", URL: "http://jenkins.example.com/job/base-job/12/artifact/build/testing.img"},
		},
		Parameters: map[string]interface{}{"BUILD_ID": "20140312.1"},
	}}

	importer := NewImporter(db, client)
	buildID, err := importer.ImportBuild(ctx, build.ID)
	require.NoError(t, err)
	assert.Equal(t, build.ID, buildID)

	updated, err := db.GetBuild(ctx, build.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(19468), updated.Duration)
	assert.Equal(t, types.BuildStatusSuccess, updated.Status)
	assert.Equal(t, "this is the log", updated.ConsoleLog)
	assert.Equal(t, "http://jenkins.example.com/job/base-job/12/", updated.URL)

	artifacts, err := db.ListArtifactsForBuild(ctx, build.ID)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "build/testing.img", artifacts[0].Filename)

	// re-importing must not duplicate artifact rows
	_, err = importer.ImportBuild(ctx, build.ID)
	require.NoError(t, err)
	artifacts, err = db.ListArtifactsForBuild(ctx, build.ID)
	require.NoError(t, err)
	assert.Len(t, artifacts, 1)
	assert.Equal(t, 2, client.calls)
}
