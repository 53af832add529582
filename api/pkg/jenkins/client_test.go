package jenkins

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkevmcd/capomastro/api/pkg/config"
	"github.com/bigkevmcd/capomastro/api/pkg/types"
)

func testClient() *HTTPClient {
	return NewHTTPClient(config.Jenkins{
		RequestTimeout: 5 * time.Second,
		RetryAttempts:  1,
	})
}

func testServer(url string) *types.JenkinsServer {
	return &types.JenkinsServer{
		Name:     "jenkins",
		URL:      url,
		Username: "root",
		Password: "testing",
	}
}

func TestGetBuildDetails(t *testing.T) {
	var gotAuth bool
	mux := http.NewServeMux()
	mux.HandleFunc("/job/base-job/12/api/json", func(w http.ResponseWriter, r *http.Request) {
		_, _, gotAuth = r.BasicAuth()
		fmt.Fprint(w, `{
			"duration": 19468,
			"result": "SUCCESS",
			"url": "http://jenkins.example.com/job/base-job/12/",
			"artifacts": [
				{"fileName": "testing.img", "relativePath": "build/testing.img"}
			],
			"actions": [
				{"parameters": [{"name": "BUILD_ID", "value": "20140312.1"}]}
			]
		}`)
	})
	mux.HandleFunc("/job/base-job/12/consoleText", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "this is the log")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	details, err := testClient().GetBuildDetails(context.Background(), testServer(server.URL), "base-job", 12)
	require.NoError(t, err)

	assert.True(t, gotAuth)
	assert.Equal(t, int64(19468), details.Duration)
	assert.Equal(t, "SUCCESS", details.Result)
	assert.Equal(t, "this is the log", details.ConsoleLog)
	assert.Equal(t, map[string]interface{}{"BUILD_ID": "20140312.1"}, details.Parameters)

	require.Len(t, details.Artifacts, 1)
	assert.Equal(t, "testing.img", details.Artifacts[0].FileName)
	// URL is filled in from the server when jenkins omits it
	assert.Equal(t, server.URL+"/job/base-job/12/artifact/build/testing.img", details.Artifacts[0].URL)
}

func TestGetBuildDetails_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := testClient().GetBuildDetails(context.Background(), testServer(server.URL), "base-job", 12)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestTriggerBuild(t *testing.T) {
	var gotForm map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/job/base-job/buildWithParameters", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	err := testClient().TriggerBuild(context.Background(), testServer(server.URL), "base-job", map[string]string{
		BuildKeyParameter: "20140312.1",
		"THISVALUE":       "mako",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"20140312.1"}, gotForm["BUILD_ID"])
	assert.Equal(t, []string{"mako"}, gotForm["THISVALUE"])
}

func TestCreateOrUpdateJob_CreatesWhenMissing(t *testing.T) {
	var createdAt string
	mux := http.NewServeMux()
	mux.HandleFunc("/job/new-job/api/json", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/createItem", func(w http.ResponseWriter, r *http.Request) {
		createdAt = r.URL.Query().Get("name")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	err := testClient().CreateOrUpdateJob(context.Background(), testServer(server.URL), "new-job", "<project/>")
	require.NoError(t, err)
	assert.Equal(t, "new-job", createdAt)
}

func TestCreateOrUpdateJob_UpdatesWhenPresent(t *testing.T) {
	var updated bool
	mux := http.NewServeMux()
	mux.HandleFunc("/job/old-job/api/json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"name": "old-job"}`)
	})
	mux.HandleFunc("/job/old-job/config.xml", func(w http.ResponseWriter, r *http.Request) {
		updated = r.Method == http.MethodPost
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	err := testClient().CreateOrUpdateJob(context.Background(), testServer(server.URL), "old-job", "<project/>")
	require.NoError(t, err)
	assert.True(t, updated)
}

func TestDeleteJob(t *testing.T) {
	var deleted bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deleted = r.URL.Path == "/job/old-job/doDelete" && r.Method == http.MethodPost
	}))
	defer server.Close()

	require.NoError(t, testClient().DeleteJob(context.Background(), testServer(server.URL), "old-job"))
	assert.True(t, deleted)
}
