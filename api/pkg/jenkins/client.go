package jenkins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	retry "github.com/avast/retry-go/v4"

	"github.com/bigkevmcd/capomastro/api/pkg/config"
	"github.com/bigkevmcd/capomastro/api/pkg/types"
)

// BuildKeyParameter is the job parameter that carries the project build
// key into a queued dependency build, so the notification that comes back
// can be correlated.
const BuildKeyParameter = "BUILD_ID"

type ArtifactDetails struct {
	FileName     string `json:"fileName"`
	RelativePath string `json:"relativePath"`
	URL          string `json:"url"`
}

type BuildDetails struct {
	Duration   int64                  `json:"duration"`
	Result     string                 `json:"result"`
	URL        string                 `json:"url"`
	ConsoleLog string                 `json:"console_log"`
	Artifacts  []ArtifactDetails      `json:"artifacts"`
	Parameters map[string]interface{} `json:"parameters"`
}


// Client is the surface we consume from a Jenkins server.
type Client interface {
	GetBuildDetails(ctx context.Context, server *types.JenkinsServer, jobName string, number int) (*BuildDetails, error)
	TriggerBuild(ctx context.Context, server *types.JenkinsServer, jobName string, params map[string]string) error
	CreateOrUpdateJob(ctx context.Context, server *types.JenkinsServer, jobName, configXML string) error
	DeleteJob(ctx context.Context, server *types.JenkinsServer, jobName string) error
}

type HTTPClient struct {
	cfg    config.Jenkins
	client *http.Client
}

var _ Client = &HTTPClient{}

func NewHTTPClient(cfg config.Jenkins) *HTTPClient {
	return &HTTPClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

func (c *HTTPClient) GetBuildDetails(ctx context.Context, server *types.JenkinsServer, jobName string, number int) (*BuildDetails, error) {
	var details BuildDetails

	endpoint := fmt.Sprintf("%s/job/%s/%d/api/json", strings.TrimSuffix(server.URL, "/"), url.PathEscape(jobName), number)
	body, err := c.get(ctx, server, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch build details for %s #%d: %w", jobName, number, err)
	}

	var payload struct {
		Duration  int64             `json:"duration"`
		Result    string            `json:"result"`
		URL       string            `json:"url"`
		Artifacts []ArtifactDetails `json:"artifacts"`
		Actions   []struct {
			Parameters []struct {
				Name  string      `json:"name"`
				Value interface{} `json:"value"`
			} `json:"parameters"`
		} `json:"actions"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode build details: %w", err)
	}

	details.Duration = payload.Duration
	details.Result = payload.Result
	details.URL = payload.URL
	details.Parameters = map[string]interface{}{}
	for _, action := range payload.Actions {
		for _, param := range action.Parameters {
			details.Parameters[param.Name] = param.Value
		}
	}
	for _, artifact := range payload.Artifacts {
		if artifact.URL == "" {
			artifact.URL = fmt.Sprintf("%s/job/%s/%d/artifact/%s",
				strings.TrimSuffix(server.URL, "/"), url.PathEscape(jobName), number, artifact.RelativePath)
		}
		details.Artifacts = append(details.Artifacts, artifact)
	}

	console, err := c.get(ctx, server, fmt.Sprintf("%s/job/%s/%d/consoleText",
		strings.TrimSuffix(server.URL, "/"), url.PathEscape(jobName), number))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch console log for %s #%d: %w", jobName, number, err)
	}
	details.ConsoleLog = string(console)

	return &details, nil
}

func (c *HTTPClient) TriggerBuild(ctx context.Context, server *types.JenkinsServer, jobName string, params map[string]string) error {
	endpoint := fmt.Sprintf("%s/job/%s/buildWithParameters", strings.TrimSuffix(server.URL, "/"), url.PathEscape(jobName))

	form := url.Values{}
	for name, value := range params {
		form.Set(name, value)
	}

	return c.retrying(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return c.do(req, server)
	})
}

func (c *HTTPClient) CreateOrUpdateJob(ctx context.Context, server *types.JenkinsServer, jobName, configXML string) error {
	base := strings.TrimSuffix(server.URL, "/")

	exists, err := c.jobExists(ctx, server, jobName)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/createItem?name=%s", base, url.QueryEscape(jobName))
	if exists {
		endpoint = fmt.Sprintf("%s/job/%s/config.xml", base, url.PathEscape(jobName))
	}

	return c.retrying(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(configXML))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/xml")
		return c.do(req, server)
	})
}

func (c *HTTPClient) DeleteJob(ctx context.Context, server *types.JenkinsServer, jobName string) error {
	endpoint := fmt.Sprintf("%s/job/%s/doDelete", strings.TrimSuffix(server.URL, "/"), url.PathEscape(jobName))

	return c.retrying(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
		if err != nil {
			return err
		}
		return c.do(req, server)
	})
}

func (c *HTTPClient) jobExists(ctx context.Context, server *types.JenkinsServer, jobName string) (bool, error) {
	endpoint := fmt.Sprintf("%s/job/%s/api/json", strings.TrimSuffix(server.URL, "/"), url.PathEscape(jobName))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.SetBasicAuth(server.Username, server.Password)

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("unexpected status %d checking job %s", resp.StatusCode, jobName)
	}
	return true, nil
}

func (c *HTTPClient) get(ctx context.Context, server *types.JenkinsServer, endpoint string) ([]byte, error) {
	var body []byte
	err := c.retrying(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.SetBasicAuth(server.Username, server.Password)

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
		}
		body, err = io.ReadAll(resp.Body)
		return err
	})
	return body, err
}

func (c *HTTPClient) do(req *http.Request, server *types.JenkinsServer) error {
	req.SetBasicAuth(server.Username, server.Password)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL)
	}
	return nil
}

func (c *HTTPClient) retrying(ctx context.Context, operation func() error) error {
	return retry.Do(
		operation,
		retry.Context(ctx),
		retry.Attempts(c.cfg.RetryAttempts),
		retry.LastErrorOnly(true),
	)
}
