// Package client provides the HTTP client for the job service's pull
// endpoints. The push side lives in internal/realtime; this client only
// performs on-demand snapshot fetches.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/filmvoice/jobsync/internal/types"
	"github.com/filmvoice/jobsync/pkg/api/v1/routes"
)

// DefaultTimeout is the default timeout for API requests
const DefaultTimeout = 30 * time.Second

// Client is the interface for the job service API
type Client interface {
	// GetJobs returns the full list of jobs visible to the session
	GetJobs(ctx context.Context) ([]types.Job, error)

	// GetJob returns a single job by id
	GetJob(ctx context.Context, id types.JobID) (types.Job, error)
}

var _ Client = &APIClient{}

// Options contains configuration options for the API client
type Options struct {
	// BaseURL is the base URL of the job service
	BaseURL string

	// Timeout is the request timeout
	Timeout time.Duration

	// AuthToken is the bearer token for the authenticated session
	AuthToken string
}

// DefaultOptions returns the default client options
func DefaultOptions() *Options {
	return &Options{
		BaseURL: routes.DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// APIClient implements the Client interface
type APIClient struct {
	baseURL   string
	timeout   time.Duration
	authToken string
}

// NewClient creates a new API client with the given options
func NewClient(opts *Options) (Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &APIClient{
		baseURL:   opts.BaseURL,
		timeout:   timeout,
		authToken: opts.AuthToken,
	}, nil
}

// createAgent creates a new Fiber Agent for the given method and endpoint
func (c *APIClient) createAgent(ctx context.Context, method, endpoint string) (*fiber.Agent, error) {
	fullURL := c.baseURL + endpoint

	var agent *fiber.Agent
	switch method {
	case http.MethodGet:
		agent = fiber.Get(fullURL)
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}

	// Set timeout from context or client default
	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	} else {
		agent.Timeout(c.timeout)
	}

	agent.Set("Accept", "application/json")
	if c.authToken != "" {
		agent.Set("Authorization", "Bearer "+c.authToken)
	}

	return agent, nil
}

// doRequest sends the HTTP request and returns the response body
func (c *APIClient) doRequest(agent *fiber.Agent) ([]byte, error) {
	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("error sending request: %w", errs[0])
	}

	if statusCode < 200 || statusCode >= 300 {
		return nil, &fiber.Error{
			Code:    statusCode,
			Message: string(body),
		}
	}

	return body, nil
}

// GetJobs returns the full list of jobs visible to the session. The
// endpoint serves either a bare array or a wrapped object; both decode.
func (c *APIClient) GetJobs(ctx context.Context) ([]types.Job, error) {
	agent, err := c.createAgent(ctx, http.MethodGet, routes.GetJobsURL(nil))
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(agent)
	if err != nil {
		return nil, err
	}

	return decodeJobList(body)
}

// GetJob returns a single job by id
func (c *APIClient) GetJob(ctx context.Context, id types.JobID) (types.Job, error) {
	agent, err := c.createAgent(ctx, http.MethodGet, routes.GetJobURL(string(id)))
	if err != nil {
		return types.Job{}, err
	}

	body, err := c.doRequest(agent)
	if err != nil {
		return types.Job{}, err
	}

	var job types.Job
	if err := json.Unmarshal(body, &job); err != nil {
		return types.Job{}, fmt.Errorf("error decoding job: %w", err)
	}
	return job, nil
}

// decodeJobList accepts both snapshot shapes served in the wild: a bare
// array of jobs, or an object wrapping the array under "jobs".
func decodeJobList(body []byte) ([]types.Job, error) {
	var bare []types.Job
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}

	var wrapped struct {
		Jobs []types.Job `json:"jobs"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("error decoding job list: %w", err)
	}
	return wrapped.Jobs, nil
}
