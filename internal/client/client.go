package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/saltyorg/sdc/pkg/logger"
)

// Client represents an HTTP client for communicating with the controller server
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new controller client
func NewClient(baseURL string, logger *logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// JobRequest represents a request to start or stop containers. It is sent
// as the JSON body; the controller itself reads timeout and ignore from the
// query string, which StartContainers/StopContainers also set.
type JobRequest struct {
	Timeout int      `json:"timeout"`
	Ignore  []string `json:"ignore,omitempty"`
}

// JobResponse represents a job creation response. Blocked and Message are
// only populated when the controller's block gate rejected the request; in
// that case ID and Status are left empty since no job was ever created.
type JobResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Blocked bool   `json:"blocked,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrBlocked is returned by StartContainers/StopContainers when the
// controller's block gate is active and the request was soft-rejected
// rather than turned into a job.
var ErrBlocked = errors.New("operations are currently blocked")

// Job represents a job's full state
type Job struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Timeout   int       `json:"timeout"`
	Ignore    []string  `json:"ignore,omitempty"`
	Started     []string          `json:"started,omitempty"`
	Stopped     []string          `json:"stopped,omitempty"`
	Skipped     []string          `json:"skipped,omitempty"`
	Failed      []string          `json:"failed,omitempty"`
	SkipReasons map[string]string `json:"skip_reasons,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// PingResponse represents the /ping response body once the server is ready.
type PingResponse struct {
	Message string `json:"message"`
}

// StartContainers submits a job to start containers. The controller's
// /start route reads only the timeout query parameter; ignore is sent in
// the JSON body alone and is not applied to start jobs.
func (c *Client) StartContainers(ctx context.Context, timeout int, ignore []string) (*JobResponse, error) {
	req := JobRequest{
		Timeout: timeout,
		Ignore:  ignore,
	}

	query := url.Values{}
	query.Set("timeout", strconv.Itoa(timeout))

	var resp JobResponse
	if err := c.post(ctx, "/start?"+query.Encode(), req, &resp); err != nil {
		return nil, err
	}

	if resp.Blocked {
		c.logger.Warn("Start job rejected, operations are blocked", "message", resp.Message)
		return &resp, ErrBlocked
	}

	c.logger.Info("Start job submitted",
		"job_id", resp.ID,
		"status", resp.Status)

	return &resp, nil
}

// StopContainers submits a job to stop containers
func (c *Client) StopContainers(ctx context.Context, timeout int, ignore []string) (*JobResponse, error) {
	req := JobRequest{
		Timeout: timeout,
		Ignore:  ignore,
	}

	query := url.Values{}
	query.Set("timeout", strconv.Itoa(timeout))
	for _, name := range ignore {
		query.Add("ignore", name)
	}

	var resp JobResponse
	if err := c.post(ctx, "/stop?"+query.Encode(), req, &resp); err != nil {
		return nil, err
	}

	if resp.Blocked {
		c.logger.Warn("Stop job rejected, operations are blocked", "message", resp.Message)
		return &resp, ErrBlocked
	}

	c.logger.Info("Stop job submitted",
		"job_id", resp.ID,
		"status", resp.Status)

	return &resp, nil
}

// GetJob retrieves job status and results
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := c.get(ctx, fmt.Sprintf("/job_status/%s", jobID), &job); err != nil {
		return nil, err
	}

	return &job, nil
}

// WaitForJob waits for a job to complete (completed or failed status)
func (c *Client) WaitForJob(ctx context.Context, jobID string, pollInterval time.Duration) (*Job, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			job, err := c.GetJob(ctx, jobID)
			if err != nil {
				return nil, fmt.Errorf("failed to get job status: %w", err)
			}

			c.logger.Debug("Job status",
				"job_id", jobID,
				"status", job.Status)

			if job.Status == "completed" || job.Status == "failed" {
				return job, nil
			}
		}
	}
}

// Health checks if the server is ready. /ping returns a non-2xx status
// until the controller has successfully pinged the Docker engine at
// startup; get() turns that into an error here.
func (c *Client) Health(ctx context.Context) error {
	var resp PingResponse
	if err := c.get(ctx, "/ping", &resp); err != nil {
		return fmt.Errorf("server is not ready: %w", err)
	}
	return nil
}

// WaitForServerReady waits for the server to become ready
func (c *Client) WaitForServerReady(ctx context.Context, timeout time.Duration) error {
	c.logger.Info("Waiting for server to become ready",
		"url", c.baseURL,
		"timeout", timeout)

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Now().After(deadline) {
				return fmt.Errorf("timeout waiting for server to become ready")
			}

			if err := c.Health(ctx); err != nil {
				c.logger.Debug("Server not ready yet",
					"error", err,
					"remaining", time.Until(deadline))
				continue
			}

			c.logger.Info("Server is ready")
			return nil
		}
	}
}

// post performs a POST request
func (c *Client) post(ctx context.Context, path string, body any, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// get performs a GET request
func (c *Client) get(ctx context.Context, path string, result any) error {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
