// Package client provides a Go client for the Swap Studio API.
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
	"strings"
	"time"
)

const (
	defaultTimeout      = 120 * time.Second
	defaultPollInterval = 5 * time.Second
	defaultMaxWait      = 30 * time.Minute
)

var (
	// ErrBaseURLRequired is returned when creating a client without a base URL.
	ErrBaseURLRequired = errors.New("client: base url is required")
	// ErrJobIDRequired is returned when a job operation is called with an
	// empty job id.
	ErrJobIDRequired = errors.New("client: job id is required")
	// ErrPollTimeout is returned when PollUntilDone gives up before the job
	// reaches a terminal status.
	ErrPollTimeout = errors.New("client: poll timed out before job completion")
)

// APIError is a non-success response from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: %s (status %d)", e.Message, e.StatusCode)
}

// Job is the API's view of a submitted generation job. OutputURL and Error
// are nil until the job succeeds or fails.
type Job struct {
	JobID     string  `json:"job_id"`
	Status    string  `json:"status"`
	Progress  int     `json:"progress"`
	OutputURL *string `json:"output_url"`
	Error     *string `json:"error"`
}

// Terminal reports whether the job has reached a final status.
func (j Job) Terminal() bool {
	switch j.Status {
	case "succeeded", "failed", "canceled":
		return true
	}
	return false
}

// SwapRequest holds the inputs for a character swap or motion control job.
// Video and image payloads are base64 encoded, with or without a data URI
// prefix.
type SwapRequest struct {
	VideoData string `json:"video_data"`
	ImageData string `json:"image_data"`
	Prompt    string `json:"prompt,omitempty"`
	Quality   string `json:"quality,omitempty"`
	SwapMode  string `json:"swap_mode,omitempty"`
}

// LipSyncRequest holds the inputs for a lip sync job.
type LipSyncRequest struct {
	VideoData string `json:"video_data"`
	AudioData string `json:"audio_data"`
}

// PollOptions controls PollUntilDone.
type PollOptions struct {
	// Interval between status requests. Defaults to 5 seconds.
	Interval time.Duration
	// MaxWait bounds the total time spent polling. Defaults to 30 minutes.
	MaxWait time.Duration
	// OnUpdate, when set, is called with every observed job state.
	OnUpdate func(Job)
}

// HTTPClient is the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the interface for interacting with the Swap Studio API.
type Client interface {
	// SubmitSwap starts a character swap or motion control job.
	SubmitSwap(ctx context.Context, req SwapRequest) (Job, error)
	// SubmitLipSync starts a lip sync job.
	SubmitLipSync(ctx context.Context, req LipSyncRequest) (Job, error)
	// GetJob fetches the current state of a job.
	GetJob(ctx context.Context, jobID string) (Job, error)
	// CancelJob cancels a running job.
	CancelJob(ctx context.Context, jobID string) (Job, error)
	// PollUntilDone fetches the job at a fixed interval until it reaches a
	// terminal status. Transport failures abort the poll and are returned
	// to the caller.
	PollUntilDone(ctx context.Context, jobID string, opts PollOptions) (Job, error)
}

type client struct {
	baseURL    string
	httpClient HTTPClient
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *client) { c.httpClient = hc }
}

// New creates a Swap Studio API client for the given base URL.
func New(baseURL string, opts ...Option) (Client, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}
	c := &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *client) SubmitSwap(ctx context.Context, req SwapRequest) (Job, error) {
	return c.postJob(ctx, "/api/swap", req)
}

func (c *client) SubmitLipSync(ctx context.Context, req LipSyncRequest) (Job, error) {
	return c.postJob(ctx, "/api/lipsync", req)
}

func (c *client) GetJob(ctx context.Context, jobID string) (Job, error) {
	if jobID == "" {
		return Job{}, ErrJobIDRequired
	}
	return c.doJob(ctx, http.MethodGet, "/api/swap/"+url.PathEscape(jobID), nil)
}

func (c *client) CancelJob(ctx context.Context, jobID string) (Job, error) {
	if jobID == "" {
		return Job{}, ErrJobIDRequired
	}
	return c.doJob(ctx, http.MethodDelete, "/api/swap/"+url.PathEscape(jobID), nil)
}

func (c *client) PollUntilDone(ctx context.Context, jobID string, opts PollOptions) (Job, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	maxWait := opts.MaxWait
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}

	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		j, err := c.GetJob(ctx, jobID)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return Job{}, ErrPollTimeout
			}
			return Job{}, err
		}
		if opts.OnUpdate != nil {
			opts.OnUpdate(j)
		}
		if j.Terminal() {
			return j, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return j, fmt.Errorf("%w: last status %q", ErrPollTimeout, j.Status)
			}
			return j, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *client) postJob(ctx context.Context, path string, payload any) (Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("marshal request: %w", err)
	}
	return c.doJob(ctx, http.MethodPost, path, body)
}

func (c *client) doJob(ctx context.Context, method, path string, body []byte) (Job, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return Job{}, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Job{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Job{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Job{}, parseAPIError(resp.StatusCode, respBody)
	}

	var j Job
	if err := json.Unmarshal(respBody, &j); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	return j, nil
}

// parseAPIError decodes the API's {error, code} payload, falling back to the
// raw body for non-JSON responses.
func parseAPIError(status int, body []byte) error {
	apiErr := &APIError{
		StatusCode: status,
		Message:    strings.TrimSpace(string(body)),
	}
	var payload struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
		apiErr.Code = payload.Code
	}
	return apiErr
}
