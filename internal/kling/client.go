package kling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://api.klingai.com"
	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = 500 * time.Millisecond

	modelName = "kling-v2-6"
	// defaultPrompt guides the model when the caller supplies none.
	defaultPrompt = "person performing natural movement"
)

var (
	// ErrCredentialsRequired is returned when creating a client without
	// an access key and secret key pair.
	ErrCredentialsRequired = errors.New("kling: access key and secret key are required")
	// ErrRateLimited is returned when the API responds with 429.
	ErrRateLimited = errors.New("kling: rate limited")
	// ErrServerError is returned when the API responds with a 5xx status.
	ErrServerError = errors.New("kling: server error")
	// ErrRequestFailed is returned for any other non-success response.
	ErrRequestFailed = errors.New("kling: request failed")
	// ErrMissingTaskID is returned when a create response carries no task id.
	ErrMissingTaskID = errors.New("kling: create response missing task id")
)

// HTTPClient is the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the interface for interacting with the Kling API.
type Client interface {
	// CreateMotionTask submits a character image to be animated by a
	// driving video and returns the task id.
	CreateMotionTask(ctx context.Context, req MotionTaskRequest) (string, error)
	// GetTask polls a previously created task.
	GetTask(ctx context.Context, taskID string) (TaskStatus, error)
}

type client struct {
	accessKey   string
	secretKey   string
	baseURL     string
	httpClient  HTTPClient
	maxRetries  int
	baseBackoff time.Duration
}

// Option configures the Kling client.
type Option func(*client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *client) { c.httpClient = hc }
}

// WithMaxRetries sets the number of retries for retryable failures.
func WithMaxRetries(n int) Option {
	return func(c *client) { c.maxRetries = n }
}

// WithBaseBackoff sets the base backoff between retries.
func WithBaseBackoff(d time.Duration) Option {
	return func(c *client) { c.baseBackoff = d }
}

// NewClient creates a Kling API client.
func NewClient(accessKey, secretKey string, opts ...Option) (Client, error) {
	if accessKey == "" || secretKey == "" {
		return nil, ErrCredentialsRequired
	}
	c := &client{
		accessKey:   accessKey,
		secretKey:   secretKey,
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		maxRetries:  defaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateMotionTask does not retry. A retried submission could start the
// same generation twice; callers surface the failure instead. When the
// image2video endpoint rejects the motion payload with 400 or 404 the
// request is resubmitted once to the dedicated motion endpoint.
func (c *client) CreateMotionTask(ctx context.Context, req MotionTaskRequest) (string, error) {
	prompt := req.Prompt
	if prompt == "" {
		prompt = defaultPrompt
	}

	primary, err := json.Marshal(motionControlRequest{
		ModelName:   modelName,
		Image:       req.ImageBase64,
		Prompt:      prompt,
		Mode:        req.Mode,
		Duration:    "5",
		CFGScale:    0.5,
		MotionVideo: req.VideoBase64,
	})
	if err != nil {
		return "", fmt.Errorf("marshal create request: %w", err)
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/v1/videos/image2video", primary)
	if err != nil {
		var apiErr *apiError
		if !errors.As(err, &apiErr) || (apiErr.statusCode != http.StatusBadRequest && apiErr.statusCode != http.StatusNotFound) {
			return "", err
		}
		fallback, merr := json.Marshal(motionFallbackRequest{
			ModelName:            modelName,
			Image:                req.ImageBase64,
			ReferenceVideo:       req.VideoBase64,
			Prompt:               prompt,
			Mode:                 req.Mode,
			CharacterOrientation: "video",
			KeepAudio:            true,
		})
		if merr != nil {
			return "", fmt.Errorf("marshal fallback request: %w", merr)
		}
		if body, err = c.doRequest(ctx, http.MethodPost, "/v1/videos/motion", fallback); err != nil {
			return "", err
		}
	}

	var envelope taskEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	taskID := envelope.taskID()
	if taskID == "" {
		return "", ErrMissingTaskID
	}
	return taskID, nil
}

// GetTask polls the image2video path first and falls back to the motion
// path, matching wherever the task was registered at creation.
func (c *client) GetTask(ctx context.Context, taskID string) (TaskStatus, error) {
	body, err := c.doRequestWithRetry(ctx, http.MethodGet, "/v1/videos/image2video/"+taskID, nil)
	if err != nil {
		if ctx.Err() != nil {
			return TaskStatus{}, err
		}
		fallbackBody, fbErr := c.doRequestWithRetry(ctx, http.MethodGet, "/v1/videos/motion/"+taskID, nil)
		if fbErr != nil {
			return TaskStatus{}, err
		}
		body = fallbackBody
	}

	var envelope taskEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return TaskStatus{}, fmt.Errorf("decode task response: %w", err)
	}
	return TaskStatus{
		Status:   envelope.status(),
		VideoURL: envelope.videoURL(),
		Message:  envelope.failureMessage(),
	}, nil
}

// retryableError marks errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// apiError is a non-success API response, kept typed so the create path
// can detect the 400/404 responses that trigger the endpoint fallback.
type apiError struct {
	statusCode int
	message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("kling: request failed: status %d: %s", e.statusCode, e.message)
}

func (e *apiError) Unwrap() error { return ErrRequestFailed }

func (c *client) doRequestWithRetry(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		respBody, err := c.doRequest(ctx, method, path, body)
		if err == nil {
			return respBody, nil
		}

		var retryable *retryableError
		if !errors.As(err, &retryable) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("kling: retries exhausted: %w", lastErr)
}

func (c *client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	token, err := signToken(c.accessKey, c.secretKey, time.Now())
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("execute request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("read response body: %w", err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return respBody, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &retryableError{err: ErrRateLimited}
	case resp.StatusCode >= 500:
		return nil, &retryableError{err: fmt.Errorf("%w: status %d", ErrServerError, resp.StatusCode)}
	default:
		return nil, &apiError{statusCode: resp.StatusCode, message: errorMessage(respBody)}
	}
}

// errorMessage extracts a human readable message from an API error body.
func errorMessage(body []byte) string {
	var envelope taskEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil {
		if msg := envelope.failureMessage(); msg != "" {
			return msg
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return msg
}
