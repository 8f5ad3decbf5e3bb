package fal

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
	defaultQueueBaseURL = "https://queue.fal.run"
	defaultRestBaseURL  = "https://rest.alpha.fal.ai"
	defaultTimeout      = 120 * time.Second
	defaultMaxRetries   = 3
	defaultBaseBackoff  = 500 * time.Millisecond
)

var (
	// ErrAPIKeyRequired is returned when creating a client without an API key.
	ErrAPIKeyRequired = errors.New("fal: api key is required")
	// ErrRateLimited is returned when the API responds with 429.
	ErrRateLimited = errors.New("fal: rate limited")
	// ErrServerError is returned when the API responds with a 5xx status.
	ErrServerError = errors.New("fal: server error")
	// ErrRequestFailed is returned for any other non-success response.
	ErrRequestFailed = errors.New("fal: request failed")
	// ErrMissingRequestID is returned when a queue submission response
	// carries no request id.
	ErrMissingRequestID = errors.New("fal: submission response missing request id")
	// ErrNoVideo is returned when a completed request has no video in its
	// result payload.
	ErrNoVideo = errors.New("fal: no video url in result")
)

// HTTPClient is the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the interface for interacting with the fal.ai queue API.
type Client interface {
	// Upload stores a file in fal.ai storage and returns its public URL.
	Upload(ctx context.Context, fileName, contentType string, data []byte) (string, error)
	// Submit enqueues a generation request for the given model.
	Submit(ctx context.Context, modelID string, payload any) (QueueSubmission, error)
	// Status polls the status endpoint of a queued request.
	Status(ctx context.Context, statusURL string) (StatusResult, error)
	// Result fetches the final payload of a completed request.
	Result(ctx context.Context, responseURL string) (ResultPayload, error)
	// Cancel asks the queue to stop a request. Best effort.
	Cancel(ctx context.Context, cancelURL string) error
}

type client struct {
	apiKey       string
	queueBaseURL string
	restBaseURL  string
	httpClient   HTTPClient
	maxRetries   int
	baseBackoff  time.Duration
}

// Option configures the fal client.
type Option func(*client)

// WithAPIKey sets the API key used for authentication.
func WithAPIKey(key string) Option {
	return func(c *client) { c.apiKey = key }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *client) { c.httpClient = hc }
}

// WithQueueBaseURL overrides the queue API base URL.
func WithQueueBaseURL(u string) Option {
	return func(c *client) { c.queueBaseURL = strings.TrimRight(u, "/") }
}

// WithRestBaseURL overrides the storage API base URL.
func WithRestBaseURL(u string) Option {
	return func(c *client) { c.restBaseURL = strings.TrimRight(u, "/") }
}

// WithMaxRetries sets the number of retries for retryable failures.
func WithMaxRetries(n int) Option {
	return func(c *client) { c.maxRetries = n }
}

// WithBaseBackoff sets the base backoff between retries.
func WithBaseBackoff(d time.Duration) Option {
	return func(c *client) { c.baseBackoff = d }
}

// NewClient creates a fal.ai API client.
func NewClient(opts ...Option) (Client, error) {
	c := &client{
		queueBaseURL: defaultQueueBaseURL,
		restBaseURL:  defaultRestBaseURL,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		maxRetries:   defaultMaxRetries,
		baseBackoff:  defaultBaseBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiKey == "" {
		return nil, ErrAPIKeyRequired
	}
	return c, nil
}

func (c *client) Upload(ctx context.Context, fileName, contentType string, data []byte) (string, error) {
	initBody, err := json.Marshal(initiateUploadRequest{
		ContentType: contentType,
		FileName:    fileName,
	})
	if err != nil {
		return "", fmt.Errorf("marshal upload initiation: %w", err)
	}

	respBody, err := c.doRequestWithRetry(ctx, http.MethodPost, c.restBaseURL+"/storage/upload/initiate", initBody, "application/json")
	if err != nil {
		return "", err
	}

	var initiated initiateUploadResponse
	if err := json.Unmarshal(respBody, &initiated); err != nil {
		return "", fmt.Errorf("decode upload initiation response: %w", err)
	}
	if initiated.UploadURL == "" || initiated.FileURL == "" {
		return "", fmt.Errorf("%w: upload initiation response missing urls", ErrRequestFailed)
	}

	if _, err := c.doRequestWithRetry(ctx, http.MethodPut, initiated.UploadURL, data, contentType); err != nil {
		return "", err
	}
	return initiated.FileURL, nil
}

// Submit does not retry. A retried submission could enqueue the same
// generation twice; callers surface the failure instead.
func (c *client) Submit(ctx context.Context, modelID string, payload any) (QueueSubmission, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return QueueSubmission{}, fmt.Errorf("marshal submission: %w", err)
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, c.queueBaseURL+"/"+strings.TrimLeft(modelID, "/"), body, "application/json")
	if err != nil {
		return QueueSubmission{}, err
	}

	var submitted submitResponse
	if err := json.Unmarshal(respBody, &submitted); err != nil {
		return QueueSubmission{}, fmt.Errorf("decode submission response: %w", err)
	}
	if submitted.RequestID == "" {
		return QueueSubmission{}, ErrMissingRequestID
	}

	sub := QueueSubmission{
		RequestID:   submitted.RequestID,
		StatusURL:   submitted.StatusURL,
		ResponseURL: submitted.ResponseURL,
	}
	// Older models omit the polling URLs; rebuild them from the queue layout.
	requestBase := fmt.Sprintf("%s/%s/requests/%s", c.queueBaseURL, strings.Trim(modelID, "/"), submitted.RequestID)
	if sub.StatusURL == "" {
		sub.StatusURL = requestBase + "/status"
	}
	if sub.ResponseURL == "" {
		sub.ResponseURL = requestBase
	}
	sub.CancelURL = strings.TrimSuffix(sub.StatusURL, "/status") + "/cancel"
	return sub, nil
}

func (c *client) Status(ctx context.Context, statusURL string) (StatusResult, error) {
	respBody, err := c.doRequestWithRetry(ctx, http.MethodGet, statusURL, nil, "")
	if err != nil {
		return StatusResult{}, err
	}

	var status statusResponse
	if err := json.Unmarshal(respBody, &status); err != nil {
		return StatusResult{}, fmt.Errorf("decode status response: %w", err)
	}
	return StatusResult{
		Status:   Status(strings.ToUpper(status.Status)),
		Error:    status.Error,
		VideoURL: status.Video.URL,
	}, nil
}

func (c *client) Result(ctx context.Context, responseURL string) (ResultPayload, error) {
	respBody, err := c.doRequestWithRetry(ctx, http.MethodGet, responseURL, nil, "")
	if err != nil {
		return ResultPayload{}, err
	}

	var result resultResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return ResultPayload{}, fmt.Errorf("decode result response: %w", err)
	}
	videoURL := result.Video.URL
	if videoURL == "" {
		videoURL = result.VideoURL
	}
	if videoURL == "" {
		return ResultPayload{}, ErrNoVideo
	}
	return ResultPayload{VideoURL: videoURL}, nil
}

func (c *client) Cancel(ctx context.Context, cancelURL string) error {
	_, err := c.doRequestWithRetry(ctx, http.MethodPut, cancelURL, nil, "")
	return err
}

// retryableError marks errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func (c *client) doRequestWithRetry(ctx context.Context, method, url string, body []byte, contentType string) ([]byte, error) {
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

		respBody, err := c.doRequest(ctx, method, url, body, contentType)
		if err == nil {
			return respBody, nil
		}

		var retryable *retryableError
		if !errors.As(err, &retryable) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("fal: retries exhausted: %w", lastErr)
}

func (c *client) doRequest(ctx context.Context, method, url string, body []byte, contentType string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
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
		return nil, fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, errorMessage(respBody))
	}
}

// errorMessage extracts a human readable message from an API error body.
func errorMessage(body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if len(payload.Detail) > 0 {
			var s string
			if err := json.Unmarshal(payload.Detail, &s); err == nil && s != "" {
				return s
			}
			return string(payload.Detail)
		}
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return msg
}
