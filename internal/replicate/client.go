package replicate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://api.replicate.com"
	defaultTimeout     = 300 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = 500 * time.Millisecond

	octetStream = "application/octet-stream"
)

var (
	// ErrAPITokenRequired is returned when creating a client without an API token.
	ErrAPITokenRequired = errors.New("replicate: api token is required")
	// ErrRateLimited is returned when the API responds with 429.
	ErrRateLimited = errors.New("replicate: rate limited")
	// ErrServerError is returned when the API responds with a 5xx status.
	ErrServerError = errors.New("replicate: server error")
	// ErrRequestFailed is returned for any other non-success response.
	ErrRequestFailed = errors.New("replicate: request failed")
	// ErrMissingPredictionID is returned when a create response carries
	// no prediction id.
	ErrMissingPredictionID = errors.New("replicate: create response missing prediction id")
)

// HTTPClient is the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the interface for interacting with the Replicate API.
type Client interface {
	// UploadFile stores a file with Replicate and returns a URL the
	// model can fetch. Falls back to an inline data URI when the file
	// API is unavailable.
	UploadFile(ctx context.Context, filename string, data []byte) (string, error)
	// CreatePrediction starts a motion control prediction.
	CreatePrediction(ctx context.Context, input PredictionInput) (Prediction, error)
	// GetPrediction polls a prediction by id.
	GetPrediction(ctx context.Context, id string) (Prediction, error)
	// CancelPrediction asks Replicate to stop a running prediction.
	CancelPrediction(ctx context.Context, id string) error
}

type client struct {
	apiToken    string
	baseURL     string
	httpClient  HTTPClient
	maxRetries  int
	baseBackoff time.Duration
}

// Option configures the Replicate client.
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

// NewClient creates a Replicate API client.
func NewClient(apiToken string, opts ...Option) (Client, error) {
	if apiToken == "" {
		return nil, ErrAPITokenRequired
	}
	c := &client{
		apiToken:    apiToken,
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

// UploadFile never fails outright: when the file API rejects the upload
// the bytes are inlined as a data URI, which the prediction API accepts
// for small payloads.
func (c *client) UploadFile(ctx context.Context, filename string, data []byte) (string, error) {
	inline := "data:" + octetStream + ";base64," + base64.StdEncoding.EncodeToString(data)

	createBody, err := json.Marshal(createFileRequest{
		Filename:    filename,
		ContentType: octetStream,
	})
	if err != nil {
		return "", fmt.Errorf("marshal file creation: %w", err)
	}

	respBody, err := c.doRequestWithRetry(ctx, http.MethodPost, c.baseURL+"/v1/files", createBody, "application/json")
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return inline, nil
	}

	var created createFileResponse
	if err := json.Unmarshal(respBody, &created); err != nil {
		return inline, nil
	}
	if created.UploadURL == "" || created.URLs.Get == "" {
		return inline, nil
	}

	if _, err := c.doRequestWithRetry(ctx, http.MethodPut, created.UploadURL, data, octetStream); err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return inline, nil
	}
	return created.URLs.Get, nil
}

// CreatePrediction does not retry. A retried submission could start the
// same generation twice; callers surface the failure instead.
func (c *client) CreatePrediction(ctx context.Context, input PredictionInput) (Prediction, error) {
	body, err := json.Marshal(predictionRequest{
		Version: MotionControlVersion,
		Input:   input,
	})
	if err != nil {
		return Prediction{}, fmt.Errorf("marshal prediction request: %w", err)
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/v1/predictions", body, "application/json")
	if err != nil {
		return Prediction{}, err
	}

	prediction, err := decodePrediction(respBody)
	if err != nil {
		return Prediction{}, err
	}
	if prediction.ID == "" {
		return Prediction{}, ErrMissingPredictionID
	}
	return prediction, nil
}

func (c *client) GetPrediction(ctx context.Context, id string) (Prediction, error) {
	respBody, err := c.doRequestWithRetry(ctx, http.MethodGet, c.baseURL+"/v1/predictions/"+id, nil, "")
	if err != nil {
		return Prediction{}, err
	}
	return decodePrediction(respBody)
}

func (c *client) CancelPrediction(ctx context.Context, id string) error {
	_, err := c.doRequestWithRetry(ctx, http.MethodPost, c.baseURL+"/v1/predictions/"+id+"/cancel", nil, "")
	return err
}

func decodePrediction(body []byte) (Prediction, error) {
	var resp predictionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Prediction{}, fmt.Errorf("decode prediction response: %w", err)
	}
	return Prediction{
		ID:        resp.ID,
		Status:    Status(resp.Status),
		OutputURL: resp.Output.URL,
		Error:     resp.Error,
	}, nil
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
	return nil, fmt.Errorf("replicate: retries exhausted: %w", lastErr)
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
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
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
		Detail string `json:"detail"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Detail != "" {
			return payload.Detail
		}
		if payload.Title != "" {
			return payload.Title
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return msg
}
