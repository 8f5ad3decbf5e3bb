// Package storage re-hosts finished result videos. Provider output URLs
// expire after a retention window, so archiving gives clients a durable
// link. Implementations cover S3 and local disk; NoopArchiver leaves
// results at the provider URL when neither is configured.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrFetchFailed is returned when the provider's result URL cannot be
// downloaded.
var ErrFetchFailed = errors.New("storage: fetch result failed")

// defaultFetchTimeout bounds one result download.
const defaultFetchTimeout = 120 * time.Second

// Archiver stores a finished result video durably.
type Archiver interface {
	// Archive downloads the video at srcURL, stores it under key and
	// returns the URL clients should use instead.
	Archive(ctx context.Context, key, srcURL string) (string, error)
}

// NoopArchiver leaves results at the provider URL.
type NoopArchiver struct{}

// Archive returns srcURL unchanged.
func (NoopArchiver) Archive(_ context.Context, _ string, srcURL string) (string, error) {
	return srcURL, nil
}

// fetchResult downloads a result video from the provider's URL and
// returns the body plus its content type. The caller closes the body.
func fetchResult(ctx context.Context, client *http.Client, srcURL string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, "", fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	return resp.Body, contentType, nil
}
