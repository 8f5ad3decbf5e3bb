package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// LocalArchiver stores result videos on local disk. The server exposes
// the directory under /outputs/ so the returned URLs resolve.
type LocalArchiver struct {
	dir        string
	baseURL    string
	httpClient *http.Client
}

// NewLocalArchiver creates the output directory if needed. baseURL is
// the public prefix for stored files; when empty the archiver returns
// server-relative /outputs/ paths.
func NewLocalArchiver(dir, baseURL string) (*LocalArchiver, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "swap-studio-outputs")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	return &LocalArchiver{
		dir:        dir,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultFetchTimeout},
	}, nil
}

// Dir returns the directory results are written to.
func (a *LocalArchiver) Dir() string {
	return a.dir
}

// Archive downloads the result at srcURL into the output directory and
// returns the URL it is served under.
func (a *LocalArchiver) Archive(ctx context.Context, key, srcURL string) (string, error) {
	body, _, err := fetchResult(ctx, a.httpClient, srcURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	// Keys are generated internally but Base guards against separators.
	name := filepath.Base(key)
	path := filepath.Join(a.dir, name)

	f, err := os.Create(path) // #nosec G304 -- path is built from the managed output dir
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write output file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close output file: %w", err)
	}

	if a.baseURL == "" {
		return "/outputs/" + name, nil
	}
	return a.baseURL + "/" + name, nil
}
