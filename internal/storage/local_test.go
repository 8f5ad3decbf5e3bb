package storage

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestNewLocalArchiver_DefaultDir(t *testing.T) {
	a, err := NewLocalArchiver("", "")
	if err != nil {
		t.Fatalf("NewLocalArchiver() error = %v", err)
	}
	if a.Dir() == "" {
		t.Error("Dir() is empty")
	}
	if _, err := os.Stat(a.Dir()); err != nil {
		t.Errorf("output dir not created: %v", err)
	}
}

func TestLocalArchiver_Archive(t *testing.T) {
	video := []byte("fake video bytes")
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write(video)
	}))
	defer src.Close()

	dir := t.TempDir()
	a, err := NewLocalArchiver(dir, "http://localhost:8000/outputs")
	if err != nil {
		t.Fatalf("NewLocalArchiver() error = %v", err)
	}

	url, err := a.Archive(context.Background(), "job-1.mp4", src.URL+"/result.mp4")
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if url != "http://localhost:8000/outputs/job-1.mp4" {
		t.Errorf("Archive() url = %q", url)
	}

	stored, err := os.ReadFile(filepath.Join(dir, "job-1.mp4"))
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	if !bytes.Equal(stored, video) {
		t.Error("stored bytes differ from source")
	}
}

func TestLocalArchiver_ArchiveRelativeURL(t *testing.T) {
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("video"))
	}))
	defer src.Close()

	a, err := NewLocalArchiver(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewLocalArchiver() error = %v", err)
	}

	url, err := a.Archive(context.Background(), "job-2.mp4", src.URL)
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if url != "/outputs/job-2.mp4" {
		t.Errorf("Archive() url = %q, want /outputs/job-2.mp4", url)
	}
}

func TestLocalArchiver_ArchiveStripsKeyPath(t *testing.T) {
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("video"))
	}))
	defer src.Close()

	dir := t.TempDir()
	a, err := NewLocalArchiver(dir, "")
	if err != nil {
		t.Fatalf("NewLocalArchiver() error = %v", err)
	}

	if _, err := a.Archive(context.Background(), "../escape/job-3.mp4", src.URL); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "job-3.mp4")); err != nil {
		t.Errorf("expected file under output dir: %v", err)
	}
}

func TestLocalArchiver_ArchiveSourceError(t *testing.T) {
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer src.Close()

	a, err := NewLocalArchiver(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewLocalArchiver() error = %v", err)
	}

	_, err = a.Archive(context.Background(), "job-4.mp4", src.URL)
	if !errors.Is(err, ErrFetchFailed) {
		t.Errorf("Archive() error = %v, want ErrFetchFailed", err)
	}
}
