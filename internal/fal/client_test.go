package fal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusInQueue, false},
		{StatusQueued, false},
		{StatusInProgress, false},
		{StatusProcessing, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusError, true},
		{Status("UNKNOWN"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("Status(%q).IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
			}
		})
	}
}

func TestNewClient_MissingAPIKey(t *testing.T) {
	_, err := NewClient()
	if !errors.Is(err, ErrAPIKeyRequired) {
		t.Errorf("expected ErrAPIKeyRequired, got %v", err)
	}
}

func TestUpload_Success(t *testing.T) {
	var uploaded []byte
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("POST /storage/upload/initiate", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Key test-key" {
			t.Errorf("expected Key test-key, got %s", r.Header.Get("Authorization"))
		}
		var req initiateUploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if req.ContentType != "video/mp4" {
			t.Errorf("expected content_type video/mp4, got %s", req.ContentType)
		}
		if req.FileName != "input.mp4" {
			t.Errorf("expected file_name input.mp4, got %s", req.FileName)
		}
		_ = json.NewEncoder(w).Encode(initiateUploadResponse{
			UploadURL: server.URL + "/upload/dest",
			FileURL:   "https://storage.fal.ai/files/input.mp4",
		})
	})
	mux.HandleFunc("PUT /upload/dest", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "video/mp4" {
			t.Errorf("expected Content-Type video/mp4, got %s", r.Header.Get("Content-Type"))
		}
		uploaded, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})

	client, _ := NewClient(WithAPIKey("test-key"), WithRestBaseURL(server.URL))

	url, err := client.Upload(context.Background(), "input.mp4", "video/mp4", []byte("video-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://storage.fal.ai/files/input.mp4" {
		t.Errorf("expected file URL, got %s", url)
	}
	if string(uploaded) != "video-bytes" {
		t.Errorf("expected uploaded body video-bytes, got %s", uploaded)
	}
}

func TestUpload_InitiateMissingURLs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(initiateUploadResponse{})
	}))
	defer server.Close()

	client, _ := NewClient(WithAPIKey("test-key"), WithRestBaseURL(server.URL))

	_, err := client.Upload(context.Background(), "input.mp4", "video/mp4", []byte("x"))
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("expected ErrRequestFailed, got %v", err)
	}
}

func TestSubmit_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/fal-ai/kling-video/o1/video-to-video/edit" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req EditRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if req.VideoURL != "https://storage/video.mp4" {
			t.Errorf("expected video url, got %s", req.VideoURL)
		}
		if len(req.Elements) != 1 || req.Elements[0].FrontalImageURL != "https://storage/face.png" {
			t.Errorf("unexpected elements %+v", req.Elements)
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(submitResponse{
			RequestID:   "req-123",
			StatusURL:   "https://queue.fal.run/model/requests/req-123/status",
			ResponseURL: "https://queue.fal.run/model/requests/req-123",
		})
	}))
	defer server.Close()

	client, _ := NewClient(WithAPIKey("test-key"), WithQueueBaseURL(server.URL))

	sub, err := client.Submit(context.Background(), ModelKlingEdit, EditRequest{
		VideoURL:  "https://storage/video.mp4",
		Prompt:    "swap the person",
		Elements:  []Element{{FrontalImageURL: "https://storage/face.png", ReferenceImageURLs: []string{"https://storage/face.png"}}},
		KeepAudio: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.RequestID != "req-123" {
		t.Errorf("expected req-123, got %s", sub.RequestID)
	}
	if sub.CancelURL != "https://queue.fal.run/model/requests/req-123/cancel" {
		t.Errorf("unexpected cancel URL %s", sub.CancelURL)
	}
}

func TestSubmit_DerivesURLsWhenMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(submitResponse{RequestID: "req-9"})
	}))
	defer server.Close()

	client, _ := NewClient(WithAPIKey("test-key"), WithQueueBaseURL(server.URL))

	sub, err := client.Submit(context.Background(), ModelKlingLipSync, LipSyncRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantStatus := server.URL + "/" + ModelKlingLipSync + "/requests/req-9/status"
	if sub.StatusURL != wantStatus {
		t.Errorf("expected status URL %s, got %s", wantStatus, sub.StatusURL)
	}
	if sub.ResponseURL != strings.TrimSuffix(wantStatus, "/status") {
		t.Errorf("unexpected response URL %s", sub.ResponseURL)
	}
	if !strings.HasSuffix(sub.CancelURL, "/requests/req-9/cancel") {
		t.Errorf("unexpected cancel URL %s", sub.CancelURL)
	}
}

func TestSubmit_MissingRequestID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(submitResponse{})
	}))
	defer server.Close()

	client, _ := NewClient(WithAPIKey("test-key"), WithQueueBaseURL(server.URL))

	_, err := client.Submit(context.Background(), ModelKlingEdit, EditRequest{})
	if !errors.Is(err, ErrMissingRequestID) {
		t.Errorf("expected ErrMissingRequestID, got %v", err)
	}
}

func TestSubmit_DoesNotRetryServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := NewClient(WithAPIKey("test-key"), WithQueueBaseURL(server.URL), WithBaseBackoff(time.Millisecond))

	_, err := client.Submit(context.Background(), ModelKlingEdit, EditRequest{})
	if !errors.Is(err, ErrServerError) {
		t.Errorf("expected ErrServerError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestStatus_AllStatuses(t *testing.T) {
	tests := []struct {
		name     string
		response statusResponse
		expected StatusResult
	}{
		{
			name:     "IN_QUEUE",
			response: statusResponse{Status: "IN_QUEUE"},
			expected: StatusResult{Status: StatusInQueue},
		},
		{
			name:     "IN_PROGRESS",
			response: statusResponse{Status: "IN_PROGRESS"},
			expected: StatusResult{Status: StatusInProgress},
		},
		{
			name:     "lowercase completed normalised",
			response: statusResponse{Status: "completed"},
			expected: StatusResult{Status: StatusCompleted},
		},
		{
			name:     "COMPLETED with inline video",
			response: statusResponse{Status: "COMPLETED", Video: video{URL: "https://out/video.mp4"}},
			expected: StatusResult{Status: StatusCompleted, VideoURL: "https://out/video.mp4"},
		},
		{
			name:     "FAILED with error",
			response: statusResponse{Status: "FAILED", Error: "generation failed"},
			expected: StatusResult{Status: StatusFailed, Error: "generation failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(tt.response)
			}))
			defer server.Close()

			client, _ := NewClient(WithAPIKey("test-key"))

			got, err := client.Status(context.Background(), server.URL+"/status")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Status() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestStatus_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(statusResponse{Status: "IN_PROGRESS"})
	}))
	defer server.Close()

	client, _ := NewClient(WithAPIKey("test-key"), WithBaseBackoff(time.Millisecond))

	got, err := client.Status(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusInProgress {
		t.Errorf("expected IN_PROGRESS, got %s", got.Status)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestStatus_RetriesExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := NewClient(WithAPIKey("test-key"), WithMaxRetries(2), WithBaseBackoff(time.Millisecond))

	_, err := client.Status(context.Background(), server.URL)
	if !errors.Is(err, ErrServerError) {
		t.Errorf("expected ErrServerError, got %v", err)
	}
}

func TestResult_VideoObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"video": {"url": "https://out/final.mp4"}}`))
	}))
	defer server.Close()

	client, _ := NewClient(WithAPIKey("test-key"))

	got, err := client.Result(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.VideoURL != "https://out/final.mp4" {
		t.Errorf("expected https://out/final.mp4, got %s", got.VideoURL)
	}
}

func TestResult_VideoString(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"video": "https://out/final.mp4"}`))
	}))
	defer server.Close()

	client, _ := NewClient(WithAPIKey("test-key"))

	got, err := client.Result(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.VideoURL != "https://out/final.mp4" {
		t.Errorf("expected https://out/final.mp4, got %s", got.VideoURL)
	}
}

func TestResult_VideoURLFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"video_url": "https://out/alt.mp4"}`))
	}))
	defer server.Close()

	client, _ := NewClient(WithAPIKey("test-key"))

	got, err := client.Result(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.VideoURL != "https://out/alt.mp4" {
		t.Errorf("expected https://out/alt.mp4, got %s", got.VideoURL)
	}
}

func TestResult_NoVideo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, _ := NewClient(WithAPIKey("test-key"))

	_, err := client.Result(context.Background(), server.URL)
	if !errors.Is(err, ErrNoVideo) {
		t.Errorf("expected ErrNoVideo, got %v", err)
	}
}

func TestCancel_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, _ := NewClient(WithAPIKey("test-key"))

	if err := client.Cancel(context.Background(), server.URL+"/cancel"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStatus_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second)
	}))
	defer server.Close()

	client, _ := NewClient(WithAPIKey("test-key"))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.Status(ctx, server.URL)
	if err == nil {
		t.Error("expected error due to context cancellation")
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"detail string", `{"detail": "bad prompt"}`, "bad prompt"},
		{"error field", `{"error": "quota exceeded"}`, "quota exceeded"},
		{"message field", `{"message": "not found"}`, "not found"},
		{"plain text", `something broke`, "something broke"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorMessage([]byte(tt.body)); got != tt.want {
				t.Errorf("errorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
