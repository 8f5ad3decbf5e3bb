package provider

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/swapstudio/swap-studio-api/internal/kling"
)

// KlingAdapter adapts the Kling client to the Provider interface for
// motion control jobs.
type KlingAdapter struct {
	client kling.Client
}

// NewKlingAdapter creates a new Kling provider adapter.
func NewKlingAdapter(client kling.Client) *KlingAdapter {
	return &KlingAdapter{client: client}
}

// Name returns the provider name.
func (a *KlingAdapter) Name() string { return "kling" }

// Submit creates a motion task. The returned reference is the Kling
// task id.
func (a *KlingAdapter) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if req.Mode != ModeMotionControl {
		return "", fmt.Errorf("kling adapter: unsupported mode %q", req.Mode)
	}

	taskID, err := a.client.CreateMotionTask(ctx, kling.MotionTaskRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(req.Image.Data),
		VideoBase64: base64.StdEncoding.EncodeToString(req.Video.Data),
		Prompt:      req.Prompt,
		Mode:        string(req.Quality),
	})
	if err != nil {
		return "", fmt.Errorf("kling adapter submit: %w", err)
	}
	return taskID, nil
}

// Poll checks the task status.
func (a *KlingAdapter) Poll(ctx context.Context, ref string) (PollResult, error) {
	task, err := a.client.GetTask(ctx, ref)
	if err != nil {
		return PollResult{}, fmt.Errorf("kling adapter poll: %w", err)
	}

	switch {
	case task.Status == kling.StatusSubmitted:
		return PollResult{Status: StatusPending, Progress: ProgressUnreported}, nil
	case task.Status.IsSuccess():
		if task.VideoURL == "" {
			return PollResult{Status: StatusFailed, Progress: ProgressUnreported, Error: "no video url in completed task"}, nil
		}
		return PollResult{Status: StatusSucceeded, Progress: 100, OutputURL: task.VideoURL}, nil
	case task.Status.IsFailure():
		msg := task.Message
		if msg == "" {
			msg = "task failed"
		}
		return PollResult{Status: StatusFailed, Progress: ProgressUnreported, Error: msg}, nil
	default:
		// processing and unknown statuses both mean still working.
		return PollResult{Status: StatusProcessing, Progress: ProgressUnreported}, nil
	}
}

// Cancel is a no-op. The Kling API exposes no cancellation endpoint, so
// local state is authoritative and the upstream task runs to completion.
func (a *KlingAdapter) Cancel(ctx context.Context, ref string) error {
	return nil
}

// Compile-time check that KlingAdapter implements Provider.
var _ Provider = (*KlingAdapter)(nil)
