package provider

import (
	"context"
	"fmt"

	"github.com/swapstudio/swap-studio-api/internal/replicate"
)

// defaultMotionPrompt drives the motion transfer when no prompt is given.
const defaultMotionPrompt = "person performing the motion naturally"

// ReplicateAdapter adapts the Replicate client to the Provider interface
// for motion control jobs, using the hosted Kling motion control model.
type ReplicateAdapter struct {
	client replicate.Client
}

// NewReplicateAdapter creates a new Replicate provider adapter.
func NewReplicateAdapter(client replicate.Client) *ReplicateAdapter {
	return &ReplicateAdapter{client: client}
}

// Name returns the provider name.
func (a *ReplicateAdapter) Name() string { return "replicate" }

// Submit uploads the media and starts a prediction. The returned
// reference is the prediction id.
func (a *ReplicateAdapter) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if req.Mode != ModeMotionControl {
		return "", fmt.Errorf("replicate adapter: unsupported mode %q", req.Mode)
	}

	imageURL, err := a.client.UploadFile(ctx, "character.png", req.Image.Data)
	if err != nil {
		return "", fmt.Errorf("replicate adapter submit: upload image: %w", err)
	}
	videoURL, err := a.client.UploadFile(ctx, "motion.mp4", req.Video.Data)
	if err != nil {
		return "", fmt.Errorf("replicate adapter submit: upload video: %w", err)
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = defaultMotionPrompt
	}

	pred, err := a.client.CreatePrediction(ctx, replicate.PredictionInput{
		Image:                imageURL,
		Video:                videoURL,
		Prompt:               prompt,
		Mode:                 string(req.Quality),
		CharacterOrientation: "video",
		KeepOriginalSound:    true,
	})
	if err != nil {
		return "", fmt.Errorf("replicate adapter submit: %w", err)
	}
	// A prediction that fails before it is ever polled is a submission
	// failure, not a trackable job.
	if pred.Status == replicate.StatusFailed {
		msg := pred.Error
		if msg == "" {
			msg = "prediction failed"
		}
		return "", fmt.Errorf("replicate adapter submit: %s", msg)
	}
	return pred.ID, nil
}

// Poll checks the prediction status.
func (a *ReplicateAdapter) Poll(ctx context.Context, ref string) (PollResult, error) {
	pred, err := a.client.GetPrediction(ctx, ref)
	if err != nil {
		return PollResult{}, fmt.Errorf("replicate adapter poll: %w", err)
	}

	switch pred.Status {
	case replicate.StatusStarting:
		return PollResult{Status: StatusPending, Progress: ProgressUnreported}, nil
	case replicate.StatusProcessing:
		return PollResult{Status: StatusProcessing, Progress: ProgressUnreported}, nil
	case replicate.StatusSucceeded:
		if pred.OutputURL == "" {
			return PollResult{Status: StatusFailed, Progress: ProgressUnreported, Error: "no output url in succeeded prediction"}, nil
		}
		return PollResult{Status: StatusSucceeded, Progress: 100, OutputURL: pred.OutputURL}, nil
	case replicate.StatusFailed:
		msg := pred.Error
		if msg == "" {
			msg = "prediction failed"
		}
		return PollResult{Status: StatusFailed, Progress: ProgressUnreported, Error: msg}, nil
	case replicate.StatusCanceled:
		// Cancellation is client-initiated in this service; a provider
		// side cancellation reads as a failure.
		return PollResult{Status: StatusFailed, Progress: ProgressUnreported, Error: "canceled by provider"}, nil
	default:
		return PollResult{Status: StatusProcessing, Progress: ProgressUnreported}, nil
	}
}

// Cancel asks Replicate to stop the prediction.
func (a *ReplicateAdapter) Cancel(ctx context.Context, ref string) error {
	if err := a.client.CancelPrediction(ctx, ref); err != nil {
		return fmt.Errorf("replicate adapter cancel: %w", err)
	}
	return nil
}

// Compile-time check that ReplicateAdapter implements Provider.
var _ Provider = (*ReplicateAdapter)(nil)
