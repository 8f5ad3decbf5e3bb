package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/swapstudio/swap-studio-api/internal/fal"
)

// defaultEditPrompt drives the character swap when no prompt is given.
const defaultEditPrompt = "Replace the person in the video with @Element1, maintaining the same movements, poses, and camera angles"

// FalAdapter adapts the fal.ai client to the Provider interface. It
// serves character swaps through the Kling O1 edit model and lip sync
// through the Kling lip sync model.
type FalAdapter struct {
	client fal.Client
}

// NewFalAdapter creates a new fal.ai provider adapter.
func NewFalAdapter(client fal.Client) *FalAdapter {
	return &FalAdapter{client: client}
}

// Name returns the provider name.
func (a *FalAdapter) Name() string { return "fal" }

// queueRef is the provider reference persisted for a fal job, carrying
// the polling URLs returned at submission.
type queueRef struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
	CancelURL   string `json:"cancel_url"`
}

// Submit uploads the media to fal.ai storage and enqueues the matching
// model. The returned reference encodes the queue polling URLs.
func (a *FalAdapter) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	var sub fal.QueueSubmission
	var err error
	switch req.Mode {
	case ModeCharacterSwap:
		sub, err = a.submitSwap(ctx, req)
	case ModeLipSync:
		sub, err = a.submitLipSync(ctx, req)
	default:
		return "", fmt.Errorf("fal adapter: unsupported mode %q", req.Mode)
	}
	if err != nil {
		return "", fmt.Errorf("fal adapter submit: %w", err)
	}

	ref, err := json.Marshal(queueRef{
		RequestID:   sub.RequestID,
		StatusURL:   sub.StatusURL,
		ResponseURL: sub.ResponseURL,
		CancelURL:   sub.CancelURL,
	})
	if err != nil {
		return "", fmt.Errorf("fal adapter submit: encode reference: %w", err)
	}
	return string(ref), nil
}

func (a *FalAdapter) submitSwap(ctx context.Context, req SubmitRequest) (fal.QueueSubmission, error) {
	imageURL, err := a.client.Upload(ctx, "character."+fileExt(req.Image.MIME), req.Image.MIME, req.Image.Data)
	if err != nil {
		return fal.QueueSubmission{}, fmt.Errorf("upload image: %w", err)
	}
	videoURL, err := a.client.Upload(ctx, "motion."+fileExt(req.Video.MIME), req.Video.MIME, req.Video.Data)
	if err != nil {
		return fal.QueueSubmission{}, fmt.Errorf("upload video: %w", err)
	}

	return a.client.Submit(ctx, fal.ModelKlingEdit, fal.EditRequest{
		VideoURL: videoURL,
		Prompt:   editPrompt(req.Prompt),
		Elements: []fal.Element{{
			FrontalImageURL:    imageURL,
			ReferenceImageURLs: []string{imageURL},
		}},
		KeepAudio: true,
	})
}

func (a *FalAdapter) submitLipSync(ctx context.Context, req SubmitRequest) (fal.QueueSubmission, error) {
	videoURL, err := a.client.Upload(ctx, "lipsync_video."+fileExt(req.Video.MIME), req.Video.MIME, req.Video.Data)
	if err != nil {
		return fal.QueueSubmission{}, fmt.Errorf("upload video: %w", err)
	}
	audioURL, err := a.client.Upload(ctx, "lipsync_audio."+fileExt(req.Audio.MIME), req.Audio.MIME, req.Audio.Data)
	if err != nil {
		return fal.QueueSubmission{}, fmt.Errorf("upload audio: %w", err)
	}

	return a.client.Submit(ctx, fal.ModelKlingLipSync, fal.LipSyncRequest{
		VideoURL: videoURL,
		AudioURL: audioURL,
	})
}

// editPrompt ensures the prompt addresses the swapped character. The
// edit model replaces whatever @Element1 refers to, so a prompt without
// the marker gets the replacement instruction prepended.
func editPrompt(prompt string) string {
	if prompt == "" {
		return defaultEditPrompt
	}
	if !strings.Contains(prompt, "@Element1") {
		return "Replace the person in the video with @Element1. " + prompt
	}
	return prompt
}

// Poll checks the queue status and, on completion, fetches the result.
func (a *FalAdapter) Poll(ctx context.Context, ref string) (PollResult, error) {
	var qr queueRef
	if err := json.Unmarshal([]byte(ref), &qr); err != nil {
		return PollResult{}, fmt.Errorf("fal adapter poll: decode reference: %w", err)
	}

	status, err := a.client.Status(ctx, qr.StatusURL)
	if err != nil {
		return PollResult{}, fmt.Errorf("fal adapter poll: %w", err)
	}

	switch status.Status {
	case fal.StatusInQueue, fal.StatusQueued:
		return PollResult{Status: StatusPending, Progress: ProgressUnreported}, nil
	case fal.StatusInProgress, fal.StatusProcessing:
		return PollResult{Status: StatusProcessing, Progress: ProgressUnreported}, nil
	case fal.StatusCompleted:
		return a.fetchResult(ctx, qr, status)
	case fal.StatusFailed, fal.StatusError:
		msg := status.Error
		if msg == "" {
			msg = "task failed"
		}
		return PollResult{Status: StatusFailed, Progress: ProgressUnreported, Error: msg}, nil
	default:
		// Unknown statuses are treated as still processing.
		return PollResult{Status: StatusProcessing, Progress: ProgressUnreported}, nil
	}
}

func (a *FalAdapter) fetchResult(ctx context.Context, qr queueRef, status fal.StatusResult) (PollResult, error) {
	// Some models inline the video in the final status response.
	if status.VideoURL != "" {
		return PollResult{Status: StatusSucceeded, Progress: 100, OutputURL: status.VideoURL}, nil
	}

	result, err := a.client.Result(ctx, qr.ResponseURL)
	if errors.Is(err, fal.ErrNoVideo) {
		return PollResult{Status: StatusFailed, Progress: ProgressUnreported, Error: "no video url in result"}, nil
	}
	if err != nil {
		return PollResult{}, fmt.Errorf("fal adapter poll: fetch result: %w", err)
	}
	return PollResult{Status: StatusSucceeded, Progress: 100, OutputURL: result.VideoURL}, nil
}

// Cancel asks the fal.ai queue to stop the request.
func (a *FalAdapter) Cancel(ctx context.Context, ref string) error {
	var qr queueRef
	if err := json.Unmarshal([]byte(ref), &qr); err != nil {
		return fmt.Errorf("fal adapter cancel: decode reference: %w", err)
	}
	if err := a.client.Cancel(ctx, qr.CancelURL); err != nil {
		return fmt.Errorf("fal adapter cancel: %w", err)
	}
	return nil
}

// fileExt picks a file extension for an upload from its MIME type.
func fileExt(mime string) string {
	switch mime {
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/wav", "audio/x-wav":
		return "wav"
	case "audio/m4a", "audio/x-m4a", "audio/mp4":
		return "m4a"
	case "audio/ogg":
		return "ogg"
	case "video/mp4":
		return "mp4"
	case "video/quicktime":
		return "mov"
	case "video/webm":
		return "webm"
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	}
	if i := strings.LastIndex(mime, "/"); i >= 0 && i+1 < len(mime) {
		return mime[i+1:]
	}
	return "bin"
}

// Compile-time check that FalAdapter implements Provider.
var _ Provider = (*FalAdapter)(nil)
