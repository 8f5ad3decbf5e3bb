// Package fal provides an HTTP client for the fal.ai queue and storage APIs.
package fal

import "encoding/json"

// Status represents the status of a fal.ai queue request.
type Status string

// fal.ai queue statuses aligned with the queue API.
const (
	StatusInQueue    Status = "IN_QUEUE"
	StatusQueued     Status = "QUEUED" // some models report QUEUED instead of IN_QUEUE
	StatusInProgress Status = "IN_PROGRESS"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusError      Status = "ERROR" // returned by some models in place of FAILED
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusError:
		return true
	default:
		return false
	}
}

// Model identifiers for the hosted Kling endpoints used by this service.
const (
	// ModelKlingEdit replaces a person in a video with a reference character.
	ModelKlingEdit = "fal-ai/kling-video/o1/video-to-video/edit"
	// ModelKlingLipSync syncs a video's mouth movement to an audio track.
	ModelKlingLipSync = "fal-ai/kling-video/lipsync/audio-to-video"
)

// Element describes a reference character for the Kling edit model.
type Element struct {
	FrontalImageURL    string   `json:"frontal_image_url"`
	ReferenceImageURLs []string `json:"reference_image_urls"`
}

// EditRequest is the submission payload for ModelKlingEdit.
type EditRequest struct {
	VideoURL  string    `json:"video_url"`
	Prompt    string    `json:"prompt"`
	Elements  []Element `json:"elements"`
	KeepAudio bool      `json:"keep_audio"`
}

// LipSyncRequest is the submission payload for ModelKlingLipSync.
type LipSyncRequest struct {
	VideoURL string `json:"video_url"`
	AudioURL string `json:"audio_url"`
}

// QueueSubmission identifies a request accepted by the fal.ai queue.
// StatusURL and ResponseURL are the polling endpoints returned by the
// queue; CancelURL is derived from StatusURL.
type QueueSubmission struct {
	RequestID   string
	StatusURL   string
	ResponseURL string
	CancelURL   string
}

// StatusResult is the outcome of polling a queue request.
type StatusResult struct {
	Status Status
	// Error is set when the queue reports a failure.
	Error string
	// VideoURL is set when a completed status response already carries the
	// result video, sparing the extra response fetch.
	VideoURL string
}

// ResultPayload is the final output of a completed request.
type ResultPayload struct {
	VideoURL string
}

// initiateUploadRequest is the body for the storage upload initiation call.
type initiateUploadRequest struct {
	ContentType string `json:"content_type"`
	FileName    string `json:"file_name"`
}

// initiateUploadResponse is the storage upload initiation result.
type initiateUploadResponse struct {
	UploadURL string `json:"upload_url"`
	FileURL   string `json:"file_url"`
}

// submitResponse is the queue submission result.
type submitResponse struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
	Error       string `json:"error,omitempty"`
}

// statusResponse is the queue status result.
type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Video  video  `json:"video,omitempty"`
}

// resultResponse is the final response payload of a completed request.
type resultResponse struct {
	Video    video  `json:"video,omitempty"`
	VideoURL string `json:"video_url,omitempty"`
}

// video is usually an object with a url field, but some models return a
// bare string. Accept both.
type video struct {
	URL string `json:"url"`
}

func (v *video) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v.URL = s
		return nil
	}
	type plain video
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	v.URL = p.URL
	return nil
}
