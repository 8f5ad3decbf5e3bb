// Package kling provides an HTTP client for the Kling video generation API.
package kling

import "strings"

// Status represents the status of a Kling task.
type Status string

// Kling task statuses. Different deployments report success as succeed,
// completed or complete; treat them all as terminal success.
const (
	StatusSubmitted  Status = "submitted"
	StatusProcessing Status = "processing"
	StatusSucceed    Status = "succeed"
	StatusCompleted  Status = "completed"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
	StatusError      Status = "error"
)

// IsSuccess returns true if the status reports a finished task with output.
func (s Status) IsSuccess() bool {
	switch s {
	case StatusSucceed, StatusCompleted, StatusComplete:
		return true
	default:
		return false
	}
}

// IsFailure returns true if the status reports a failed task.
func (s Status) IsFailure() bool {
	return s == StatusFailed || s == StatusError
}

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	return s.IsSuccess() || s.IsFailure()
}

// MotionTaskRequest describes a motion transfer submission: a character
// image animated by a driving video.
type MotionTaskRequest struct {
	// ImageBase64 is the raw base64 of the character image, no data URI prefix.
	ImageBase64 string
	// VideoBase64 is the raw base64 of the driving video.
	VideoBase64 string
	Prompt      string
	// Mode selects the generation tier, std or pro.
	Mode string
}

// TaskStatus is the outcome of polling a Kling task.
type TaskStatus struct {
	Status Status
	// VideoURL is set once the task succeeds.
	VideoURL string
	// Message carries the failure reason when the task fails.
	Message string
}

// motionControlRequest is the primary submission body for the
// image2video endpoint with a driving motion video.
type motionControlRequest struct {
	ModelName   string  `json:"model_name"`
	Image       string  `json:"image"`
	Prompt      string  `json:"prompt"`
	Mode        string  `json:"mode"`
	Duration    string  `json:"duration"`
	CFGScale    float64 `json:"cfg_scale"`
	MotionVideo string  `json:"motion_video"`
}

// motionFallbackRequest is the body for the dedicated motion endpoint,
// used when a deployment rejects motion_video on image2video.
type motionFallbackRequest struct {
	ModelName            string `json:"model_name"`
	Image                string `json:"image"`
	ReferenceVideo       string `json:"reference_video"`
	Prompt               string `json:"prompt"`
	Mode                 string `json:"mode"`
	CharacterOrientation string `json:"character_orientation"`
	KeepAudio            bool   `json:"keep_audio"`
}

// taskEnvelope tolerates both the documented {code,message,data:{...}}
// envelope and the flat variants some gateway deployments return.
type taskEnvelope struct {
	Code      int        `json:"code"`
	Message   string     `json:"message"`
	Data      taskData   `json:"data"`
	TaskID    string     `json:"task_id"`
	TaskState string     `json:"task_status"`
	State     string     `json:"status"`
	VideoURL  string     `json:"video_url"`
	Output    taskOutput `json:"output"`
	ErrorInfo taskError  `json:"error"`
}

type taskData struct {
	TaskID        string     `json:"task_id"`
	TaskStatus    string     `json:"task_status"`
	TaskStatusMsg string     `json:"task_status_msg"`
	TaskResult    taskResult `json:"task_result"`
	VideoURL      string     `json:"video_url"`
}

type taskResult struct {
	Videos []taskVideo `json:"videos"`
}

type taskVideo struct {
	URL string `json:"url"`
}

type taskOutput struct {
	VideoURL string `json:"video_url"`
}

type taskError struct {
	Message string `json:"message"`
}

func (e *taskEnvelope) taskID() string {
	if e.Data.TaskID != "" {
		return e.Data.TaskID
	}
	return e.TaskID
}

func (e *taskEnvelope) status() Status {
	for _, s := range []string{e.Data.TaskStatus, e.TaskState, e.State} {
		if s != "" {
			return Status(strings.ToLower(s))
		}
	}
	return ""
}

func (e *taskEnvelope) videoURL() string {
	if videos := e.Data.TaskResult.Videos; len(videos) > 0 && videos[0].URL != "" {
		return videos[0].URL
	}
	for _, u := range []string{e.Data.VideoURL, e.Output.VideoURL, e.VideoURL} {
		if u != "" {
			return u
		}
	}
	return ""
}

func (e *taskEnvelope) failureMessage() string {
	if e.Data.TaskStatusMsg != "" {
		return e.Data.TaskStatusMsg
	}
	if e.ErrorInfo.Message != "" {
		return e.ErrorInfo.Message
	}
	return e.Message
}
