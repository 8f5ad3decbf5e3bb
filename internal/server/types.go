// Package server provides the HTTP server for the Swap Studio API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// SwapRequest is the HTTP request body for creating a swap job.
type SwapRequest struct {
	// VideoData is the base64 or data-URI encoded source video.
	VideoData string `json:"video_data" validate:"required"`
	// ImageData is the base64 or data-URI encoded character image.
	ImageData string `json:"image_data" validate:"required"`
	// Prompt optionally overrides the provider's default generation prompt.
	Prompt string `json:"prompt"`
	// Quality is the tier, "std" or "pro". Defaults to std.
	Quality string `json:"quality" validate:"omitempty,oneof=std pro"`
	// SwapMode selects the transformation. Defaults to character_swap.
	SwapMode string `json:"swap_mode" validate:"omitempty,oneof=character_swap motion_control"`
}

// LipSyncRequest is the HTTP request body for creating a lip sync job.
type LipSyncRequest struct {
	// VideoData is the base64 or data-URI encoded source video.
	VideoData string `json:"video_data" validate:"required"`
	// AudioData is the base64 or data-URI encoded audio track.
	AudioData string `json:"audio_data" validate:"required"`
}

// JobResponse is the job resource returned by all job endpoints.
type JobResponse struct {
	// JobID is the unique identifier for the job.
	JobID string `json:"job_id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// OutputURL is the result video URL, null until the job succeeds.
	OutputURL *string `json:"output_url"`
	// Error is the failure description, null unless the job failed.
	Error *string `json:"error"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
	// ConfiguredProviders lists the provider adapters wired at startup.
	ConfiguredProviders []string `json:"configured_providers"`
}

// InfoResponse is the service banner served at the root path.
type InfoResponse struct {
	Message   string   `json:"message"`
	Version   string   `json:"version"`
	Providers []string `json:"providers"`
}
