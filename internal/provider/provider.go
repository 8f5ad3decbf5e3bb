// Package provider defines the common interface for external video
// generation providers and the dispatch registry that selects one per
// (mode, quality) pair. The fal.ai, Kling and Replicate adapters implement
// this interface.
package provider

import "context"

// Mode mirrors the requested transformation at the provider boundary.
type Mode string

// Transformation modes.
const (
	ModeCharacterSwap Mode = "character_swap"
	ModeMotionControl Mode = "motion_control"
	ModeLipSync       Mode = "lip_sync"
)

// Quality mirrors the requested tier at the provider boundary.
type Quality string

// Quality tiers.
const (
	QualityStandard Quality = "std"
	QualityPro      Quality = "pro"
)

// Status represents the canonical status of an upstream generation job.
// Every adapter maps its provider's vocabulary onto this enum; unknown
// upstream statuses map to StatusProcessing so updates are never dropped.
type Status string

// Canonical job statuses across providers.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// IsTerminal returns true if the status represents a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Media is one decoded input file: raw bytes plus the declared MIME type.
type Media struct {
	Data []byte
	MIME string
}

// Present returns true if the media carries any data.
func (m Media) Present() bool {
	return len(m.Data) > 0
}

// SubmitRequest contains the normalized inputs for a generation job.
// Video is always set; Image is set for character_swap/motion_control and
// Audio for lip_sync.
type SubmitRequest struct {
	Mode    Mode
	Quality Quality
	Prompt  string
	Video   Media
	Image   Media
	Audio   Media
}

// ProgressUnreported marks a poll result carrying no progress figure.
const ProgressUnreported = -1

// PollResult contains the canonical result of polling an upstream job.
type PollResult struct {
	// Status is the canonical job status.
	Status Status
	// Progress is the provider-reported completion percentage, or -1 when
	// the provider does not report one.
	Progress int
	// OutputURL is the result video URL (set when Status is StatusSucceeded).
	OutputURL string
	// Error is the provider's failure message (set when Status is StatusFailed).
	Error string
}

// Provider defines the capability set every external generation service
// adapter implements. Adapters are stateless beyond configuration: the
// returned reference carries everything needed to poll or cancel.
type Provider interface {
	// Name identifies the provider in logs and the health endpoint.
	Name() string

	// Submit sends a generation job upstream and returns an opaque
	// provider reference for later polling and cancellation.
	Submit(ctx context.Context, req SubmitRequest) (ref string, err error)

	// Poll checks the status of a previously submitted job.
	Poll(ctx context.Context, ref string) (PollResult, error)

	// Cancel asks the provider to stop a job. Best-effort: providers
	// without a cancellation API return an error, which callers log and
	// otherwise ignore.
	Cancel(ctx context.Context, ref string) error
}
