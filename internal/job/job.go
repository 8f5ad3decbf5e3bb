// Package job provides the Job aggregate for tracking video generation
// requests dispatched to external providers. It includes the Job entity with
// its state machine, the status-merge logic applied on provider polls, and
// the repository port used for persistence.
package job

import (
	"time"

	"github.com/swapstudio/swap-studio-api/internal/job/id"
)

// Mode represents the transformation requested for a job.
type Mode string

const (
	// ModeCharacterSwap replaces the person in the video with the reference image.
	ModeCharacterSwap Mode = "character_swap"
	// ModeMotionControl drives the reference image with the video's motion.
	ModeMotionControl Mode = "motion_control"
	// ModeLipSync syncs the video's mouth movement to the reference audio.
	ModeLipSync Mode = "lip_sync"
)

// IsValid returns true if the mode is a known transformation.
func (m Mode) IsValid() bool {
	return m == ModeCharacterSwap || m == ModeMotionControl || m == ModeLipSync
}

// Quality represents the cost/fidelity tier requested for a job.
type Quality string

const (
	// QualityStandard is the default tier.
	QualityStandard Quality = "std"
	// QualityPro is the higher-fidelity tier offered by some providers.
	QualityPro Quality = "pro"
)

// IsValid returns true if the quality tier is known.
func (q Quality) IsValid() bool {
	return q == QualityStandard || q == QualityPro
}

// Status represents the current state of a Job.
type Status string

const (
	// StatusPending indicates the job was accepted by the provider but has not started.
	StatusPending Status = "pending"
	// StatusProcessing indicates the provider is working on the job.
	StatusProcessing Status = "processing"
	// StatusSucceeded indicates the job finished with an output video.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the provider reported a failure.
	StatusFailed Status = "failed"
	// StatusCanceled indicates the client canceled the job.
	StatusCanceled Status = "canceled"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// validTransitions defines which state transitions are allowed.
// Some providers report completion without an intermediate processing
// phase, so pending may jump straight to a terminal state.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusSucceeded, StatusFailed, StatusCanceled},
	StatusProcessing: {StatusSucceeded, StatusFailed, StatusCanceled},
	StatusSucceeded:  {},
	StatusFailed:     {},
	StatusCanceled:   {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// statusRank orders statuses by strength for the poll-merge logic. A poll
// result never moves a job to a weaker rank: pending cannot overwrite
// processing, and nothing overwrites a terminal state.
func statusRank(s Status) int {
	switch s {
	case StatusPending:
		return 0
	case StatusProcessing:
		return 1
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return 2
	default:
		return 0
	}
}

// Job represents a tracked video generation request.
//
// Job values are plain data: all concurrent access goes through the
// Repository, whose Update method performs the atomic per-id
// read-modify-write. Callers outside the repository only ever see clones.
type Job struct {
	// ID is the opaque unique identifier for this job.
	ID string
	// Mode is the requested transformation, fixed at creation.
	Mode Mode
	// Quality is the requested tier, fixed at creation. Normalized to
	// QualityStandard for lip_sync, which has no tiers.
	Quality Quality
	// Status is the current lifecycle state.
	Status Status
	// Progress is the percentage of completion (0-100), non-decreasing
	// while the job is live.
	Progress int
	// OutputURL is the result video URL, set only when Status is succeeded.
	OutputURL string
	// Error is the failure description, set only when Status is failed.
	Error string
	// Provider is the name of the adapter handling this job.
	Provider string
	// ProviderRef is the opaque upstream handle used to poll or cancel.
	// Never exposed to clients.
	ProviderRef string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job state last changed or was last synced.
	UpdatedAt time.Time
}

// New creates a Job with a generated ID and initial pending status.
func New(mode Mode, quality Quality) *Job {
	return NewWithID(id.Generate(), mode, quality)
}

// NewWithID creates a Job with the specified ID and initial pending status.
// Useful for testing or when the ID is externally generated.
func NewWithID(jobID string, mode Mode, quality Quality) *Job {
	if mode == ModeLipSync {
		quality = QualityStandard
	}
	now := time.Now()
	return &Job{
		ID:        jobID,
		Mode:      mode,
		Quality:   quality,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}
	j.Status = status
	j.UpdatedAt = time.Now()
	return nil
}

// Cancel transitions the job to canceled. Returns ErrInvalidTransition if
// the job is already terminal.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCanceled)
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// PollUpdate carries the canonical result of one provider status poll.
type PollUpdate struct {
	// Status is the canonical status reported by the provider adapter.
	Status Status
	// Progress is the provider-reported completion percentage, or -1 when
	// the provider reports none.
	Progress int
	// OutputURL is the result video URL, meaningful only with StatusSucceeded.
	OutputURL string
	// Error is the provider failure message, meaningful only with StatusFailed.
	Error string
}

// ApplyPoll merges a provider poll result into the job.
//
// Terminal jobs are never mutated: late or concurrent poll results against
// a finished job are discarded. A result with a weaker status than the
// current one (per statusRank) only contributes progress. Progress never
// decreases; providers that report no numeric progress nudge a processing
// job forward by a small fixed step, capped below completion, matching the
// progress the original service synthesized between polls.
func (j *Job) ApplyPoll(u PollUpdate) {
	if j.IsTerminal() {
		return
	}

	target := u.Status
	if statusRank(target) < statusRank(j.Status) {
		target = j.Status
	}

	if target != j.Status {
		if !canTransition(j.Status, target) {
			return
		}
		j.Status = target
	}

	switch j.Status {
	case StatusSucceeded:
		j.Progress = 100
		j.OutputURL = u.OutputURL
		j.Error = ""
	case StatusFailed:
		j.Error = u.Error
		if j.Error == "" {
			j.Error = "provider reported failure"
		}
		j.OutputURL = ""
	case StatusCanceled:
		j.OutputURL = ""
	default:
		j.mergeProgress(u.Progress)
	}

	j.UpdatedAt = time.Now()
}

// mergeProgress folds a reported progress value into the job, keeping the
// observed sequence non-decreasing. reported < 0 means the provider gave
// no figure; a processing job then advances by 2 points per poll up to 90.
func (j *Job) mergeProgress(reported int) {
	p := reported
	if p < 0 {
		if j.Status != StatusProcessing {
			return
		}
		p = j.Progress + 2
		if p > 90 {
			p = 90
		}
	}
	if p > 100 {
		p = 100
	}
	if p > j.Progress {
		j.Progress = p
	}
}

// Clone creates a copy of the job for safe reads outside the repository.
func (j *Job) Clone() *Job {
	c := *j
	return &c
}
