package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/swapstudio/swap-studio-api/internal/media"
	"github.com/swapstudio/swap-studio-api/internal/provider"
	"github.com/swapstudio/swap-studio-api/internal/storage"
)

const (
	// defaultPollTimeout bounds one upstream status sync.
	defaultPollTimeout = 45 * time.Second
	// cancelTimeout bounds the fire-and-forget upstream cancel.
	cancelTimeout = 10 * time.Second
	// defaultTerminalTTL is how long finished jobs stay queryable.
	defaultTerminalTTL = time.Hour
	// defaultAbandonedTTL is how long never-finished jobs stay before
	// eviction, counted from creation.
	defaultAbandonedTTL = 24 * time.Hour
)

// SubmitInput contains the raw client-supplied parameters for a new job.
type SubmitInput struct {
	// Mode selects the transformation. Empty defaults to character_swap.
	Mode string
	// Quality selects the tier. Empty defaults to std.
	Quality string
	// VideoData is the base64 or data-URI encoded source video.
	VideoData string
	// ImageData is the base64 or data-URI encoded character image
	// (character_swap and motion_control only).
	ImageData string
	// AudioData is the base64 or data-URI encoded audio track (lip_sync only).
	AudioData string
	// Prompt optionally overrides the provider's default generation prompt.
	Prompt string
}

// SwapService orchestrates video generation jobs. It validates and
// dispatches submissions to the provider serving (mode, quality), syncs
// job state against the provider when clients poll, cancels jobs, and
// evicts expired ones.
type SwapService struct {
	repo       Repository
	providers  *provider.Registry
	compressor media.Compressor
	archiver   storage.Archiver
	logger     *slog.Logger

	// sync collapses concurrent status polls for the same job into a
	// single upstream request.
	sync singleflight.Group

	pollTimeout  time.Duration
	terminalTTL  time.Duration
	abandonedTTL time.Duration
}

// NewSwapService creates a SwapService. A nil compressor or archiver
// falls back to the pass-through implementations.
func NewSwapService(repo Repository, providers *provider.Registry, compressor media.Compressor, archiver storage.Archiver, logger *slog.Logger) *SwapService {
	if compressor == nil {
		compressor = media.PassthroughCompressor{}
	}
	if archiver == nil {
		archiver = storage.NoopArchiver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SwapService{
		repo:         repo,
		providers:    providers,
		compressor:   compressor,
		archiver:     archiver,
		logger:       logger,
		pollTimeout:  defaultPollTimeout,
		terminalTTL:  defaultTerminalTTL,
		abandonedTTL: defaultAbandonedTTL,
	}
}

// SetPollTimeout configures the bound on one upstream status sync.
func (s *SwapService) SetPollTimeout(d time.Duration) {
	if d > 0 {
		s.pollTimeout = d
	}
}

// SetRetention configures how long terminal and abandoned jobs are kept.
func (s *SwapService) SetRetention(terminalTTL, abandonedTTL time.Duration) {
	if terminalTTL > 0 {
		s.terminalTTL = terminalTTL
	}
	if abandonedTTL > 0 {
		s.abandonedTTL = abandonedTTL
	}
}

// ProviderNames lists the distinct configured provider names.
func (s *SwapService) ProviderNames() []string {
	return s.providers.Names()
}

// Submit validates the request, runs the video compression pre-step,
// dispatches to the provider serving (mode, quality) and stores the
// accepted job. No job is stored when validation or the upstream
// submission fails, so clients get nothing to poll for a request that
// never reached a provider.
func (s *SwapService) Submit(ctx context.Context, input SubmitInput) (*Job, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(input.Mode)))
	if mode == "" {
		mode = ModeCharacterSwap
	}
	if !mode.IsValid() {
		return nil, newValidationError("swap_mode", "unknown mode %q", input.Mode)
	}

	quality := Quality(strings.ToLower(strings.TrimSpace(input.Quality)))
	if quality == "" {
		quality = QualityStandard
	}
	if !quality.IsValid() {
		return nil, newValidationError("quality", "unknown quality %q, want std or pro", input.Quality)
	}
	// lip_sync has no quality tiers and is registered under std only.
	if mode == ModeLipSync {
		quality = QualityStandard
	}

	req := provider.SubmitRequest{
		Mode:    provider.Mode(mode),
		Quality: provider.Quality(quality),
		Prompt:  strings.TrimSpace(input.Prompt),
	}

	video, err := decodeField(media.KindVideo, "video_data", input.VideoData)
	if err != nil {
		return nil, err
	}

	switch mode {
	case ModeCharacterSwap, ModeMotionControl:
		if strings.TrimSpace(input.AudioData) != "" {
			return nil, newValidationError("audio_data", "not accepted for mode %s", mode)
		}
		image, err := decodeField(media.KindImage, "image_data", input.ImageData)
		if err != nil {
			return nil, err
		}
		req.Image = provider.Media{Data: image.Data, MIME: image.MIME}
	case ModeLipSync:
		if strings.TrimSpace(input.ImageData) != "" {
			return nil, newValidationError("image_data", "not accepted for mode %s", mode)
		}
		audio, err := decodeField(media.KindAudio, "audio_data", input.AudioData)
		if err != nil {
			return nil, err
		}
		req.Audio = provider.Media{Data: audio.Data, MIME: audio.MIME}
	}

	compressed, err := s.compressor.Compress(ctx, video.Data)
	if err != nil {
		s.logger.Warn("video compression failed, using original",
			slog.String("error", err.Error()),
		)
		compressed = video.Data
	}
	req.Video = provider.Media{Data: compressed, MIME: video.MIME}

	p, ok := s.providers.Lookup(provider.Mode(mode), provider.Quality(quality))
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrProviderUnavailable, mode, quality)
	}

	ref, err := p.Submit(ctx, req)
	if err != nil {
		s.logger.Error("provider submission failed",
			slog.String("provider", p.Name()),
			slog.String("mode", string(mode)),
			slog.String("error", err.Error()),
		)
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}

	job := New(mode, quality)
	job.Provider = p.Name()
	job.ProviderRef = ref

	s.logger.Info("job submitted",
		slog.String("job_id", job.ID),
		slog.String("provider", job.Provider),
		slog.String("mode", string(mode)),
		slog.String("quality", string(quality)),
	)

	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Get returns the job, syncing non-terminal jobs against their provider
// first. Terminal jobs are returned from the store without an upstream
// call. Concurrent polls for the same job share one upstream request.
func (s *SwapService) Get(ctx context.Context, jobID string) (*Job, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsTerminal() {
		return job, nil
	}

	v, err, shared := s.sync.Do(jobID, func() (any, error) {
		return s.syncJob(ctx, jobID)
	})
	if err != nil {
		return nil, err
	}
	job = v.(*Job)
	if shared {
		job = job.Clone()
	}
	return job, nil
}

// syncJob performs one upstream poll and merges the result into the
// stored job. The context is detached from the triggering request so an
// abandoning caller cannot cancel a poll other callers are waiting on.
func (s *SwapService) syncJob(ctx context.Context, jobID string) (*Job, error) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.pollTimeout)
	defer cancel()

	job, err := s.repo.FindByID(sctx, jobID)
	if err != nil {
		return nil, err
	}
	// A cancel may have landed while this flight was queued.
	if job.IsTerminal() {
		return job, nil
	}

	p, ok := s.providers.Lookup(provider.Mode(job.Mode), provider.Quality(job.Quality))
	if !ok {
		// The dispatch table is fixed at startup, so a stored job's
		// provider is always registered.
		return job, nil
	}

	res, err := p.Poll(sctx, job.ProviderRef)
	if err != nil {
		s.logger.Warn("provider poll failed, keeping last known state",
			slog.String("job_id", job.ID),
			slog.String("provider", job.Provider),
			slog.String("error", err.Error()),
		)
		return job, nil
	}

	if res.Status == provider.StatusSucceeded && res.OutputURL != "" {
		res.OutputURL = s.archiveResult(sctx, job.ID, res.OutputURL)
	}

	return s.repo.Update(sctx, jobID, func(j *Job) error {
		j.ApplyPoll(PollUpdate{
			Status:    Status(res.Status),
			Progress:  res.Progress,
			OutputURL: res.OutputURL,
			Error:     res.Error,
		})
		return nil
	})
}

// archiveResult re-hosts the provider output so the link outlives the
// provider's retention window. On failure the provider URL is kept.
func (s *SwapService) archiveResult(ctx context.Context, jobID, srcURL string) string {
	archived, err := s.archiver.Archive(ctx, jobID+".mp4", srcURL)
	if err != nil {
		s.logger.Warn("archiving result failed, keeping provider url",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return srcURL
	}
	return archived
}

// Cancel marks the job canceled and asks the provider to stop it.
// Terminal jobs are returned unchanged. Local state is authoritative:
// the upstream cancel is best-effort, runs after the transition and
// never blocks or fails the call.
func (s *SwapService) Cancel(ctx context.Context, jobID string) (*Job, error) {
	var transitioned bool
	job, err := s.repo.Update(ctx, jobID, func(j *Job) error {
		if j.IsTerminal() {
			return nil
		}
		if err := j.Cancel(); err != nil {
			return err
		}
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if transitioned {
		s.logger.Info("job canceled",
			slog.String("job_id", job.ID),
			slog.String("provider", job.Provider),
		)
		go s.cancelUpstream(context.WithoutCancel(ctx), job)
	}
	return job, nil
}

// cancelUpstream fires the provider-side cancel once local state is
// already canceled. Errors are logged, never surfaced.
func (s *SwapService) cancelUpstream(ctx context.Context, job *Job) {
	p, ok := s.providers.Lookup(provider.Mode(job.Mode), provider.Quality(job.Quality))
	if !ok {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, cancelTimeout)
	defer cancel()

	if err := p.Cancel(cctx, job.ProviderRef); err != nil {
		s.logger.Warn("upstream cancel failed",
			slog.String("job_id", job.ID),
			slog.String("provider", job.Provider),
			slog.String("error", err.Error()),
		)
	}
}

// SweepExpired removes jobs past their retention window: terminal jobs
// terminalTTL after their last update, live jobs abandonedTTL after
// creation. Returns the number of jobs removed.
func (s *SwapService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	jobs, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, j := range jobs {
		var expired bool
		if j.IsTerminal() {
			expired = now.Sub(j.UpdatedAt) > s.terminalTTL
		} else {
			expired = now.Sub(j.CreatedAt) > s.abandonedTTL
		}
		if !expired {
			continue
		}

		if err := s.repo.Delete(ctx, j.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return removed, err
		}
		removed++
		s.logger.Info("expired job removed",
			slog.String("job_id", j.ID),
			slog.String("status", string(j.Status)),
		)
	}
	return removed, nil
}

// RunRetention sweeps expired jobs at the given interval until ctx is
// done. Intended to run in its own goroutine.
func (s *SwapService) RunRetention(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepExpired(ctx, time.Now()); err != nil {
				s.logger.Error("retention sweep failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// decodeField decodes one media payload, translating decode failures
// into field-level validation errors.
func decodeField(kind media.Kind, field, payload string) (media.Input, error) {
	in, err := media.DecodeInput(kind, payload)
	switch {
	case err == nil:
		return in, nil
	case errors.Is(err, media.ErrEmptyPayload):
		return media.Input{}, newValidationError(field, "%s is required", field)
	case errors.Is(err, media.ErrMIMEMismatch):
		return media.Input{}, newValidationError(field, "unsupported file type, want %s/*", kind)
	default:
		return media.Input{}, newValidationError(field, "invalid base64 payload")
	}
}
