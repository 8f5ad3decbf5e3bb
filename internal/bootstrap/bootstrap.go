// Package bootstrap provides dependency initialization for the Swap Studio API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/swapstudio/swap-studio-api/internal/config"
	"github.com/swapstudio/swap-studio-api/internal/fal"
	"github.com/swapstudio/swap-studio-api/internal/job"
	"github.com/swapstudio/swap-studio-api/internal/kling"
	"github.com/swapstudio/swap-studio-api/internal/media"
	"github.com/swapstudio/swap-studio-api/internal/provider"
	"github.com/swapstudio/swap-studio-api/internal/replicate"
	"github.com/swapstudio/swap-studio-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	SwapService *job.SwapService

	// OutputsDir is non-empty when results are archived to local disk and
	// should be served under /outputs/.
	OutputsDir string
}

// NewDependencies creates and initializes all dependencies for the application.
//
// The provider dispatch table is fixed here at startup: requests for a
// (mode, quality) pair that had no configured provider fail with
// PROVIDER_UNAVAILABLE, they are never rerouted at request time.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	registry, err := initProviders(cfg, logger)
	if err != nil {
		return nil, err
	}

	archiver, outputsDir, err := initArchiver(cfg, logger)
	if err != nil {
		return nil, err
	}

	compressor := media.DetectCompressor(cfg.FFmpegPath)
	if _, ok := compressor.(media.PassthroughCompressor); ok {
		logger.Warn("ffmpeg not found, submitting videos uncompressed",
			slog.String("path", cfg.FFmpegPath),
		)
	}

	repo := job.NewMemoryRepository()

	svc := job.NewSwapService(repo, registry, compressor, archiver, logger)
	svc.SetRetention(cfg.JobRetentionTTL, cfg.JobAbandonedTTL)

	return &Dependencies{
		SwapService: svc,
		OutputsDir:  outputsDir,
	}, nil
}

// initProviders builds the (mode, quality) dispatch table from the configured
// provider credentials. Character swap and lip sync run on fal. Motion control
// prefers Kling's first-party API and falls back to the same model hosted on
// Replicate.
func initProviders(cfg *config.Config, logger *slog.Logger) (*provider.Registry, error) {
	registry := provider.NewRegistry()

	if cfg.FalEnabled() {
		falClient, err := fal.NewClient(fal.WithAPIKey(cfg.FalAPIKey))
		if err != nil {
			return nil, fmt.Errorf("create fal client: %w", err)
		}
		falAdapter := provider.NewFalAdapter(falClient)
		registry.Register(provider.ModeCharacterSwap, provider.QualityStandard, falAdapter)
		registry.Register(provider.ModeCharacterSwap, provider.QualityPro, falAdapter)
		registry.Register(provider.ModeLipSync, provider.QualityStandard, falAdapter)
		logger.Info("fal provider configured")
	}

	switch {
	case cfg.KlingEnabled():
		klingClient, err := kling.NewClient(cfg.KlingAccessKey, cfg.KlingSecretKey,
			kling.WithBaseURL(cfg.KlingAPIBase))
		if err != nil {
			return nil, fmt.Errorf("create kling client: %w", err)
		}
		klingAdapter := provider.NewKlingAdapter(klingClient)
		registry.Register(provider.ModeMotionControl, provider.QualityStandard, klingAdapter)
		registry.Register(provider.ModeMotionControl, provider.QualityPro, klingAdapter)
		logger.Info("kling provider configured",
			slog.String("base_url", cfg.KlingAPIBase),
		)
	case cfg.ReplicateEnabled():
		replicateClient, err := replicate.NewClient(cfg.ReplicateAPIToken)
		if err != nil {
			return nil, fmt.Errorf("create replicate client: %w", err)
		}
		replicateAdapter := provider.NewReplicateAdapter(replicateClient)
		registry.Register(provider.ModeMotionControl, provider.QualityStandard, replicateAdapter)
		registry.Register(provider.ModeMotionControl, provider.QualityPro, replicateAdapter)
		logger.Info("replicate provider configured")
	}

	return registry, nil
}

// initArchiver creates the result archiver based on configuration. The second
// return value is the local outputs directory, empty unless local archiving is
// active.
func initArchiver(cfg *config.Config, logger *slog.Logger) (storage.Archiver, string, error) {
	if cfg.S3Enabled() {
		s3Archiver, err := storage.NewS3Archiver(storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, "", fmt.Errorf("create s3 archiver: %w", err)
		}
		logger.Info("s3 archiving configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Archiver, "", nil
	}

	if cfg.LocalArchiveEnabled() {
		local, err := storage.NewLocalArchiver(cfg.ArchiveDir, cfg.StorageBaseURL)
		if err != nil {
			return nil, "", fmt.Errorf("create local archiver: %w", err)
		}
		logger.Info("local archiving configured",
			slog.String("dir", local.Dir()),
		)
		return local, local.Dir(), nil
	}

	logger.Info("result archiving disabled, returning provider urls as-is")
	return storage.NoopArchiver{}, "", nil
}
