package bootstrap

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swapstudio/swap-studio-api/internal/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewDependencies_NoProviders(t *testing.T) {
	deps, err := NewDependencies(&config.Config{}, quietLogger())
	require.NoError(t, err)

	assert.Empty(t, deps.SwapService.ProviderNames())
	assert.Empty(t, deps.OutputsDir)
}

func TestNewDependencies_FalOnly(t *testing.T) {
	cfg := &config.Config{FalAPIKey: "fal-key"}

	deps, err := NewDependencies(cfg, quietLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"fal"}, deps.SwapService.ProviderNames())
}

func TestNewDependencies_KlingPreferredForMotionControl(t *testing.T) {
	cfg := &config.Config{
		KlingAccessKey:    "access",
		KlingSecretKey:    "secret",
		KlingAPIBase:      "https://api.klingai.com",
		ReplicateAPIToken: "r8_token",
	}

	deps, err := NewDependencies(cfg, quietLogger())
	require.NoError(t, err)

	names := deps.SwapService.ProviderNames()
	assert.Contains(t, names, "kling")
	assert.NotContains(t, names, "replicate")
}

func TestNewDependencies_ReplicateFallback(t *testing.T) {
	cfg := &config.Config{ReplicateAPIToken: "r8_token"}

	deps, err := NewDependencies(cfg, quietLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"replicate"}, deps.SwapService.ProviderNames())
}

func TestNewDependencies_LocalArchiving(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{ArchiveDir: dir}

	deps, err := NewDependencies(cfg, quietLogger())
	require.NoError(t, err)

	assert.Equal(t, dir, deps.OutputsDir)
}

func TestNewDependencies_S3Archiving(t *testing.T) {
	cfg := &config.Config{
		S3Bucket: "swap-results",
		S3Region: "us-east-1",
	}

	deps, err := NewDependencies(cfg, quietLogger())
	require.NoError(t, err)

	// S3 results are served from the bucket, not from a local dir.
	assert.Empty(t, deps.OutputsDir)
}
