package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// minCompressSize is the threshold below which videos are sent as-is.
// Provider upload limits only bite on larger recordings.
const minCompressSize = 5 << 20

// compressTimeout bounds one ffmpeg run.
const compressTimeout = 120 * time.Second

// Compressor shrinks a video payload before upload.
type Compressor interface {
	// Compress transcodes the video to a smaller size. Implementations
	// may return the input unchanged when compression is unnecessary.
	Compress(ctx context.Context, video []byte) ([]byte, error)
}

// PassthroughCompressor returns videos unchanged. Used when ffmpeg is
// not installed.
type PassthroughCompressor struct{}

// Compress returns the input as-is.
func (PassthroughCompressor) Compress(_ context.Context, video []byte) ([]byte, error) {
	return video, nil
}

// FFmpegCompressor implements Compressor using the ffmpeg CLI.
type FFmpegCompressor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
}

// NewFFmpegCompressor creates a new FFmpegCompressor.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegCompressor(ffmpegPath string) *FFmpegCompressor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegCompressor{ffmpegPath: ffmpegPath}
}

// Compress transcodes the video with libx264 at a bitrate that keeps
// provider uploads under their size limits. Videos under 5MB are
// returned unchanged. The scale filter keeps at least 720px of width,
// which the fal.ai models require, while preserving aspect ratio.
func (c *FFmpegCompressor) Compress(ctx context.Context, video []byte) ([]byte, error) {
	if len(video) < minCompressSize {
		return video, nil
	}

	tmpdir, err := os.MkdirTemp("", "swap-compress-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpdir) }()

	inputPath := filepath.Join(tmpdir, "input.mp4")
	outputPath := filepath.Join(tmpdir, "output.mp4")
	if err := os.WriteFile(inputPath, video, 0600); err != nil {
		return nil, fmt.Errorf("write input file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, compressTimeout)
	defer cancel()

	args := []string{
		"-y",            // Overwrite output file without asking
		"-i", inputPath, // Input file
		"-c:v", "libx264", // Video codec
		"-crf", "26", // Quality (lower = better)
		"-preset", "fast", // Encoding speed preset
		"-vf", "scale='max(720,iw)':-2", // Keep at least 720px width
		"-c:a", "aac", // Audio codec
		"-b:a", "128k", // Audio bitrate
		outputPath,
	}

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return nil, &FFmpegError{Args: args, Stderr: stderr.String(), Err: err}
	}

	compressed, err := os.ReadFile(outputPath) // #nosec G304 - path is in our own temp dir
	if err != nil {
		return nil, fmt.Errorf("read output file: %w", err)
	}
	return compressed, nil
}

// FFmpegError represents an error from running ffmpeg, including the
// stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// DetectCompressor returns an FFmpegCompressor when the binary is
// available and a PassthroughCompressor otherwise, so a missing ffmpeg
// degrades to uncompressed uploads instead of failing submissions.
func DetectCompressor(ffmpegPath string) Compressor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if _, err := exec.LookPath(ffmpegPath); err != nil {
		return PassthroughCompressor{}
	}
	return NewFFmpegCompressor(ffmpegPath)
}
