package audio

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	apperrors "github.com/dygy/scorepress/internal/errors"
	"github.com/dygy/scorepress/internal/exec"
)

// Downloader fetches remote audio using yt-dlp.
type Downloader struct {
	runner *exec.Runner
}

// NewDownloader creates a new downloader
func NewDownloader(runner *exec.Runner) *Downloader {
	return &Downloader{runner: runner}
}

// Download fetches the audio track of a remote video into outputDir and
// returns the downloaded file path.
func (d *Downloader) Download(ctx context.Context, url, outputDir string) (string, error) {
	if err := d.checkYtDlp(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrInputUnavailable, err)
	}

	outputTemplate := filepath.Join(outputDir, "download.%(ext)s")

	result, err := d.runner.Run(ctx, "yt-dlp",
		"--no-playlist",
		"--extract-audio",
		"--audio-format", "wav",
		"--audio-quality", "0",
		"--output", outputTemplate,
		"--no-warnings",
		"--quiet",
		url,
	)
	if err != nil {
		// Some extractors cannot postprocess to wav; retry as mp3 and
		// let ffmpeg standardize later.
		return d.downloadAsMp3(ctx, url, outputDir, result)
	}

	return filepath.Join(outputDir, "download.wav"), nil
}

func (d *Downloader) downloadAsMp3(ctx context.Context, url, outputDir string, prev *exec.Result) (string, error) {
	outputTemplate := filepath.Join(outputDir, "download.%(ext)s")

	result, err := d.runner.Run(ctx, "yt-dlp",
		"--no-playlist",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "0",
		"--output", outputTemplate,
		"--no-warnings",
		url,
	)
	if err != nil {
		stderr := ""
		exitCode := 0
		if result != nil {
			stderr = result.Stderr
			exitCode = result.ExitCode
		} else if prev != nil {
			stderr = prev.Stderr
			exitCode = prev.ExitCode
		}
		return "", fmt.Errorf("%w: %v", apperrors.ErrInputUnavailable,
			apperrors.NewStageError("yt-dlp", "resolve", exitCode, stderr, err))
	}

	return filepath.Join(outputDir, "download.mp3"), nil
}

func (d *Downloader) checkYtDlp(ctx context.Context) error {
	if err := d.runner.CheckTool(ctx, "yt-dlp", "--version"); err != nil {
		return fmt.Errorf("yt-dlp not installed. Install with: brew install yt-dlp (macOS) or pip install yt-dlp")
	}
	return nil
}

// Title fetches the remote video title for the run record.
func (d *Downloader) Title(ctx context.Context, url string) (string, error) {
	result, err := d.runner.Run(ctx, "yt-dlp", "--get-title", "--no-warnings", url)
	if err != nil {
		return "", err
	}

	title := strings.TrimSpace(result.Stdout)
	if title == "" {
		return "remote audio", nil
	}

	if len(title) > 80 {
		title = title[:77] + "..."
	}
	return title, nil
}
