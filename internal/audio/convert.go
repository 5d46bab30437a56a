package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	apperrors "github.com/dygy/scorepress/internal/errors"
	"github.com/dygy/scorepress/internal/exec"
)

// Metadata describes a decoded waveform as measured by ffprobe.
type Metadata struct {
	Duration   float64 `json:"duration"`
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	BitRate    int64   `json:"bit_rate"`
	FormatName string  `json:"format_name"`
	FileSize   int64   `json:"file_size"`
}

// ConvertOptions controls the standardized waveform format.
type ConvertOptions struct {
	SampleRate int  // target sample rate, e.g. 44100
	Channels   int  // 1 = mono, 2 = stereo
	Normalize  bool // apply loudness normalization
}

// Converter decodes and resamples audio into a standardized WAV using ffmpeg.
type Converter struct {
	runner *exec.Runner
}

// NewConverter creates a new audio converter
func NewConverter(runner *exec.Runner) *Converter {
	return &Converter{runner: runner}
}

// ToWAV converts any supported input into a 16-bit PCM WAV at the target
// sample rate and channel count, then probes the result.
func (c *Converter) ToWAV(ctx context.Context, inputPath, outputPath string, opts ConvertOptions) (*Metadata, error) {
	args := []string{
		"-i", inputPath,
		"-ar", strconv.Itoa(opts.SampleRate),
		"-ac", strconv.Itoa(opts.Channels),
		"-sample_fmt", "s16",
		"-acodec", "pcm_s16le",
	}
	if opts.Normalize {
		args = append(args, "-af", "loudnorm")
	}
	args = append(args, "-y", outputPath)

	result, err := c.runner.Run(ctx, "ffmpeg", args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInputUnavailable,
			apperrors.NewStageError("ffmpeg", "resolve", exitCode(result), stderrOf(result), err))
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		return nil, fmt.Errorf("%w: ffmpeg produced no output for %s", apperrors.ErrInputUnavailable, inputPath)
	}

	meta, err := c.Probe(ctx, outputPath)
	if err != nil {
		return nil, err
	}
	meta.FileSize = info.Size()
	return meta, nil
}

// Probe extracts audio metadata using ffprobe.
func (c *Converter) Probe(ctx context.Context, path string) (*Metadata, error) {
	result, err := c.runner.Run(ctx, "ffprobe",
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-of", "json",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInputUnavailable,
			apperrors.NewStageError("ffprobe", "resolve", exitCode(result), stderrOf(result), err))
	}

	type ffProbe struct {
		Format struct {
			FormatName string `json:"format_name"`
			Duration   string `json:"duration"`
			BitRate    string `json:"bit_rate"`
			Size       string `json:"size"`
		} `json:"format"`
		Streams []struct {
			CodecType  string `json:"codec_type"`
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
		} `json:"streams"`
	}

	var ff ffProbe
	if err := json.Unmarshal([]byte(result.Stdout), &ff); err != nil {
		return nil, fmt.Errorf("%w: parse ffprobe output: %v", apperrors.ErrInputUnavailable, err)
	}

	meta := &Metadata{
		FormatName: ff.Format.FormatName,
		Duration:   parseFloat(ff.Format.Duration),
		BitRate:    parseInt(ff.Format.BitRate),
		FileSize:   parseInt(ff.Format.Size),
	}
	for _, s := range ff.Streams {
		if s.CodecType == "audio" {
			meta.SampleRate = int(parseInt(s.SampleRate))
			meta.Channels = s.Channels
			break
		}
	}

	if meta.Duration <= 0 {
		return nil, fmt.Errorf("%w: input has no measurable duration: %s", apperrors.ErrInputUnavailable, path)
	}

	return meta, nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func exitCode(r *exec.Result) int {
	if r == nil {
		return 0
	}
	return r.ExitCode
}

func stderrOf(r *exec.Result) string {
	if r == nil {
		return ""
	}
	return r.Stderr
}
