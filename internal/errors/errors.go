package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline failure taxonomy. The first four are
// fatal to a run; refinement failures are never surfaced as errors.
var (
	ErrInputUnavailable       = errors.New("input unavailable")
	ErrTranscriptionFailed    = errors.New("transcription failed")
	ErrMalformedTranscription = errors.New("malformed transcription")
	ErrExportFailed           = errors.New("export failed")
	ErrInvalidConfig          = errors.New("invalid configuration")
	ErrToolNotInstalled       = errors.New("required tool not installed")
	ErrUnsupportedFormat      = errors.New("unsupported format")
)

// StageError represents a failure in an external process at a pipeline stage.
type StageError struct {
	Tool     string // "ffmpeg", "yt-dlp", "basic-pitch", "music21", "musescore"
	Stage    string // "resolve", "transcribe", "convert", "refine", "export"
	ExitCode int
	Stderr   string
	Cause    error
}

func (e *StageError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed at %s (exit %d): %s", e.Tool, e.Stage, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s failed at %s (exit %d)", e.Tool, e.Stage, e.ExitCode)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// NewStageError creates a StageError.
func NewStageError(tool, stage string, exitCode int, stderr string, cause error) *StageError {
	return &StageError{
		Tool:     tool,
		Stage:    stage,
		ExitCode: exitCode,
		Stderr:   stderr,
		Cause:    cause,
	}
}

// StageOf returns the pipeline stage a fatal error belongs to, for the
// human-readable failure message. Unknown errors report as "pipeline".
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	switch {
	case errors.Is(err, ErrInputUnavailable):
		return "resolve"
	case errors.Is(err, ErrTranscriptionFailed):
		return "transcribe"
	case errors.Is(err, ErrMalformedTranscription):
		return "convert"
	case errors.Is(err, ErrExportFailed):
		return "export"
	case errors.Is(err, ErrInvalidConfig):
		return "config"
	}
	return "pipeline"
}
