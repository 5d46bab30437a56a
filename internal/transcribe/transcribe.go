package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	apperrors "github.com/dygy/scorepress/internal/errors"
	"github.com/dygy/scorepress/internal/exec"
)

// Note is a single transcribed note event.
type Note struct {
	Pitch      int     `json:"pitch"`
	Start      float64 `json:"start"`
	Duration   float64 `json:"duration"`
	Velocity   int     `json:"velocity"`
	Confidence float64 `json:"confidence"`
}

// Result is the note-event artifact: the MIDI file for downstream
// conversion plus the decoded note list and an aggregate confidence.
type Result struct {
	MIDIPath   string
	NotesPath  string
	Notes      []Note
	Confidence float64
}

// Options are the model thresholds, consumed from configuration.
type Options struct {
	OnsetThreshold    float64
	FrameThreshold    float64
	MinimumNoteLength float64
}

// Transcriber converts audio to note events using Basic Pitch.
type Transcriber struct {
	runner *exec.Runner
}

// NewTranscriber creates a new transcriber
func NewTranscriber(runner *exec.Runner) *Transcriber {
	return &Transcriber{runner: runner}
}

// Transcribe runs the Basic Pitch helper script over a waveform and reads
// back the note-event artifact it wrote.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath, midiPath, notesPath string, opts Options) (*Result, error) {
	result, err := t.runner.RunScript(ctx, "transcribe.py",
		audioPath,
		midiPath,
		"--notes-json", notesPath,
		"--onset-threshold", formatThreshold(opts.OnsetThreshold),
		"--frame-threshold", formatThreshold(opts.FrameThreshold),
		"--min-note-length", formatThreshold(opts.MinimumNoteLength),
	)
	if err != nil {
		stderr := ""
		exitCode := 0
		if result != nil {
			stderr = result.Stderr
			exitCode = result.ExitCode
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTranscriptionFailed,
			apperrors.NewStageError("basic-pitch", "transcribe", exitCode, stderr, err))
	}

	if info, err := os.Stat(midiPath); err != nil || info.Size() == 0 {
		return nil, fmt.Errorf("%w: model produced no MIDI output", apperrors.ErrTranscriptionFailed)
	}

	data, err := os.ReadFile(notesPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read note events: %v", apperrors.ErrTranscriptionFailed, err)
	}

	var decoded struct {
		Confidence float64 `json:"confidence"`
		Notes      []Note  `json:"notes"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("%w: parse note events: %v", apperrors.ErrTranscriptionFailed, err)
	}

	if len(decoded.Notes) == 0 {
		return nil, fmt.Errorf("%w: no notes detected (silent or unintelligible audio)",
			apperrors.ErrTranscriptionFailed)
	}

	return &Result{
		MIDIPath:   midiPath,
		NotesPath:  notesPath,
		Notes:      decoded.Notes,
		Confidence: clamp01(decoded.Confidence),
	}, nil
}

// clamp01 bounds the aggregate confidence to [0,1].
func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func formatThreshold(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
