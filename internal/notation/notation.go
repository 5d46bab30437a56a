// Package notation converts note-event artifacts into MusicXML documents
// via a music21 helper script. Structural validation happens here before
// the external call. No repair is attempted: a malformed transcription
// surfaces as an error and any fixing is left to the refinement stage.
package notation

import (
	"context"
	"fmt"
	"os"

	apperrors "github.com/dygy/scorepress/internal/errors"
	"github.com/dygy/scorepress/internal/exec"
	"github.com/dygy/scorepress/internal/transcribe"
)

// Document describes a produced MusicXML file.
type Document struct {
	Path       string
	NotesCount int
}

// Options mirror the music21 post-processing switches.
type Options struct {
	Quantize           bool
	InferKeySignature  bool
	InferTimeSignature bool
	AddTempoMarkings   bool
}

// DefaultOptions returns the conversion defaults.
func DefaultOptions() Options {
	return Options{
		Quantize:           true,
		InferKeySignature:  true,
		InferTimeSignature: true,
		AddTempoMarkings:   true,
	}
}

// Converter turns MIDI note events into MusicXML.
type Converter struct {
	runner *exec.Runner
}

// NewConverter creates a new notation converter
func NewConverter(runner *exec.Runner) *Converter {
	return &Converter{runner: runner}
}

// ValidateNotes rejects structurally invalid note-event artifacts: an
// empty track or any note with a non-positive duration.
func ValidateNotes(notes []transcribe.Note) error {
	if len(notes) == 0 {
		return fmt.Errorf("%w: empty track", apperrors.ErrMalformedTranscription)
	}
	for i, n := range notes {
		if n.Duration <= 0 {
			return fmt.Errorf("%w: note %d has non-positive duration %g",
				apperrors.ErrMalformedTranscription, i, n.Duration)
		}
		if n.Start < 0 {
			return fmt.Errorf("%w: note %d starts before zero (%g)",
				apperrors.ErrMalformedTranscription, i, n.Start)
		}
		if n.Pitch < 0 || n.Pitch > 127 {
			return fmt.Errorf("%w: note %d has pitch %d outside MIDI range",
				apperrors.ErrMalformedTranscription, i, n.Pitch)
		}
	}
	return nil
}

// Convert validates the note events and renders the MIDI file to MusicXML.
func (c *Converter) Convert(ctx context.Context, tr *transcribe.Result, outputPath string, opts Options) (*Document, error) {
	if err := ValidateNotes(tr.Notes); err != nil {
		return nil, err
	}

	args := []string{tr.MIDIPath, outputPath}
	if opts.Quantize {
		args = append(args, "--quantize")
	}
	if opts.InferKeySignature {
		args = append(args, "--infer-key")
	}
	if opts.InferTimeSignature {
		args = append(args, "--infer-time")
	}
	if opts.AddTempoMarkings {
		args = append(args, "--tempo-markings")
	}

	result, err := c.runner.RunScript(ctx, "midi_to_musicxml.py", args...)
	if err != nil {
		stderr := ""
		exitCode := 0
		if result != nil {
			stderr = result.Stderr
			exitCode = result.ExitCode
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedTranscription,
			apperrors.NewStageError("music21", "convert", exitCode, stderr, err))
	}

	if info, err := os.Stat(outputPath); err != nil || info.Size() == 0 {
		return nil, fmt.Errorf("%w: conversion produced no MusicXML output",
			apperrors.ErrMalformedTranscription)
	}

	return &Document{
		Path:       outputPath,
		NotesCount: len(tr.Notes),
	}, nil
}
