package notation

import (
	"errors"
	"testing"

	apperrors "github.com/dygy/scorepress/internal/errors"
	"github.com/dygy/scorepress/internal/transcribe"
)

func TestValidateNotes(t *testing.T) {
	valid := []transcribe.Note{
		{Pitch: 60, Start: 0, Duration: 0.5, Velocity: 90},
		{Pitch: 64, Start: 0.5, Duration: 0.25, Velocity: 80},
	}

	t.Run("valid track passes", func(t *testing.T) {
		if err := ValidateNotes(valid); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
	})

	cases := []struct {
		name  string
		notes []transcribe.Note
	}{
		{"empty track", nil},
		{"zero duration", []transcribe.Note{{Pitch: 60, Start: 0, Duration: 0}}},
		{"negative duration", []transcribe.Note{{Pitch: 60, Start: 0, Duration: -0.1}}},
		{"negative start", []transcribe.Note{{Pitch: 60, Start: -1, Duration: 0.5}}},
		{"pitch too high", []transcribe.Note{{Pitch: 128, Start: 0, Duration: 0.5}}},
		{"negative pitch", []transcribe.Note{{Pitch: -1, Start: 0, Duration: 0.5}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateNotes(tc.notes)
			if !errors.Is(err, apperrors.ErrMalformedTranscription) {
				t.Errorf("expected ErrMalformedTranscription, got %v", err)
			}
		})
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if !opts.Quantize || !opts.InferKeySignature || !opts.InferTimeSignature || !opts.AddTempoMarkings {
		t.Errorf("expected all post-processing enabled by default, got %+v", opts)
	}
}
