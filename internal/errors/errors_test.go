package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestStageErrorMessage(t *testing.T) {
	e := NewStageError("ffmpeg", "resolve", 1, "no such file", errors.New("exit status 1"))
	msg := e.Error()
	if msg != "ffmpeg failed at resolve (exit 1): no such file" {
		t.Errorf("unexpected message: %q", msg)
	}

	quiet := NewStageError("musescore", "export", 2, "", errors.New("exit status 2"))
	if quiet.Error() != "musescore failed at export (exit 2)" {
		t.Errorf("unexpected message: %q", quiet.Error())
	}
}

func TestStageErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	e := NewStageError("yt-dlp", "resolve", 1, "", cause)
	if !errors.Is(e, cause) {
		t.Error("Unwrap should expose the cause")
	}
}

func TestStageOf(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrInputUnavailable, "resolve"},
		{ErrTranscriptionFailed, "transcribe"},
		{ErrMalformedTranscription, "convert"},
		{ErrExportFailed, "export"},
		{ErrInvalidConfig, "config"},
		{errors.New("mystery"), "pipeline"},
		{fmt.Errorf("wrapped: %w", ErrTranscriptionFailed), "transcribe"},
		{fmt.Errorf("%w: %v", ErrExportFailed, NewStageError("musescore", "export", 1, "", nil)), "export"},
	}

	for _, tc := range cases {
		if got := StageOf(tc.err); got != tc.want {
			t.Errorf("StageOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}

	// A StageError's own stage wins over sentinel matching.
	wrapped := fmt.Errorf("%w: %w", ErrInputUnavailable, NewStageError("ffmpeg", "resolve", 1, "", nil))
	if got := StageOf(wrapped); got != "resolve" {
		t.Errorf("StageOf wrapped = %q", got)
	}
}
