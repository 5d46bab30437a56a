package audio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/dygy/scorepress/internal/errors"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIsRemoteURL(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"https://youtube.com/watch?v=abc", true},
		{"http://example.com/audio.mp3", true},
		{"./recording.wav", false},
		{"/abs/path/song.flac", false},
		{"ftp://example.com/file", false},
	}
	for _, tc := range cases {
		if got := IsRemoteURL(tc.input); got != tc.want {
			t.Errorf("IsRemoteURL(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestValidateInputMissingFile(t *testing.T) {
	_, err := ValidateInput(filepath.Join(t.TempDir(), "ghost.wav"))
	if !errors.Is(err, apperrors.ErrInputUnavailable) {
		t.Fatalf("expected ErrInputUnavailable, got %v", err)
	}
}

func TestValidateInputEmptyFile(t *testing.T) {
	path := writeTemp(t, "empty.wav", nil)
	_, err := ValidateInput(path)
	if !errors.Is(err, apperrors.ErrInputUnavailable) {
		t.Fatalf("expected ErrInputUnavailable for empty file, got %v", err)
	}
}

func TestDetectFormatMagicBytes(t *testing.T) {
	cases := []struct {
		name   string
		header []byte
		want   Format
	}{
		{"wav.bin", []byte("RIFF\x24\x08\x00\x00WAVEfmt "), FormatWAV},
		{"flac.bin", []byte("fLaC\x00\x00\x00\x22more-header"), FormatFLAC},
		{"id3.bin", []byte("ID3\x04\x00\x00\x00\x00\x00\x00pad"), FormatMP3},
		{"framesync.bin", []byte{0xFF, 0xFB, 0x90, 0x00, 1, 2, 3, 4, 5, 6, 7, 8}, FormatMP3},
		{"m4a.bin", []byte("\x00\x00\x00\x20ftypM4A mini"), FormatM4A},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTemp(t, tc.name, tc.header)
			got, err := detectFormat(path)
			if err != nil {
				t.Fatalf("detectFormat: %v", err)
			}
			if got != tc.want {
				t.Errorf("detectFormat = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDetectFormatExtensionFallback(t *testing.T) {
	path := writeTemp(t, "mystery.wav", []byte("not a real header"))
	got, err := detectFormat(path)
	if err != nil {
		t.Fatalf("detectFormat: %v", err)
	}
	if got != FormatWAV {
		t.Errorf("expected extension fallback to WAV, got %v", got)
	}
}

func TestValidateInputUnsupportedFormat(t *testing.T) {
	path := writeTemp(t, "notes.txt", []byte("just some text content"))
	_, err := ValidateInput(path)
	if !errors.Is(err, apperrors.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}
