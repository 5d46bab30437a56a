package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/dygy/scorepress/internal/errors"
)

const (
	MaxFileSize = 200 * 1024 * 1024 // 200MB
)

// Format represents an audio file format
type Format string

const (
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatM4A     Format = "m4a"
	FormatFLAC    Format = "flac"
	FormatUnknown Format = "unknown"
)

// IsRemoteURL reports whether the input string is a remote resource
// rather than a local path.
func IsRemoteURL(input string) bool {
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}

// ValidateInput checks that a local input file exists and looks like a
// supported audio format. An empty or unreadable file counts as
// unavailable input.
func ValidateInput(path string) (Format, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return FormatUnknown, fmt.Errorf("%w: file not found: %s", apperrors.ErrInputUnavailable, path)
	}
	if err != nil {
		return FormatUnknown, fmt.Errorf("%w: stat %s: %v", apperrors.ErrInputUnavailable, path, err)
	}

	if info.Size() == 0 {
		return FormatUnknown, fmt.Errorf("%w: file is empty: %s", apperrors.ErrInputUnavailable, path)
	}
	if info.Size() > MaxFileSize {
		return FormatUnknown, fmt.Errorf("%w: file exceeds 200MB: %s", apperrors.ErrInputUnavailable, path)
	}

	format, err := detectFormat(path)
	if err != nil {
		return FormatUnknown, err
	}

	if format == FormatUnknown {
		return FormatUnknown, fmt.Errorf("%w: please provide a WAV, MP3, M4A or FLAC file",
			apperrors.ErrUnsupportedFormat)
	}

	return format, nil
}

// detectFormat checks file magic bytes to determine audio format
func detectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("%w: open %s: %v", apperrors.ErrInputUnavailable, path, err)
	}
	defer f.Close()

	header := make([]byte, 12)
	n, err := f.Read(header)
	if err != nil || n < 4 {
		return FormatUnknown, fmt.Errorf("%w: could not read file header", apperrors.ErrInputUnavailable)
	}

	// WAV (RIFF....WAVE)
	if string(header[:4]) == "RIFF" && n >= 12 && string(header[8:12]) == "WAVE" {
		return FormatWAV, nil
	}

	// FLAC stream marker
	if string(header[:4]) == "fLaC" {
		return FormatFLAC, nil
	}

	// MP3 with ID3 tag
	if string(header[:3]) == "ID3" {
		return FormatMP3, nil
	}

	// MP3 frame sync
	if header[0] == 0xFF && (header[1]&0xE0) == 0xE0 {
		return FormatMP3, nil
	}

	// M4A/MP4 container ("ftyp" at offset 4)
	if n >= 8 && string(header[4:8]) == "ftyp" {
		return FormatM4A, nil
	}

	// Fallback: check extension
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return FormatWAV, nil
	case ".mp3":
		return FormatMP3, nil
	case ".m4a":
		return FormatM4A, nil
	case ".flac":
		return FormatFLAC, nil
	}

	return FormatUnknown, nil
}
