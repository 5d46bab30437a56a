package export

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/dygy/scorepress/internal/errors"
	"github.com/dygy/scorepress/internal/exec"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00"},
		{59.4, "00:59"},
		{60, "01:00"},
		{185.7, "03:06"},
		{3599, "59:59"},
		{-5, "00:00"},
	}
	for _, tc := range cases {
		if got := FormatDuration(tc.seconds); got != tc.want {
			t.Errorf("FormatDuration(%g) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func writeDoc(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("<score-partwise/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExportWritesDocumentsAndRecord(t *testing.T) {
	work := t.TempDir()
	outputRoot := t.TempDir()

	e := NewExporter(exec.NewRunner("python3", work), Options{PDFQuality: "high", IncludeMetadata: true})
	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	res, err := e.Export(context.Background(), Input{
		ProjectID:   "run42",
		OutputRoot:  outputRoot,
		OriginalXML: writeDoc(t, work, "score.musicxml"),
		RefinedXML:  writeDoc(t, work, "score_refined.musicxml"),
		Record: RunRecord{
			Source:                  "test.wav",
			Duration:                "01:30",
			TranscriptionConfidence: 0.82,
			Refinement:              RefinementStatus{Requested: true, Applied: true},
			Details:                 &SourceDetails{SampleRate: 44100, Channels: 1, NotesCount: 12},
		},
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	wantDir := filepath.Join(outputRoot, "run42")
	if res.RunDir != wantDir {
		t.Errorf("run dir %q, want %q", res.RunDir, wantDir)
	}
	for _, p := range []string{res.OriginalPath, res.RefinedPath, res.MetadataPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected file %s: %v", p, err)
		}
	}
	if filepath.Base(res.OriginalPath) != "run42.musicxml" {
		t.Errorf("original name %q", filepath.Base(res.OriginalPath))
	}
	if filepath.Base(res.RefinedPath) != "run42_refined.musicxml" {
		t.Errorf("refined name %q", filepath.Base(res.RefinedPath))
	}

	data, err := os.ReadFile(res.MetadataPath)
	if err != nil {
		t.Fatal(err)
	}
	var record RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("record is not valid JSON: %v", err)
	}
	if record.CreatedAt != "2026-03-14T09:26:53Z" {
		t.Errorf("created_at %q", record.CreatedAt)
	}
	if _, err := time.Parse(time.RFC3339, record.CreatedAt); err != nil {
		t.Errorf("created_at not RFC3339: %v", err)
	}
	if record.Duration != "01:30" {
		t.Errorf("duration %q", record.Duration)
	}
	if !record.Refinement.Applied {
		t.Error("refinement status lost")
	}
	if record.Details == nil || record.Details.SampleRate != 44100 {
		t.Errorf("details lost: %+v", record.Details)
	}

	// No leftover tmp file from the atomic write.
	if _, err := os.Stat(res.MetadataPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp record file left behind")
	}
}

func TestExportWithoutMetadataDropsDetails(t *testing.T) {
	work := t.TempDir()
	e := NewExporter(exec.NewRunner("python3", work), Options{PDFQuality: "high", IncludeMetadata: false})

	res, err := e.Export(context.Background(), Input{
		ProjectID:   "lean",
		OutputRoot:  t.TempDir(),
		OriginalXML: writeDoc(t, work, "score.musicxml"),
		Record: RunRecord{
			Source:  "test.wav",
			Details: &SourceDetails{SampleRate: 44100},
		},
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	data, _ := os.ReadFile(res.MetadataPath)
	var record RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatal(err)
	}
	if record.Details != nil {
		t.Error("details should be omitted when include_metadata is off")
	}
}

func TestExportEngravingFailureKeepsArtifacts(t *testing.T) {
	work := t.TempDir()
	e := NewExporter(exec.NewRunner("python3", work), Options{
		PDFQuality:    "high",
		MuseScorePath: filepath.Join(work, "no-such-musescore"),
	})

	res, err := e.Export(context.Background(), Input{
		ProjectID:   "pdffail",
		OutputRoot:  t.TempDir(),
		OriginalXML: writeDoc(t, work, "score.musicxml"),
		WantPDF:     true,
		Record:      RunRecord{Source: "test.wav"},
	})

	if !errors.Is(err, apperrors.ErrExportFailed) {
		t.Fatalf("expected ErrExportFailed, got %v", err)
	}
	if res == nil {
		t.Fatal("result should be returned alongside the engraving error")
	}
	// The notation document and the run record survive the failure.
	if _, statErr := os.Stat(res.OriginalPath); statErr != nil {
		t.Errorf("notation document missing after engraving failure: %v", statErr)
	}
	if _, statErr := os.Stat(res.MetadataPath); statErr != nil {
		t.Errorf("run record missing after engraving failure: %v", statErr)
	}
	if res.PDFPath != "" {
		t.Errorf("no PDF should be reported, got %q", res.PDFPath)
	}
}

func TestResolutionFor(t *testing.T) {
	if resolutionFor("low") != "150" || resolutionFor("medium") != "200" || resolutionFor("high") != "300" {
		t.Error("unexpected quality to resolution mapping")
	}
	if resolutionFor("") != "300" {
		t.Error("unknown quality should use the high resolution")
	}
}
