// Package export writes a run's output directory: the notation document
// variants, the optional engraved PDF, and the run record. The run
// directory is created here and nowhere else, so a run that fails before
// export leaves no partial output behind.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	osexec "os/exec"
	"path/filepath"
	"time"

	apperrors "github.com/dygy/scorepress/internal/errors"
	"github.com/dygy/scorepress/internal/exec"
)

// RefinementStatus records whether refinement was requested and what
// became of it. Skipped refinement is a success condition for the run.
type RefinementStatus struct {
	Requested    bool     `json:"requested"`
	Applied      bool     `json:"applied"`
	Skipped      bool     `json:"skipped"`
	SkipReason   string   `json:"skip_reason,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
}

// SourceDetails are the extended metadata fields, included when
// output.include_metadata is enabled.
type SourceDetails struct {
	SampleRate int   `json:"sample_rate"`
	Channels   int   `json:"channels"`
	BitRate    int64 `json:"bit_rate"`
	NotesCount int   `json:"notes_count"`
}

// RunRecord is the immutable summary written once at the end of a run.
type RunRecord struct {
	ProjectID               string           `json:"project_id"`
	Source                  string           `json:"source"`
	Duration                string           `json:"duration"`
	TranscriptionConfidence float64          `json:"transcription_confidence"`
	CreatedAt               string           `json:"created_at"`
	Refinement              RefinementStatus `json:"refinement"`
	Details                 *SourceDetails   `json:"details,omitempty"`
}

// Options control engraving and record contents.
type Options struct {
	PDFQuality      string // low, medium, high
	IncludeMetadata bool
	MuseScorePath   string // empty = auto-detect
}

// Input bundles everything the exporter needs for one run.
type Input struct {
	ProjectID   string
	OutputRoot  string
	OriginalXML string // always present
	RefinedXML  string // empty when refinement did not apply
	WantPDF     bool
	Record      RunRecord
}

// Result lists what landed in the run directory.
type Result struct {
	RunDir       string
	OriginalPath string
	RefinedPath  string
	PDFPath      string
	MetadataPath string
}

// Exporter engraves notation documents and writes run records.
type Exporter struct {
	runner *exec.Runner
	opts   Options
	now    func() time.Time
}

// NewExporter creates an exporter.
func NewExporter(runner *exec.Runner, opts Options) *Exporter {
	return &Exporter{runner: runner, opts: opts, now: time.Now}
}

// Export populates the run directory. The notation documents and the run
// record are always written; an engraving failure is reported after they
// are safely on disk so the non-PDF artifacts survive.
func (e *Exporter) Export(ctx context.Context, in Input) (*Result, error) {
	runDir := filepath.Join(in.OutputRoot, in.ProjectID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create run directory: %v", apperrors.ErrExportFailed, err)
	}

	res := &Result{RunDir: runDir}

	res.OriginalPath = filepath.Join(runDir, in.ProjectID+".musicxml")
	if err := copyFile(in.OriginalXML, res.OriginalPath); err != nil {
		return nil, fmt.Errorf("%w: copy notation document: %v", apperrors.ErrExportFailed, err)
	}

	if in.RefinedXML != "" {
		res.RefinedPath = filepath.Join(runDir, in.ProjectID+"_refined.musicxml")
		if err := copyFile(in.RefinedXML, res.RefinedPath); err != nil {
			return nil, fmt.Errorf("%w: copy refined document: %v", apperrors.ErrExportFailed, err)
		}
	}

	// Engrave from the refined variant when it exists, else the original.
	var engraveErr error
	if in.WantPDF {
		source := res.OriginalPath
		if res.RefinedPath != "" {
			source = res.RefinedPath
		}
		pdfPath := filepath.Join(runDir, in.ProjectID+".pdf")
		if err := e.engrave(ctx, source, pdfPath); err != nil {
			engraveErr = err
		} else {
			res.PDFPath = pdfPath
		}
	}

	record := in.Record
	record.ProjectID = in.ProjectID
	record.CreatedAt = e.now().UTC().Format(time.RFC3339)
	if !e.opts.IncludeMetadata {
		record.Details = nil
	}

	res.MetadataPath = filepath.Join(runDir, in.ProjectID+"_metadata.json")
	if err := writeRecord(res.MetadataPath, record); err != nil {
		return nil, fmt.Errorf("%w: write run record: %v", apperrors.ErrExportFailed, err)
	}

	if engraveErr != nil {
		return res, engraveErr
	}
	return res, nil
}

// engrave renders MusicXML to PDF via the MuseScore CLI.
func (e *Exporter) engrave(ctx context.Context, musicxmlPath, pdfPath string) error {
	bin := e.opts.MuseScorePath
	if bin == "" {
		bin = FindMuseScore()
	}
	if bin == "" {
		return fmt.Errorf("%w: MuseScore not found on PATH or in common locations",
			apperrors.ErrExportFailed)
	}

	args := []string{musicxmlPath, "-o", pdfPath, "-r", resolutionFor(e.opts.PDFQuality)}

	result, err := e.runner.Run(ctx, bin, args...)
	if err != nil {
		stderr := ""
		exitCode := 0
		if result != nil {
			stderr = result.Stderr
			exitCode = result.ExitCode
		}
		return fmt.Errorf("%w: %v", apperrors.ErrExportFailed,
			apperrors.NewStageError("musescore", "export", exitCode, stderr, err))
	}

	if info, err := os.Stat(pdfPath); err != nil || info.Size() == 0 {
		return fmt.Errorf("%w: engraving produced no PDF output", apperrors.ErrExportFailed)
	}
	return nil
}

func resolutionFor(quality string) string {
	switch quality {
	case "low":
		return "150"
	case "medium":
		return "200"
	default:
		return "300"
	}
}

// FindMuseScore locates the MuseScore executable on PATH or in common
// installation locations.
func FindMuseScore() string {
	for _, name := range []string{"mscore", "musescore", "mscore4portable", "musescore4", "musescore3"} {
		if path, err := osexec.LookPath(name); err == nil {
			return path
		}
	}

	commonPaths := []string{
		"/Applications/MuseScore 4.app/Contents/MacOS/mscore",
		"/Applications/MuseScore 3.app/Contents/MacOS/mscore",
		"/usr/bin/mscore",
		"/usr/local/bin/mscore",
	}
	for _, path := range commonPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// FormatDuration renders a duration in seconds as an mm:ss string.
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds + 0.5)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// writeRecord writes the run record atomically: tmp file then rename.
func writeRecord(path string, record RunRecord) error {
	b, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
