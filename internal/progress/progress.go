package progress

import (
	"fmt"
	"io"
	"time"
)

// Stage represents a processing stage
type Stage struct {
	Number      int
	Total       int
	Name        string
	Description string
}

// The five pipeline stages, in execution order.
var (
	StageResolve    = Stage{1, 5, "resolve", "Resolving input audio..."}
	StageTranscribe = Stage{2, 5, "transcribe", "Transcribing audio to notes... (this may take a moment)"}
	StageConvert    = Stage{3, 5, "convert", "Converting notes to MusicXML..."}
	StageRefine     = Stage{4, 5, "refine", "Refining notation with language model..."}
	StageExport     = Stage{5, 5, "export", "Exporting sheet music..."}
)

// Reporter handles CLI progress output
type Reporter struct {
	out       io.Writer
	startTime time.Time
	verbose   bool
}

// NewReporter creates a new progress reporter
func NewReporter(out io.Writer, verbose bool) *Reporter {
	return &Reporter{
		out:       out,
		startTime: time.Now(),
		verbose:   verbose,
	}
}

// StartStage announces the beginning of a processing stage
func (r *Reporter) StartStage(stage Stage) {
	fmt.Fprintf(r.out, "[%d/%d] %s\n", stage.Number, stage.Total, stage.Description)
}

// Update shows a sub-progress message within a stage
func (r *Reporter) Update(format string, args ...any) {
	if r.verbose {
		fmt.Fprintf(r.out, "       %s\n", fmt.Sprintf(format, args...))
	}
}

// StageComplete shows completion message for a stage
func (r *Reporter) StageComplete(format string, args ...any) {
	fmt.Fprintf(r.out, "       %s\n", fmt.Sprintf(format, args...))
}

// Skipped announces that a stage was skipped and why
func (r *Reporter) Skipped(stage Stage, reason string) {
	fmt.Fprintf(r.out, "[%d/%d] %s skipped: %s\n", stage.Number, stage.Total, stage.Name, reason)
}

// Done announces successful completion
func (r *Reporter) Done(runDir string) {
	elapsed := time.Since(r.startTime)
	fmt.Fprintln(r.out, "Done! Sheet music generated successfully.")
	if runDir != "" {
		fmt.Fprintf(r.out, "Output saved to: %s\n", runDir)
	}
	fmt.Fprintf(r.out, "Completed in %.1f seconds\n", elapsed.Seconds())
}

// Error announces an error
func (r *Reporter) Error(err error) {
	fmt.Fprintf(r.out, "Error: %s\n", err)
}

// Warning announces a non-fatal warning
func (r *Reporter) Warning(format string, args ...any) {
	fmt.Fprintf(r.out, "Warning: %s\n", fmt.Sprintf(format, args...))
}
