// Package pipeline chains the five processing stages of a run: resolve,
// transcribe, convert, refine, export. Stages run strictly in order and
// the first four fatal failures abort the run; refinement is the one
// stage that may fail without failing the run.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/dygy/scorepress/internal/audio"
	"github.com/dygy/scorepress/internal/config"
	apperrors "github.com/dygy/scorepress/internal/errors"
	"github.com/dygy/scorepress/internal/exec"
	"github.com/dygy/scorepress/internal/export"
	"github.com/dygy/scorepress/internal/logger"
	"github.com/dygy/scorepress/internal/notation"
	"github.com/dygy/scorepress/internal/progress"
	"github.com/dygy/scorepress/internal/refine"
	"github.com/dygy/scorepress/internal/transcribe"
	"github.com/dygy/scorepress/internal/workspace"
)

// Options select the input and per-run switches for one execution.
type Options struct {
	Input     string // local path or http(s) URL
	ProjectID string // empty = generated
	Refine    bool
	PDF       bool
	Style     string // empty = config default
	Prompt    string // custom refinement prompt, overrides style
}

// Result summarizes a completed run.
type Result struct {
	ProjectID         string
	RunDir            string
	OriginalPath      string
	RefinedPath       string
	PDFPath           string
	MetadataPath      string
	Confidence        float64
	NotesCount        int
	RefinementApplied bool
	RefinementSkipped bool
	SkipReason        string
}

// Orchestrator wires the stage implementations together.
type Orchestrator struct {
	cfg         config.Config
	runner      *exec.Runner
	downloader  *audio.Downloader
	converter   *audio.Converter
	transcriber *transcribe.Transcriber
	notation    *notation.Converter
	exporter    *export.Exporter
	reporter    *progress.Reporter

	// refiner is nil when refinement cannot run at all; refinerErr then
	// holds the reason recorded as the skip reason.
	refiner    refine.Refiner
	refinerErr string
}

// New builds an orchestrator from the loaded configuration. A refinement
// client that cannot be constructed (missing API key) is not an error:
// the reason is kept and the stage will be skipped.
func New(cfg config.Config, scriptsDir string, reporter *progress.Reporter) *Orchestrator {
	runner := exec.NewRunner("", scriptsDir)

	o := &Orchestrator{
		cfg:         cfg,
		runner:      runner,
		downloader:  audio.NewDownloader(runner),
		converter:   audio.NewConverter(runner),
		transcriber: transcribe.NewTranscriber(runner),
		notation:    notation.NewConverter(runner),
		reporter:    reporter,
		exporter: export.NewExporter(runner, export.Options{
			PDFQuality:      cfg.Output.PDFQuality,
			IncludeMetadata: cfg.Output.IncludeMetadata,
			MuseScorePath:   cfg.Output.MuseScorePath,
		}),
	}

	client, err := refine.NewClient(refine.Config{
		APIKey:      cfg.API.OpenAIAPIKey,
		BaseURL:     cfg.API.OpenAIBaseURL,
		Model:       cfg.Refinement.Model,
		Temperature: cfg.Refinement.Temperature,
		MaxTokens:   cfg.Refinement.MaxTokens,
		Timeout:     time.Duration(cfg.Refinement.TimeoutSec) * time.Second,
	})
	if err != nil {
		o.refinerErr = err.Error()
	} else {
		o.refiner = client
	}

	return o
}

// SetRefiner replaces the refinement client.
func (o *Orchestrator) SetRefiner(r refine.Refiner) {
	o.refiner = r
	o.refinerErr = ""
}

// CheckTools verifies the external binaries the pipeline cannot run
// without. yt-dlp and MuseScore are checked lazily by their stages since
// not every run needs them.
func (o *Orchestrator) CheckTools(ctx context.Context) error {
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		if err := o.runner.CheckTool(ctx, tool, "-version"); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrToolNotInstalled, err)
		}
	}
	return nil
}

// Execute runs the full pipeline for one input. The run directory under
// the configured output root is created only by the export stage, so a
// run that fails earlier leaves nothing behind.
func (o *Orchestrator) Execute(ctx context.Context, opts Options) (*Result, error) {
	log := logger.L()

	if opts.Input == "" {
		return nil, fmt.Errorf("%w: no input given", apperrors.ErrInputUnavailable)
	}
	if opts.ProjectID == "" {
		opts.ProjectID = uuid.NewString()[:8]
	}
	if opts.Style == "" {
		opts.Style = o.cfg.Refinement.Style
	}

	ws, err := workspace.Create()
	if err != nil {
		return nil, err
	}
	defer ws.Cleanup()

	log.Info("run started",
		"project_id", opts.ProjectID,
		"input", opts.Input,
		"refine", opts.Refine,
		"pdf", opts.PDF)

	// Stage 1: resolve input audio into a standardized waveform.
	o.reporter.StartStage(progress.StageResolve)
	source, meta, err := o.resolve(ctx, opts.Input, ws)
	if err != nil {
		log.Error("resolve failed", "error", err)
		return nil, err
	}
	o.reporter.StageComplete("Audio ready: %s (%s)", source, export.FormatDuration(meta.Duration))
	log.Info("input resolved",
		"source", source,
		"duration_sec", meta.Duration,
		"sample_rate", meta.SampleRate,
		"channels", meta.Channels)

	// Stage 2: transcribe the waveform into note events.
	o.reporter.StartStage(progress.StageTranscribe)
	tr, err := o.transcriber.Transcribe(ctx, ws.InputWAV(), ws.RawMIDI(), ws.NotesJSON(), transcribe.Options{
		OnsetThreshold:    o.cfg.Transcription.OnsetThreshold,
		FrameThreshold:    o.cfg.Transcription.FrameThreshold,
		MinimumNoteLength: o.cfg.Transcription.MinimumNoteLength,
	})
	if err != nil {
		log.Error("transcription failed", "error", err)
		return nil, err
	}
	o.reporter.StageComplete("Transcribed %d notes (confidence %.2f)", len(tr.Notes), tr.Confidence)
	log.Info("transcription complete", "notes", len(tr.Notes), "confidence", tr.Confidence)

	if tr.Confidence < o.cfg.Transcription.ConfidenceThreshold {
		o.reporter.Warning("low transcription confidence (%.2f); the result may need manual correction",
			tr.Confidence)
		log.Warn("low transcription confidence",
			"confidence", tr.Confidence,
			"threshold", o.cfg.Transcription.ConfidenceThreshold)
	}

	// Stage 3: convert note events into a MusicXML document.
	o.reporter.StartStage(progress.StageConvert)
	doc, err := o.notation.Convert(ctx, tr, ws.OriginalXML(), notation.DefaultOptions())
	if err != nil {
		log.Error("conversion failed", "error", err)
		return nil, err
	}
	o.reporter.StageComplete("Notation document generated")
	log.Info("conversion complete", "notes", doc.NotesCount)

	// Stage 4: optional refinement. Never fatal.
	refinedPath, status := o.refineDocument(ctx, ws, opts)

	// Stage 5: export into the run directory.
	o.reporter.StartStage(progress.StageExport)
	record := export.RunRecord{
		Source:                  source,
		Duration:                export.FormatDuration(meta.Duration),
		TranscriptionConfidence: tr.Confidence,
		Refinement:              status,
		Details: &export.SourceDetails{
			SampleRate: meta.SampleRate,
			Channels:   meta.Channels,
			BitRate:    meta.BitRate,
			NotesCount: doc.NotesCount,
		},
	}

	exp, err := o.exporter.Export(ctx, export.Input{
		ProjectID:   opts.ProjectID,
		OutputRoot:  o.cfg.General.OutputDir,
		OriginalXML: ws.OriginalXML(),
		RefinedXML:  refinedPath,
		WantPDF:     opts.PDF,
		Record:      record,
	})
	if err != nil {
		log.Error("export failed", "error", err)
		return nil, err
	}
	o.reporter.StageComplete("Run directory: %s", exp.RunDir)
	log.Info("run complete", "run_dir", exp.RunDir)

	return &Result{
		ProjectID:         opts.ProjectID,
		RunDir:            exp.RunDir,
		OriginalPath:      exp.OriginalPath,
		RefinedPath:       exp.RefinedPath,
		PDFPath:           exp.PDFPath,
		MetadataPath:      exp.MetadataPath,
		Confidence:        tr.Confidence,
		NotesCount:        doc.NotesCount,
		RefinementApplied: status.Applied,
		RefinementSkipped: status.Skipped,
		SkipReason:        status.SkipReason,
	}, nil
}

// resolve turns the raw input (path or URL) into the standardized WAV in
// the workspace and returns a human-readable source label plus probe
// metadata.
func (o *Orchestrator) resolve(ctx context.Context, input string, ws *workspace.Workspace) (string, *audio.Metadata, error) {
	source := input
	localPath := input

	if audio.IsRemoteURL(input) {
		dlCtx := ctx
		if o.cfg.Input.DownloadTimeoutSec > 0 {
			var cancel context.CancelFunc
			dlCtx, cancel = context.WithTimeout(ctx,
				time.Duration(o.cfg.Input.DownloadTimeoutSec)*time.Second)
			defer cancel()
		}

		o.reporter.Update("downloading %s", input)
		downloaded, err := o.downloader.Download(dlCtx, input, ws.Dir)
		if err != nil {
			return "", nil, err
		}
		localPath = downloaded

		if title, err := o.downloader.Title(ctx, input); err == nil {
			source = title
		}
	} else {
		if _, err := audio.ValidateInput(input); err != nil {
			return "", nil, err
		}
	}

	o.reporter.Update("standardizing waveform (%d Hz, %d ch)",
		o.cfg.Input.TargetSampleRate, o.cfg.Input.TargetChannels)
	meta, err := o.converter.ToWAV(ctx, localPath, ws.InputWAV(), audio.ConvertOptions{
		SampleRate: o.cfg.Input.TargetSampleRate,
		Channels:   o.cfg.Input.TargetChannels,
		Normalize:  o.cfg.Input.NormalizeAudio,
	})
	if err != nil {
		return "", nil, err
	}

	return source, meta, nil
}

// refineDocument runs the refinement stage with skip-on-failure
// semantics. Any failure, from a missing API key to a garbled model
// response, downgrades to a skip: the warning is reported, the reason is
// recorded, and the run continues with the original document.
func (o *Orchestrator) refineDocument(ctx context.Context, ws *workspace.Workspace, opts Options) (string, export.RefinementStatus) {
	log := logger.L()

	if !opts.Refine {
		return "", export.RefinementStatus{Requested: false}
	}

	status := export.RefinementStatus{Requested: true}

	skip := func(reason string) (string, export.RefinementStatus) {
		status.Skipped = true
		status.SkipReason = reason
		o.reporter.Skipped(progress.StageRefine, reason)
		log.Warn("refinement skipped", "reason", reason)
		return "", status
	}

	if o.refiner == nil {
		return skip(o.refinerErr)
	}

	o.reporter.StartStage(progress.StageRefine)

	original, err := os.ReadFile(ws.OriginalXML())
	if err != nil {
		return skip(fmt.Sprintf("read notation document: %v", err))
	}

	result, err := o.refiner.Refine(ctx, refine.Request{
		MusicXML:     string(original),
		Style:        opts.Style,
		CustomPrompt: opts.Prompt,
	})
	if err != nil {
		return skip(err.Error())
	}

	if err := os.WriteFile(ws.RefinedXML(), []byte(result.MusicXML), 0o644); err != nil {
		return skip(fmt.Sprintf("write refined document: %v", err))
	}

	status.Applied = true
	status.Improvements = result.Improvements
	o.reporter.StageComplete("Refinement applied (%d improvements)", len(result.Improvements))
	log.Info("refinement applied", "improvements", len(result.Improvements))
	return ws.RefinedXML(), status
}
