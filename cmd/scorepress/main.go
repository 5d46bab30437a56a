package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dygy/scorepress/internal/audio"
	"github.com/dygy/scorepress/internal/config"
	apperrors "github.com/dygy/scorepress/internal/errors"
	"github.com/dygy/scorepress/internal/logger"
	"github.com/dygy/scorepress/internal/pipeline"
	"github.com/dygy/scorepress/internal/progress"
	"github.com/dygy/scorepress/internal/server"
)

var (
	version = "0.1.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "scorepress",
	Short: "Turn audio recordings into engraved sheet music",
	Long: `scorepress converts audio files or remote URLs into MusicXML
sheet music, with optional LLM-based notation refinement and
PDF engraving via MuseScore.

Pipeline: audio → transcription → MusicXML → refinement → sheet music`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert an audio file or URL into sheet music",
	Long: `Convert an audio recording into a MusicXML score and,
optionally, an engraved PDF.

Examples:
  scorepress convert --input recording.wav
  scorepress convert -i song.mp3 --refine --style piano --pdf
  scorepress convert -i "https://youtube.com/watch?v=..." -o ./scores`,
	RunE: runConvert,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the conversion API server",
	Long: `Start the HTTP API for submitting conversions, polling job
status, and downloading results.

Example:
  scorepress serve --port 8080`,
	RunE: runServe,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write the default configuration to a YAML file you can edit.

Example:
  scorepress config init --path scorepress.yaml`,
	RunE: runConfigInit,
}

var (
	// convert flags
	inputArg   string
	outputDir  string
	projectID  string
	doRefine   bool
	doPDF      bool
	style      string
	prompt     string
	configPath string
	logLevel   string
	verbose    bool

	// serve flags
	port int

	// config init flags
	configInitPath string
)

func init() {
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	convertCmd.Flags().StringVarP(&inputArg, "input", "i", "", "Input audio file (WAV, MP3, M4A, FLAC) or http(s) URL")
	convertCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default from config)")
	convertCmd.Flags().StringVar(&projectID, "project-id", "", "Run identifier (default: generated)")
	convertCmd.Flags().BoolVar(&doRefine, "refine", false, "Refine the notation with a language model (default from config)")
	convertCmd.Flags().BoolVar(&doPDF, "pdf", false, "Engrave a PDF with MuseScore")
	convertCmd.Flags().StringVarP(&style, "style", "s", "", "Refinement style (piano, guitar, vocal, general)")
	convertCmd.Flags().StringVar(&prompt, "prompt", "", "Custom refinement prompt (overrides --style)")
	convertCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	convertCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARNING, ERROR)")
	convertCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose progress output")
	convertCmd.MarkFlagRequired("input")

	serveCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")

	configInitCmd.Flags().StringVar(&configInitPath, "path", "scorepress.yaml", "Where to write the config file")
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error at config: %v\n", err)
		return err
	}

	if outputDir != "" {
		cfg.General.OutputDir = outputDir
	}
	if logLevel != "" {
		cfg.General.LogLevel = logLevel
	}
	if style != "" {
		cfg.Refinement.Style = style
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error at config: %v\n", err)
		return err
	}

	// The --refine flag wins when given; otherwise the config decides.
	refineRun := doRefine
	if !cmd.Flags().Changed("refine") {
		refineRun = cfg.Refinement.Enabled
	}

	if !audio.IsRemoteURL(inputArg) {
		if _, err := audio.ValidateInput(inputArg); err != nil {
			fmt.Fprintf(os.Stderr, "Error at resolve: %v\n", err)
			return err
		}
	}

	cleanup, err := logger.Setup(logger.Config{Root: cfg.General.OutputDir, Level: cfg.General.LogLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: log file unavailable: %v\n", err)
	} else {
		defer cleanup()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted, cleaning up...")
		cancel()
	}()

	reporter := progress.NewReporter(os.Stdout, verbose)
	orch := pipeline.New(cfg, findScriptsDir(), reporter)

	if err := orch.CheckTools(ctx); err != nil {
		reporter.Error(err)
		return err
	}

	result, err := orch.Execute(ctx, pipeline.Options{
		Input:     inputArg,
		ProjectID: projectID,
		Refine:    refineRun,
		PDF:       doPDF,
		Style:     style,
		Prompt:    prompt,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error at %s: %v\n", apperrors.StageOf(err), err)
		return err
	}

	if result.RefinementSkipped {
		reporter.Warning("refinement skipped: %s", result.SkipReason)
	}
	reporter.Done(result.RunDir)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error at config: %v\n", err)
		return err
	}

	cleanup, err := logger.Setup(logger.Config{Root: cfg.General.OutputDir, Level: cfg.General.LogLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: log file unavailable: %v\n", err)
	} else {
		defer cleanup()
	}

	srv := server.New(server.Config{
		Port:       port,
		ScriptsDir: findScriptsDir(),
		App:        cfg,
	})
	return srv.Run()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configInitPath); err == nil {
		return fmt.Errorf("refusing to overwrite existing file: %s", configInitPath)
	}
	if err := config.WriteDefault(configInitPath); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Printf("Wrote default configuration to %s\n", configInitPath)
	return nil
}

// findScriptsDir locates the Python helper scripts relative to the
// executable, falling back to the working directory layout.
func findScriptsDir() string {
	candidates := []string{}

	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		candidates = append(candidates,
			filepath.Join(exeDir, "..", "scripts", "python"),
			filepath.Join(exeDir, "scripts", "python"),
		)
	}
	candidates = append(candidates, "scripts/python")

	for _, dir := range candidates {
		if _, err := os.Stat(filepath.Join(dir, "transcribe.py")); err == nil {
			return dir
		}
	}
	return "scripts/python"
}
