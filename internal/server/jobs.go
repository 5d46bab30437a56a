package server

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dygy/scorepress/internal/config"
	"github.com/dygy/scorepress/internal/logger"
	"github.com/dygy/scorepress/internal/pipeline"
	"github.com/dygy/scorepress/internal/progress"
)

// Job status constants
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusComplete   JobStatus = "complete"
	StatusFailed     JobStatus = "failed"
)

// Job represents one pipeline run started over the API.
type Job struct {
	ID        string
	Status    JobStatus
	Stage     string
	Filename  string
	UploadDir string // holds the uploaded file until the run finishes
	Result    *pipeline.Result
	Error     string
	CreatedAt time.Time
}

// JobManager tracks runs and executes them in the background.
type JobManager struct {
	mu         sync.RWMutex
	jobs       map[string]*Job
	cfg        config.Config
	scriptsDir string
}

// NewJobManager creates a new job manager
func NewJobManager(cfg config.Config, scriptsDir string) *JobManager {
	return &JobManager{
		jobs:       make(map[string]*Job),
		cfg:        cfg,
		scriptsDir: scriptsDir,
	}
}

// Create registers a new pending job.
func (m *JobManager) Create(filename string) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := &Job{
		ID:        uuid.NewString()[:8],
		Status:    StatusPending,
		Stage:     "queued",
		Filename:  filename,
		CreatedAt: time.Now(),
	}
	m.jobs[job.ID] = job
	return job
}

// Get retrieves a job by ID
func (m *JobManager) Get(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// Snapshot returns a consistent copy of the job for serialization.
func (m *JobManager) Snapshot(id string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Process runs the pipeline for a job. Meant to run on its own
// goroutine; one goroutine per job, no shared pipeline state.
func (m *JobManager) Process(job *Job, opts pipeline.Options) {
	defer func() {
		if job.UploadDir != "" {
			os.RemoveAll(job.UploadDir)
		}
	}()

	m.setStatus(job, StatusProcessing, "starting")

	reporter := progress.NewReporter(&stageWriter{m: m, job: job}, false)
	orch := pipeline.New(m.cfg, m.scriptsDir, reporter)
	opts.ProjectID = job.ID

	result, err := orch.Execute(context.Background(), opts)
	if err != nil {
		m.mu.Lock()
		job.Status = StatusFailed
		job.Error = err.Error()
		m.mu.Unlock()
		logger.L().Error("job failed", "job_id", job.ID, "error", err)
		return
	}

	m.mu.Lock()
	job.Status = StatusComplete
	job.Stage = "complete"
	job.Result = result
	m.mu.Unlock()
	logger.L().Info("job complete", "job_id", job.ID, "run_dir", result.RunDir)
}

func (m *JobManager) setStatus(job *Job, status JobStatus, stage string) {
	m.mu.Lock()
	job.Status = status
	job.Stage = stage
	m.mu.Unlock()
}

// stageWriter feeds progress reporter output into the job's stage field
// so status polls see the current stage.
type stageWriter struct {
	m   *JobManager
	job *Job
}

func (w *stageWriter) Write(p []byte) (int, error) {
	line := strings.TrimSpace(string(p))
	if line != "" {
		w.m.mu.Lock()
		w.job.Stage = line
		w.m.mu.Unlock()
	}
	return len(p), nil
}
