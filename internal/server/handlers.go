package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dygy/scorepress/internal/audio"
	"github.com/dygy/scorepress/internal/pipeline"
)

const maxUploadSize = 200 * 1024 * 1024 // matches the local input limit

type convertResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type statusResponse struct {
	JobID     string         `json:"job_id"`
	Status    string         `json:"status"`
	Stage     string         `json:"stage"`
	Error     string         `json:"error,omitempty"`
	Result    *resultPayload `json:"result,omitempty"`
	CreatedAt string         `json:"created_at"`
	Filename  string         `json:"filename,omitempty"`
}

type resultPayload struct {
	RunDir            string  `json:"run_dir"`
	Confidence        float64 `json:"transcription_confidence"`
	NotesCount        int     `json:"notes_count"`
	RefinementApplied bool    `json:"refinement_applied"`
	RefinementSkipped bool    `json:"refinement_skipped"`
	SkipReason        string  `json:"skip_reason,omitempty"`
	PDF               bool    `json:"pdf"`
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleConvert accepts either a multipart audio upload or a remote URL
// and starts a pipeline run in the background.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, "upload too large (200MB limit)")
		return
	}

	opts := pipeline.Options{
		Refine: r.FormValue("refine") == "true",
		PDF:    r.FormValue("pdf") == "true",
		Style:  r.FormValue("style"),
		Prompt: r.FormValue("prompt"),
	}

	if url := r.FormValue("url"); url != "" {
		if !audio.IsRemoteURL(url) {
			writeError(w, http.StatusBadRequest, "url must start with http:// or https://")
			return
		}
		job := s.jobs.Create(url)
		opts.Input = url
		go s.jobs.Process(job, opts)
		writeJSON(w, http.StatusAccepted, convertResponse{JobID: job.ID, Status: string(job.Status)})
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "provide an audio file or a url field")
		return
	}
	defer file.Close()

	job := s.jobs.Create(header.Filename)

	uploadDir, err := os.MkdirTemp("", "scorepress-upload-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to stage upload")
		return
	}
	job.UploadDir = uploadDir

	inputPath := filepath.Join(uploadDir, filepath.Base(header.Filename))
	dst, err := os.Create(inputPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save upload")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		writeError(w, http.StatusInternalServerError, "failed to save upload")
		return
	}
	dst.Close()

	opts.Input = inputPath
	go s.jobs.Process(job, opts)

	writeJSON(w, http.StatusAccepted, convertResponse{JobID: job.ID, Status: string(job.Status)})
}

// handleStatus reports the current job state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := s.jobs.Snapshot(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	resp := statusResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		Stage:     job.Stage,
		Error:     job.Error,
		Filename:  job.Filename,
		CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
	}
	if job.Result != nil {
		resp.Result = &resultPayload{
			RunDir:            job.Result.RunDir,
			Confidence:        job.Result.Confidence,
			NotesCount:        job.Result.NotesCount,
			RefinementApplied: job.Result.RefinementApplied,
			RefinementSkipped: job.Result.RefinementSkipped,
			SkipReason:        job.Result.SkipReason,
			PDF:               job.Result.PDFPath != "",
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleDownload serves one of the run directory files.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	file := chi.URLParam(r, "file")

	job, ok := s.jobs.Snapshot(id)
	if !ok || job.Status != StatusComplete || job.Result == nil {
		writeError(w, http.StatusNotFound, "job not found or not complete")
		return
	}

	var path, contentType string
	switch file {
	case "musicxml":
		path, contentType = job.Result.OriginalPath, "application/vnd.recordare.musicxml+xml"
	case "refined":
		path, contentType = job.Result.RefinedPath, "application/vnd.recordare.musicxml+xml"
	case "pdf":
		path, contentType = job.Result.PDFPath, "application/pdf"
	case "metadata":
		path, contentType = job.Result.MetadataPath, "application/json"
	default:
		writeError(w, http.StatusBadRequest, "file must be musicxml, refined, pdf or metadata")
		return
	}

	if path == "" {
		writeError(w, http.StatusNotFound, "file not produced for this run")
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "file not available")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filepath.Base(path)+"\"")
	http.ServeFile(w, r, path)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
