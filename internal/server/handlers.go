package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/mapping-testgen/internal/export"
	"github.com/jonathan/mapping-testgen/internal/github"
	"github.com/jonathan/mapping-testgen/internal/types"
)

// SubmitResponse is returned by POST /jobs.
type SubmitResponse struct {
	JobID      string          `json:"job_id"`
	Status     types.JobStatus `json:"status"`
	StatusURL  string          `json:"status_url"`
	ResultsURL string          `json:"results_url"`
}

// StatusResponse is returned by GET /jobs/{id}/status.
type StatusResponse struct {
	JobID      string          `json:"job_id"`
	Status     types.JobStatus `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Error      string          `json:"error,omitempty"`
	ResultsURL string          `json:"results_url,omitempty"`
}

// ResultsResponse is returned by GET /jobs/{id}/results.
type ResultsResponse struct {
	*types.JobResult
	DownloadURL string `json:"download_url"`
}

// ListResponse is returned by GET /jobs.
type ListResponse struct {
	Jobs  []string `json:"jobs"`
	Count int      `json:"count"`
}

// PublishRequest is the optional body of POST /jobs/{id}/publish.
// Empty fields fall back to the server's publish configuration.
type PublishRequest struct {
	Repo    string `json:"repo,omitempty"`
	Branch  string `json:"branch,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message,omitempty"`
}

// PublishResponse is returned by a successful publish.
type PublishResponse struct {
	JobID string `json:"job_id"`
	Repo  string `json:"repo"`
	*github.PublishResult
}

func statusURL(id string) string   { return "/jobs/" + id + "/status" }
func resultsURL(id string) string  { return "/jobs/" + id + "/results" }
func downloadURL(id string) string { return "/jobs/" + id + "/download" }

// parseJobID reads the {id} path value. Job ids are UUIDs.
func parseJobID(r *http.Request) (string, error) {
	raw := r.PathValue("id")
	if raw == "" {
		return "", &ErrBadRequest{Field: "id", Message: "job id is required"}
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", &ErrBadRequest{Field: "id", Message: "invalid job id format"}
	}
	return id.String(), nil
}

// handleSubmit validates the request and starts a job.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var in types.JobInput
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&in); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.errorResponse(w, r, &ErrBadRequest{Message: "request body too large"})
			return
		}
		s.errorResponse(w, r, &ErrBadRequest{Message: "invalid request body: " + err.Error()})
		return
	}

	jobID, err := s.jobs.Submit(r.Context(), in)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	w.Header().Set("Location", statusURL(jobID))
	s.jsonResponse(w, http.StatusAccepted, SubmitResponse{
		JobID:      jobID,
		Status:     types.StatusPending,
		StatusURL:  statusURL(jobID),
		ResultsURL: resultsURL(jobID),
	})
}

// handleList returns every known job id.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ids, err := s.jobs.List(r.Context())
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.jsonResponse(w, http.StatusOK, ListResponse{Jobs: ids, Count: len(ids)})
}

// handleStatus returns the status record of a job.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	job, err := s.jobs.Status(r.Context(), id)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, toStatusResponse(job))
}

func toStatusResponse(job *types.Job) StatusResponse {
	resp := StatusResponse{
		JobID:     job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
		Error:     job.Error,
	}
	if job.Status == types.StatusCompleted {
		resp.ResultsURL = resultsURL(job.ID)
	}
	return resp
}

// handleResults returns the results of a completed job.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	result, err := s.jobs.Results(r.Context(), id)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, ResultsResponse{JobResult: result, DownloadURL: downloadURL(id)})
}

// handleDownload serves the derived artifact as an attachment: CSV by
// default, or a workbook with ?format=xlsx.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	var (
		data        []byte
		contentType string
		ext         string
	)
	switch format := strings.ToLower(r.URL.Query().Get("format")); format {
	case "", "csv":
		data, err = s.jobs.Output(r.Context(), id)
		contentType, ext = "text/csv; charset=utf-8", "csv"
	case "xlsx":
		var result *types.JobResult
		result, err = s.jobs.Results(r.Context(), id)
		if err == nil {
			data, err = export.XLSX(result)
		}
		contentType, ext = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx"
	default:
		err = &ErrBadRequest{Field: "format", Message: fmt.Sprintf("unsupported format %q (want csv or xlsx)", format)}
	}
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="test_cases_%s.%s"`, id, ext))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("failed to write download", zap.String("job_id", id), zap.Error(err))
	}
}

// handlePublish pushes the derived CSV of a completed job to GitHub.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if !s.publisher.Configured() {
		s.errorResponse(w, r, github.ErrNotConfigured)
		return
	}

	var req PublishRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.errorResponse(w, r, &ErrBadRequest{Message: "invalid request body: " + err.Error()})
			return
		}
	}

	output, err := s.jobs.Output(r.Context(), id)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	meta, err := s.jobs.Metadata(r.Context(), id)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	repo := firstNonEmpty(req.Repo, s.cfg.PublishRepo)
	if repo == "" {
		s.errorResponse(w, r, &ErrBadRequest{Field: "repo", Message: "repo is required (no default publish repository configured)"})
		return
	}
	target := firstNonEmpty(req.Path, path.Join(s.cfg.PublishDir, fmt.Sprintf("B_%s_%s.csv", meta.BatchNumber, id)))
	message := firstNonEmpty(req.Message, fmt.Sprintf("Add generated test cases for batch %s (job %s)", meta.BatchNumber, id))

	result, err := s.publisher.Publish(r.Context(), github.PublishRequest{
		Repo:    repo,
		Path:    target,
		Branch:  firstNonEmpty(req.Branch, s.cfg.PublishBranch),
		Message: message,
		Content: output,
	})
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, PublishResponse{JobID: id, Repo: repo, PublishResult: result})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
