package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/mapping-testgen/internal/github"
	"github.com/jonathan/mapping-testgen/internal/jobs"
)

// Error kinds reported in the "error" field of every error body.
const (
	KindValidation           = "validation_error"
	KindNotFound             = "not_found"
	KindNotReady             = "not_ready"
	KindJobFailed            = "job_failed"
	KindPublisherUnavailable = "publisher_unavailable"
	KindUpstream             = "upstream_error"
	KindRateLimited          = "rate_limit_exceeded"
	KindInternal             = "internal_error"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	JobID   string `json:"job_id,omitempty"`
	Status  string `json:"status,omitempty"`
}

// ErrBadRequest is a malformed request rejected by the HTTP layer itself.
type ErrBadRequest struct {
	Field   string
	Message string
}

func (e *ErrBadRequest) Error() string {
	return e.Message
}

// HTTPStatus maps an error to its status code and error kind.
func HTTPStatus(err error) (int, string) {
	var (
		badReq   *ErrBadRequest
		invalid  *jobs.ValidationError
		notReady *jobs.NotReadyError
		apiErr   *github.APIError
	)
	switch {
	case err == nil:
		return http.StatusInternalServerError, KindInternal
	case errors.As(err, &badReq), errors.As(err, &invalid), errors.Is(err, github.ErrInvalidRequest):
		return http.StatusBadRequest, KindValidation
	case errors.Is(err, jobs.ErrNotFound):
		return http.StatusNotFound, KindNotFound
	case errors.As(err, &notReady):
		if notReady.Failed() {
			return http.StatusConflict, KindJobFailed
		}
		return http.StatusConflict, KindNotReady
	case errors.Is(err, github.ErrNotConfigured):
		return http.StatusServiceUnavailable, KindPublisherUnavailable
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, KindUpstream
	default:
		return http.StatusInternalServerError, KindInternal
	}
}

// toErrorResponse builds the response body for err. Internal errors are
// reported generically; their detail goes to the log only.
func toErrorResponse(err error) (int, ErrorResponse) {
	status, kind := HTTPStatus(err)
	resp := ErrorResponse{Error: kind, Message: err.Error()}

	var (
		badReq   *ErrBadRequest
		invalid  *jobs.ValidationError
		notReady *jobs.NotReadyError
	)
	switch {
	case errors.As(err, &badReq):
		resp.Field = badReq.Field
	case errors.As(err, &invalid):
		resp.Field = invalid.Field
		resp.Message = invalid.Message
		if invalid.Cause != nil {
			resp.Message += ": " + invalid.Cause.Error()
		}
	case errors.As(err, &notReady):
		resp.JobID = notReady.JobID
		resp.Status = string(notReady.Status)
		if notReady.Failed() {
			resp.Message = notReady.Message
		}
	}
	if kind == KindInternal {
		resp.Message = "internal server error"
	}
	return status, resp
}
