// Package types provides type definitions for structured data used throughout the test case generation service.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "time"

// JobStatus is the lifecycle state of a generation job.
type JobStatus string

// Job lifecycle states. Completed and failed are terminal.
const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions can happen from s.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the known states.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Job is the persisted status record of a generation job (status.json).
type Job struct {
	ID        string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Error     string    `json:"error,omitempty"`
}

// JobMetadata records the submission parameters of a job (metadata.json).
type JobMetadata struct {
	JobID       string    `json:"job_id"`
	BatchNumber string    `json:"batch_number"`
	UserID      string    `json:"user_id"`
	SessionID   string    `json:"session_id,omitempty"`
	GitHubURL   string    `json:"github_url,omitempty"`
	SourceURL   string    `json:"source_url,omitempty"`
	BatchSize   int       `json:"batch_size,omitempty"`
	Generator   string    `json:"generator"`
	InputBytes  int       `json:"input_bytes"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// JobResult is the output bundle of a completed job (results.json).
type JobResult struct {
	JobID       string     `json:"job_id"`
	TestCases   []TestCase `json:"test_cases"`
	Statistics  Statistics `json:"statistics"`
	SourceURL   *string    `json:"source_url"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// Statistics summarises the generated test cases of a job.
// TotalTestCases always equals the sum of either breakdown.
type Statistics struct {
	TotalTestCases        int            `json:"TotalTestCases"`
	MappingRows           int            `json:"MappingRows"`
	UniqueAttributes      int            `json:"UniqueAttributes"`
	TestCaseTypeBreakdown map[string]int `json:"TestCaseTypeBreakdown"`
	SubtypeBreakdown      map[string]int `json:"SubtypeBreakdown"`
}
