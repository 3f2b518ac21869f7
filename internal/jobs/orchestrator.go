// Package jobs drives generation jobs through their lifecycle:
// pending, processing, then completed or failed.
//
// Submit persists the input and a pending status synchronously and starts
// the generation in its own goroutine. The background run is the only
// writer of a job's artifacts after submission.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/jonathan/mapping-testgen/internal/export"
	"github.com/jonathan/mapping-testgen/internal/generator"
	"github.com/jonathan/mapping-testgen/internal/mapping"
	"github.com/jonathan/mapping-testgen/internal/metrics"
	"github.com/jonathan/mapping-testgen/internal/store"
	"github.com/jonathan/mapping-testgen/internal/types"
)

// SourceFetcher resolves a remote mapping source to CSV text.
type SourceFetcher interface {
	FetchCSV(ctx context.Context, url string) (string, error)
}

// Options configures an Orchestrator. Store and Generator are required.
type Options struct {
	Store     store.Store
	Generator generator.Generator
	// Source resolves github_url submissions. Without it such submissions are rejected.
	Source  SourceFetcher
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// MaxConcurrent bounds the number of simultaneous background runs.
	// Zero means unbounded. Submit never waits on this bound.
	MaxConcurrent int
	// Now and NewID are replaceable for tests.
	Now   func() time.Time
	NewID func() string
}

// Orchestrator creates jobs and runs them in the background.
type Orchestrator struct {
	store   store.Store
	gen     generator.Generator
	source  SourceFetcher
	logger  *zap.Logger
	metrics *metrics.Metrics
	sem     *semaphore.Weighted
	now     func() time.Time
	newID   func() string

	wg sync.WaitGroup
}

// New creates an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, errors.New("jobs: store is required")
	}
	if opts.Generator == nil {
		return nil, errors.New("jobs: generator is required")
	}
	o := &Orchestrator{
		store:   opts.Store,
		gen:     opts.Generator,
		source:  opts.Source,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Now,
		newID:   opts.NewID,
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	if o.newID == nil {
		o.newID = func() string { return uuid.New().String() }
	}
	if opts.MaxConcurrent > 0 {
		o.sem = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}
	return o, nil
}

// GeneratorName returns the name of the configured generator.
func (o *Orchestrator) GeneratorName() string {
	return o.gen.Name()
}

// Submit validates in, persists the job as pending and starts its background
// run. Validation and source resolution failures return *ValidationError and
// write nothing.
func (o *Orchestrator) Submit(ctx context.Context, in types.JobInput) (string, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		field, msg := types.ValidationMessage(err)
		o.metrics.JobRejected("validation")
		return "", &ValidationError{Field: field, Message: msg}
	}

	content, sourceURL, err := o.resolveSource(ctx, in)
	if err != nil {
		o.metrics.JobRejected("source")
		return "", err
	}

	parsed, err := mapping.Parse(content)
	if err != nil {
		o.metrics.JobRejected("csv")
		return "", &ValidationError{Field: "csv_mapping", Message: "content is not a mapping CSV", Cause: err}
	}
	if len(parsed.Rows) == 0 {
		o.metrics.JobRejected("csv")
		return "", &ValidationError{Field: "csv_mapping", Message: "mapping CSV has no data rows"}
	}

	jobID := o.newID()
	now := o.now()

	meta := types.JobMetadata{
		JobID:       jobID,
		BatchNumber: in.BatchNumber,
		UserID:      in.UserID,
		SessionID:   in.SessionID,
		GitHubURL:   in.GitHubURL,
		SourceURL:   sourceURL,
		BatchSize:   in.BatchSize,
		Generator:   o.gen.Name(),
		InputBytes:  len(content),
		SubmittedAt: now,
	}
	job := types.Job{ID: jobID, Status: types.StatusPending, CreatedAt: now, UpdatedAt: now}

	if err := o.store.Write(ctx, jobID, store.KindInput, []byte(content)); err != nil {
		return "", o.writeFailed(jobID, store.KindInput, err)
	}
	if err := o.writeJSON(ctx, jobID, store.KindMetadata, meta); err != nil {
		return "", err
	}
	if err := o.writeJSON(ctx, jobID, store.KindStatus, job); err != nil {
		return "", err
	}

	o.metrics.JobSubmitted()
	o.logger.Info("job submitted",
		zap.String("job_id", jobID),
		zap.String("batch_number", in.BatchNumber),
		zap.String("user_id", in.UserID),
		zap.Int("rows", len(parsed.Rows)),
		zap.String("generator", o.gen.Name()),
	)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(context.WithoutCancel(ctx), job, meta, content, parsed)
	}()

	return jobID, nil
}

func (o *Orchestrator) resolveSource(ctx context.Context, in types.JobInput) (content, sourceURL string, err error) {
	if in.GitHubURL == "" {
		return in.CSVMapping, "", nil
	}
	if o.source == nil {
		return "", "", &ValidationError{Field: "github_url", Message: "remote sources are not enabled"}
	}
	content, err = o.source.FetchCSV(ctx, in.GitHubURL)
	if err != nil {
		return "", "", &ValidationError{Field: "github_url", Message: "could not fetch mapping source", Cause: err}
	}
	return content, in.GitHubURL, nil
}

// run executes the background steps for one job. It never panics and always
// attempts to leave the job in a terminal state.
func (o *Orchestrator) run(ctx context.Context, job types.Job, meta types.JobMetadata, content string, parsed *mapping.Mapping) {
	logger := o.logger.With(zap.String("job_id", job.ID))

	if o.sem != nil {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			o.fail(ctx, logger, job, fmt.Errorf("waiting for a run slot: %w", err))
			return
		}
		defer o.sem.Release(1)
	}

	done := o.metrics.RunStarted()
	status := types.StatusFailed
	defer func() { done(string(status)) }()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job run panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			o.fail(ctx, logger, job, fmt.Errorf("internal error: %v", r))
		}
	}()

	if err := o.execute(ctx, logger, &job, meta, content, parsed); err != nil {
		o.fail(ctx, logger, job, err)
		return
	}
	status = types.StatusCompleted
}

func (o *Orchestrator) execute(ctx context.Context, logger *zap.Logger, job *types.Job, meta types.JobMetadata, content string, parsed *mapping.Mapping) error {
	start := o.now()

	if err := o.transition(ctx, job, types.StatusProcessing, ""); err != nil {
		return err
	}
	logger.Info("job processing")

	cases, err := o.gen.Generate(ctx, generator.Request{
		CSV:         content,
		Rows:        parsed.Rows,
		BatchNumber: meta.BatchNumber,
		BatchSize:   meta.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	if len(cases) == 0 {
		return errors.New("generation produced no test cases")
	}

	result := types.JobResult{
		JobID:       job.ID,
		TestCases:   cases,
		Statistics:  ComputeStatistics(cases, parsed),
		GeneratedAt: o.now(),
	}
	if meta.SourceURL != "" {
		src := meta.SourceURL
		result.SourceURL = &src
	}
	if err := o.writeJSON(ctx, job.ID, store.KindResults, result); err != nil {
		return err
	}

	output, err := export.CSV(cases)
	if err != nil {
		return fmt.Errorf("failed to encode output csv: %w", err)
	}
	if err := o.store.Write(ctx, job.ID, store.KindOutput, output); err != nil {
		return o.writeFailed(job.ID, store.KindOutput, err)
	}

	if err := o.transition(ctx, job, types.StatusCompleted, ""); err != nil {
		return err
	}
	logger.Info("job completed",
		zap.Int("test_cases", len(cases)),
		zap.Duration("elapsed", o.now().Sub(start)),
	)
	return nil
}

// fail persists the failed state. A failure to write it is logged and dropped.
func (o *Orchestrator) fail(ctx context.Context, logger *zap.Logger, job types.Job, cause error) {
	logger.Warn("job failed", zap.Error(cause))
	if err := o.transition(ctx, &job, types.StatusFailed, cause.Error()); err != nil {
		logger.Error("could not persist failed status", zap.Error(err))
	}
}

func (o *Orchestrator) transition(ctx context.Context, job *types.Job, status types.JobStatus, message string) error {
	job.Status = status
	job.Error = message
	job.UpdatedAt = o.now()
	return o.writeJSON(ctx, job.ID, store.KindStatus, *job)
}

func (o *Orchestrator) writeJSON(ctx context.Context, jobID string, kind store.Kind, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", kind, err)
	}
	if err := o.store.Write(ctx, jobID, kind, data); err != nil {
		return o.writeFailed(jobID, kind, err)
	}
	return nil
}

func (o *Orchestrator) writeFailed(jobID string, kind store.Kind, err error) error {
	o.metrics.StoreWriteFailed(string(kind))
	o.logger.Error("artifact write failed",
		zap.String("job_id", jobID),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	return fmt.Errorf("failed to write %s: %w", kind, err)
}

// Status returns the job's status record.
func (o *Orchestrator) Status(ctx context.Context, jobID string) (*types.Job, error) {
	var job types.Job
	if err := o.readJSON(ctx, jobID, store.KindStatus, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Metadata returns the submission parameters of a job.
func (o *Orchestrator) Metadata(ctx context.Context, jobID string) (*types.JobMetadata, error) {
	var meta types.JobMetadata
	if err := o.readJSON(ctx, jobID, store.KindMetadata, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Results returns the result bundle of a completed job, ErrNotFound, or a
// *NotReadyError when the job has not completed.
func (o *Orchestrator) Results(ctx context.Context, jobID string) (*types.JobResult, error) {
	if err := o.ready(ctx, jobID); err != nil {
		return nil, err
	}
	var result types.JobResult
	if err := o.readJSON(ctx, jobID, store.KindResults, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Output returns the derived CSV artifact of a completed job.
func (o *Orchestrator) Output(ctx context.Context, jobID string) ([]byte, error) {
	if err := o.ready(ctx, jobID); err != nil {
		return nil, err
	}
	data, err := o.store.Read(ctx, jobID, store.KindOutput)
	if err != nil {
		return nil, mapReadErr(jobID, store.KindOutput, err)
	}
	return data, nil
}

// Input returns the mapping CSV a job was submitted with.
func (o *Orchestrator) Input(ctx context.Context, jobID string) ([]byte, error) {
	data, err := o.store.Read(ctx, jobID, store.KindInput)
	if err != nil {
		return nil, mapReadErr(jobID, store.KindInput, err)
	}
	return data, nil
}

// List returns every known job id.
func (o *Orchestrator) List(ctx context.Context) ([]string, error) {
	return o.store.List(ctx)
}

// Wait blocks until all background runs started so far have finished or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) ready(ctx context.Context, jobID string) error {
	job, err := o.Status(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != types.StatusCompleted {
		return &NotReadyError{JobID: jobID, Status: job.Status, Message: job.Error}
	}
	return nil
}

func (o *Orchestrator) readJSON(ctx context.Context, jobID string, kind store.Kind, v any) error {
	data, err := o.store.Read(ctx, jobID, kind)
	if err != nil {
		return mapReadErr(jobID, kind, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s for job %s: %w", kind, jobID, err)
	}
	return nil
}

func mapReadErr(jobID string, kind store.Kind, err error) error {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidKey) {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return fmt.Errorf("failed to read %s for job %s: %w", kind, jobID, err)
}
