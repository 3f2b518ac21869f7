package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonathan/mapping-testgen/internal/generator"
	"github.com/jonathan/mapping-testgen/internal/jobs"
	"github.com/jonathan/mapping-testgen/internal/store"
	"github.com/jonathan/mapping-testgen/internal/types"
)

// seedJob runs one job to completion in a local store rooted at dir.
func seedJob(t *testing.T, dir string) string {
	t.Helper()
	st, err := store.NewLocalStore(dir, zap.NewNop())
	require.NoError(t, err)
	o, err := jobs.New(jobs.Options{Store: st, Generator: generator.NewTemplate(), Logger: zap.NewNop()})
	require.NoError(t, err)

	id, err := o.Submit(context.Background(), types.JobInput{CSVMapping: mappingCSV, BatchNumber: "042", UserID: "u1"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, o.Wait(ctx))
	return id
}

func readerFor(t *testing.T, dir string) *jobs.Orchestrator {
	t.Helper()
	st, err := store.NewLocalStore(dir, zap.NewNop())
	require.NoError(t, err)
	r, err := jobs.New(jobs.Options{Store: st, Generator: generator.NewTemplate()})
	require.NoError(t, err)
	return r
}

func TestListJobs(t *testing.T) {
	dir := t.TempDir()
	id := seedJob(t, dir)

	var out bytes.Buffer
	require.NoError(t, listJobs(context.Background(), readerFor(t, dir), &out))

	assert.Contains(t, out.String(), "JOB ID")
	assert.Contains(t, out.String(), id)
	assert.Contains(t, out.String(), "completed")
	assert.Contains(t, out.String(), "042")
}

func TestShowJob(t *testing.T) {
	dir := t.TempDir()
	id := seedJob(t, dir)
	r := readerFor(t, dir)

	var out bytes.Buffer
	require.NoError(t, showJob(context.Background(), r, id, true, &out))

	var view jobView
	require.NoError(t, json.Unmarshal(out.Bytes(), &view))
	assert.Equal(t, types.StatusCompleted, view.Job.Status)
	require.NotNil(t, view.Metadata)
	assert.Equal(t, "042", view.Metadata.BatchNumber)
	require.NotNil(t, view.Results)
	assert.NotEmpty(t, view.Results.TestCases)

	out.Reset()
	require.NoError(t, showJob(context.Background(), r, id, false, &out))
	assert.NotContains(t, out.String(), `"results"`)
}

func TestShowJob_Unknown(t *testing.T) {
	err := showJob(context.Background(), readerFor(t, t.TempDir()), "00000000-0000-0000-0000-000000000000", false, &bytes.Buffer{})
	assert.ErrorIs(t, err, jobs.ErrNotFound)
}

func TestJobsCommand_UsesConfiguredStore(t *testing.T) {
	dir := t.TempDir()
	id := seedJob(t, dir)

	t.Setenv("STORAGE_BACKEND", "local")
	t.Setenv("STORAGE_DIR", dir)
	t.Setenv("NATS_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GENERATOR", "template")
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"jobs", "list"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), id)
}
