package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/mapping-testgen/internal/config"
	"github.com/jonathan/mapping-testgen/internal/generator"
	"github.com/jonathan/mapping-testgen/internal/jobs"
	"github.com/jonathan/mapping-testgen/internal/store"
	"github.com/jonathan/mapping-testgen/internal/types"
)

var showResults bool

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect jobs in the configured store",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs with their status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withReader(cmd, func(ctx context.Context, r *jobs.Orchestrator) error {
			return listJobs(ctx, r, cmd.OutOrStdout())
		})
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show a job's status, metadata and optionally its results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReader(cmd, func(ctx context.Context, r *jobs.Orchestrator) error {
			return showJob(ctx, r, args[0], showResults, cmd.OutOrStdout())
		})
	},
}

func init() {
	jobsShowCmd.Flags().BoolVar(&showResults, "results", false, "Include the generated test cases")
	jobsCmd.AddCommand(jobsListCmd, jobsShowCmd)
	rootCmd.AddCommand(jobsCmd)
}

// withReader opens the configured store and runs fn against a read-only
// orchestrator. No jobs are submitted, so the generator is never invoked.
func withReader(cmd *cobra.Command, fn func(context.Context, *jobs.Orchestrator) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(ctx, cfg.StoreOptions(), logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	r, err := jobs.New(jobs.Options{Store: st, Generator: generator.NewTemplate(), Logger: logger})
	if err != nil {
		return err
	}
	return fn(ctx, r)
}

func listJobs(ctx context.Context, r *jobs.Orchestrator, out io.Writer) error {
	ids, err := r.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB ID\tSTATUS\tBATCH\tUPDATED")
	for _, id := range ids {
		status, batch, updated := "unknown", "", ""
		if job, err := r.Status(ctx, id); err == nil {
			status = string(job.Status)
			updated = job.UpdatedAt.Format("2006-01-02T15:04:05Z07:00")
		}
		if meta, err := r.Metadata(ctx, id); err == nil {
			batch = meta.BatchNumber
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, status, batch, updated)
	}
	return tw.Flush()
}

// jobView is the JSON document printed by "jobs show".
type jobView struct {
	Job      *types.Job         `json:"job"`
	Metadata *types.JobMetadata `json:"metadata,omitempty"`
	Results  *types.JobResult   `json:"results,omitempty"`
}

func showJob(ctx context.Context, r *jobs.Orchestrator, id string, withResults bool, out io.Writer) error {
	job, err := r.Status(ctx, id)
	if err != nil {
		return err
	}
	view := jobView{Job: job}
	if meta, err := r.Metadata(ctx, id); err == nil {
		view.Metadata = meta
	}
	if withResults {
		res, err := r.Results(ctx, id)
		if err != nil {
			return err
		}
		view.Results = res
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}
