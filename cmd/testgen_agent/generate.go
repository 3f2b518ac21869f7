package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/mapping-testgen/internal/config"
	"github.com/jonathan/mapping-testgen/internal/export"
	"github.com/jonathan/mapping-testgen/internal/fetch"
	"github.com/jonathan/mapping-testgen/internal/generator"
	"github.com/jonathan/mapping-testgen/internal/github"
	"github.com/jonathan/mapping-testgen/internal/jobs"
	"github.com/jonathan/mapping-testgen/internal/mapping"
	"github.com/jonathan/mapping-testgen/internal/observability"
	"github.com/jonathan/mapping-testgen/internal/types"
)

// generateOptions are the inputs of an offline generation.
type generateOptions struct {
	Input       string // file path, or "-" for stdin
	URL         string
	BatchNumber string
	BatchSize   int
	Format      string    // csv, json or xlsx
	Output      string    // file path; empty writes to stdout
	Summary     io.Writer // when set, a summary of the mapping and result is printed here
}

var (
	genOpts      generateOptions
	genGenerator string
	genVerbose   bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate test cases from a mapping CSV without the job API",
	Long: `Read a mapping CSV from a file, stdin or a (GitHub) URL, generate test cases
and write them as CSV, JSON or an XLSX workbook. Nothing is persisted.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&genOpts.Input, "in", "i", "", `Path to the mapping CSV ("-" for stdin)`)
	generateCmd.Flags().StringVar(&genOpts.URL, "url", "", "URL of the mapping CSV (GitHub blob links are supported)")
	generateCmd.Flags().StringVarP(&genOpts.BatchNumber, "batch", "b", "", "Batch number used in test case ids (required)")
	generateCmd.Flags().IntVar(&genOpts.BatchSize, "batch-size", 0, "Rows per LLM call (0 sends all rows at once)")
	generateCmd.Flags().StringVarP(&genOpts.Format, "format", "f", "csv", "Output format: csv, json or xlsx")
	generateCmd.Flags().StringVarP(&genOpts.Output, "out", "o", "", "Output file (default stdout)")
	generateCmd.Flags().StringVar(&genGenerator, "generator", "", "Generator: auto, template or llm (overrides GENERATOR)")
	generateCmd.Flags().BoolVarP(&genVerbose, "verbose", "v", false, "Print a summary of the mapping and generated test cases to stderr")
	_ = generateCmd.MarkFlagRequired("batch")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("generator") {
		cfg.Generator.Name = genGenerator
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	gen, closeGen, err := buildGenerator(ctx, cfg.Generator, logger)
	if err != nil {
		return err
	}
	defer closeGen()

	source := github.NewSource(cfg.GitHub.Token, fetch.DefaultOptions(), logger.Named("source"))

	out := cmd.OutOrStdout()
	if genOpts.Output != "" {
		f, err := os.Create(genOpts.Output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	opts := genOpts
	if genVerbose {
		opts.Summary = cmd.ErrOrStderr()
	}
	return generateTestCases(ctx, opts, gen, source, cmd.InOrStdin(), out)
}

// generateTestCases runs one generation synchronously and writes the
// encoded result to out.
func generateTestCases(ctx context.Context, opts generateOptions, gen generator.Generator, source jobs.SourceFetcher, stdin io.Reader, out io.Writer) error {
	content, err := readMapping(ctx, opts, source, stdin)
	if err != nil {
		return err
	}

	in := types.JobInput{CSVMapping: content, GitHubURL: opts.URL, BatchNumber: opts.BatchNumber, UserID: "cli", BatchSize: opts.BatchSize}
	if opts.URL != "" {
		in.CSVMapping = ""
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		_, msg := types.ValidationMessage(err)
		return fmt.Errorf("invalid input: %s", msg)
	}

	parsed, err := mapping.Parse(content)
	if err != nil {
		return err
	}
	if len(parsed.Rows) == 0 {
		return fmt.Errorf("mapping CSV has no data rows")
	}
	var printer *observability.Printer
	if opts.Summary != nil {
		printer = observability.NewPrinter(opts.Summary)
		printer.PrintMapping(parsed)
	}

	cases, err := gen.Generate(ctx, generator.Request{
		CSV:         content,
		Rows:        parsed.Rows,
		BatchNumber: in.BatchNumber,
		BatchSize:   in.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	if len(cases) == 0 {
		return fmt.Errorf("generator %s produced no test cases", gen.Name())
	}

	result := &types.JobResult{
		JobID:       uuid.NewString(),
		TestCases:   cases,
		Statistics:  jobs.ComputeStatistics(cases, parsed),
		GeneratedAt: time.Now().UTC(),
	}
	if opts.URL != "" {
		result.SourceURL = &opts.URL
	}
	if printer != nil {
		printer.PrintStatistics(result.Statistics)
		printer.PrintTestCases(result.TestCases)
	}
	return writeResult(result, opts.Format, out)
}

func readMapping(ctx context.Context, opts generateOptions, source jobs.SourceFetcher, stdin io.Reader) (string, error) {
	switch {
	case opts.Input != "" && opts.URL != "":
		return "", fmt.Errorf("--in and --url are mutually exclusive")
	case opts.URL != "":
		if source == nil {
			return "", fmt.Errorf("remote sources are not enabled")
		}
		return source.FetchCSV(ctx, opts.URL)
	case opts.Input == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	case opts.Input != "":
		data, err := os.ReadFile(opts.Input)
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("one of --in or --url is required")
	}
}

func writeResult(result *types.JobResult, format string, out io.Writer) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(format) {
	case "", "csv":
		data, err = export.CSV(result.TestCases)
	case "json":
		if data, err = json.MarshalIndent(result, "", "  "); err == nil {
			data = append(data, '\n')
		}
	case "xlsx":
		data, err = export.XLSX(result)
	default:
		return fmt.Errorf("unsupported format %q (want csv, json or xlsx)", format)
	}
	if err != nil {
		return err
	}
	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
