package generator

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/mapping-testgen/internal/llm"
	"github.com/jonathan/mapping-testgen/internal/mapping"
	"github.com/jonathan/mapping-testgen/internal/prompts"
	"github.com/jonathan/mapping-testgen/internal/types"
)

const (
	promptFile = "generation.json"
	promptKey  = "generate-test-cases"
)

// canonicalHeader is used when a chunk of rows is re-encoded for a prompt.
var canonicalHeader = []string{
	"Source_Field", "Target_FHIR_Resource", "FHIR_Attribute", "Transformation_Rule", "Data_Type", "Required",
}

// LLM generates test cases by prompting a language model per chunk of rows.
// Gaps in the model's coverage are filled from the template rules.
type LLM struct {
	client llm.Client
	tier   llm.ModelTier
	logger *zap.Logger
}

// NewLLM creates an LLM-backed generator.
func NewLLM(client llm.Client, logger *zap.Logger) *LLM {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLM{client: client, tier: llm.TierStandard, logger: logger}
}

// WithTier returns a copy of g that uses the given model tier.
func (g *LLM) WithTier(tier llm.ModelTier) *LLM {
	c := *g
	c.tier = tier
	return &c
}

// Name implements Generator.
func (g *LLM) Name() string { return NameLLM }

// Ping probes the model provider.
func (g *LLM) Ping(ctx context.Context) error {
	if err := g.client.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Generate implements Generator. Provider failures are wrapped in ErrUnavailable.
func (g *LLM) Generate(ctx context.Context, req Request) ([]types.TestCase, error) {
	chunks := chunkRows(req.Rows, req.BatchSize)

	var all []draft
	for i, rows := range chunks {
		content := req.CSV
		if len(chunks) > 1 {
			encoded, err := encodeRows(rows)
			if err != nil {
				return nil, fmt.Errorf("failed to encode chunk %d: %w", i+1, err)
			}
			content = encoded
		}

		drafts, err := g.generateChunk(ctx, content, req.BatchNumber, len(all)+1)
		if err != nil {
			return nil, fmt.Errorf("chunk %d of %d: %w", i+1, len(chunks), err)
		}

		filled := fillCoverage(drafts, rows)
		if added := len(filled) - len(drafts); added > 0 {
			g.logger.Info("filled coverage gaps from template rules",
				zap.Int("chunk", i+1),
				zap.Int("added", added),
			)
		}
		all = append(all, filled...)
	}
	all = append(all, missingRegressions(all, req.Rows)...)

	cases := make([]types.TestCase, len(all))
	for i, d := range all {
		cases[i] = d.TestCase
	}
	Renumber(req.BatchNumber, cases)
	return cases, nil
}

func (g *LLM) generateChunk(ctx context.Context, content, batch string, startSeq int) ([]draft, error) {
	prompt, err := prompts.Render(promptFile, promptKey, map[string]string{
		"BatchNumber":   batch,
		"CSV":           content,
		"StartSequence": strconv.Itoa(startSeq),
	})
	if err != nil {
		return nil, err
	}

	text, err := g.client.GenerateJSON(ctx, prompt, g.tier)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	drafts, lenient, err := parseResponse(text)
	if err != nil {
		g.logger.Warn("could not extract test cases from LLM response", zap.Int("response_bytes", len(text)))
		return nil, err
	}
	if lenient {
		g.logger.Info("LLM response was not schema-valid JSON; used lenient extraction", zap.Int("cases", len(drafts)))
	}
	return drafts, nil
}

// chunkRows splits rows into groups of at most size. Size zero or less yields one group.
func chunkRows(rows []mapping.Row, size int) [][]mapping.Row {
	if size <= 0 || len(rows) <= size {
		return [][]mapping.Row{rows}
	}
	var chunks [][]mapping.Row
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}

func encodeRows(rows []mapping.Row) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(canonicalHeader); err != nil {
		return "", err
	}
	for _, r := range rows {
		required := "No"
		if r.Required {
			required = "Yes"
		}
		rec := []string{r.SourceField, r.TargetResource, r.TargetAttr, r.Transformation, r.DataType, required}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

type coverageSlot int

const (
	slotPositive coverageSlot = iota
	slotNegative
	slotEdge
)

// fillCoverage appends template cases for every target row whose functional
// positive, functional negative or edge case the drafts do not cover. The edge
// case must carry the row's edge subtype: negative when required, positive otherwise.
func fillCoverage(drafts []draft, rows []mapping.Row) []draft {
	out := drafts
	for _, row := range rows {
		if !row.HasTarget() {
			continue
		}
		edgeSubtype := edgeSubtypeFor(row)
		var have [3]bool
		for _, d := range drafts {
			if !covers(d, row) {
				continue
			}
			switch {
			case d.Type == types.TypeFunctional && d.Subtype == types.SubtypePositive:
				have[slotPositive] = true
			case d.Type == types.TypeFunctional && d.Subtype == types.SubtypeNegative:
				have[slotNegative] = true
			case d.Type == types.TypeEdge && d.Subtype == edgeSubtype:
				have[slotEdge] = true
			}
		}
		for slot, tc := range rowCases(row) {
			if !have[slot] {
				out = append(out, draft{TestCase: tc, Target: row.TargetAttr})
			}
		}
	}
	return out
}

// missingRegressions returns the template regression cases when the drafts
// contain none at all.
func missingRegressions(drafts []draft, rows []mapping.Row) []draft {
	for _, d := range drafts {
		if d.Type == types.TypeRegression {
			return nil
		}
	}
	var out []draft
	for _, tc := range regressionCases(rows) {
		out = append(out, draft{TestCase: tc})
	}
	return out
}

// covers reports whether d exercises row, by its declared target or by
// naming the attribute in its description.
func covers(d draft, row mapping.Row) bool {
	if d.Target != "" {
		return strings.EqualFold(d.Target, row.TargetAttr) || strings.EqualFold(d.Target, row.QualifiedTarget())
	}
	return strings.Contains(strings.ToLower(d.Description), strings.ToLower(row.TargetAttr))
}
