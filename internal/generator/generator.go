// Package generator turns parsed mapping rows into ordered test cases.
//
// Two implementations exist: a deterministic template generator and an
// LLM-backed generator. Both guarantee, for every row with a target
// attribute, a functional positive, a functional negative and an edge case,
// and both number their ids sequentially from 1 within the batch.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/mapping-testgen/internal/llm"
	"github.com/jonathan/mapping-testgen/internal/mapping"
	"github.com/jonathan/mapping-testgen/internal/types"
)

// ErrUnavailable is wrapped around failures to reach the generator's external dependency.
var ErrUnavailable = errors.New("generator unavailable")

// Generator names
const (
	NameTemplate = "template"
	NameLLM      = "llm"
	NameAuto     = "auto"
)

// Request is the input of a single generation.
type Request struct {
	// CSV is the raw mapping text as submitted.
	CSV string
	// Rows are the parsed mapping rows of CSV.
	Rows        []mapping.Row
	BatchNumber string
	// BatchSize caps how many rows go into a single LLM call. Zero means all rows.
	BatchSize int
}

// Generator converts mapping rows into an ordered test case sequence.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]types.TestCase, error)
	Name() string
}

// Pinger is implemented by generators with an external dependency that can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// FormatID builds B_{batch}_TC_{seq:03d}_{type}_{subtype} with lower-cased type and subtype.
func FormatID(batch string, seq int, t types.TestCaseType, st types.Subtype) string {
	return fmt.Sprintf("B_%s_TC_%03d_%s_%s", batch, seq, strings.ToLower(string(t)), strings.ToLower(string(st)))
}

// Renumber assigns ids to cases in order, starting at sequence 1.
func Renumber(batch string, cases []types.TestCase) {
	for i := range cases {
		cases[i].ID = FormatID(batch, i+1, cases[i].Type, cases[i].Subtype)
	}
}

// Select builds the generator named by name. "auto" picks the LLM generator
// when a client is available and the template generator otherwise.
func Select(name string, client llm.Client, logger *zap.Logger) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameTemplate:
		return NewTemplate(), nil
	case NameLLM:
		if client == nil {
			return nil, fmt.Errorf("llm generator requires an LLM client (set GEMINI_API_KEY)")
		}
		return NewLLM(client, logger), nil
	case NameAuto, "":
		if client != nil {
			return NewLLM(client, logger), nil
		}
		return NewTemplate(), nil
	default:
		return nil, fmt.Errorf("unknown generator %q", name)
	}
}
