// Package observability provides formatted summaries for verbose CLI output.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/mapping-testgen/internal/mapping"
	"github.com/jonathan/mapping-testgen/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer writes boxed summaries to out.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to a terminal; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(title))
	fmt.Fprintf(p.out, "├%s┤\n", border)
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", pad(line))
	}
	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// pad truncates or right-pads line to the box's inner width, counting runes.
func pad(line string) string {
	width := boxWidth - 4
	if n := utf8.RuneCountInString(line); n > width {
		runes := []rune(line)
		return string(runes[:width-3]) + "..."
	} else if n < width {
		return line + strings.Repeat(" ", width-n)
	}
	return line
}

// PrintMapping outputs the shape of a parsed mapping file.
func (p *Printer) PrintMapping(m *mapping.Mapping) {
	if m == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Rows:              %d\n", len(m.Rows))
	fmt.Fprintf(&sb, "Mapped rows:       %d\n", len(m.TargetRows()))
	fmt.Fprintf(&sb, "Unique attributes: %d\n", m.UniqueAttributes())

	targets := m.TargetRows()
	if len(targets) > 0 {
		sb.WriteString("\nTargets:\n")
		count := min(len(targets), maxItemsToShow)
		for _, row := range targets[:count] {
			fmt.Fprintf(&sb, "  • %s", row.QualifiedTarget())
			if row.Required {
				sb.WriteString(" (required)")
			}
			sb.WriteString("\n")
		}
		if len(targets) > maxItemsToShow {
			fmt.Fprintf(&sb, "  ... and %d more\n", len(targets)-maxItemsToShow)
		}
	}

	p.printBox("PARSED MAPPING", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintStatistics outputs the totals and breakdowns of a generation.
func (p *Printer) PrintStatistics(stats types.Statistics) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Total test cases:  %d\n", stats.TotalTestCases)
	fmt.Fprintf(&sb, "Mapping rows:      %d\n", stats.MappingRows)
	fmt.Fprintf(&sb, "Unique attributes: %d\n", stats.UniqueAttributes)

	writeBreakdown(&sb, "By type:", stats.TestCaseTypeBreakdown)
	writeBreakdown(&sb, "By subtype:", stats.SubtypeBreakdown)

	p.printBox("GENERATION STATISTICS", strings.TrimSuffix(sb.String(), "\n"))
}

func writeBreakdown(sb *strings.Builder, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(sb, "\n%s\n", title)
	for _, k := range keys {
		fmt.Fprintf(sb, "  %-12s %d\n", k, counts[k])
	}
}

// PrintTestCases outputs the first few generated test case ids and descriptions.
func (p *Printer) PrintTestCases(cases []types.TestCase) {
	if len(cases) == 0 {
		return
	}

	var sb strings.Builder
	count := min(len(cases), maxItemsToShow)
	for i, tc := range cases[:count] {
		fmt.Fprintf(&sb, "%s\n", tc.ID)
		fmt.Fprintf(&sb, "    %s\n", tc.Description)
		if i < count-1 {
			sb.WriteString("\n")
		}
	}
	if len(cases) > maxItemsToShow {
		fmt.Fprintf(&sb, "\n... and %d more\n", len(cases)-maxItemsToShow)
	}

	p.printBox("TEST CASES", strings.TrimSuffix(sb.String(), "\n"))
}
