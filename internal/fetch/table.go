package fetch

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoTable is returned when an HTML document contains no usable table.
var ErrNoTable = errors.New("no table found in HTML document")

// TableCSV converts the first non-empty <table> in an HTML document to CSV.
// GitHub renders .csv files as HTML tables, so a blob page can be read this way.
// Cell text has its whitespace collapsed; header cells (th) and data cells (td)
// are treated alike.
func TableCSV(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var records [][]string
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		records = tableRecords(table)
		return len(records) == 0
	})
	if len(records) == 0 {
		return "", ErrNoTable
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return "", fmt.Errorf("failed to encode table: %w", err)
	}
	return buf.String(), nil
}

func tableRecords(table *goquery.Selection) [][]string {
	var records [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var record []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			// GitHub prefixes each rendered row with an empty line-number cell
			if cell.HasClass("blob-num") {
				return
			}
			record = append(record, strings.Join(strings.Fields(cell.Text()), " "))
		})
		if len(record) > 0 && !allEmpty(record) {
			records = append(records, record)
		}
	})
	return records
}

func allEmpty(record []string) bool {
	for _, f := range record {
		if f != "" {
			return false
		}
	}
	return true
}
