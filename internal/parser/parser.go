package parser

import (
	"fmt"

	"github.com/motlabs/mot-ingestion/internal/models"
)

// Parser decodes a spreadsheet file into raw rows of string-typed cells.
// The first row is taken as the header; every data row maps header name to
// cell value.
type Parser interface {
	Parse(filePath string) ([]models.RawRow, error)
}

// ParseError wraps malformed/unsupported input failures so the pipeline
// can attribute them to the parse stage.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// rowsToRaw converts a header row plus data rows into RawRows. Cells
// beyond the header width are dropped; short rows leave the trailing
// columns absent rather than empty.
func rowsToRaw(header []string, rows [][]string) []models.RawRow {
	out := make([]models.RawRow, 0, len(rows))
	for _, cells := range rows {
		row := make(models.RawRow, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(cells) {
				row[name] = cells[i]
			}
		}
		out = append(out, row)
	}
	return out
}
