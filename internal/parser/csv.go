package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/motlabs/mot-ingestion/internal/models"
)

// CSVParser reads delimited text files. Corrupted records are skipped
// rather than failing the file; a missing or empty header is a ParseError.
type CSVParser struct {
	comma  rune
	logger *slog.Logger
}

func NewCSVParser(comma rune, logger *slog.Logger) *CSVParser {
	if comma == 0 {
		comma = ','
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVParser{comma: comma, logger: logger}
}

// Parse implements Parser.
func (p *CSVParser) Parse(filePath string) ([]models.RawRow, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, &ParseError{Path: filePath, Err: err}
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = p.comma
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, &ParseError{Path: filePath, Err: fmt.Errorf("file is empty")}
		}
		return nil, &ParseError{Path: filePath, Err: fmt.Errorf("failed to read header: %w", err)}
	}

	var records [][]string
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Skip corrupted records, the rest of the file is still
			// usable.
			skipped++
			continue
		}
		records = append(records, record)
	}

	if skipped > 0 {
		p.logger.Warn("skipped corrupted records",
			slog.String("path", filePath),
			slog.Int("skipped", skipped))
	}

	raw := rowsToRaw(header, records)
	p.logger.Info("parsed csv",
		slog.String("path", filePath),
		slog.Int("rows", len(raw)),
		slog.Int("columns", len(header)))
	return raw, nil
}
