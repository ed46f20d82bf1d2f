package serializer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/motlabs/mot-ingestion/internal/models"
	"github.com/motlabs/mot-ingestion/internal/schema"
)

// Staging output formats.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
)

// SerializeError wraps staging failures so the pipeline can attribute
// them to the serialize stage.
type SerializeError struct {
	Path string
	Err  error
}

func (e *SerializeError) Error() string {
	return fmt.Sprintf("failed to serialize to %s: %v", e.Path, e.Err)
}

func (e *SerializeError) Unwrap() error {
	return e.Err
}

// Serializer stages canonical rows as local artifacts under
// <outputDir>/ingest_date=YYYYMMDD/, ready for upload. Column order is the
// canonical output order regardless of format.
type Serializer struct {
	outputDir string
	format    Format
	schema    schema.Schema
	logger    *slog.Logger
	now       func() time.Time
}

func NewSerializer(outputDir string, format Format, s schema.Schema, logger *slog.Logger) *Serializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Serializer{
		outputDir: outputDir,
		format:    format,
		schema:    s,
		logger:    logger,
		now:       time.Now,
	}
}

// Serialize writes rows to a new artifact and returns its path. An empty
// row set still produces a valid (empty) artifact so row_count accounting
// stays honest downstream.
func (s *Serializer) Serialize(rows []models.CanonicalRow, fileStem string) (string, error) {
	now := s.now().UTC()
	partition := filepath.Join(s.outputDir, "ingest_date="+now.Format("20060102"))
	if err := os.MkdirAll(partition, 0o755); err != nil {
		return "", &SerializeError{Path: partition, Err: err}
	}

	fileName := fmt.Sprintf("%s_%s.%s", fileStem, now.Format("20060102_150405"), s.format)
	outputPath := filepath.Join(partition, fileName)

	var err error
	switch s.format {
	case FormatParquet:
		err = s.writeParquet(rows, outputPath)
	case FormatCSV:
		err = s.writeCSV(rows, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %q", s.format)
	}
	if err != nil {
		return "", &SerializeError{Path: outputPath, Err: err}
	}

	s.logger.Info("serialized rows",
		slog.String("path", outputPath),
		slog.Int("rows", len(rows)))
	return outputPath, nil
}

// Format reports the configured staging format.
func (s *Serializer) Format() Format {
	return s.format
}
