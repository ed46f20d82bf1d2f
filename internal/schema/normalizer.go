package schema

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/motlabs/mot-ingestion/internal/models"
)

// RequiredCastPolicy controls what happens when a REQUIRED field cannot be
// resolved for a row.
type RequiredCastPolicy string

const (
	// PolicyExcludeRow drops the offending row and keeps processing the
	// file.
	PolicyExcludeRow RequiredCastPolicy = "exclude_row"
	// PolicyFailFile aborts the whole file on the first offending row.
	PolicyFailFile RequiredCastPolicy = "fail_file"
)

// RowValidationError reports a REQUIRED field that could not be resolved.
// Under PolicyFailFile it escapes Normalize; under PolicyExcludeRow it is
// absorbed into the per-file stats.
type RowValidationError struct {
	Row   int
	Field string
	Err   error
}

func (e *RowValidationError) Error() string {
	return fmt.Sprintf("row %d: required field %q: %v", e.Row, e.Field, e.Err)
}

func (e *RowValidationError) Unwrap() error {
	return e.Err
}

// Options tunes normalization behavior. Zero values fall back to the
// defaults below.
type Options struct {
	DateLayouts         []string
	TimestampLayouts    []string
	RepeatedDelimiter   string
	OnRequiredCastError RequiredCastPolicy
}

var (
	defaultDateLayouts      = []string{"2006-01-02"}
	defaultTimestampLayouts = []string{time.RFC3339, "2006-01-02 15:04:05"}
)

// Stats summarizes one file's normalization.
type Stats struct {
	InputRows    int
	OutputRows   int
	CastErrors   int
	ExcludedRows int
}

// Normalizer maps raw parsed rows onto the canonical schema: unknown
// columns are dropped, missing NULLABLE columns become NULL, values are
// cast to the field's target type, and the audit columns are appended.
type Normalizer struct {
	schema Schema
	opts   Options
	logger *slog.Logger
}

// NewNormalizer builds a Normalizer for the given schema. The schema must
// already be validated.
func NewNormalizer(s Schema, opts Options, logger *slog.Logger) *Normalizer {
	if len(opts.DateLayouts) == 0 {
		opts.DateLayouts = defaultDateLayouts
	}
	if len(opts.TimestampLayouts) == 0 {
		opts.TimestampLayouts = defaultTimestampLayouts
	}
	if opts.RepeatedDelimiter == "" {
		opts.RepeatedDelimiter = ";"
	}
	if opts.OnRequiredCastError == "" {
		opts.OnRequiredCastError = PolicyExcludeRow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{schema: s, opts: opts, logger: logger}
}

// Normalize converts raw rows to canonical rows, preserving input order.
// The returned error is non-nil only under PolicyFailFile; cast problems
// are otherwise absorbed into Stats.
func (n *Normalizer) Normalize(rows []models.RawRow, sourceFile, checksum string, ingestTS time.Time) ([]models.CanonicalRow, Stats, error) {
	stats := Stats{InputRows: len(rows)}
	out := make([]models.CanonicalRow, 0, len(rows))

	for i, raw := range rows {
		row := make(models.CanonicalRow, len(n.schema)+3)
		excluded := false

		for _, field := range n.schema {
			value, err := n.resolveField(raw, field)
			if err != nil {
				if field.Mode == ModeRequired {
					rerr := &RowValidationError{Row: i, Field: field.Name, Err: err}
					if n.opts.OnRequiredCastError == PolicyFailFile {
						return nil, stats, rerr
					}
					n.logger.Warn("excluding row",
						slog.String("file", sourceFile),
						slog.Int("row", i),
						slog.String("field", field.Name),
						slog.String("error", err.Error()))
					stats.CastErrors++
					stats.ExcludedRows++
					excluded = true
					break
				}
				// NULLABLE and REPEATED fields coerce to NULL on a bad
				// cast; the row is still emitted.
				n.logger.Debug("cast failure coerced to null",
					slog.String("file", sourceFile),
					slog.Int("row", i),
					slog.String("field", field.Name),
					slog.String("error", err.Error()))
				stats.CastErrors++
				value = nil
			}
			row[field.Name] = value
		}

		if excluded {
			continue
		}

		row[AuditSourceFile] = sourceFile
		row[AuditChecksum] = checksum
		row[AuditIngestTS] = ingestTS.UTC()
		out = append(out, row)
	}

	stats.OutputRows = len(out)
	return out, stats, nil
}

// resolveField produces the typed value for one field of one row. Missing
// and empty non-string values resolve to NULL for NULLABLE fields and to
// an error for REQUIRED ones.
func (n *Normalizer) resolveField(raw models.RawRow, field FieldSpec) (any, error) {
	value, present := raw[field.Name]

	if field.Mode == ModeRepeated {
		return n.castRepeated(value, field)
	}

	if !present || isMissing(value, field.Type) {
		if field.Mode == ModeRequired {
			return nil, fmt.Errorf("no value")
		}
		return nil, nil
	}

	return castValue(value, field.Type, &n.opts)
}

func (n *Normalizer) castRepeated(value string, field FieldSpec) (any, error) {
	if strings.TrimSpace(value) == "" {
		return []any{}, nil
	}
	parts := strings.Split(value, n.opts.RepeatedDelimiter)
	elems := make([]any, 0, len(parts))
	for _, part := range parts {
		if isMissing(part, field.Type) {
			continue
		}
		v, err := castValue(part, field.Type, &n.opts)
		if err != nil {
			return nil, err
		}
		elems = append(elems, v)
	}
	return elems, nil
}

// isMissing reports whether a raw value counts as absent rather than as a
// parse failure. Empty strings are valid STRING values but missing for
// every other type.
func isMissing(value string, t FieldType) bool {
	return t != TypeString && strings.TrimSpace(value) == ""
}

type castFunc func(value string, opts *Options) (any, error)

// casters is the per-type cast dispatch table. Adding a target type means
// adding one entry here.
var casters = map[FieldType]castFunc{
	TypeString:    castString,
	TypeInteger:   castInteger,
	TypeFloat:     castFloat,
	TypeBoolean:   castBoolean,
	TypeDate:      castDate,
	TypeTimestamp: castTimestamp,
}

func castValue(value string, t FieldType, opts *Options) (any, error) {
	caster, ok := casters[t]
	if !ok {
		return nil, fmt.Errorf("no caster for type %q", t)
	}
	return caster(value, opts)
}

func castString(value string, _ *Options) (any, error) {
	return value, nil
}

func castInteger(value string, _ *Options) (any, error) {
	trimmed := strings.TrimSpace(value)
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return n, nil
	}
	// Spreadsheets frequently render integers as "3.0"; accept a float
	// form as long as it is integral.
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil, fmt.Errorf("not an integer: %q", value)
	}
	if f != float64(int64(f)) {
		return nil, fmt.Errorf("not an integer: %q", value)
	}
	return int64(f), nil
}

func castFloat(value string, _ *Options) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return nil, fmt.Errorf("not a float: %q", value)
	}
	return f, nil
}

var (
	truthyTokens = map[string]bool{"true": true, "t": true, "1": true, "yes": true, "y": true}
	falsyTokens  = map[string]bool{"false": true, "f": true, "0": true, "no": true, "n": true}
)

func castBoolean(value string, _ *Options) (any, error) {
	token := strings.ToLower(strings.TrimSpace(value))
	if truthyTokens[token] {
		return true, nil
	}
	if falsyTokens[token] {
		return false, nil
	}
	return nil, fmt.Errorf("not a boolean: %q", value)
}

func castDate(value string, opts *Options) (any, error) {
	trimmed := strings.TrimSpace(value)
	for _, layout := range opts.DateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("not a date in any configured layout: %q", value)
}

func castTimestamp(value string, opts *Options) (any, error) {
	trimmed := strings.TrimSpace(value)
	for _, layout := range opts.TimestampLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC(), nil
		}
	}
	return nil, fmt.Errorf("not a timestamp in any configured layout: %q", value)
}
