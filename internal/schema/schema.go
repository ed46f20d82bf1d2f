package schema

import "fmt"

// FieldType is the warehouse target type of a canonical field.
type FieldType string

const (
	TypeString    FieldType = "STRING"
	TypeInteger   FieldType = "INTEGER"
	TypeFloat     FieldType = "FLOAT"
	TypeBoolean   FieldType = "BOOLEAN"
	TypeDate      FieldType = "DATE"
	TypeTimestamp FieldType = "TIMESTAMP"
)

// FieldMode declares how missing values are treated for a field.
type FieldMode string

const (
	ModeNullable FieldMode = "NULLABLE"
	ModeRequired FieldMode = "REQUIRED"
	ModeRepeated FieldMode = "REPEATED"
)

// FieldSpec is one column of the canonical target schema.
type FieldSpec struct {
	Name string    `yaml:"name"`
	Type FieldType `yaml:"type"`
	Mode FieldMode `yaml:"mode"`
}

// Audit columns appended to every canonical row. They are never subject to
// the drop/cast rules and are identical for all rows of one attempt.
const (
	AuditSourceFile = "source_file"
	AuditChecksum   = "checksum"
	AuditIngestTS   = "ingest_ts"
)

// Schema is the ordered canonical column list loaded once from
// configuration and immutable for the duration of a run.
type Schema []FieldSpec

// Validate checks that the schema is non-empty, field names are unique and
// every field carries a known type and mode. An empty mode defaults to
// NULLABLE.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("schema has no fields")
	}

	seen := make(map[string]bool, len(s))
	for i := range s {
		f := &s[i]
		if f.Name == "" {
			return fmt.Errorf("schema field %d has no name", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate schema field %q", f.Name)
		}
		seen[f.Name] = true

		switch f.Type {
		case TypeString, TypeInteger, TypeFloat, TypeBoolean, TypeDate, TypeTimestamp:
		default:
			return fmt.Errorf("schema field %q has unknown type %q", f.Name, f.Type)
		}

		switch f.Mode {
		case "":
			f.Mode = ModeNullable
		case ModeNullable, ModeRequired, ModeRepeated:
		default:
			return fmt.Errorf("schema field %q has unknown mode %q", f.Name, f.Mode)
		}

		if seen[AuditSourceFile] || seen[AuditChecksum] || seen[AuditIngestTS] {
			return fmt.Errorf("schema field %q collides with an audit column", f.Name)
		}
	}

	return nil
}

// ColumnNames returns the schema field names in declaration order,
// without the audit columns.
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// OutputColumns returns the full canonical column order: schema fields
// followed by the audit columns. Every serialized artifact and the target
// table use this order.
func (s Schema) OutputColumns() []string {
	return append(s.ColumnNames(), AuditSourceFile, AuditChecksum, AuditIngestTS)
}
