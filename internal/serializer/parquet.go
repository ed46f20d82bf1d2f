package serializer

import (
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/motlabs/mot-ingestion/internal/models"
	"github.com/motlabs/mot-ingestion/internal/schema"
)

func (s *Serializer) writeParquet(rows []models.CanonicalRow, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[map[string]any](
		file,
		parquetSchema(s.schema),
		parquet.Compression(&parquet.Snappy),
	)

	for _, row := range rows {
		record := make(map[string]any, len(row))
		for _, field := range s.schema {
			record[field.Name] = parquetValue(row[field.Name], field.Type)
		}
		record[schema.AuditSourceFile] = row[schema.AuditSourceFile]
		record[schema.AuditChecksum] = row[schema.AuditChecksum]
		record[schema.AuditIngestTS] = parquetValue(row[schema.AuditIngestTS], schema.TypeTimestamp)

		if _, err := writer.Write([]map[string]any{record}); err != nil {
			writer.Close()
			return err
		}
	}

	return writer.Close()
}

// parquetSchema maps the canonical schema plus audit columns onto a
// parquet group. Field names are preserved so the loader can match
// columns by name instead of position.
func parquetSchema(s schema.Schema) *parquet.Schema {
	group := parquet.Group{}
	for _, field := range s {
		group[field.Name] = parquetNode(field)
	}
	group[schema.AuditSourceFile] = parquet.Optional(parquet.String())
	group[schema.AuditChecksum] = parquet.Optional(parquet.String())
	group[schema.AuditIngestTS] = parquet.Optional(parquet.Timestamp(parquet.Microsecond))
	return parquet.NewSchema("canonical", group)
}

func parquetNode(field schema.FieldSpec) parquet.Node {
	var leaf parquet.Node
	switch field.Type {
	case schema.TypeInteger:
		leaf = parquet.Int(64)
	case schema.TypeFloat:
		leaf = parquet.Leaf(parquet.DoubleType)
	case schema.TypeBoolean:
		leaf = parquet.Leaf(parquet.BooleanType)
	case schema.TypeDate:
		leaf = parquet.Date()
	case schema.TypeTimestamp:
		leaf = parquet.Timestamp(parquet.Microsecond)
	default:
		leaf = parquet.String()
	}

	switch field.Mode {
	case schema.ModeRequired:
		return parquet.Required(leaf)
	case schema.ModeRepeated:
		return parquet.Repeated(leaf)
	default:
		return parquet.Optional(leaf)
	}
}

// parquetValue converts typed canonical values to the physical
// representation the parquet logical types expect: DATE as days since
// epoch, TIMESTAMP as microseconds.
func parquetValue(v any, t schema.FieldType) any {
	switch value := v.(type) {
	case nil:
		return nil
	case time.Time:
		if t == schema.TypeDate {
			return int32(value.UTC().Unix() / 86400)
		}
		return value.UTC().UnixMicro()
	case []any:
		elems := make([]any, len(value))
		for i, elem := range value {
			elems[i] = parquetValue(elem, t)
		}
		return elems
	default:
		return value
	}
}
