package serializer

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/motlabs/mot-ingestion/internal/models"
)

func (s *Serializer) writeCSV(rows []models.CanonicalRow, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	columns := s.schema.OutputColumns()

	if err := writer.Write(columns); err != nil {
		return err
	}

	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = formatCSVValue(row[col])
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// formatCSVValue renders a typed canonical value for CSV staging. NULL
// renders as the empty field, which the loader's CSV format treats as
// NULL.
func formatCSVValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case bool:
		return strconv.FormatBool(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case time.Time:
		if value.Hour() == 0 && value.Minute() == 0 && value.Second() == 0 && value.Nanosecond() == 0 {
			return value.Format("2006-01-02")
		}
		return value.UTC().Format(time.RFC3339Nano)
	case []any:
		parts := make([]string, len(value))
		for i, elem := range value {
			parts[i] = formatCSVValue(elem)
		}
		return strings.Join(parts, ";")
	default:
		return fmt.Sprint(value)
	}
}
