package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/snowflakedb/gosnowflake" // Snowflake driver

	"github.com/motlabs/mot-ingestion/internal/schema"
	"github.com/motlabs/mot-ingestion/internal/serializer"
)

// Loader ingests a staged remote artifact into the warehouse table. The
// canonical schema is passed explicitly; the loader never infers one.
type Loader interface {
	Load(ctx context.Context, uri string, s schema.Schema, format serializer.Format) (int64, error)
}

// LoadError wraps warehouse ingestion failures so the pipeline can
// attribute them to the load stage.
type LoadError struct {
	URI string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.URI, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Config configures the Snowflake connection and load target. Stage is
// the name of an external stage already pointed at the upload bucket and
// prefix.
type Config struct {
	Account   string
	User      string
	Password  string
	Database  string
	Schema    string
	Warehouse string
	Table     string
	Stage     string
}

// SnowflakeLoader bulk-loads staged files via COPY INTO from an external
// stage.
type SnowflakeLoader struct {
	config Config
	db     *sql.DB
	logger *slog.Logger
}

// NewSnowflakeLoader opens a pooled connection to Snowflake.
func NewSnowflakeLoader(cfg Config, logger *slog.Logger) (*SnowflakeLoader, error) {
	dsn := fmt.Sprintf("%s:%s@%s/%s/%s",
		cfg.User,
		cfg.Password,
		cfg.Account,
		cfg.Database,
		cfg.Schema,
	)
	if cfg.Warehouse != "" {
		dsn += "?warehouse=" + cfg.Warehouse
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open snowflake connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if logger == nil {
		logger = slog.Default()
	}

	return &SnowflakeLoader{config: cfg, db: db, logger: logger}, nil
}

// newLoaderWithDB is used by tests to inject a mock database handle.
func newLoaderWithDB(cfg Config, db *sql.DB, logger *slog.Logger) *SnowflakeLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnowflakeLoader{config: cfg, db: db, logger: logger}
}

// Close closes the underlying connection pool.
func (l *SnowflakeLoader) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Ping tests the warehouse connection.
func (l *SnowflakeLoader) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// EnsureTable creates the target table from the canonical schema plus the
// audit columns if it does not exist yet.
func (l *SnowflakeLoader) EnsureTable(ctx context.Context, s schema.Schema) error {
	columns := make([]string, 0, len(s)+3)
	for _, field := range s {
		columns = append(columns, columnDDL(field))
	}
	columns = append(columns,
		schema.AuditSourceFile+" VARCHAR",
		schema.AuditChecksum+" VARCHAR",
		schema.AuditIngestTS+" TIMESTAMP_TZ",
	)

	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		l.config.Table, strings.Join(columns, ", "))

	if _, err := l.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", l.config.Table, err)
	}
	return nil
}

// Load implements Loader. Returns the number of rows the COPY reported as
// loaded.
func (l *SnowflakeLoader) Load(ctx context.Context, uri string, s schema.Schema, format serializer.Format) (int64, error) {
	stagePath, err := l.stagePath(uri)
	if err != nil {
		return 0, &LoadError{URI: uri, Err: err}
	}

	var query string
	switch format {
	case serializer.FormatParquet:
		query = fmt.Sprintf(
			"COPY INTO %s FROM '@%s/%s' FILE_FORMAT = (TYPE = PARQUET) MATCH_BY_COLUMN_NAME = CASE_INSENSITIVE",
			l.config.Table, l.config.Stage, stagePath)
	case serializer.FormatCSV:
		query = fmt.Sprintf(
			"COPY INTO %s FROM '@%s/%s' FILE_FORMAT = (TYPE = CSV SKIP_HEADER = 1 FIELD_OPTIONALLY_ENCLOSED_BY = '\"')",
			l.config.Table, l.config.Stage, stagePath)
	default:
		return 0, &LoadError{URI: uri, Err: fmt.Errorf("unsupported source format: %q", format)}
	}

	l.logger.Info("loading into warehouse",
		slog.String("uri", uri),
		slog.String("table", l.config.Table))

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return 0, &LoadError{URI: uri, Err: err}
	}
	defer rows.Close()

	loaded, err := sumRowsLoaded(rows)
	if err != nil {
		return 0, &LoadError{URI: uri, Err: err}
	}

	l.logger.Info("load complete",
		slog.String("table", l.config.Table),
		slog.Int64("rows", loaded))
	return loaded, nil
}

// stagePath converts an s3:// URI to a path relative to the external
// stage, which is already rooted at the bucket.
func (l *SnowflakeLoader) stagePath(uri string) (string, error) {
	trimmed, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	_, key, ok := strings.Cut(trimmed, "/")
	if !ok || key == "" {
		return "", fmt.Errorf("uri has no object key: %q", uri)
	}
	return key, nil
}

// sumRowsLoaded totals the rows_loaded column of a COPY INTO result set,
// one result row per staged file.
func sumRowsLoaded(rows *sql.Rows) (int64, error) {
	columns, err := rows.Columns()
	if err != nil {
		return 0, err
	}

	idx := -1
	for i, name := range columns {
		if strings.EqualFold(name, "rows_loaded") {
			idx = i
			break
		}
	}
	if idx == -1 {
		return 0, fmt.Errorf("copy result has no rows_loaded column")
	}

	var total int64
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return 0, err
		}
		n, err := toInt64(values[idx])
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, rows.Err()
}

func toInt64(v any) (int64, error) {
	switch value := v.(type) {
	case int64:
		return value, nil
	case float64:
		return int64(value), nil
	case string:
		return strconv.ParseInt(value, 10, 64)
	case []byte:
		return strconv.ParseInt(string(value), 10, 64)
	default:
		return 0, fmt.Errorf("unexpected rows_loaded value %T", v)
	}
}

func columnDDL(field schema.FieldSpec) string {
	var sqlType string
	switch field.Type {
	case schema.TypeInteger:
		sqlType = "NUMBER(38,0)"
	case schema.TypeFloat:
		sqlType = "DOUBLE"
	case schema.TypeBoolean:
		sqlType = "BOOLEAN"
	case schema.TypeDate:
		sqlType = "DATE"
	case schema.TypeTimestamp:
		sqlType = "TIMESTAMP_TZ"
	default:
		sqlType = "VARCHAR"
	}

	if field.Mode == schema.ModeRepeated {
		sqlType = "ARRAY"
	}

	ddl := field.Name + " " + sqlType
	if field.Mode == schema.ModeRequired {
		ddl += " NOT NULL"
	}
	return ddl
}

var _ Loader = (*SnowflakeLoader)(nil)
