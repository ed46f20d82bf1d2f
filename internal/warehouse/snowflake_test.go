package warehouse

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/motlabs/mot-ingestion/internal/schema"
	"github.com/motlabs/mot-ingestion/internal/serializer"
)

func newMockLoader(t *testing.T) (*SnowflakeLoader, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	loader := newLoaderWithDB(Config{
		Account:   "acme-xy12345",
		User:      "loader",
		Database:  "MOT",
		Schema:    "PUBLIC",
		Warehouse: "LOAD_WH",
		Table:     "VEHICLE_TESTS",
		Stage:     "MOT_STAGE",
	}, db, nil)
	return loader, mock
}

func loadSchema() schema.Schema {
	return schema.Schema{
		{Name: "test_id", Type: schema.TypeInteger, Mode: schema.ModeRequired},
		{Name: "test_result", Type: schema.TypeString, Mode: schema.ModeNullable},
		{Name: "test_date", Type: schema.TypeDate, Mode: schema.ModeNullable},
	}
}

func TestEnsureTable(t *testing.T) {
	loader, mock := newMockLoader(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS VEHICLE_TESTS \(test_id NUMBER\(38,0\) NOT NULL, test_result VARCHAR, test_date DATE, source_file VARCHAR, checksum VARCHAR, ingest_ts TIMESTAMP_TZ\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := loader.EnsureTable(context.Background(), loadSchema())

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_Parquet(t *testing.T) {
	loader, mock := newMockLoader(t)

	result := sqlmock.NewRows([]string{"file", "status", "rows_loaded"}).
		AddRow("ingest_date=20240510/input_20240510_123045.parquet", "LOADED", int64(42))

	mock.ExpectQuery(`COPY INTO VEHICLE_TESTS FROM '@MOT_STAGE/ingest_date=20240510/input_20240510_123045\.parquet' FILE_FORMAT = \(TYPE = PARQUET\) MATCH_BY_COLUMN_NAME = CASE_INSENSITIVE`).
		WillReturnRows(result)

	loaded, err := loader.Load(context.Background(),
		"s3://mot-staging/ingest_date=20240510/input_20240510_123045.parquet",
		loadSchema(), serializer.FormatParquet)

	assert.NoError(t, err)
	assert.Equal(t, int64(42), loaded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_CSV(t *testing.T) {
	loader, mock := newMockLoader(t)

	result := sqlmock.NewRows([]string{"file", "rows_loaded"}).
		AddRow("ingest_date=20240510/input_20240510_123045.csv", int64(7))

	mock.ExpectQuery(`COPY INTO VEHICLE_TESTS FROM '@MOT_STAGE/ingest_date=20240510/input_20240510_123045\.csv' FILE_FORMAT = \(TYPE = CSV SKIP_HEADER = 1`).
		WillReturnRows(result)

	loaded, err := loader.Load(context.Background(),
		"s3://mot-staging/ingest_date=20240510/input_20240510_123045.csv",
		loadSchema(), serializer.FormatCSV)

	assert.NoError(t, err)
	assert.Equal(t, int64(7), loaded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_SumsMultipleFiles(t *testing.T) {
	loader, mock := newMockLoader(t)

	result := sqlmock.NewRows([]string{"file", "rows_loaded"}).
		AddRow("a.parquet", int64(10)).
		AddRow("b.parquet", "15")

	mock.ExpectQuery(`COPY INTO VEHICLE_TESTS`).WillReturnRows(result)

	loaded, err := loader.Load(context.Background(),
		"s3://mot-staging/ingest_date=20240510/a.parquet",
		loadSchema(), serializer.FormatParquet)

	assert.NoError(t, err)
	assert.Equal(t, int64(25), loaded)
}

func TestLoad_QueryError(t *testing.T) {
	loader, mock := newMockLoader(t)

	mock.ExpectQuery(`COPY INTO VEHICLE_TESTS`).
		WillReturnError(assert.AnError)

	_, err := loader.Load(context.Background(),
		"s3://mot-staging/ingest_date=20240510/input.parquet",
		loadSchema(), serializer.FormatParquet)

	var lerr *LoadError
	assert.ErrorAs(t, err, &lerr)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestLoad_MissingRowsLoadedColumn(t *testing.T) {
	loader, mock := newMockLoader(t)

	result := sqlmock.NewRows([]string{"file", "status"}).AddRow("a.parquet", "LOADED")
	mock.ExpectQuery(`COPY INTO VEHICLE_TESTS`).WillReturnRows(result)

	_, err := loader.Load(context.Background(),
		"s3://mot-staging/ingest_date=20240510/a.parquet",
		loadSchema(), serializer.FormatParquet)

	var lerr *LoadError
	assert.ErrorAs(t, err, &lerr)
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	loader, _ := newMockLoader(t)

	_, err := loader.Load(context.Background(),
		"s3://mot-staging/ingest_date=20240510/input.avro",
		loadSchema(), serializer.Format("avro"))

	var lerr *LoadError
	assert.ErrorAs(t, err, &lerr)
}

func TestStagePath(t *testing.T) {
	loader, _ := newMockLoader(t)

	key, err := loader.stagePath("s3://mot-staging/ingest_date=20240510/input.parquet")
	assert.NoError(t, err)
	assert.Equal(t, "ingest_date=20240510/input.parquet", key)

	_, err = loader.stagePath("gs://mot-staging/input.parquet")
	assert.Error(t, err)

	_, err = loader.stagePath("s3://mot-staging")
	assert.Error(t, err)
}

func TestColumnDDL(t *testing.T) {
	assert.Equal(t, "a NUMBER(38,0)", columnDDL(schema.FieldSpec{Name: "a", Type: schema.TypeInteger, Mode: schema.ModeNullable}))
	assert.Equal(t, "b DOUBLE", columnDDL(schema.FieldSpec{Name: "b", Type: schema.TypeFloat, Mode: schema.ModeNullable}))
	assert.Equal(t, "c BOOLEAN NOT NULL", columnDDL(schema.FieldSpec{Name: "c", Type: schema.TypeBoolean, Mode: schema.ModeRequired}))
	assert.Equal(t, "d TIMESTAMP_TZ", columnDDL(schema.FieldSpec{Name: "d", Type: schema.TypeTimestamp, Mode: schema.ModeNullable}))
	assert.Equal(t, "e ARRAY", columnDDL(schema.FieldSpec{Name: "e", Type: schema.TypeString, Mode: schema.ModeRepeated}))
}
