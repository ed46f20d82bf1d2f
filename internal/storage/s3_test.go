package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectKey(t *testing.T) {
	u := &S3Uploader{bucket: "mot-staging"}

	key := u.objectKey("/tmp/mot-ingestion/ingest_date=20240510/input_20240510_123045.parquet")
	assert.Equal(t, "ingest_date=20240510/input_20240510_123045.parquet", key)
}

func TestObjectKey_WithPrefix(t *testing.T) {
	u := &S3Uploader{bucket: "mot-staging", prefix: "mot/raw"}

	key := u.objectKey("/tmp/mot-ingestion/ingest_date=20240510/input_20240510_123045.parquet")
	assert.Equal(t, "mot/raw/ingest_date=20240510/input_20240510_123045.parquet", key)
}
