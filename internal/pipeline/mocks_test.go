package pipeline

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/motlabs/mot-ingestion/internal/models"
	"github.com/motlabs/mot-ingestion/internal/schema"
	"github.com/motlabs/mot-ingestion/internal/serializer"
)

// MockDiscovery is a mock implementation of the Discovery interface.
type MockDiscovery struct {
	mock.Mock
}

func (m *MockDiscovery) Discover() ([]models.FileCandidate, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FileCandidate), args.Error(1)
}

// MockChecksum is a mock implementation of the Checksummer interface.
type MockChecksum struct {
	mock.Mock
}

func (m *MockChecksum) Compute(filePath string) (string, error) {
	args := m.Called(filePath)
	return args.String(0), args.Error(1)
}

// MockRegistry is a mock implementation of the registry.Store interface.
type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) NeedsProcessing(ctx context.Context, fileName, checksum string) (bool, error) {
	args := m.Called(ctx, fileName, checksum)
	return args.Bool(0), args.Error(1)
}

func (m *MockRegistry) Record(ctx context.Context, entry models.RegistryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// MockParser is a mock implementation of the Parser interface.
type MockParser struct {
	mock.Mock
}

func (m *MockParser) Parse(filePath string) ([]models.RawRow, error) {
	args := m.Called(filePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RawRow), args.Error(1)
}

// MockNormalizer is a mock implementation of the Normalizer interface.
type MockNormalizer struct {
	mock.Mock
}

func (m *MockNormalizer) Normalize(rows []models.RawRow, sourceFile, checksum string, ingestTS time.Time) ([]models.CanonicalRow, schema.Stats, error) {
	args := m.Called(rows, sourceFile, checksum, ingestTS)
	if args.Get(0) == nil {
		return nil, args.Get(1).(schema.Stats), args.Error(2)
	}
	return args.Get(0).([]models.CanonicalRow), args.Get(1).(schema.Stats), args.Error(2)
}

// MockStager is a mock implementation of the Stager interface.
type MockStager struct {
	mock.Mock
}

func (m *MockStager) Serialize(rows []models.CanonicalRow, fileStem string) (string, error) {
	args := m.Called(rows, fileStem)
	return args.String(0), args.Error(1)
}

func (m *MockStager) Format() serializer.Format {
	args := m.Called()
	return args.Get(0).(serializer.Format)
}

// MockUploader is a mock implementation of the storage.Uploader interface.
type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, localPath string) (string, error) {
	args := m.Called(ctx, localPath)
	return args.String(0), args.Error(1)
}

// MockLoader is a mock implementation of the warehouse.Loader interface.
type MockLoader struct {
	mock.Mock
}

func (m *MockLoader) Load(ctx context.Context, uri string, s schema.Schema, format serializer.Format) (int64, error) {
	args := m.Called(ctx, uri, s, format)
	return args.Get(0).(int64), args.Error(1)
}
