package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/motlabs/mot-ingestion/internal/discovery"
	"github.com/motlabs/mot-ingestion/internal/schema"
	"github.com/motlabs/mot-ingestion/internal/serializer"
	"github.com/motlabs/mot-ingestion/pkg/checksum"
)

// ErrInvalid marks configuration errors. Construction-time failures map
// to the INIT_FAILURE exit code before any file is touched.
var ErrInvalid = errors.New("invalid configuration")

// RegistryConfig locates the processing registry.
type RegistryConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// StorageConfig locates the staging bucket.
type StorageConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
}

// WarehouseConfig locates the target warehouse table and its external
// stage.
type WarehouseConfig struct {
	Account   string `yaml:"account"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
	Warehouse string `yaml:"warehouse"`
	Table     string `yaml:"table"`
	Stage     string `yaml:"stage"`
}

// Config is the immutable pipeline configuration, built once at startup
// and passed explicitly into every component.
type Config struct {
	InputDirectory    string   `yaml:"input_directory"`
	FilePattern       string   `yaml:"file_pattern"`
	IgnorePatterns    []string `yaml:"ignore_patterns"`
	InputFormat       string   `yaml:"input_format"`
	SheetName         string   `yaml:"sheet_name"`
	SheetIndex        int      `yaml:"sheet_index"`
	CSVDelimiter      string   `yaml:"csv_delimiter"`
	OutputFormat      string   `yaml:"output_format"`
	ChecksumAlgorithm string   `yaml:"checksum_algorithm"`
	TempDirectory     string   `yaml:"temp_directory"`
	DryRun            bool     `yaml:"dry_run"`
	LogLevel          string   `yaml:"log_level"`

	DateLayouts         []string `yaml:"date_layouts"`
	TimestampLayouts    []string `yaml:"timestamp_layouts"`
	RepeatedDelimiter   string   `yaml:"repeated_delimiter"`
	OnRequiredCastError string   `yaml:"on_required_cast_error"`

	Schema    schema.Schema   `yaml:"schema"`
	Registry  RegistryConfig  `yaml:"registry"`
	Storage   StorageConfig   `yaml:"storage"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
}

// Input formats.
const (
	InputXLSX = "xlsx"
	InputCSV  = "csv"
)

// Load reads a YAML configuration file, applies environment overrides for
// credentials and validates the result. dryRun forces dry-run mode
// regardless of what the file says.
func Load(path string, dryRun bool) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalid, path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalid, path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	if dryRun {
		cfg.DryRun = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.FilePattern == "" {
		c.FilePattern = "*.xlsx"
	}
	if c.IgnorePatterns == nil {
		c.IgnorePatterns = discovery.DefaultIgnorePatterns
	}
	if c.InputFormat == "" {
		c.InputFormat = InputXLSX
	}
	if c.OutputFormat == "" {
		c.OutputFormat = string(serializer.FormatParquet)
	}
	if c.ChecksumAlgorithm == "" {
		c.ChecksumAlgorithm = checksum.AlgorithmSHA256
	}
	if c.TempDirectory == "" {
		c.TempDirectory = os.TempDir() + "/mot-ingestion"
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.OnRequiredCastError == "" {
		c.OnRequiredCastError = string(schema.PolicyExcludeRow)
	}
	if c.Registry.Table == "" {
		c.Registry.Table = "file_registry"
	}
}

// applyEnv lets credentials and connection strings come from the
// environment instead of the config file, so secrets stay out of YAML.
func (c *Config) applyEnv() {
	c.Registry.DSN = getEnvOr("MOT_REGISTRY_DSN", c.Registry.DSN)
	c.Warehouse.Password = getEnvOr("MOT_SNOWFLAKE_PASSWORD", c.Warehouse.Password)
	c.Warehouse.User = getEnvOr("MOT_SNOWFLAKE_USER", c.Warehouse.User)
	c.Warehouse.Account = getEnvOr("MOT_SNOWFLAKE_ACCOUNT", c.Warehouse.Account)
	c.Storage.Bucket = getEnvOr("MOT_S3_BUCKET", c.Storage.Bucket)
	c.Storage.Region = getEnvOr("MOT_S3_REGION", c.Storage.Region)
	if os.Getenv("MOT_DRY_RUN") == "true" {
		c.DryRun = true
	}
}

// Validate checks everything the pipeline needs before the first file is
// touched. Dry run relaxes the storage/warehouse requirements since no
// upload or load will happen.
func (c *Config) Validate() error {
	if c.InputDirectory == "" {
		return fmt.Errorf("%w: input_directory is required", ErrInvalid)
	}
	if err := c.Schema.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	switch c.InputFormat {
	case InputXLSX, InputCSV:
	default:
		return fmt.Errorf("%w: unknown input_format %q", ErrInvalid, c.InputFormat)
	}

	switch serializer.Format(c.OutputFormat) {
	case serializer.FormatParquet, serializer.FormatCSV:
	default:
		return fmt.Errorf("%w: unknown output_format %q", ErrInvalid, c.OutputFormat)
	}

	if _, err := checksum.NewComputer(c.ChecksumAlgorithm); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	switch schema.RequiredCastPolicy(c.OnRequiredCastError) {
	case schema.PolicyExcludeRow, schema.PolicyFailFile:
	default:
		return fmt.Errorf("%w: unknown on_required_cast_error %q", ErrInvalid, c.OnRequiredCastError)
	}

	if c.Registry.DSN == "" {
		return fmt.Errorf("%w: registry.dsn is required (or MOT_REGISTRY_DSN)", ErrInvalid)
	}

	if !c.DryRun {
		if c.Storage.Bucket == "" {
			return fmt.Errorf("%w: storage.bucket is required", ErrInvalid)
		}
		if c.Warehouse.Account == "" || c.Warehouse.Table == "" || c.Warehouse.Stage == "" {
			return fmt.Errorf("%w: warehouse account, table and stage are required", ErrInvalid)
		}
	}

	return nil
}

// NormalizerOptions builds the normalizer options from configuration.
func (c *Config) NormalizerOptions() schema.Options {
	return schema.Options{
		DateLayouts:         c.DateLayouts,
		TimestampLayouts:    c.TimestampLayouts,
		RepeatedDelimiter:   c.RepeatedDelimiter,
		OnRequiredCastError: schema.RequiredCastPolicy(c.OnRequiredCastError),
	}
}

func getEnvOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
