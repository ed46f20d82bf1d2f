package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/motlabs/mot-ingestion/internal/config"
	"github.com/motlabs/mot-ingestion/internal/discovery"
	"github.com/motlabs/mot-ingestion/internal/models"
	"github.com/motlabs/mot-ingestion/internal/parser"
	"github.com/motlabs/mot-ingestion/internal/pipeline"
	"github.com/motlabs/mot-ingestion/internal/registry"
	"github.com/motlabs/mot-ingestion/internal/schema"
	"github.com/motlabs/mot-ingestion/internal/serializer"
	"github.com/motlabs/mot-ingestion/internal/storage"
	"github.com/motlabs/mot-ingestion/internal/warehouse"
	"github.com/motlabs/mot-ingestion/pkg/checksum"
)

// exitError carries the process exit code alongside the cause.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN", "WARNING":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"), cmd.Bool("dry-run"))
	if err != nil {
		return &exitError{code: models.RunInitFailure.ExitCode(), err: err}
	}

	level := cfg.LogLevel
	if flagLevel := cmd.String("log-level"); flagLevel != "" {
		level = flagLevel
	}
	setupLogging(level)
	logger := slog.Default()

	p, cleanup, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return &exitError{code: models.RunInitFailure.ExitCode(), err: err}
	}
	defer cleanup()

	result, err := p.Run(ctx)
	if err != nil {
		logger.Error("run aborted", slog.String("error", err.Error()))
		return &exitError{code: result.Status.ExitCode(), err: err}
	}
	if result.Status != models.RunSuccess {
		return &exitError{
			code: result.Status.ExitCode(),
			err:  fmt.Errorf("run finished with status %s (%d failed)", result.Status, result.Failed),
		}
	}
	return nil
}

// buildPipeline constructs every collaborator from configuration. Any
// failure here, including an unreachable registry, is an init failure:
// no file has been touched yet.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, func(), error) {
	computer, err := checksum.NewComputer(cfg.ChecksumAlgorithm)
	if err != nil {
		return nil, nil, err
	}

	pool, err := registry.Connect(ctx, cfg.Registry.DSN)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { pool.Close() }

	store := registry.NewPostgresStore(pool, cfg.Registry.Table, logger)
	if err := store.EnsureTable(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}

	var fileParser pipeline.Parser
	switch cfg.InputFormat {
	case config.InputCSV:
		var comma rune
		for _, r := range cfg.CSVDelimiter {
			comma = r
			break
		}
		fileParser = parser.NewCSVParser(comma, logger)
	default:
		fileParser = parser.NewXLSXParser(parser.SheetSelector{
			Name:  cfg.SheetName,
			Index: cfg.SheetIndex,
		}, logger)
	}

	normalizer := schema.NewNormalizer(cfg.Schema, cfg.NormalizerOptions(), logger)
	stager := serializer.NewSerializer(cfg.TempDirectory, serializer.Format(cfg.OutputFormat), cfg.Schema, logger)

	var uploader storage.Uploader
	var loader warehouse.Loader
	if !cfg.DryRun {
		s3Uploader, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Bucket: cfg.Storage.Bucket,
			Prefix: cfg.Storage.Prefix,
			Region: cfg.Storage.Region,
		}, logger)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		uploader = s3Uploader

		sfLoader, err := warehouse.NewSnowflakeLoader(warehouse.Config{
			Account:   cfg.Warehouse.Account,
			User:      cfg.Warehouse.User,
			Password:  cfg.Warehouse.Password,
			Database:  cfg.Warehouse.Database,
			Schema:    cfg.Warehouse.Schema,
			Warehouse: cfg.Warehouse.Warehouse,
			Table:     cfg.Warehouse.Table,
			Stage:     cfg.Warehouse.Stage,
		}, logger)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if err := sfLoader.EnsureTable(ctx, cfg.Schema); err != nil {
			sfLoader.Close()
			cleanup()
			return nil, nil, err
		}
		loader = sfLoader

		poolCleanup := cleanup
		cleanup = func() {
			sfLoader.Close()
			poolCleanup()
		}
	}

	p := pipeline.New(pipeline.Deps{
		Discovery:  discovery.NewDiscoverer(cfg.InputDirectory, cfg.FilePattern, cfg.IgnorePatterns, logger),
		Checksum:   computer,
		Registry:   store,
		Parser:     fileParser,
		Normalizer: normalizer,
		Stager:     stager,
		Uploader:   uploader,
		Loader:     loader,
		Schema:     cfg.Schema,
		DryRun:     cfg.DryRun,
		Logger:     logger,
	})

	return p, cleanup, nil
}

func main() {
	cmd := &cli.Command{
		Name:   "ingest",
		Usage:  "Ingest spreadsheet files into the warehouse exactly once per content version",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				Value:   "config.yaml",
				Sources: cli.EnvVars("MOT_CONFIG_FILE"),
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Run every step up to staging, skip upload, load and registry writes",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level (DEBUG, INFO, WARN, ERROR)",
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("ingestion failed", slog.String("error", err.Error()))
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(models.RunFatalError.ExitCode())
	}
}
