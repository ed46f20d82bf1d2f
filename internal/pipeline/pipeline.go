package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/motlabs/mot-ingestion/internal/models"
	"github.com/motlabs/mot-ingestion/internal/registry"
	"github.com/motlabs/mot-ingestion/internal/schema"
	"github.com/motlabs/mot-ingestion/internal/serializer"
	"github.com/motlabs/mot-ingestion/internal/storage"
	"github.com/motlabs/mot-ingestion/internal/warehouse"
)

// Discovery enumerates candidate files for one run.
type Discovery interface {
	Discover() ([]models.FileCandidate, error)
}

// Checksummer computes a file's content checksum.
type Checksummer interface {
	Compute(filePath string) (string, error)
}

// Parser decodes a file into raw rows.
type Parser interface {
	Parse(filePath string) ([]models.RawRow, error)
}

// Normalizer maps raw rows onto the canonical schema.
type Normalizer interface {
	Normalize(rows []models.RawRow, sourceFile, checksum string, ingestTS time.Time) ([]models.CanonicalRow, schema.Stats, error)
}

// Stager serializes canonical rows to a local staging artifact.
type Stager interface {
	Serialize(rows []models.CanonicalRow, fileStem string) (string, error)
	Format() serializer.Format
}

// RunResult aggregates the independent per-file outcomes of one run.
type RunResult struct {
	Outcomes  []models.FileOutcome
	Processed int
	Skipped   int
	Failed    int
	Status    models.RunStatus
}

// Pipeline drives discovery, change detection, normalization, staging,
// loading and registry recording for one batch run. Files are processed
// sequentially; a failure in one file never aborts the rest of the batch.
type Pipeline struct {
	discovery  Discovery
	checksum   Checksummer
	registry   registry.Store
	parser     Parser
	normalizer Normalizer
	stager     Stager
	uploader   storage.Uploader
	loader     warehouse.Loader
	schema     schema.Schema
	dryRun     bool
	logger     *slog.Logger
	now        func() time.Time
}

// Deps bundles the collaborators a Pipeline is built from.
type Deps struct {
	Discovery  Discovery
	Checksum   Checksummer
	Registry   registry.Store
	Parser     Parser
	Normalizer Normalizer
	Stager     Stager
	Uploader   storage.Uploader
	Loader     warehouse.Loader
	Schema     schema.Schema
	DryRun     bool
	Logger     *slog.Logger
}

func New(deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		discovery:  deps.Discovery,
		checksum:   deps.Checksum,
		registry:   deps.Registry,
		parser:     deps.Parser,
		normalizer: deps.Normalizer,
		stager:     deps.Stager,
		uploader:   deps.Uploader,
		loader:     deps.Loader,
		schema:     deps.Schema,
		dryRun:     deps.DryRun,
		logger:     logger,
	}
}

// Run executes one batch. The returned error is non-nil only for fatal
// conditions (discovery failure, registry unavailability); per-file
// failures are reported through the outcomes and the PARTIAL_FAILURE
// status.
func (p *Pipeline) Run(ctx context.Context) (RunResult, error) {
	var result RunResult

	candidates, err := p.discovery.Discover()
	if err != nil {
		result.Status = models.RunFatalError
		return result, fmt.Errorf("discovery failed: %w", err)
	}
	if len(candidates) == 0 {
		p.logger.Warn("no candidate files discovered")
		result.Status = models.RunSuccess
		return result, nil
	}

	for _, candidate := range candidates {
		outcome, err := p.processFile(ctx, candidate)
		if err != nil {
			// Registry unavailability: the remaining batch cannot be
			// safely decided, abort the run.
			result.Status = models.RunFatalError
			return result, err
		}

		result.Outcomes = append(result.Outcomes, outcome)
		switch outcome.Status {
		case models.OutcomeProcessed:
			result.Processed++
		case models.OutcomeSkipped:
			result.Skipped++
		case models.OutcomeFailed:
			result.Failed++
			p.logger.Error("file failed",
				slog.String("file", outcome.FileName),
				slog.String("error", outcome.Err.Error()))
		}
	}

	if result.Failed > 0 {
		result.Status = models.RunPartialFailure
	} else {
		result.Status = models.RunSuccess
	}

	p.logger.Info("run complete",
		slog.Int("processed", result.Processed),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
		slog.String("status", result.Status.String()))
	return result, nil
}

// processFile runs one candidate through the full per-file state machine.
// The returned error is non-nil only when the registry became unavailable;
// every other failure is folded into the outcome.
func (p *Pipeline) processFile(ctx context.Context, candidate models.FileCandidate) (models.FileOutcome, error) {
	sum, err := p.checksum.Compute(candidate.Path)
	if err != nil {
		// No checksum means no registry entry to write: the attempt
		// never reached a decidable state.
		return models.FileOutcome{
			FileName: candidate.Name,
			Status:   models.OutcomeFailed,
			Err:      &models.FileError{FileName: candidate.Name, Stage: models.StageChecksum, Err: err},
		}, nil
	}

	needs, err := p.registry.NeedsProcessing(ctx, candidate.Name, sum)
	if err != nil {
		return models.FileOutcome{}, err
	}
	if !needs {
		return models.FileOutcome{FileName: candidate.Name, Status: models.OutcomeSkipped}, nil
	}

	// One instant per attempt: the registry entry and every row's
	// ingest_ts refer to the same moment.
	ingestTS := p.nowUTC()

	rowCount, fileErr := p.runStages(ctx, candidate, sum, ingestTS)
	if fileErr != nil {
		if !p.dryRun {
			entry := models.RegistryEntry{
				FileName:     candidate.Name,
				Checksum:     sum,
				ProcessedAt:  ingestTS,
				Status:       models.EntryStatusFailed,
				ErrorMessage: fileErr.Error(),
			}
			if rerr := p.registry.Record(ctx, entry); rerr != nil {
				return models.FileOutcome{}, rerr
			}
		}
		return models.FileOutcome{
			FileName: candidate.Name,
			Status:   models.OutcomeFailed,
			Err:      fileErr,
		}, nil
	}

	if !p.dryRun {
		entry := models.RegistryEntry{
			FileName:    candidate.Name,
			Checksum:    sum,
			ProcessedAt: ingestTS,
			Status:      models.EntryStatusSuccess,
			RowCount:    rowCount,
		}
		if rerr := p.registry.Record(ctx, entry); rerr != nil {
			return models.FileOutcome{}, rerr
		}
	}

	return models.FileOutcome{
		FileName: candidate.Name,
		Status:   models.OutcomeProcessed,
		RowCount: rowCount,
	}, nil
}

// runStages executes parse → normalize → stage → upload → load for one
// file. Under dry run the pipeline stops after staging. A panic from a
// collaborator is converted to a per-file failure at this boundary.
func (p *Pipeline) runStages(ctx context.Context, candidate models.FileCandidate, sum string, ingestTS time.Time) (rowCount int64, fileErr error) {
	stage := models.StageParse
	defer func() {
		if r := recover(); r != nil {
			fileErr = &models.FileError{
				FileName: candidate.Name,
				Stage:    stage,
				Err:      fmt.Errorf("panic: %v", r),
			}
		}
	}()

	rawRows, err := p.parser.Parse(candidate.Path)
	if err != nil {
		return 0, &models.FileError{FileName: candidate.Name, Stage: models.StageParse, Err: err}
	}

	stage = models.StageNormalize
	rows, stats, err := p.normalizer.Normalize(rawRows, candidate.Name, sum, ingestTS)
	if err != nil {
		return 0, &models.FileError{FileName: candidate.Name, Stage: models.StageNormalize, Err: err}
	}
	if stats.CastErrors > 0 || stats.ExcludedRows > 0 {
		p.logger.Warn("normalization issues",
			slog.String("file", candidate.Name),
			slog.Int("cast_errors", stats.CastErrors),
			slog.Int("excluded_rows", stats.ExcludedRows))
	}

	stage = models.StageSerialize
	artifactPath, err := p.stager.Serialize(rows, fileStem(candidate.Name))
	if err != nil {
		return 0, &models.FileError{FileName: candidate.Name, Stage: models.StageSerialize, Err: err}
	}

	if p.dryRun {
		p.logger.Info("dry run: skipping upload, load and registry write",
			slog.String("file", candidate.Name),
			slog.String("artifact", artifactPath))
		return int64(len(rows)), nil
	}

	stage = models.StageUpload
	uri, err := p.uploader.Upload(ctx, artifactPath)
	if err != nil {
		return 0, &models.FileError{FileName: candidate.Name, Stage: models.StageUpload, Err: err}
	}

	stage = models.StageLoad
	loaded, err := p.loader.Load(ctx, uri, p.schema, p.stager.Format())
	if err != nil {
		return 0, &models.FileError{FileName: candidate.Name, Stage: models.StageLoad, Err: err}
	}

	return loaded, nil
}

func (p *Pipeline) nowUTC() time.Time {
	if p.now != nil {
		return p.now().UTC()
	}
	return time.Now().UTC()
}

func fileStem(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}
