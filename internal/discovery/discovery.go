package discovery

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/motlabs/mot-ingestion/internal/models"
)

// DefaultIgnorePatterns covers editor lock files and partially written
// temp files.
var DefaultIgnorePatterns = []string{"~$*", ".~*", "*.tmp", "*.temp"}

// Discoverer walks an input directory tree and yields candidate files
// matching the include pattern, skipping temporary/partial files.
type Discoverer struct {
	rootDir        string
	pattern        string
	ignorePatterns []string
	logger         *slog.Logger
}

// NewDiscoverer builds a Discoverer. Pattern and ignore patterns are
// matched against base names only.
func NewDiscoverer(rootDir, pattern string, ignorePatterns []string, logger *slog.Logger) *Discoverer {
	if pattern == "" {
		pattern = "*.xlsx"
	}
	if ignorePatterns == nil {
		ignorePatterns = DefaultIgnorePatterns
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{
		rootDir:        rootDir,
		pattern:        pattern,
		ignorePatterns: ignorePatterns,
		logger:         logger,
	}
}

// Discover walks the root directory and returns matching candidates sorted
// by path. A walk error is run-fatal for the caller: without a complete
// candidate list the batch cannot be safely aggregated.
func (d *Discoverer) Discover() ([]models.FileCandidate, error) {
	var candidates []models.FileCandidate

	err := filepath.WalkDir(d.rootDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}

		name := entry.Name()
		if matched, _ := filepath.Match(d.pattern, name); !matched {
			return nil
		}
		if d.shouldIgnore(name) {
			d.logger.Debug("ignoring file", slog.String("path", path))
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		candidates = append(candidates, models.FileCandidate{
			Path:    path,
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory %s: %w", d.rootDir, err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Path < candidates[j].Path
	})

	d.logger.Info("discovered candidate files",
		slog.String("root", d.rootDir),
		slog.Int("count", len(candidates)))
	return candidates, nil
}

func (d *Discoverer) shouldIgnore(name string) bool {
	for _, pattern := range d.ignorePatterns {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}
