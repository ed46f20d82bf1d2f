package registry

import (
	"context"

	"github.com/motlabs/mot-ingestion/internal/models"
)

// Store is the processing registry: the durable, append-only log of
// per-file attempts that change detection is decided against.
type Store interface {
	// NeedsProcessing reports whether the file must be (re)processed:
	// true when no SUCCESS entry exists for the name, or when the latest
	// SUCCESS entry carries a different checksum. FAILED entries never
	// suppress reprocessing.
	NeedsProcessing(ctx context.Context, fileName, checksum string) (bool, error)

	// Record appends one attempt entry. It is called exactly once per
	// attempt, after the terminal outcome is known.
	Record(ctx context.Context, entry models.RegistryEntry) error
}

// decide applies the change-detection rule to the stored latest-SUCCESS
// checksum. A nil stored value means the file has never succeeded.
func decide(stored *string, checksum string) bool {
	if stored == nil {
		return true
	}
	return *stored != checksum
}
