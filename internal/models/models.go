package models

import (
	"errors"
	"fmt"
	"time"
)

// FileCandidate is a discovered input file eligible for processing in the
// current run.
type FileCandidate struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// RawRow maps column headers to raw cell values as read from the source
// file. A column that was absent from the source row has no key.
type RawRow map[string]string

// CanonicalRow maps canonical field names to typed values. Nil means NULL.
type CanonicalRow map[string]any

// Registry entry statuses.
const (
	EntryStatusSuccess = "SUCCESS"
	EntryStatusFailed  = "FAILED"
)

// RegistryEntry records one file-processing attempt. Entries are
// append-only: every attempt inserts a new row, nothing is updated in
// place.
type RegistryEntry struct {
	FileName     string
	Checksum     string
	ProcessedAt  time.Time
	Status       string
	ErrorMessage string
	RowCount     int64
}

// Per-file outcome statuses.
const (
	OutcomeProcessed = "PROCESSED"
	OutcomeSkipped   = "SKIPPED"
	OutcomeFailed    = "FAILED"
)

// FileOutcome is the per-file result of one run.
type FileOutcome struct {
	FileName string
	Status   string
	RowCount int64
	Err      error
}

// RunStatus is the aggregate result of a batch run.
type RunStatus int

const (
	RunSuccess RunStatus = iota
	RunPartialFailure
	RunInitFailure
	RunFatalError
)

func (s RunStatus) String() string {
	switch s {
	case RunSuccess:
		return "SUCCESS"
	case RunPartialFailure:
		return "PARTIAL_FAILURE"
	case RunInitFailure:
		return "INIT_FAILURE"
	case RunFatalError:
		return "FATAL_ERROR"
	default:
		return fmt.Sprintf("RunStatus(%d)", int(s))
	}
}

// ExitCode maps a run status to the process exit code.
func (s RunStatus) ExitCode() int {
	return int(s)
}

// ErrRegistryUnavailable marks registry connectivity failures. The
// orchestrator cannot decide what to (re)process without the registry, so
// this aborts the whole run instead of failing a single file.
var ErrRegistryUnavailable = errors.New("registry unavailable")

// Pipeline stages at which a per-file failure can occur.
const (
	StageChecksum  = "checksum"
	StageParse     = "parse"
	StageNormalize = "normalize"
	StageSerialize = "serialize"
	StageUpload    = "upload"
	StageLoad      = "load"
)

// FileError is a per-file failure caught at the file boundary. It carries
// the stage that failed so outcomes and registry entries stay attributable.
type FileError struct {
	FileName string
	Stage    string
	Err      error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.FileName, e.Stage, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
