package verify

import (
	"fmt"

	"github.com/bootsum/bootsum/pkg/md5"
)

// Outcome classifies one manifest entry after verification.
type Outcome int

const (
	Verified Outcome = iota
	HashMismatch
	FileUnreadable
	PathEncodingFailed
)

func (o Outcome) String() string {
	switch o {
	case Verified:
		return "verified"
	case HashMismatch:
		return "hash_mismatch"
	case FileUnreadable:
		return "file_unreadable"
	case PathEncodingFailed:
		return "path_encoding_failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Status is the overall result of a run.
type Status int

const (
	Success Status = iota
	IntegrityFailure
	FatalError
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case IntegrityFailure:
		return "integrity_failure"
	case FatalError:
		return "fatal_error"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MismatchError reports a digest that did not match its manifest entry.
type MismatchError struct {
	Path     string
	Expected md5.Digest
	Computed md5.Digest
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf(
		"checksum mismatch for %s: expected %s, computed %s",
		e.Path, e.Expected, e.Computed,
	)
}

// Failure records one entry that did not verify. Path is in display
// form: transliterated when the original could not be encoded.
type Failure struct {
	Ordinal int // 1-based position in the manifest
	Path    string
	Outcome Outcome
	Err     error
}

type RunResult struct {
	Total     int
	Processed int
	Failures  []Failure
	Status    Status
	Cancelled bool

	// Err is the fatal cause when Status is FatalError.
	Err error
}

func (r RunResult) Failed() int {
	return len(r.Failures)
}

func (r RunResult) Summary() string {
	plural := "s"
	if r.Total == 1 {
		plural = ""
	}
	return fmt.Sprintf(
		"%d/%d file%s processed [%d failed]",
		r.Processed, r.Total, plural, len(r.Failures),
	)
}

// Fatal wraps a setup error (unusable manifest or volume) as a run
// result. No entries were processed.
func Fatal(err error) RunResult {
	return RunResult{Status: FatalError, Err: err}
}
