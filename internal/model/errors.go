package model

import "github.com/rotisserie/eris"

// Sentinel errors for the audit pipeline. Callers match with eris.Is and
// wrap with eris.Wrap to add context.
var (
	// ErrValidation marks malformed input, rejected before any side effect.
	ErrValidation = eris.New("validation failed")

	// ErrNotFound marks a lookup for an unknown lead or snapshot.
	ErrNotFound = eris.New("not found")

	// ErrLockConflict marks an audit already in flight for the same lead.
	ErrLockConflict = eris.New("audit already in progress")

	// ErrCaptureFailed marks a network, HTTP or parse failure during
	// content capture.
	ErrCaptureFailed = eris.New("capture failed")

	// ErrCaptureTimeout is the timeout sub-case of ErrCaptureFailed.
	// Wrapping keeps eris.Is(err, ErrCaptureFailed) true for timeouts.
	ErrCaptureTimeout = eris.Wrap(ErrCaptureFailed, "timeout exceeded")

	// ErrScoring marks a malformed response from a scoring collaborator.
	ErrScoring = eris.New("scoring failed")

	// ErrMissingPrerequisite marks a report request whose required audit
	// generation does not exist.
	ErrMissingPrerequisite = eris.New("missing prerequisite audit")

	// ErrPersistence marks a storage layer failure.
	ErrPersistence = eris.New("persistence failed")
)
