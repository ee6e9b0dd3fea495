package agentdb

import (
	"errors"

	"github.com/xkilldash9x/agentdb/internal/vectorindex"
)

var (
	// ErrCapacityExceeded surfaces from Store when the vector index is full.
	// The corpus is unchanged; callers must Reindex before storing more.
	ErrCapacityExceeded = vectorindex.ErrCapacityExceeded

	// ErrDimensionMismatch is returned by Load when the persisted
	// dimensionality disagrees with the runtime configuration. It is fatal
	// to that load call only; vectors are never truncated or padded.
	ErrDimensionMismatch = errors.New("persisted dimensionality does not match runtime configuration")

	// ErrInconsistentPersistence is returned by Load when one on-disk
	// artifact exists without the other, or when the two disagree. Distinct
	// from the both-missing case, which is simply a fresh database.
	ErrInconsistentPersistence = errors.New("persisted artifacts are inconsistent")
)

// ErrorCode is a string type used for structured failure reporting by
// collaborators recording outcomes into the store. Using a custom type keeps
// free-form strings out of the metadata convention.
type ErrorCode string

const (
	// -- Collaborator Execution Errors --
	ErrCodeElementNotFound ErrorCode = "ELEMENT_NOT_FOUND"
	ErrCodeTimeout         ErrorCode = "TIMEOUT"
	ErrCodeNavigation      ErrorCode = "NAVIGATION_ERROR"
	ErrCodeExecution       ErrorCode = "EXECUTION_FAILURE"

	// -- Ingest Errors --
	ErrCodeMalformedEntry ErrorCode = "MALFORMED_ENTRY"
)

// MetadataKeyErrorCode is the conventional metadata key under which
// collaborators report an ErrorCode for failed actions.
const MetadataKeyErrorCode = "errorCode"
