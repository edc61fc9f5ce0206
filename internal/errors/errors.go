// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"

	"github.com/jittakal/kafeventstore/pkg/event"
)

// Sentinel errors for common conditions.
var (
	ErrBufferFull      = errors.New("buffer is full")
	ErrConsumerClosed  = errors.New("consumer is closed")
	ErrInvalidEvent    = errors.New("invalid event")
	ErrOffsetNotFound  = errors.New("offset not found")
	ErrPartitionClosed = errors.New("partition processor is closed")
	ErrWriterClosed    = errors.New("storage writer is closed")
	ErrConnectionLost  = errors.New("connection lost")
)

// ProcessingError represents an error during event processing.
type ProcessingError struct {
	PartitionID event.PartitionID
	Offset      int64
	EventID     string
	Err         error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing error: partition=%s offset=%d event_id=%s: %v",
		e.PartitionID, e.Offset, e.EventID, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// ValidationError represents an event validation failure.
type ValidationError struct {
	EventID string
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: event_id=%s field=%s: %s",
		e.EventID, e.Field, e.Reason)
}

// StorageError represents a storage operation failure.
type StorageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: operation=%s path=%s: %v",
		e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// CommitError represents an offset commit failure.
type CommitError struct {
	PartitionID event.PartitionID
	Offset      int64
	Err         error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit error: partition=%s offset=%d: %v",
		e.PartitionID, e.Offset, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
// It first checks if the error implements the Retryable interface,
// then falls back to checking specific error types and sentinel errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Check if error implements Retryable interface
	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	// Check specific error types
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return storageErr.IsRetryable()
	}

	// Check sentinel errors
	if errors.Is(err, ErrConnectionLost) {
		return true
	}

	return false
}

// IsRetryable determines if a StorageError is retryable. Any failure
// reaching the store (network, permission, missing path) is recovered by
// backoff and retry from the current partition state, per the core's
// propagation policy.
func (e *StorageError) IsRetryable() bool {
	return true
}

// IsRetryable determines if a ProcessingError is retryable.
func (e *ProcessingError) IsRetryable() bool {
	// Check if the underlying error is retryable
	return IsRetryable(e.Err)
}

// WALError represents a failure reading, appending, or truncating a
// partition's write-ahead log. Handled like StorageError: retried with
// backoff from the current state. Fencing is not a WALError — see
// CoordinationError.
type WALError struct {
	PartitionID event.PartitionID
	Operation   string
	Err         error
}

func (e *WALError) Error() string {
	return fmt.Sprintf("wal error: partition=%s operation=%s: %v", e.PartitionID, e.Operation, e.Err)
}

func (e *WALError) Unwrap() error {
	return e.Err
}

// IsRetryable is always true: the caller retries from the current state.
func (e *WALError) IsRetryable() bool {
	return true
}

// RecordWriterError represents a codec-level failure while serializing a
// record to the open temp artifact. Treated like StorageError; the open
// temp artifact is abandoned on the next recovery pass.
type RecordWriterError struct {
	PartitionID event.PartitionID
	TempPath    string
	Err         error
}

func (e *RecordWriterError) Error() string {
	return fmt.Sprintf("record writer error: partition=%s temp=%s: %v",
		e.PartitionID, e.TempPath, e.Err)
}

func (e *RecordWriterError) Unwrap() error {
	return e.Err
}

// IsRetryable is always true: the caller retries from the current state,
// discarding the temp artifact on the next recovery.
func (e *RecordWriterError) IsRetryable() bool {
	return true
}

// IllegalWorkerStateError signals that the upstream framework reports the
// worker in a state the core did not expect (e.g. pausing a partition it
// does not own). Non-retryable: it is surfaced to the caller.
type IllegalWorkerStateError struct {
	PartitionID event.PartitionID
	Reason      string
}

func (e *IllegalWorkerStateError) Error() string {
	return fmt.Sprintf("illegal worker state: partition=%s: %s", e.PartitionID, e.Reason)
}

func (e *IllegalWorkerStateError) IsRetryable() bool {
	return false
}

// CoordinationError signals that exclusive access to a partition's WAL
// could not be acquired, implying another writer holds it.
type CoordinationError struct {
	PartitionID event.PartitionID
	Err         error
}

func (e *CoordinationError) Error() string {
	return fmt.Sprintf("coordination error: partition=%s: %v", e.PartitionID, e.Err)
}

func (e *CoordinationError) Unwrap() error {
	return e.Err
}

func (e *CoordinationError) IsRetryable() bool {
	return false
}

// ConfigurationError surfaces at startup only, never from the core's hot
// path.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: field=%s: %s", e.Field, e.Reason)
}
