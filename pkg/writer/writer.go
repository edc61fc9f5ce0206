// Package writer defines the per-record codec abstraction the partition
// state machine writes through.
//
// A RecordWriter is opaque to the state machine: it owns one open temp
// artifact and serializes records to it one at a time, in arrival order,
// until closed. The on-disk format is chosen by a Provider, selected once
// per process via internal/recordwriter's registry.
package writer

import (
	"time"

	"github.com/jittakal/kafeventstore/pkg/event"
)

// RecordWriter serializes records to a single open temp artifact.
type RecordWriter interface {
	// Write appends one record. Must be all-or-nothing: a failure here
	// must not leave a partially-written record visible to a reader of
	// the eventually-closed file.
	Write(ts time.Time, rec event.Record) error

	// Close flushes and closes the underlying temp artifact.
	Close() error
}

// Provider constructs a RecordWriter for a fresh temp artifact.
type Provider interface {
	// NewWriter opens tempPath for writing and returns a RecordWriter
	// positioned to accept records starting with first (first is also
	// written by the first Write call, it is passed in so formats that
	// need a value to infer a schema can do so before writing).
	NewWriter(tempPath string, first event.Record) (RecordWriter, error)

	// FileExtension returns the extension committed/temp files produced
	// by this provider should carry, including the leading dot.
	FileExtension() string
}
