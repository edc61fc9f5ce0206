// Package storage defines interfaces for the distributed file store the
// connector writes committed artifacts to.
//
// Implementations provide existence checks, directory listing, atomic
// rename-based commit, deletion, and a per-partition write-ahead log. See
// internal/storage for the file, S3, GCS, and Azure Blob adapters.
package storage

import (
	"errors"
	"fmt"
	"time"
)

// ErrFenced is returned (wrapped) by OpenWAL when another writer already
// holds the exclusive lease for the requested partition.
var ErrFenced = errors.New("partition is held by another writer")

// Fenced wraps ErrFenced with the contended lease path.
func Fenced(path string) error {
	return fmt.Errorf("%s: %w", path, ErrFenced)
}

// FileInfo describes a single entry returned by ListStatus.
type FileInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Filter decides whether a directory entry should be included in a listing.
type Filter func(name string) bool

// WAL is a per-partition append-only log of (tempName, finalName) rename
// intents, used to make commit idempotent across crashes.
type WAL interface {
	// Append durably records the intent to promote tempName to finalName.
	Append(tempName, finalName string) error

	// Apply replays all entries in order, committing or cleaning up each.
	// Idempotent: applying twice yields the same set of committed files.
	Apply() error

	// Truncate empties the log. Must be durable before it returns.
	Truncate() error

	// Close releases the exclusive writer lease.
	Close() error

	// LogFile returns the WAL's path, for diagnostics.
	LogFile() string
}

// Adapter is the narrow interface over a distributed file store that the
// partition state machine and WAL are built on.
type Adapter interface {
	// Exists reports whether path exists.
	Exists(path string) (bool, error)

	// Mkdirs creates path and any missing parents.
	Mkdirs(path string) error

	// ListStatus lists entries directly under path, filtered by filter.
	// A nil filter returns all entries.
	ListStatus(path string, filter Filter) ([]FileInfo, error)

	// Commit atomically renames tempName to finalName. Must be a no-op
	// (rename-if-missing) if finalName already exists, and must leave
	// the store in a state where, after a crash, either tempName exists
	// and finalName does not, or finalName exists.
	Commit(tempName, finalName string) error

	// Delete removes path. Deleting a path that does not exist is not
	// an error.
	Delete(path string) error

	// OpenWAL opens (creating if necessary) the WAL for the given
	// partition, fencing any other writer for the same partition.
	OpenWAL(topic string, partition int32) (WAL, error)

	// Close releases adapter-wide resources (clients, connections).
	Close() error
}
