// Package wal implements a generic write-ahead log of rename intents on
// top of a small per-backend interface, so every storage.Adapter shares
// one Apply/Truncate/Append implementation.
//
// The log is a newline-delimited JSON file: one entry per pending
// (tempName, finalName) rename. Apply walks the entries in order and,
// for each one, commits tempName to finalName through the owning
// adapter if tempName still exists, or does nothing if finalName is
// already in place (a prior, crashed Apply got there first). Applying
// twice is safe.
package wal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jittakal/kafeventstore/pkg/storage"
)

// Backend is the minimal raw I/O a storage adapter must provide to back
// a Log: reading and appending lines to the log object itself, plus an
// exclusive lease so two tasks never apply the same partition's log at
// once.
type Backend interface {
	// ReadAll returns the full current contents of the log, or nil if it
	// does not exist yet.
	ReadAll() ([]byte, error)

	// AppendLine durably appends line (without a trailing newline) to the
	// log.
	AppendLine(line []byte) error

	// Truncate empties the log, durably.
	Truncate() error

	// Release gives up the exclusive lease this Backend was opened with.
	Release() error

	// Path returns the log's location, for diagnostics.
	Path() string
}

type entry struct {
	Temp  string `json:"temp"`
	Final string `json:"final"`
}

// Log is a storage.WAL backed by a Backend and the storage.Adapter that
// owns the committed namespace.
type Log struct {
	backend Backend
	adapter storage.Adapter
}

// New wraps backend as a storage.WAL, committing through adapter.
func New(backend Backend, adapter storage.Adapter) *Log {
	return &Log{backend: backend, adapter: adapter}
}

var _ storage.WAL = (*Log)(nil)

// Append records the intent to promote tempName to finalName.
func (l *Log) Append(tempName, finalName string) error {
	line, err := json.Marshal(entry{Temp: tempName, Final: finalName})
	if err != nil {
		return fmt.Errorf("wal: marshal entry: %w", err)
	}
	return l.backend.AppendLine(line)
}

// Apply replays every pending entry, committing tempName to finalName
// through the adapter. A missing tempName is treated as "already
// committed or never created" and is not an error, since Apply must be
// idempotent across crashes.
func (l *Log) Apply() error {
	entries, err := l.readEntries()
	if err != nil {
		return fmt.Errorf("wal: read entries: %w", err)
	}

	for _, e := range entries {
		exists, err := l.adapter.Exists(e.Temp)
		if err != nil {
			return fmt.Errorf("wal: check temp %s: %w", e.Temp, err)
		}
		if !exists {
			continue
		}
		if err := l.adapter.Commit(e.Temp, e.Final); err != nil {
			return fmt.Errorf("wal: commit %s -> %s: %w", e.Temp, e.Final, err)
		}
	}
	return nil
}

// Truncate empties the log. Callers must only call this after a
// successful Apply.
func (l *Log) Truncate() error {
	return l.backend.Truncate()
}

// Close releases the exclusive writer lease.
func (l *Log) Close() error {
	return l.backend.Release()
}

// LogFile returns the WAL's path, for diagnostics.
func (l *Log) LogFile() string {
	return l.backend.Path()
}

func (l *Log) readEntries() ([]entry, error) {
	raw, err := l.backend.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var entries []entry
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("malformed wal line %q: %w", line, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
