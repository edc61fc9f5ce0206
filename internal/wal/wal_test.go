package wal

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jittakal/kafeventstore/pkg/storage"
)

type memBackend struct {
	lines    [][]byte
	released bool
}

func (b *memBackend) ReadAll() ([]byte, error) {
	if len(b.lines) == 0 {
		return nil, nil
	}
	return bytes.Join(b.lines, []byte("\n")), nil
}

func (b *memBackend) AppendLine(line []byte) error {
	b.lines = append(b.lines, line)
	return nil
}

func (b *memBackend) Truncate() error {
	b.lines = nil
	return nil
}

func (b *memBackend) Release() error {
	b.released = true
	return nil
}

func (b *memBackend) Path() string {
	return "mem://wal"
}

type memAdapter struct {
	objects map[string]bool
	commits []string
}

func newMemAdapter() *memAdapter {
	return &memAdapter{objects: make(map[string]bool)}
}

func (a *memAdapter) Exists(path string) (bool, error) {
	return a.objects[path], nil
}

func (a *memAdapter) Mkdirs(path string) error { return nil }

func (a *memAdapter) ListStatus(path string, filter storage.Filter) ([]storage.FileInfo, error) {
	return nil, nil
}

func (a *memAdapter) Commit(tempName, finalName string) error {
	a.commits = append(a.commits, tempName+"->"+finalName)
	delete(a.objects, tempName)
	a.objects[finalName] = true
	return nil
}

func (a *memAdapter) Delete(path string) error {
	delete(a.objects, path)
	return nil
}

func (a *memAdapter) OpenWAL(topic string, partition int32) (storage.WAL, error) {
	return nil, errors.New("not supported in test adapter")
}

func (a *memAdapter) Close() error { return nil }

func TestLog_AppendAndApply(t *testing.T) {
	backend := &memBackend{}
	adapter := newMemAdapter()
	adapter.objects["a.tmp"] = true

	log := New(backend, adapter)

	if err := log.Append("a.tmp", "a.parquet"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := log.Apply(); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if adapter.objects["a.tmp"] {
		t.Error("expected temp object to be gone after apply")
	}
	if !adapter.objects["a.parquet"] {
		t.Error("expected final object to exist after apply")
	}
	if len(adapter.commits) != 1 {
		t.Errorf("len(commits) = %d, want 1", len(adapter.commits))
	}
}

func TestLog_ApplyIsIdempotent(t *testing.T) {
	backend := &memBackend{}
	adapter := newMemAdapter()
	adapter.objects["a.tmp"] = true

	log := New(backend, adapter)
	if err := log.Append("a.tmp", "a.parquet"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if err := log.Apply(); err != nil {
		t.Fatalf("first Apply() error = %v", err)
	}
	if err := log.Apply(); err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	if len(adapter.commits) != 1 {
		t.Errorf("len(commits) = %d, want 1 (second apply should skip missing temp)", len(adapter.commits))
	}
}

func TestLog_ApplyEmptyLog(t *testing.T) {
	backend := &memBackend{}
	adapter := newMemAdapter()
	log := New(backend, adapter)

	if err := log.Apply(); err != nil {
		t.Fatalf("Apply() on empty log error = %v", err)
	}
}

func TestLog_TruncateAndClose(t *testing.T) {
	backend := &memBackend{}
	adapter := newMemAdapter()
	log := New(backend, adapter)

	if err := log.Append("a.tmp", "a.parquet"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := log.Truncate(); err != nil {
		t.Fatalf("Truncate() error = %v", err)
	}
	if len(backend.lines) != 0 {
		t.Errorf("expected no lines after truncate, got %d", len(backend.lines))
	}

	if err := log.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !backend.released {
		t.Error("expected Close() to release the backend's lease")
	}
}

func TestLog_LogFile(t *testing.T) {
	backend := &memBackend{}
	log := New(backend, newMemAdapter())
	if log.LogFile() != "mem://wal" {
		t.Errorf("LogFile() = %q, want mem://wal", log.LogFile())
	}
}

func TestLog_ApplyMalformedLine(t *testing.T) {
	backend := &memBackend{lines: [][]byte{[]byte("not json")}}
	log := New(backend, newMemAdapter())

	if err := log.Apply(); err == nil {
		t.Fatal("expected error applying a malformed wal line")
	}
}
