package storage

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// mockMetricsCollector implements MetricsCollector for testing.
type mockMetricsCollector struct {
	storageErrors      int
	lastErrorBackend   string
	lastErrorOperation string
}

func (m *mockMetricsCollector) IncStorageErrors(backend string, operation string) {
	m.storageErrors++
	m.lastErrorBackend = backend
	m.lastErrorOperation = operation
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestNewFileAdapter(t *testing.T) {
	basePath := filepath.Join(os.TempDir(), "test-file-adapter-new")
	defer os.RemoveAll(basePath)

	adapter, err := NewFileAdapter(FileConfig{BasePath: basePath}, newTestLogger(), &mockMetricsCollector{})
	if err != nil {
		t.Fatalf("NewFileAdapter() error = %v", err)
	}
	if _, err := os.Stat(basePath); err != nil {
		t.Errorf("expected base path to be created: %v", err)
	}
	if adapter.basePath != basePath {
		t.Errorf("basePath = %v, want %v", adapter.basePath, basePath)
	}
}

func TestFileAdapter_MkdirsAndExists(t *testing.T) {
	basePath := filepath.Join(os.TempDir(), "test-file-adapter-mkdirs")
	defer os.RemoveAll(basePath)

	adapter, err := NewFileAdapter(FileConfig{BasePath: basePath}, newTestLogger(), &mockMetricsCollector{})
	if err != nil {
		t.Fatalf("NewFileAdapter() error = %v", err)
	}

	if err := adapter.Mkdirs("topics/orders/0"); err != nil {
		t.Fatalf("Mkdirs() error = %v", err)
	}

	ok, err := adapter.Exists("topics/orders/0")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !ok {
		t.Error("expected directory to exist after Mkdirs")
	}

	ok, err = adapter.Exists("topics/orders/missing")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if ok {
		t.Error("expected missing directory to report not existing")
	}
}

func TestFileAdapter_CommitIsAtomicRename(t *testing.T) {
	basePath := filepath.Join(os.TempDir(), "test-file-adapter-commit")
	defer os.RemoveAll(basePath)

	adapter, err := NewFileAdapter(FileConfig{BasePath: basePath}, newTestLogger(), &mockMetricsCollector{})
	if err != nil {
		t.Fatalf("NewFileAdapter() error = %v", err)
	}

	if err := adapter.Mkdirs("topics/orders/0"); err != nil {
		t.Fatalf("Mkdirs() error = %v", err)
	}

	tempPath := "topics/orders/0/abc.tmp"
	finalPath := "topics/orders/0/orders+0+0+9.parquet"

	if err := os.WriteFile(filepath.Join(basePath, tempPath), []byte("payload"), 0644); err != nil {
		t.Fatalf("failed to seed temp file: %v", err)
	}

	if err := adapter.Commit(tempPath, finalPath); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if ok, _ := adapter.Exists(tempPath); ok {
		t.Error("expected temp path to no longer exist after commit")
	}
	ok, err := adapter.Exists(finalPath)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !ok {
		t.Error("expected final path to exist after commit")
	}
}

func TestFileAdapter_ListStatusFilters(t *testing.T) {
	basePath := filepath.Join(os.TempDir(), "test-file-adapter-liststatus")
	defer os.RemoveAll(basePath)

	adapter, err := NewFileAdapter(FileConfig{BasePath: basePath}, newTestLogger(), &mockMetricsCollector{})
	if err != nil {
		t.Fatalf("NewFileAdapter() error = %v", err)
	}
	if err := adapter.Mkdirs("topics/orders/0"); err != nil {
		t.Fatalf("Mkdirs() error = %v", err)
	}

	names := []string{"orders+0+0+9.parquet", "orders+0+10+19.parquet", "abc.tmp"}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(basePath, "topics/orders/0", n), nil, 0644); err != nil {
			t.Fatalf("failed to seed %s: %v", n, err)
		}
	}

	infos, err := adapter.ListStatus("topics/orders/0", func(name string) bool {
		return filepath.Ext(name) == ".parquet"
	})
	if err != nil {
		t.Fatalf("ListStatus() error = %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("len(infos) = %d, want 2", len(infos))
	}
}

func TestFileAdapter_DeleteAndClose(t *testing.T) {
	basePath := filepath.Join(os.TempDir(), "test-file-adapter-delete")
	defer os.RemoveAll(basePath)

	adapter, err := NewFileAdapter(FileConfig{BasePath: basePath}, newTestLogger(), &mockMetricsCollector{})
	if err != nil {
		t.Fatalf("NewFileAdapter() error = %v", err)
	}
	if err := adapter.Mkdirs("topics/orders/0"); err != nil {
		t.Fatalf("Mkdirs() error = %v", err)
	}
	path := "topics/orders/0/stray.tmp"
	if err := os.WriteFile(filepath.Join(basePath, path), nil, 0644); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	if err := adapter.Delete(path); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if ok, _ := adapter.Exists(path); ok {
		t.Error("expected deleted file to no longer exist")
	}

	if err := adapter.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}
