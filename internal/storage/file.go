// Package storage implements the distributed file store adapters the
// partition state machine and WAL are built on: local filesystem, S3,
// GCS, and Azure Blob.
package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jittakal/kafeventstore/internal/wal"
	"github.com/jittakal/kafeventstore/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Adapter = (*FileAdapter)(nil)

// MetricsCollector defines metrics operations for storage.
type MetricsCollector interface {
	IncStorageErrors(backend string, operation string)
}

// FileConfig contains local filesystem configuration.
type FileConfig struct {
	BasePath string
}

// FileAdapter implements storage.Adapter over a local (or network-mounted
// POSIX) filesystem. Commit is a genuinely atomic os.Rename.
type FileAdapter struct {
	basePath string
	logger   *slog.Logger
	metrics  MetricsCollector
}

// NewFileAdapter creates a local filesystem adapter rooted at cfg.BasePath.
func NewFileAdapter(cfg FileConfig, logger *slog.Logger, metrics MetricsCollector) (*FileAdapter, error) {
	if err := os.MkdirAll(cfg.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}
	logger.Info("filesystem adapter created", "base_path", cfg.BasePath)
	return &FileAdapter{basePath: cfg.BasePath, logger: logger, metrics: metrics}, nil
}

func (a *FileAdapter) resolve(path string) string {
	clean := strings.TrimPrefix(path, "file://")
	if filepath.IsAbs(clean) {
		return clean
	}
	return filepath.Join(a.basePath, clean)
}

// Exists reports whether path exists.
func (a *FileAdapter) Exists(path string) (bool, error) {
	_, err := os.Stat(a.resolve(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	a.countErr("exists")
	return false, err
}

// Mkdirs creates path and any missing parents.
func (a *FileAdapter) Mkdirs(path string) error {
	if err := os.MkdirAll(a.resolve(path), 0755); err != nil {
		a.countErr("mkdir")
		return err
	}
	return nil
}

// ListStatus lists entries directly under path, filtered by filter.
func (a *FileAdapter) ListStatus(path string, filter storage.Filter) ([]storage.FileInfo, error) {
	entries, err := os.ReadDir(a.resolve(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		a.countErr("list")
		return nil, err
	}

	var out []storage.FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filter != nil && !filter(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			a.countErr("list")
			return nil, err
		}
		out = append(out, storage.FileInfo{
			Name:    e.Name(),
			Path:    filepath.Join(path, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return out, nil
}

// Commit atomically renames tempName to finalName. If finalName already
// exists, tempName is removed instead: either outcome leaves a single
// committed file in place.
func (a *FileAdapter) Commit(tempName, finalName string) error {
	dst := a.resolve(finalName)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		a.countErr("commit")
		return err
	}
	if _, err := os.Stat(dst); err == nil {
		return a.Delete(tempName)
	}
	if err := os.Rename(a.resolve(tempName), dst); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		a.countErr("commit")
		return err
	}
	return nil
}

// Delete removes path. Deleting a path that does not exist is not an
// error.
func (a *FileAdapter) Delete(path string) error {
	if err := os.Remove(a.resolve(path)); err != nil && !os.IsNotExist(err) {
		a.countErr("delete")
		return err
	}
	return nil
}

// OpenWAL opens the per-partition write-ahead log, taking an exclusive
// lock file so only one task at a time holds the partition.
func (a *FileAdapter) OpenWAL(topic string, partition int32) (storage.WAL, error) {
	dir := filepath.Join(a.basePath, "topics", topic, fmt.Sprintf("%d", partition))
	if err := os.MkdirAll(dir, 0755); err != nil {
		a.countErr("wal_open")
		return nil, err
	}

	logPath := filepath.Join(dir, ".wal.log")
	lockPath := filepath.Join(dir, ".wal.lock")

	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, storage.Fenced(lockPath)
		}
		a.countErr("wal_open")
		return nil, err
	}

	backend := &fileWALBackend{logPath: logPath, lockPath: lockPath, lockFile: lockFile}
	return wal.New(backend, a), nil
}

// Close releases adapter-wide resources. The local adapter holds none.
func (a *FileAdapter) Close() error {
	a.logger.Info("closing filesystem adapter")
	return nil
}

func (a *FileAdapter) countErr(op string) {
	if a.metrics != nil {
		a.metrics.IncStorageErrors("file", op)
	}
}

// fileWALBackend implements wal.Backend over a plain file plus a sibling
// lock file held for the lifetime of the Backend.
type fileWALBackend struct {
	logPath  string
	lockPath string
	lockFile *os.File
}

var _ wal.Backend = (*fileWALBackend)(nil)

func (b *fileWALBackend) ReadAll() ([]byte, error) {
	data, err := os.ReadFile(b.logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (b *fileWALBackend) AppendLine(line []byte) error {
	f, err := os.OpenFile(b.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

func (b *fileWALBackend) Truncate() error {
	return os.Truncate(b.logPath, 0)
}

func (b *fileWALBackend) Release() error {
	if b.lockFile == nil {
		return nil
	}
	err := b.lockFile.Close()
	if rmErr := os.Remove(b.lockPath); rmErr != nil && !os.IsNotExist(rmErr) {
		return rmErr
	}
	return err
}

func (b *fileWALBackend) Path() string {
	return b.logPath
}
