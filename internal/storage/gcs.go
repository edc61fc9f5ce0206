// Package storage implements the Google Cloud Storage adapter.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/jittakal/kafeventstore/internal/wal"
	pkgstorage "github.com/jittakal/kafeventstore/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ pkgstorage.Adapter = (*GCSAdapter)(nil)

// GCSConfig contains Google Cloud Storage configuration.
type GCSConfig struct {
	Bucket               string
	ProjectID            string
	CredentialsFile      string
	CredentialsJSON      string
	Endpoint             string
	UseDefaultCredential bool
}

// GCSAdapter implements storage.Adapter over Google Cloud Storage.
// Commit uses CopierFrom with a generation-match precondition so the
// copy only happens when finalName does not yet exist.
type GCSAdapter struct {
	client  *storage.Client
	bucket  string
	logger  *slog.Logger
	metrics MetricsCollector
}

// NewGCSAdapter creates a new Google Cloud Storage adapter.
func NewGCSAdapter(cfg GCSConfig, logger *slog.Logger, metrics MetricsCollector) (*GCSAdapter, error) {
	ctx := context.Background()

	var clientOpts []option.ClientOption
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}

	switch {
	case cfg.UseDefaultCredential:
		logger.Info("using default GCP credentials")
	case cfg.CredentialsJSON != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
		logger.Info("using GCP credentials from JSON string")
	case cfg.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
		logger.Info("using GCP credentials from file", "file", cfg.CredentialsFile)
	default:
		logger.Info("no explicit credentials provided, using default GCP credentials")
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	logger.Info("GCS adapter created", "bucket", cfg.Bucket, "project_id", cfg.ProjectID)

	return &GCSAdapter{client: client, bucket: cfg.Bucket, logger: logger, metrics: metrics}, nil
}

func (a *GCSAdapter) object(path string) string {
	obj := strings.TrimPrefix(path, "gs://")
	if strings.HasPrefix(path, "gs://") {
		if idx := strings.Index(obj, "/"); idx >= 0 {
			obj = obj[idx+1:]
		} else {
			obj = ""
		}
	}
	return strings.TrimPrefix(obj, "/")
}

// Exists reports whether path exists.
func (a *GCSAdapter) Exists(path string) (bool, error) {
	ctx := context.Background()
	_, err := a.client.Bucket(a.bucket).Object(a.object(path)).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	a.countErr("exists")
	return false, err
}

// Mkdirs is a no-op on GCS: there are no directories, only object
// prefixes.
func (a *GCSAdapter) Mkdirs(path string) error {
	return nil
}

// ListStatus lists objects directly under path.
func (a *GCSAdapter) ListStatus(path string, filter pkgstorage.Filter) ([]pkgstorage.FileInfo, error) {
	ctx := context.Background()
	prefix := a.object(path)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var out []pkgstorage.FileInfo
	it := a.client.Bucket(a.bucket).Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			a.countErr("list")
			return nil, err
		}
		name := strings.TrimPrefix(attrs.Name, prefix)
		if name == "" {
			continue
		}
		if filter != nil && !filter(name) {
			continue
		}
		out = append(out, pkgstorage.FileInfo{
			Name:    name,
			Path:    attrs.Name,
			Size:    attrs.Size,
			ModTime: attrs.Updated,
		})
	}
	return out, nil
}

// Commit copies tempName to finalName only if finalName does not already
// exist (DoesNotExist generation precondition), then deletes tempName.
func (a *GCSAdapter) Commit(tempName, finalName string) error {
	ctx := context.Background()
	bucket := a.client.Bucket(a.bucket)
	src := bucket.Object(a.object(tempName))
	dst := bucket.Object(a.object(finalName)).If(storage.Conditions{DoesNotExist: true})

	_, err := dst.CopierFrom(src).Run(ctx)
	if err != nil && !isPreconditionFailedGCS(err) {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		a.countErr("commit")
		return err
	}

	if err := src.Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		a.countErr("commit")
		return err
	}
	return nil
}

// Delete removes path. Deleting a path that does not exist is not an
// error.
func (a *GCSAdapter) Delete(path string) error {
	ctx := context.Background()
	if err := a.client.Bucket(a.bucket).Object(a.object(path)).Delete(ctx); err != nil &&
		!errors.Is(err, storage.ErrObjectNotExist) {
		a.countErr("delete")
		return err
	}
	return nil
}

// OpenWAL opens the per-partition write-ahead log object, fencing other
// writers with a DoesNotExist-conditioned lease object write.
func (a *GCSAdapter) OpenWAL(topic string, partition int32) (pkgstorage.WAL, error) {
	prefix := fmt.Sprintf("topics/%s/%d", topic, partition)
	leaseObj := prefix + "/.wal.lock"
	logObj := prefix + "/.wal.log"

	ctx := context.Background()
	w := a.client.Bucket(a.bucket).Object(leaseObj).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	if _, err := w.Write([]byte("locked")); err != nil {
		a.countErr("wal_open")
		return nil, err
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailedGCS(err) {
			return nil, storage.Fenced(leaseObj)
		}
		a.countErr("wal_open")
		return nil, err
	}

	backend := &gcsWALBackend{adapter: a, logObj: logObj, leaseObj: leaseObj}
	return wal.New(backend, a), nil
}

// Close releases the GCS client's connections.
func (a *GCSAdapter) Close() error {
	a.logger.Info("closing GCS adapter")
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

func (a *GCSAdapter) countErr(op string) {
	if a.metrics != nil {
		a.metrics.IncStorageErrors("gcs", op)
	}
}

func isPreconditionFailedGCS(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 412
	}
	return false
}

type gcsWALBackend struct {
	adapter  *GCSAdapter
	logObj   string
	leaseObj string
}

var _ wal.Backend = (*gcsWALBackend)(nil)

func (b *gcsWALBackend) ReadAll() ([]byte, error) {
	ctx := context.Background()
	r, err := b.adapter.client.Bucket(b.adapter.bucket).Object(b.logObj).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (b *gcsWALBackend) AppendLine(line []byte) error {
	existing, err := b.ReadAll()
	if err != nil {
		return err
	}
	existing = append(existing, line...)
	existing = append(existing, '\n')

	ctx := context.Background()
	w := b.adapter.client.Bucket(b.adapter.bucket).Object(b.logObj).NewWriter(ctx)
	if _, err := w.Write(existing); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (b *gcsWALBackend) Truncate() error {
	ctx := context.Background()
	if err := b.adapter.client.Bucket(b.adapter.bucket).Object(b.logObj).Delete(ctx); err != nil &&
		!errors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	return nil
}

func (b *gcsWALBackend) Release() error {
	ctx := context.Background()
	return b.adapter.client.Bucket(b.adapter.bucket).Object(b.leaseObj).Delete(ctx)
}

func (b *gcsWALBackend) Path() string {
	return b.logObj
}
