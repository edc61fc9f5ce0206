// Package storage implements S3 storage adapter.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/jittakal/kafeventstore/internal/wal"
	"github.com/jittakal/kafeventstore/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Adapter = (*S3Adapter)(nil)

// S3Config contains AWS S3 configuration.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	SSEEnabled   bool
	SSEKMSKeyID  string
}

// S3Adapter implements storage.Adapter over AWS S3. S3 has no atomic
// rename, so Commit approximates it with a conditional server-side copy
// (only creating finalName if it does not already exist) followed by a
// best-effort delete of tempName; the copy is retried safely on crash
// because it is keyed by tempName's unchanging content.
type S3Adapter struct {
	client      *s3.Client
	bucket      string
	sseEnabled  bool
	sseKMSKeyID string
	logger      *slog.Logger
	metrics     MetricsCollector
}

// NewS3Adapter creates a new S3 storage adapter.
func NewS3Adapter(cfg S3Config, logger *slog.Logger, metrics MetricsCollector) (*S3Adapter, error) {
	ctx := context.Background()
	awsConfig, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	logger.Info("S3 adapter created",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"sse_enabled", cfg.SSEEnabled,
	)

	return &S3Adapter{
		client:      client,
		bucket:      cfg.Bucket,
		sseEnabled:  cfg.SSEEnabled,
		sseKMSKeyID: cfg.SSEKMSKeyID,
		logger:      logger,
		metrics:     metrics,
	}, nil
}

func (a *S3Adapter) key(path string) string {
	k := strings.TrimPrefix(path, "s3://")
	if strings.HasPrefix(path, "s3://") {
		if idx := strings.Index(k, "/"); idx >= 0 {
			k = k[idx+1:]
		} else {
			k = ""
		}
	}
	return strings.TrimPrefix(k, "/")
}

// Exists reports whether path exists.
func (a *S3Adapter) Exists(path string) (bool, error) {
	ctx := context.Background()
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(path)),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	a.countErr("exists")
	return false, err
}

// Mkdirs is a no-op on S3: there are no directories, only key prefixes.
func (a *S3Adapter) Mkdirs(path string) error {
	return nil
}

// ListStatus lists objects directly under path (one path segment deep).
func (a *S3Adapter) ListStatus(path string, filter storage.Filter) ([]storage.FileInfo, error) {
	ctx := context.Background()
	prefix := a.key(path)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var out []storage.FileInfo
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(a.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			a.countErr("list")
			return nil, err
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" {
				continue
			}
			if filter != nil && !filter(name) {
				continue
			}
			out = append(out, storage.FileInfo{
				Name:    name,
				Path:    aws.ToString(obj.Key),
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}
	return out, nil
}

// Commit copies tempName to finalName only if finalName does not already
// exist, then deletes tempName. If finalName already exists (a prior
// crashed Commit got there first), tempName is simply deleted.
func (a *S3Adapter) Commit(tempName, finalName string) error {
	ctx := context.Background()
	srcKey := a.key(tempName)
	dstKey := a.key(finalName)

	exists, err := a.Exists(finalName)
	if err != nil {
		return err
	}
	if !exists {
		copyInput := &s3.CopyObjectInput{
			Bucket:     aws.String(a.bucket),
			CopySource: aws.String(a.bucket + "/" + srcKey),
			Key:        aws.String(dstKey),
		}
		if a.sseEnabled {
			if a.sseKMSKeyID != "" {
				copyInput.ServerSideEncryption = types.ServerSideEncryptionAwsKms
				copyInput.SSEKMSKeyId = aws.String(a.sseKMSKeyID)
			} else {
				copyInput.ServerSideEncryption = types.ServerSideEncryptionAes256
			}
		}
		if _, err := a.client.CopyObject(ctx, copyInput); err != nil {
			if isNotFound(err) {
				return nil
			}
			a.countErr("commit")
			return err
		}
	}

	_, err = a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(srcKey),
	})
	if err != nil {
		a.countErr("commit")
		return err
	}
	return nil
}

// Delete removes path. Deleting a path that does not exist is not an
// error.
func (a *S3Adapter) Delete(path string) error {
	ctx := context.Background()
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(path)),
	})
	if err != nil && !isNotFound(err) {
		a.countErr("delete")
		return err
	}
	return nil
}

// OpenWAL opens the per-partition write-ahead log object, fencing other
// writers with a conditional put of a lease object.
func (a *S3Adapter) OpenWAL(topic string, partition int32) (storage.WAL, error) {
	prefix := fmt.Sprintf("topics/%s/%d", topic, partition)
	leaseKey := prefix + "/.wal.lock"
	logKey := prefix + "/.wal.log"

	ctx := context.Background()
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(leaseKey),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return nil, storage.Fenced(leaseKey)
		}
		a.countErr("wal_open")
		return nil, err
	}

	backend := &s3WALBackend{adapter: a, logKey: logKey, leaseKey: leaseKey}
	return wal.New(backend, a), nil
}

// Close releases adapter-wide resources. The S3 client holds none that
// need closing.
func (a *S3Adapter) Close() error {
	a.logger.Info("closing S3 adapter")
	return nil
}

func (a *S3Adapter) countErr(op string) {
	if a.metrics != nil {
		a.metrics.IncStorageErrors("s3", op)
	}
}

func isNotFound(err error) bool {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == 404
	}
	var nf *types.NotFound
	return errors.As(err, &nf)
}

func isPreconditionFailed(err error) bool {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == 412
	}
	return false
}

type s3WALBackend struct {
	adapter  *S3Adapter
	logKey   string
	leaseKey string
}

var _ wal.Backend = (*s3WALBackend)(nil)

func (b *s3WALBackend) ReadAll() ([]byte, error) {
	ctx := context.Background()
	out, err := b.adapter.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.adapter.bucket),
		Key:    aws.String(b.logKey),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	defer out.Body.Close()
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		n, err := out.Body.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if err != nil {
			break
		}
	}
	return buf, nil
}

func (b *s3WALBackend) AppendLine(line []byte) error {
	existing, err := b.ReadAll()
	if err != nil {
		return err
	}
	existing = append(existing, line...)
	existing = append(existing, '\n')
	ctx := context.Background()
	_, err = b.adapter.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.adapter.bucket),
		Key:    aws.String(b.logKey),
		Body:   bytes.NewReader(existing),
	})
	return err
}

func (b *s3WALBackend) Truncate() error {
	ctx := context.Background()
	_, err := b.adapter.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.adapter.bucket),
		Key:    aws.String(b.logKey),
	})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func (b *s3WALBackend) Release() error {
	ctx := context.Background()
	_, err := b.adapter.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.adapter.bucket),
		Key:    aws.String(b.leaseKey),
	})
	return err
}

func (b *s3WALBackend) Path() string {
	return b.logKey
}
