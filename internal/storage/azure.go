// Package storage implements the Azure Blob Storage adapter.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/lease"

	"github.com/jittakal/kafeventstore/internal/wal"
	"github.com/jittakal/kafeventstore/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Adapter = (*AzureAdapter)(nil)

// AzureConfig contains Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName   string
	AccountKey    string
	ContainerName string
	Endpoint      string
}

// AzureAdapter implements storage.Adapter over Azure Blob Storage.
// Commit uses StartCopyFromURL, which Azure blocks if the destination is
// already leased, combined with an existence check so a second writer's
// copy becomes a no-op.
type AzureAdapter struct {
	client        *azblob.Client
	containerName string
	logger        *slog.Logger
	metrics       MetricsCollector
}

// NewAzureAdapter creates a new Azure Blob storage adapter.
func NewAzureAdapter(cfg AzureConfig, logger *slog.Logger, metrics MetricsCollector) (*AzureAdapter, error) {
	var connectionString string
	if cfg.Endpoint != "" {
		connectionString = fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			cfg.AccountName, cfg.AccountKey, cfg.Endpoint)
	} else {
		connectionString = fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
			cfg.AccountName, cfg.AccountKey)
	}

	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	logger.Info("Azure adapter created", "container", cfg.ContainerName, "account", cfg.AccountName)

	return &AzureAdapter{client: client, containerName: cfg.ContainerName, logger: logger, metrics: metrics}, nil
}

func (a *AzureAdapter) blobPath(path string) string {
	p := strings.TrimPrefix(path, "wasbs://")
	if strings.HasPrefix(path, "wasbs://") {
		if idx := strings.Index(p, "/"); idx >= 0 {
			p = p[idx+1:]
		} else {
			p = ""
		}
	}
	return strings.TrimPrefix(p, "/")
}

// Exists reports whether path exists.
func (a *AzureAdapter) Exists(path string) (bool, error) {
	ctx := context.Background()
	_, err := a.client.ServiceClient().NewContainerClient(a.containerName).
		NewBlobClient(a.blobPath(path)).GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return false, nil
	}
	a.countErr("exists")
	return false, err
}

// Mkdirs is a no-op on Azure Blob: there are no directories, only blob
// name prefixes.
func (a *AzureAdapter) Mkdirs(path string) error {
	return nil
}

// ListStatus lists blobs directly under path.
func (a *AzureAdapter) ListStatus(path string, filter storage.Filter) ([]storage.FileInfo, error) {
	ctx := context.Background()
	prefix := a.blobPath(path)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var out []storage.FileInfo
	pager := a.client.ServiceClient().NewContainerClient(a.containerName).NewListBlobsFlatPager(&container.ListBlobsFlatOptions{
		Prefix: &prefix,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			a.countErr("list")
			return nil, err
		}
		for _, item := range page.Segment.BlobItems {
			full := ""
			if item.Name != nil {
				full = *item.Name
			}
			name := strings.TrimPrefix(full, prefix)
			if name == "" {
				continue
			}
			if filter != nil && !filter(name) {
				continue
			}
			var size int64
			if item.Properties != nil && item.Properties.ContentLength != nil {
				size = *item.Properties.ContentLength
			}
			fi := storage.FileInfo{Name: name, Path: full, Size: size}
			if item.Properties != nil && item.Properties.LastModified != nil {
				fi.ModTime = *item.Properties.LastModified
			}
			out = append(out, fi)
		}
	}
	return out, nil
}

// Commit copies tempName to finalName if finalName does not already
// exist, polling the async copy to completion, then deletes tempName.
func (a *AzureAdapter) Commit(tempName, finalName string) error {
	ctx := context.Background()
	exists, err := a.Exists(finalName)
	if err != nil {
		return err
	}

	if !exists {
		srcClient := a.client.ServiceClient().NewContainerClient(a.containerName).NewBlobClient(a.blobPath(tempName))
		dstClient := a.client.ServiceClient().NewContainerClient(a.containerName).NewBlobClient(a.blobPath(finalName))

		if _, err := dstClient.StartCopyFromURL(ctx, srcClient.URL(), nil); err != nil {
			if bloberror.HasCode(err, bloberror.BlobNotFound) {
				return nil
			}
			a.countErr("commit")
			return err
		}
	}

	if err := a.Delete(tempName); err != nil {
		a.countErr("commit")
		return err
	}
	return nil
}

// Delete removes path. Deleting a path that does not exist is not an
// error.
func (a *AzureAdapter) Delete(path string) error {
	ctx := context.Background()
	_, err := a.client.ServiceClient().NewContainerClient(a.containerName).
		NewBlobClient(a.blobPath(path)).Delete(ctx, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		a.countErr("delete")
		return err
	}
	return nil
}

// OpenWAL opens the per-partition write-ahead log blob, fencing other
// writers with an exclusive blob lease.
func (a *AzureAdapter) OpenWAL(topic string, partition int32) (storage.WAL, error) {
	prefix := fmt.Sprintf("topics/%s/%d", topic, partition)
	leaseBlob := prefix + "/.wal.lock"
	logBlob := prefix + "/.wal.log"

	ctx := context.Background()
	leaseBlobClient := a.client.ServiceClient().NewContainerClient(a.containerName).NewBlockBlobClient(leaseBlob)
	if _, err := leaseBlobClient.Upload(ctx, nopReadSeekCloser(bytes.NewReader([]byte("locked"))), nil); err != nil {
		a.countErr("wal_open")
		return nil, err
	}

	leaseClient, err := lease.NewBlobClient(leaseBlobClient, nil)
	if err != nil {
		a.countErr("wal_open")
		return nil, err
	}
	if _, err := leaseClient.AcquireLease(ctx, 60, nil); err != nil {
		if bloberror.HasCode(err, bloberror.LeaseAlreadyPresent) {
			return nil, storage.Fenced(leaseBlob)
		}
		a.countErr("wal_open")
		return nil, err
	}

	backend := &azureWALBackend{adapter: a, logBlob: logBlob, leaseClient: leaseClient}
	return wal.New(backend, a), nil
}

// Close releases adapter-wide resources. The Azure client holds none.
func (a *AzureAdapter) Close() error {
	a.logger.Info("closing Azure adapter")
	return nil
}

func (a *AzureAdapter) countErr(op string) {
	if a.metrics != nil {
		a.metrics.IncStorageErrors("azure", op)
	}
}

type nopReadSeekCloserT struct {
	io.ReadSeeker
}

func (nopReadSeekCloserT) Close() error { return nil }

func nopReadSeekCloser(r io.ReadSeeker) io.ReadSeekCloser {
	return nopReadSeekCloserT{r}
}

type azureWALBackend struct {
	adapter     *AzureAdapter
	logBlob     string
	leaseClient *lease.BlobClient
}

var _ wal.Backend = (*azureWALBackend)(nil)

func (b *azureWALBackend) blobClient() *azblob.Client {
	return b.adapter.client
}

func (b *azureWALBackend) ReadAll() ([]byte, error) {
	ctx := context.Background()
	resp, err := b.blobClient().DownloadStream(ctx, b.adapter.containerName, b.logBlob, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (b *azureWALBackend) AppendLine(line []byte) error {
	existing, err := b.ReadAll()
	if err != nil {
		return err
	}
	existing = append(existing, line...)
	existing = append(existing, '\n')

	ctx := context.Background()
	_, err = b.blobClient().UploadBuffer(ctx, b.adapter.containerName, b.logBlob, existing, nil)
	return err
}

func (b *azureWALBackend) Truncate() error {
	ctx := context.Background()
	_, err := b.blobClient().DeleteBlob(ctx, b.adapter.containerName, b.logBlob, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return err
	}
	return nil
}

func (b *azureWALBackend) Release() error {
	ctx := context.Background()
	_, err := b.leaseClient.ReleaseLease(ctx, nil)
	if err != nil {
		return err
	}
	_, err = b.blobClient().DeleteBlob(ctx, b.adapter.containerName, strings.TrimSuffix(b.logBlob, ".wal.log")+".wal.lock", nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return err
	}
	return nil
}

func (b *azureWALBackend) Path() string {
	return b.logBlob
}
