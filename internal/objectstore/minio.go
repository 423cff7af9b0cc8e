package objectstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

func NewMinIOClient(cfg Config) (*minio.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	}
	return minio.New(cfg.Endpoint, opts)
}

// EnsureBucket creates the mirror bucket if it does not exist.
func EnsureBucket(ctx context.Context, client *minio.Client, cfg Config) error {
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return fmt.Errorf("bucket exists: %w", err)
	}
	if exists {
		return nil
	}
	if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
		return fmt.Errorf("make bucket: %w", err)
	}
	return nil
}

// Mirror uploads a READY simulation's dataset and metadata.
type Mirror struct {
	client *minio.Client
	bucket string
	prefix string
	logger *slog.Logger
}

func NewMirror(client *minio.Client, cfg Config, logger *slog.Logger) (*Mirror, error) {
	if client == nil {
		return nil, fmt.Errorf("minio client is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Mirror{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger,
	}, nil
}

// Key returns the object key of a file belonging to simulation id.
func (m *Mirror) Key(id, file string) string {
	return path.Join(m.prefix, id, filepath.Base(file))
}

// Mirror uploads both files. Either may be retried independently.
func (m *Mirror) Mirror(ctx context.Context, id, datasetPath, metadataPath string) error {
	uploads := []struct {
		file        string
		contentType string
	}{
		{datasetPath, "text/csv"},
		{metadataPath, "application/json"},
	}
	for _, u := range uploads {
		key := m.Key(id, u.file)
		info, err := m.client.FPutObject(ctx, m.bucket, key, u.file, minio.PutObjectOptions{ContentType: u.contentType})
		if err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		m.logger.Debug("mirrored dataset file", "id", id, "bucket", m.bucket, "key", key, "size", info.Size)
	}
	return nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
