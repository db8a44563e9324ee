package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
)

// minioBackend adapts the minio client to the Backend interface. It serves
// both plain S3-compatible endpoints and managed proxies, which differ only
// in endpoint configuration.
type minioBackend struct {
	client Client
	cfg    Config
}

// NewMinioBackend wraps an existing Client as a Backend. Exposed separately
// from NewBackend so tests can inject a mock client.
func NewMinioBackend(client Client, cfg Config) Backend {
	return &minioBackend{client: client, cfg: cfg}
}

func (b *minioBackend) List(ctx context.Context, prefix string) *Listing {
	buffer := b.cfg.ListBuffer
	if buffer <= 0 {
		buffer = 256
	}

	out := make(chan Object, buffer)
	listing := &Listing{objects: out}

	go func() {
		defer close(out)

		ch := b.client.ListObjects(ctx, b.cfg.Bucket, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		})
		for info := range ch {
			if info.Err != nil {
				listing.fail(classifyListError(info.Err))
				return
			}
			obj := Object{
				Key:          info.Key,
				Size:         info.Size,
				ETag:         strings.Trim(info.ETag, `"`),
				LastModified: info.LastModified,
			}
			select {
			case out <- obj:
			case <-ctx.Done():
				listing.fail(&ListingError{Err: ctx.Err()})
				return
			}
		}
	}()

	return listing
}

func (b *minioBackend) Stat(ctx context.Context, key string) (Object, error) {
	info, err := b.client.StatObject(ctx, b.cfg.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return Object{}, ErrObjectNotFound
		}
		return Object{}, classifyListError(err)
	}
	return Object{
		Key:          info.Key,
		Size:         info.Size,
		ETag:         strings.Trim(info.ETag, `"`),
		LastModified: info.LastModified,
	}, nil
}

func (b *minioBackend) Fetch(ctx context.Context, key string) ([]byte, error) {
	rc, err := b.client.GetObject(ctx, b.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", key, err)
	}
	return data, nil
}

func (b *minioBackend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, b.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (b *minioBackend) PublicURL(key string) string {
	base := strings.TrimSuffix(b.cfg.PublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if b.cfg.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, b.cfg.Endpoint, b.cfg.Bucket)
	}
	return base + "/" + strings.TrimPrefix(key, "/")
}
