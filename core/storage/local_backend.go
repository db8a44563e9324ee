package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// localBackend serves objects from a directory tree. Used by self-hosted
// tenants that point the gallery at a folder instead of a bucket. Local
// files carry no ETag, so change detection always falls through to the
// content hash.
type localBackend struct {
	root string
	cfg  Config
}

func newLocalBackend(cfg Config) (Backend, error) {
	if cfg.LocalRoot == "" {
		return nil, fmt.Errorf("local storage requires local_root")
	}
	info, err := os.Stat(cfg.LocalRoot)
	if err != nil {
		return nil, &AuthError{Err: fmt.Errorf("local root %s: %w", cfg.LocalRoot, err)}
	}
	if !info.IsDir() {
		return nil, &AuthError{Err: fmt.Errorf("local root %s is not a directory", cfg.LocalRoot)}
	}
	return &localBackend{root: cfg.LocalRoot, cfg: cfg}, nil
}

func (b *localBackend) List(ctx context.Context, prefix string) *Listing {
	buffer := b.cfg.ListBuffer
	if buffer <= 0 {
		buffer = 256
	}

	out := make(chan Object, buffer)
	listing := &Listing{objects: out}

	go func() {
		defer close(out)

		err := filepath.WalkDir(b.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(b.root, path)
			if err != nil {
				return err
			}
			key := filepath.ToSlash(rel)
			if prefix != "" && !strings.HasPrefix(key, prefix) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			select {
			case out <- Object{Key: key, Size: info.Size(), LastModified: info.ModTime()}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			listing.fail(&ListingError{Err: err})
		}
	}()

	return listing
}

func (b *localBackend) Stat(ctx context.Context, key string) (Object, error) {
	info, err := os.Stat(filepath.Join(b.root, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return Object{}, ErrObjectNotFound
		}
		return Object{}, &ListingError{Err: err}
	}
	return Object{Key: key, Size: info.Size(), LastModified: info.ModTime()}, nil
}

func (b *localBackend) Fetch(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(b.root, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("fetch %s: %w", key, err)
	}
	return data, nil
}

func (b *localBackend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	path := filepath.Join(b.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (b *localBackend) PublicURL(key string) string {
	base := strings.TrimSuffix(b.cfg.PublicBaseURL, "/")
	if base == "" {
		return "file://" + filepath.Join(b.root, filepath.FromSlash(key))
	}
	return base + "/" + strings.TrimPrefix(key, "/")
}
