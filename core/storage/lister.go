package storage

import (
	"context"
	"sync"
	"time"
)

// Object is a single entry in a storage listing. It is ephemeral: sourced
// fresh from the backend on every reconciliation run and never persisted.
type Object struct {
	// Key is the object key, unique within a tenant's bucket.
	Key string `json:"key"`
	// Size is the object size in bytes.
	Size int64 `json:"size"`
	// ETag is the provider entity tag. Empty when the provider does not
	// supply one (e.g. the local backend).
	ETag string `json:"etag,omitempty"`
	// LastModified is the provider modification time, zero when unknown.
	LastModified time.Time `json:"lastModified,omitempty"`
}

// Listing is a lazy, finite sequence of objects. Consumers range over
// Objects and must check Err afterwards: a failed page fails the whole
// listing. A Listing is not resumable; call List again to restart from the
// beginning.
type Listing struct {
	objects <-chan Object

	mu  sync.Mutex
	err error
}

// Objects returns the channel of listed objects. The channel is closed when
// the listing completes or fails.
func (l *Listing) Objects() <-chan Object { return l.objects }

// Err returns the terminal listing error, if any. Only valid after the
// Objects channel has been drained.
func (l *Listing) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Listing) fail(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}

// Drain collects the remaining objects into a slice, returning the listing
// error if the sequence terminated early.
func (l *Listing) Drain() ([]Object, error) {
	var out []Object
	for obj := range l.objects {
		out = append(out, obj)
	}
	return out, l.Err()
}

// ListingOf builds an already-complete listing from a fixed set of objects.
// Used by backends over static sources and by test fakes.
func ListingOf(err error, objs ...Object) *Listing {
	out := make(chan Object, len(objs))
	for _, o := range objs {
		out <- o
	}
	close(out)
	return &Listing{objects: out, err: err}
}

// Backend is the storage surface the reconciliation pipeline depends on:
// enumerate, stat, fetch and (for derived artifacts) store objects.
type Backend interface {
	// List lazily enumerates objects under prefix.
	List(ctx context.Context, prefix string) *Listing
	// Stat fetches the current metadata for one key.
	// Returns ErrObjectNotFound when the key is gone.
	Stat(ctx context.Context, key string) (Object, error)
	// Fetch reads the full object body.
	Fetch(ctx context.Context, key string) ([]byte, error)
	// Put stores a derived artifact (e.g. a generated thumbnail).
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// PublicURL builds the externally visible URL for a key.
	PublicURL(key string) string
}

// NewBackend constructs the Backend selected by cfg.Provider.
func NewBackend(cfg Config) (Backend, error) {
	if cfg.Provider == "local" {
		return newLocalBackend(cfg)
	}
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewMinioBackend(client, cfg), nil
}
