package mediabuild

import (
	"context"
	"encoding/json"
	"fmt"

	"photo-sync/core/storage"
	"photo-sync/core/workerpool"
)

// ProcessPhotoPayload is the wire form of one extraction job. It carries
// the storage and builder configuration so the worker process is fully
// self-contained: workers are shared across tenants and each job may target
// a different bucket.
type ProcessPhotoPayload struct {
	Storage storage.Config `json:"storage"`
	Build   Config         `json:"build"`
	Request BuildRequest   `json:"request"`
}

// ProcessPhotoHandler returns the worker-side handler for process-photo
// jobs. Registered by the "worker" subcommand.
func ProcessPhotoHandler() workerpool.Handler {
	return func(ctx context.Context, payload json.RawMessage, log *workerpool.JobLogger) (any, error) {
		var job ProcessPhotoPayload
		if err := json.Unmarshal(payload, &job); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}

		backend, err := storage.NewBackend(job.Storage)
		if err != nil {
			return nil, fmt.Errorf("storage backend: %w", err)
		}

		builder := NewBuilder(backend, job.Build, log)
		return builder.Build(ctx, &job.Request)
	}
}
