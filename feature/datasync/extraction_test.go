package datasync

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"photo-sync/core/storage"
	"photo-sync/core/workerpool"
	"photo-sync/feature/datasync/models"
	"photo-sync/feature/mediabuild"
	"photo-sync/feature/mediabuild/manifest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const mediaWorkerSentinel = "run-media-worker"

// TestMain doubles as the media worker entrypoint: extraction tests spawn
// this test binary with a sentinel argument and it serves process-photo jobs
// over stdio, the same way the server re-invokes itself as a worker.
func TestMain(m *testing.M) {
	if len(os.Args) > 1 && os.Args[len(os.Args)-1] == mediaWorkerSentinel {
		srv := workerpool.NewServer()
		srv.Handle(workerpool.TypeProcessPhoto, mediabuild.ProcessPhotoHandler())
		_ = srv.Serve(context.Background(), os.Stdin, os.Stdout)
		return
	}
	os.Exit(m.Run())
}

func TestRunner_AppliesInsertThroughWorkerPool(t *testing.T) {
	ctx := context.Background()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "photos"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "photos", "a.jpg"),
		jpegBytes(t, 32, 24, color.NRGBA{R: 200, G: 80, B: 40, A: 255}),
		0o644,
	))

	// A local backend shared with the worker process through its config.
	storageCfg := storage.Config{Provider: "local", LocalRoot: root}
	backend, err := storage.NewBackend(storageCfg)
	require.NoError(t, err)

	db := runnerDB(t)
	assets := NewAssetStore(db)
	require.NoError(t, assets.Migrate())
	conflicts := NewConflictStore(db)

	poolCfg := workerpool.Config{
		Workers: 1,
		Command: []string{os.Args[0], mediaWorkerSentinel},
	}
	pool := workerpool.New(poolCfg, zap.NewNop())
	t.Cleanup(pool.Stop)

	runner := NewRunner(
		backend,
		storageCfg,
		mediabuild.Config{CacheDir: t.TempDir(), ThumbPrefix: ".thumbnails"},
		poolCfg,
		Config{},
		assets, conflicts,
		pool,
		nil,
		zap.NewNop(),
	)

	var events []ProgressEvent
	status, err := runner.Run(ctx, "t1", RunOptions{Prefix: "photos/"}, collectEvents(&events))
	require.NoError(t, err)

	assert.Equal(t, 1, status.Summary.Inserted)
	assert.Zero(t, status.Summary.Errors)

	var inserts int
	for _, ev := range events {
		if ev.Type != EventAction {
			continue
		}
		action := ev.Payload.(*SyncAction)
		if action.StorageKey != "photos/a.jpg" {
			continue
		}
		inserts++
		assert.Equal(t, ActionInsert, action.Type)
		assert.True(t, action.Applied)
		require.NotNil(t, action.ManifestAfter)
		assert.Equal(t, 32, action.ManifestAfter.Width)
	}
	assert.Equal(t, 1, inserts)

	row, err := assets.Get(ctx, "t1", "photos/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, row.SyncStatus)
	assert.Equal(t, manifest.CurrentVersion, row.ManifestVersion)
	assert.NotEmpty(t, row.ContentHash)

	item, err := manifest.Decode(row.Manifest, row.ManifestVersion)
	require.NoError(t, err)
	assert.Equal(t, row.ID, item.ID)
	assert.Equal(t, 32, item.Width)
	assert.Equal(t, 24, item.Height)
	assert.NotEmpty(t, item.ThumbHash)
	assert.NotEmpty(t, item.ThumbnailURL)

	// The worker wrote the thumbnail through its own backend instance.
	thumbs, err := backend.List(ctx, ".thumbnails/").Drain()
	require.NoError(t, err)
	assert.Len(t, thumbs, 1)

	// A second run sees the synced row and skips the key.
	status, err = runner.Run(ctx, "t1", RunOptions{Prefix: "photos/"}, nil)
	require.NoError(t, err)
	assert.Zero(t, status.Summary.Inserted)
	assert.Zero(t, status.Summary.Updated)
	assert.Equal(t, 1, status.Summary.Skipped)
}
