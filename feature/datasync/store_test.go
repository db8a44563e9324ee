package datasync_test

import (
	"context"
	"testing"
	"time"

	"photo-sync/core/database"
	"photo-sync/feature/datasync"
	"photo-sync/feature/datasync/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)

	// A pooled second connection would see its own empty in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	return db
}

func testStore(t *testing.T) *datasync.AssetStore {
	t.Helper()
	store := datasync.NewAssetStore(testDB(t))
	require.NoError(t, store.Migrate())
	return store
}

func TestAssetStore_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	lm := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	rec := &models.PhotoAssetRecord{
		TenantID:        "t1",
		StorageKey:      "a.jpg",
		ContentHash:     "h1",
		Manifest:        []byte(`{"id":"p1"}`),
		ManifestVersion: 3,
		SyncStatus:      models.StatusSynced,
		Size:            10,
		ETag:            "e1",
		LastModified:    &lm,
	}
	require.NoError(t, store.Upsert(ctx, rec))
	assert.NotEmpty(t, rec.ID, "an id is assigned on insert")

	got, err := store.Get(ctx, "t1", "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "h1", got.ContentHash)
	assert.Equal(t, models.StatusSynced, got.SyncStatus)

	// Upserting the same key replaces the payload, not the row count.
	rec2 := &models.PhotoAssetRecord{
		ID:              rec.ID,
		TenantID:        "t1",
		StorageKey:      "a.jpg",
		ContentHash:     "h2",
		Manifest:        []byte(`{"id":"p1","width":1}`),
		ManifestVersion: 3,
		SyncStatus:      models.StatusSynced,
		Size:            11,
	}
	require.NoError(t, store.Upsert(ctx, rec2))

	rows, err := store.ListByTenant(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "h2", rows[0].ContentHash)
	assert.Equal(t, int64(11), rows[0].Size)
}

func TestAssetStore_TenantScoping(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	require.NoError(t, store.Upsert(ctx, &models.PhotoAssetRecord{TenantID: "t1", StorageKey: "a.jpg", SyncStatus: models.StatusSynced}))
	require.NoError(t, store.Upsert(ctx, &models.PhotoAssetRecord{TenantID: "t2", StorageKey: "a.jpg", SyncStatus: models.StatusSynced}))

	rows, err := store.ListByTenant(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = store.Get(ctx, "t3", "a.jpg")
	assert.ErrorIs(t, err, datasync.ErrRecordNotFound)
}

func TestAssetStore_SetStatus(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	require.NoError(t, store.Upsert(ctx, &models.PhotoAssetRecord{TenantID: "t1", StorageKey: "a.jpg", SyncStatus: models.StatusPending}))
	require.NoError(t, store.SetStatus(ctx, "t1", "a.jpg", models.StatusError))

	got, err := store.Get(ctx, "t1", "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, got.SyncStatus)

	err = store.SetStatus(ctx, "t1", "missing.jpg", models.StatusError)
	assert.ErrorIs(t, err, datasync.ErrRecordNotFound)
}

func TestAssetStore_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	require.NoError(t, store.Upsert(ctx, &models.PhotoAssetRecord{TenantID: "t1", StorageKey: "a.jpg", SyncStatus: models.StatusSynced}))
	require.NoError(t, store.Delete(ctx, "t1", "a.jpg"))
	require.NoError(t, store.Delete(ctx, "t1", "a.jpg"))

	_, err := store.Get(ctx, "t1", "a.jpg")
	assert.ErrorIs(t, err, datasync.ErrRecordNotFound)
}

func TestAssetStore_RefreshSignature(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	require.NoError(t, store.Upsert(ctx, &models.PhotoAssetRecord{
		TenantID: "t1", StorageKey: "a.jpg", SyncStatus: models.StatusSynced,
		ContentHash: "h1", Manifest: []byte(`{"id":"p"}`), Size: 10, ETag: "e1",
	}))

	lm := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.RefreshSignature(ctx, &models.PhotoAssetRecord{
		TenantID: "t1", StorageKey: "a.jpg", Size: 10, ETag: "e2", LastModified: &lm,
	}))

	got, err := store.Get(ctx, "t1", "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "e2", got.ETag)
	// The manifest is untouched by a signature refresh.
	assert.Equal(t, "h1", got.ContentHash)
	assert.JSONEq(t, `{"id":"p"}`, string(got.Manifest))
}

func TestAssetStore_StatusCounts(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	for i, status := range []string{models.StatusSynced, models.StatusSynced, models.StatusConflict, models.StatusError} {
		require.NoError(t, store.Upsert(ctx, &models.PhotoAssetRecord{
			TenantID:   "t1",
			StorageKey: string(rune('a'+i)) + ".jpg",
			SyncStatus: status,
		}))
	}

	counts, err := store.StatusCounts(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[models.StatusSynced])
	assert.Equal(t, int64(1), counts[models.StatusConflict])
	assert.Equal(t, int64(1), counts[models.StatusError])
	assert.Zero(t, counts[models.StatusPending])
}

func TestAssetStore_WithTenantLock(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- store.WithTenantLock(ctx, "t1", func() error {
			close(entered)
			<-release
			return nil
		})
	}()

	<-entered

	// Same tenant is busy, another tenant is not.
	err := store.WithTenantLock(ctx, "t1", func() error { return nil })
	assert.ErrorIs(t, err, datasync.ErrTenantBusy)
	assert.NoError(t, store.WithTenantLock(ctx, "t2", func() error { return nil }))

	close(release)
	assert.NoError(t, <-done)

	// Released: the tenant can run again.
	assert.NoError(t, store.WithTenantLock(ctx, "t1", func() error { return nil }))
}

func TestAssetStore_ManifestSweepHelpers(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	require.NoError(t, store.Upsert(ctx, &models.PhotoAssetRecord{
		TenantID: "t1", StorageKey: "a.jpg", SyncStatus: models.StatusSynced,
		Manifest: []byte(`{"id":"p","thumbnail":"u"}`), ManifestVersion: 1,
	}))
	require.NoError(t, store.Upsert(ctx, &models.PhotoAssetRecord{
		TenantID: "t2", StorageKey: "b.jpg", SyncStatus: models.StatusSynced,
		Manifest: []byte(`{"id":"q"}`), ManifestVersion: 3,
	}))

	var ids []string
	err := store.ForEachRecord(ctx, 100, func(rec *models.PhotoAssetRecord) error {
		ids = append(ids, rec.StorageKey)
		if rec.ManifestVersion == 1 {
			return store.UpdateManifest(ctx, rec.ID, []byte(`{"id":"p","thumbnailUrl":"u"}`), 3)
		}
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.jpg", "b.jpg"}, ids)

	got, err := store.Get(ctx, "t1", "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, 3, got.ManifestVersion)
	assert.JSONEq(t, `{"id":"p","thumbnailUrl":"u"}`, string(got.Manifest))
}

func TestConflictStore_Roundtrip(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	assets := datasync.NewAssetStore(db)
	require.NoError(t, assets.Migrate())
	store := datasync.NewConflictStore(db)

	c := &models.Conflict{
		TenantID:    "t1",
		StorageKey:  "a.jpg",
		StorageSize: 20,
		RecordSize:  10,
		Reason:      "content diverged",
	}
	require.NoError(t, store.Save(ctx, c))
	require.NotEmpty(t, c.ID)

	// Re-saving the same key refreshes the row instead of duplicating it.
	c2 := &models.Conflict{TenantID: "t1", StorageKey: "a.jpg", StorageSize: 30, RecordSize: 10, Reason: "content diverged again"}
	require.NoError(t, store.Save(ctx, c2))

	list, err := store.List(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(30), list[0].StorageSize)

	got, err := store.Get(ctx, "t1", list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", got.StorageKey)

	_, err = store.Get(ctx, "t2", list[0].ID)
	assert.ErrorIs(t, err, datasync.ErrRecordNotFound)

	require.NoError(t, store.Delete(ctx, "t1", list[0].ID))
	list, err = store.List(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, list)
}
