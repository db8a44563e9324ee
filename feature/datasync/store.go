package datasync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"photo-sync/core/database"
	"photo-sync/feature/datasync/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrRecordNotFound is returned when a row or conflict does not exist.
var ErrRecordNotFound = errors.New("datasync: record not found")

// ErrTenantBusy is returned when another reconciliation run holds the
// tenant's advisory lock.
var ErrTenantBusy = errors.New("datasync: a run is already in progress for this tenant")

// AssetStore is the single writer of persisted photo asset rows. The
// reconciler never writes rows directly, only through it. Every write uses
// its own short transaction; connections are never held across extraction
// jobs.
type AssetStore struct {
	db *gorm.DB

	// localLocks backs WithTenantLock on dialects without GET_LOCK.
	mu         sync.Mutex
	localLocks map[string]*sync.Mutex
}

// NewAssetStore creates the store.
func NewAssetStore(db *gorm.DB) *AssetStore {
	return &AssetStore{db: db, localLocks: map[string]*sync.Mutex{}}
}

// Migrate creates or updates the backing tables.
func (s *AssetStore) Migrate() error {
	return s.db.AutoMigrate(&models.PhotoAssetRecord{}, &models.Conflict{})
}

// ListByTenant loads all asset rows for a tenant.
func (s *AssetStore) ListByTenant(ctx context.Context, tenantID string) ([]models.PhotoAssetRecord, error) {
	var rows []models.PhotoAssetRecord
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("storage_key").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list asset rows: %w", err)
	}
	return rows, nil
}

// Get loads one row by tenant and storage key.
func (s *AssetStore) Get(ctx context.Context, tenantID, storageKey string) (*models.PhotoAssetRecord, error) {
	var row models.PhotoAssetRecord
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND storage_key = ?", tenantID, storageKey).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get asset row: %w", err)
	}
	return &row, nil
}

// Upsert inserts or replaces the row for (tenant, storageKey).
func (s *AssetStore) Upsert(ctx context.Context, rec *models.PhotoAssetRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "storage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"content_hash", "manifest", "manifest_version", "sync_status",
			"size", "e_tag", "last_modified", "updated_at",
		}),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("upsert asset row: %w", err)
	}
	return nil
}

// Delete removes the row for (tenant, storageKey). Missing rows are not an
// error: a delete action is idempotent.
func (s *AssetStore) Delete(ctx context.Context, tenantID, storageKey string) error {
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND storage_key = ?", tenantID, storageKey).
		Delete(&models.PhotoAssetRecord{}).Error
	if err != nil {
		return fmt.Errorf("delete asset row: %w", err)
	}
	return nil
}

// SetStatus updates just the sync status of a row.
func (s *AssetStore) SetStatus(ctx context.Context, tenantID, storageKey, status string) error {
	res := s.db.WithContext(ctx).Model(&models.PhotoAssetRecord{}).
		Where("tenant_id = ? AND storage_key = ?", tenantID, storageKey).
		Update("sync_status", status)
	if res.Error != nil {
		return fmt.Errorf("set status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// ForEachRecord iterates every asset row across all tenants in batches.
// Used by maintenance sweeps (manifest migration).
func (s *AssetStore) ForEachRecord(ctx context.Context, batchSize int, fn func(*models.PhotoAssetRecord) error) error {
	var batch []models.PhotoAssetRecord
	res := s.db.WithContext(ctx).FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
		for i := range batch {
			if err := fn(&batch[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if res.Error != nil {
		return fmt.Errorf("iterate asset rows: %w", res.Error)
	}
	return nil
}

// UpdateManifest rewrites just the manifest payload and version of a row.
func (s *AssetStore) UpdateManifest(ctx context.Context, id string, payload []byte, version int) error {
	err := s.db.WithContext(ctx).Model(&models.PhotoAssetRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"manifest":         payload,
			"manifest_version": version,
		}).Error
	if err != nil {
		return fmt.Errorf("update manifest: %w", err)
	}
	return nil
}

// StatusCounts returns the number of rows per sync status for a tenant.
func (s *AssetStore) StatusCounts(ctx context.Context, tenantID string) (map[string]int64, error) {
	type row struct {
		SyncStatus string
		N          int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&models.PhotoAssetRecord{}).
		Select("sync_status, count(*) as n").
		Where("tenant_id = ?", tenantID).
		Group("sync_status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count rows by status: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.SyncStatus] = r.N
	}
	return counts, nil
}

// RefreshSignature updates the last-seen storage signature of a row without
// touching the manifest. Used when metadata drifted but content did not.
func (s *AssetStore) RefreshSignature(ctx context.Context, rec *models.PhotoAssetRecord) error {
	err := s.db.WithContext(ctx).Model(&models.PhotoAssetRecord{}).
		Where("tenant_id = ? AND storage_key = ?", rec.TenantID, rec.StorageKey).
		Updates(map[string]any{
			"size":          rec.Size,
			"e_tag":         rec.ETag,
			"last_modified": rec.LastModified,
		}).Error
	if err != nil {
		return fmt.Errorf("refresh signature: %w", err)
	}
	return nil
}

// WithTenantLock runs fn while holding the tenant's advisory lock, so two
// reconciliation runs can never interleave writes to the same asset rows.
// On MySQL this is GET_LOCK with zero wait; elsewhere (sqlite in tests) an
// in-process mutex per tenant stands in.
func (s *AssetStore) WithTenantLock(ctx context.Context, tenantID string, fn func() error) error {
	if !database.IsMySQL(s.db) {
		lock := s.localLock(tenantID)
		if !lock.TryLock() {
			return ErrTenantBusy
		}
		defer lock.Unlock()
		return fn()
	}

	name := "photo_sync:" + tenantID
	var got int
	if err := s.db.WithContext(ctx).Raw("SELECT GET_LOCK(?, 0)", name).Scan(&got).Error; err != nil {
		return fmt.Errorf("acquire tenant lock: %w", err)
	}
	if got != 1 {
		return ErrTenantBusy
	}
	defer func() {
		var released int
		_ = s.db.Raw("SELECT RELEASE_LOCK(?)", name).Scan(&released).Error
	}()

	return fn()
}

func (s *AssetStore) localLock(tenantID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.localLocks[tenantID]
	if !ok {
		lock = &sync.Mutex{}
		s.localLocks[tenantID] = lock
	}
	return lock
}

// ConflictStore persists unresolved conflicts so a human can pick a
// resolution later without re-listing storage.
type ConflictStore struct {
	db *gorm.DB
}

// NewConflictStore creates the store.
func NewConflictStore(db *gorm.DB) *ConflictStore {
	return &ConflictStore{db: db}
}

// Save upserts the conflict for its (tenant, storageKey). A key diverging
// repeatedly keeps one conflict row, refreshed with the latest snapshots.
func (s *ConflictStore) Save(ctx context.Context, c *models.Conflict) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "storage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"storage_size", "storage_e_tag", "storage_last_modified", "storage_content_hash",
			"record_size", "record_e_tag", "record_last_modified", "record_content_hash",
			"reason",
		}),
	}).Create(c).Error
	if err != nil {
		return fmt.Errorf("save conflict: %w", err)
	}
	return nil
}

// List returns all unresolved conflicts for a tenant.
func (s *ConflictStore) List(ctx context.Context, tenantID string) ([]models.Conflict, error) {
	var rows []models.Conflict
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("storage_key").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	return rows, nil
}

// Get loads one conflict by id, scoped to the tenant.
func (s *ConflictStore) Get(ctx context.Context, tenantID, id string) (*models.Conflict, error) {
	var row models.Conflict
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conflict: %w", err)
	}
	return &row, nil
}

// Delete removes a resolved conflict.
func (s *ConflictStore) Delete(ctx context.Context, tenantID, id string) error {
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.Conflict{}).Error
	if err != nil {
		return fmt.Errorf("delete conflict: %w", err)
	}
	return nil
}
