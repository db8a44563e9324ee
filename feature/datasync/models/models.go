package models

import "time"

// SyncStatus values for a photo asset row.
const (
	StatusSynced   = "synced"
	StatusConflict = "conflict"
	StatusPending  = "pending"
	StatusError    = "error"
)

// PhotoAssetRecord is the persisted row for one tenant+storageKey. The
// manifest payload is stored opaque; its schema version lives alongside so
// old rows can be migrated lazily on read.
type PhotoAssetRecord struct {
	// ID is the stable asset identity; it survives key renames within a
	// detected live-photo pair.
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	TenantID string `gorm:"size:64;uniqueIndex:idx_tenant_key;index:idx_tenant_status" json:"tenantId"`
	// StorageKey is unique per tenant.
	StorageKey string `gorm:"size:512;uniqueIndex:idx_tenant_key" json:"storageKey"`
	// ContentHash is derived from decoded bytes, independent of the
	// provider ETag.
	ContentHash string `gorm:"size:64;index" json:"contentHash"`
	// Manifest is the versioned payload (JSON).
	Manifest []byte `gorm:"type:longblob" json:"manifest"`
	// ManifestVersion equals the manifest's own version whenever
	// SyncStatus is synced.
	ManifestVersion int    `json:"manifestVersion"`
	SyncStatus      string `gorm:"size:16;index:idx_tenant_status" json:"syncStatus"`

	// Last-seen storage signature, used to detect that storage changed
	// again underneath an unresolved row.
	Size         int64      `json:"size"`
	ETag         string     `gorm:"size:128" json:"etag"`
	LastModified *time.Time `json:"lastModified"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SideSnapshot captures one side (storage or database) of a diverged key at
// the moment the conflict was recorded.
type SideSnapshot struct {
	Size         int64      `json:"size"`
	ETag         string     `json:"etag,omitempty"`
	LastModified *time.Time `json:"lastModified,omitempty"`
	ContentHash  string     `json:"contentHash,omitempty"`
}

// Conflict is persisted for every key whose storage and database state
// diverged in a way that needs manual resolution. Both side snapshots are
// recorded so a human can choose later without re-listing storage.
type Conflict struct {
	ID         string `gorm:"primaryKey;size:36" json:"id"`
	TenantID   string `gorm:"size:64;uniqueIndex:idx_conflict_tenant_key" json:"tenantId"`
	StorageKey string `gorm:"size:512;uniqueIndex:idx_conflict_tenant_key" json:"storageKey"`

	StorageSize         int64      `json:"storageSize"`
	StorageETag         string     `gorm:"size:128" json:"storageEtag"`
	StorageLastModified *time.Time `json:"storageLastModified"`
	StorageContentHash  string     `gorm:"size:64" json:"storageContentHash"`

	RecordSize         int64      `json:"recordSize"`
	RecordETag         string     `gorm:"size:128" json:"recordEtag"`
	RecordLastModified *time.Time `json:"recordLastModified"`
	RecordContentHash  string     `gorm:"size:64" json:"recordContentHash"`

	Reason    string    `gorm:"size:512" json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}

// StorageSide returns the storage snapshot of the conflict.
func (c *Conflict) StorageSide() SideSnapshot {
	return SideSnapshot{
		Size:         c.StorageSize,
		ETag:         c.StorageETag,
		LastModified: c.StorageLastModified,
		ContentHash:  c.StorageContentHash,
	}
}

// RecordSide returns the database snapshot of the conflict.
func (c *Conflict) RecordSide() SideSnapshot {
	return SideSnapshot{
		Size:         c.RecordSize,
		ETag:         c.RecordETag,
		LastModified: c.RecordLastModified,
		ContentHash:  c.RecordContentHash,
	}
}
