package datasync

import (
	"time"

	"photo-sync/core/storage"
	"photo-sync/feature/datasync/models"
	"photo-sync/feature/mediabuild"
	"photo-sync/feature/mediabuild/manifest"
)

// ActionType classifies the divergence found for one storage key.
type ActionType string

const (
	ActionInsert   ActionType = "insert"
	ActionUpdate   ActionType = "update"
	ActionDelete   ActionType = "delete"
	ActionConflict ActionType = "conflict"
	ActionError    ActionType = "error"
	ActionNoop     ActionType = "noop"
)

// rank fixes the apply order: inserts, then updates, then deletes, so a
// delete can never remove a row a concurrent insert just repointed to the
// same id. The remaining types are report-only.
func (t ActionType) rank() int {
	switch t {
	case ActionInsert:
		return 0
	case ActionUpdate:
		return 1
	case ActionDelete:
		return 2
	case ActionConflict:
		return 3
	case ActionError:
		return 4
	default:
		return 5
	}
}

// SyncAction is the transient result entity for one key: created by the
// reconciler, applied, reported on the progress stream, then discarded.
type SyncAction struct {
	Type           ActionType            `json:"type"`
	StorageKey     string                `json:"storageKey"`
	PhotoID        string                `json:"photoId,omitempty"`
	ManifestBefore *manifest.Item        `json:"manifestBefore,omitempty"`
	ManifestAfter  *manifest.Item        `json:"manifestAfter,omitempty"`
	Conflict       *models.Conflict      `json:"conflictPayload,omitempty"`
	Resolution     string                `json:"resolution,omitempty"`
	Applied        bool                  `json:"applied"`
	Reason         string                `json:"reason,omitempty"`
	Warnings       []string              `json:"warnings,omitempty"`

	// internal carry-through from classification to apply
	object    *pairedObject
	record    *models.PhotoAssetRecord
	freshHash string

	// reported flags an action already counted and emitted by an apply
	// phase. An extraction that degrades to an error must not be reported
	// again by the error sweep.
	reported bool
}

// Resolution strategies for conflicts.
const (
	ResolvePreferStorage  = "prefer-storage"
	ResolvePreferDatabase = "prefer-database"
)

// Summary aggregates one run.
type Summary struct {
	StorageObjects  int `json:"storageObjects"`
	DatabaseRecords int `json:"databaseRecords"`
	Inserted        int `json:"inserted"`
	Updated         int `json:"updated"`
	Deleted         int `json:"deleted"`
	Conflicts       int `json:"conflicts"`
	Errors          int `json:"errors"`
	Skipped         int `json:"skipped"`
}

// count tallies a reported action into the summary. Counting goes by type,
// not by the applied flag, so dry runs preview the same totals a real run
// would produce.
func (s *Summary) count(a *SyncAction) {
	switch a.Type {
	case ActionInsert:
		s.Inserted++
	case ActionUpdate:
		s.Updated++
	case ActionDelete:
		s.Deleted++
	case ActionConflict:
		s.Conflicts++
	case ActionError:
		s.Errors++
	case ActionNoop:
		s.Skipped++
	}
}

// Progress event types on the run stream.
const (
	EventAction  = "action"
	EventSummary = "summary"
	EventError   = "error"
)

// ProgressEvent is one server-sent event on the run stream.
type ProgressEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// EmitFunc receives progress events as the run advances.
type EmitFunc func(ProgressEvent)

// RunOptions control one reconciliation run.
type RunOptions struct {
	// Prefix restricts the storage listing.
	Prefix string `json:"prefix,omitempty"`
	// DryRun classifies without writing or extracting.
	DryRun bool `json:"dryRun"`
	// Force bypasses all artifact reuse in the build pipeline.
	Force bool `json:"force"`
	// Builder overrides the configured build pipeline settings for this run.
	Builder *mediabuild.Config `json:"builderConfig,omitempty"`
	// Storage overrides the configured storage backend for this run.
	Storage *storage.Config `json:"storageConfig,omitempty"`
}

// RunStatus is the persisted-in-memory record of the last run.
type RunStatus struct {
	Summary     Summary   `json:"summary"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
	DryRun      bool      `json:"dryRun"`
}
