package datasync

import (
	"context"
	"errors"
	"fmt"

	"photo-sync/core/storage"
	"photo-sync/feature/datasync/models"

	"go.uber.org/zap"
)

// Resolve applies a human-chosen resolution to one recorded conflict.
//
// Before any write, the live object is re-stat'ed and compared against the
// conflict's recorded storage snapshot. Any mismatch means storage changed
// again since the conflict was written; resolving on stale evidence could
// lose data, so the call fails with ErrStaleConflict and the caller must
// re-run reconciliation first.
func (r *Runner) Resolve(ctx context.Context, tenantID, conflictID, strategy string, dryRun bool) (*SyncAction, error) {
	if strategy != ResolvePreferStorage && strategy != ResolvePreferDatabase {
		return nil, fmt.Errorf("unknown resolution strategy %q", strategy)
	}

	conflict, err := r.conflicts.Get(ctx, tenantID, conflictID)
	if err != nil {
		return nil, err
	}

	log := r.logger.With(
		zap.String("tenant", tenantID),
		zap.String("conflict_id", conflictID),
		zap.String("key", conflict.StorageKey),
		zap.String("strategy", strategy),
	)

	obj, err := r.backend.Stat(ctx, conflict.StorageKey)
	objectGone := errors.Is(err, storage.ErrObjectNotFound)
	if err != nil && !objectGone {
		return nil, fmt.Errorf("stat object for resolution: %w", err)
	}

	snap := conflict.StorageSide()
	if objectGone {
		if !snapshotEmpty(snap) {
			return nil, ErrStaleConflict
		}
	} else if !snapshotMatches(snap, &obj) {
		return nil, ErrStaleConflict
	}

	switch strategy {
	case ResolvePreferDatabase:
		return r.resolvePreferDatabase(ctx, tenantID, conflict, obj, objectGone, dryRun, log)
	default:
		return r.resolvePreferStorage(ctx, tenantID, conflict, obj, objectGone, dryRun, log)
	}
}

// resolvePreferDatabase keeps the stored manifest: the row flips back to
// synced with its signature refreshed to the live object, so the next run
// short-circuits on it.
func (r *Runner) resolvePreferDatabase(ctx context.Context, tenantID string, conflict *models.Conflict, obj storage.Object, objectGone, dryRun bool, log *zap.Logger) (*SyncAction, error) {
	rec, err := r.assets.Get(ctx, tenantID, conflict.StorageKey)
	if err != nil {
		return nil, err
	}

	action := &SyncAction{
		Type:       ActionNoop,
		StorageKey: conflict.StorageKey,
		PhotoID:    rec.ID,
		Resolution: ResolvePreferDatabase,
		Reason:     "kept database manifest",
	}
	if dryRun {
		return action, nil
	}

	if !objectGone {
		rec.Size = obj.Size
		rec.ETag = obj.ETag
		if !obj.LastModified.IsZero() {
			lm := obj.LastModified
			rec.LastModified = &lm
		} else {
			rec.LastModified = nil
		}
		if err := r.assets.RefreshSignature(ctx, rec); err != nil {
			return nil, err
		}
	}
	if err := r.assets.SetStatus(ctx, tenantID, conflict.StorageKey, models.StatusSynced); err != nil {
		return nil, err
	}
	if err := r.conflicts.Delete(ctx, tenantID, conflict.ID); err != nil {
		return nil, err
	}

	action.Applied = true
	log.Info("conflict resolved")
	return action, nil
}

// resolvePreferStorage makes storage authoritative: the object is
// re-extracted through the worker pool and the row rebuilt from the result.
// When the object is gone, preferring storage means deleting the row.
func (r *Runner) resolvePreferStorage(ctx context.Context, tenantID string, conflict *models.Conflict, obj storage.Object, objectGone, dryRun bool, log *zap.Logger) (*SyncAction, error) {
	if objectGone {
		action := &SyncAction{
			Type:       ActionDelete,
			StorageKey: conflict.StorageKey,
			Resolution: ResolvePreferStorage,
			Reason:     "object gone, dropped database row",
		}
		if dryRun {
			return action, nil
		}
		if err := r.assets.Delete(ctx, tenantID, conflict.StorageKey); err != nil {
			return nil, err
		}
		if err := r.conflicts.Delete(ctx, tenantID, conflict.ID); err != nil {
			return nil, err
		}
		action.Applied = true
		log.Info("conflict resolved")
		return action, nil
	}

	rec, err := r.assets.Get(ctx, tenantID, conflict.StorageKey)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}

	action := &SyncAction{
		Type:       ActionUpdate,
		StorageKey: conflict.StorageKey,
		Resolution: ResolvePreferStorage,
		Reason:     "re-extracted from storage",
		object:     &pairedObject{Still: obj},
		record:     rec,
	}
	if rec != nil {
		action.PhotoID = rec.ID
	}
	if dryRun {
		return action, nil
	}

	// Single-key resolution re-extracts without live-photo pairing; the next
	// full run re-attaches a video partner if one exists.
	r.runExtraction(ctx, tenantID, action, RunOptions{Force: true}, r.defaultEnv(), newBufferCache(), log)
	if action.Type == ActionError {
		return nil, fmt.Errorf("resolution extraction failed: %s", action.Reason)
	}

	if err := r.conflicts.Delete(ctx, tenantID, conflict.ID); err != nil {
		return nil, err
	}
	log.Info("conflict resolved")
	return action, nil
}

// snapshotMatches compares a recorded storage snapshot against the live
// object, same precedence as the reconciler's signature check.
func snapshotMatches(snap models.SideSnapshot, obj *storage.Object) bool {
	if snap.Size != obj.Size {
		return false
	}
	if snap.ETag != obj.ETag {
		return false
	}
	if snap.LastModified == nil {
		return obj.LastModified.IsZero()
	}
	return snap.LastModified.Equal(obj.LastModified)
}

// snapshotEmpty reports whether the snapshot recorded a vanished object.
func snapshotEmpty(snap models.SideSnapshot) bool {
	return snap.Size == 0 && snap.ETag == "" && snap.LastModified == nil && snap.ContentHash == ""
}
