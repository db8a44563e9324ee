package datasync

import (
	"context"
	"fmt"
	"sort"

	"photo-sync/core/storage"
	"photo-sync/feature/datasync/models"
)

// hashProbe downloads and decodes one object to compute its content hash.
// The runner's probe caches the downloaded buffer so the build pipeline
// does not fetch the same bytes twice.
type hashProbe func(ctx context.Context, obj storage.Object) (string, error)

// classifyInput is the batch diff input: the paired storage listing and the
// tenant's asset rows, both loaded once per run.
type classifyInput struct {
	Pairs          []pairedObject
	UnpairedVideos []storage.Object
	Others         []storage.Object
	Records        []models.PhotoAssetRecord
}

// classify turns the storage listing and asset rows into an ordered list of
// sync actions. Every key in the union is classified exactly once; paired
// live-photo keys collapse into the still's action. Per-key probe failures
// degrade that key to an error action, never the whole run.
//
// Signature precedence is fixed: (size, etag, lastModified) are compared
// first, and the content hash is only computed when that signature
// mismatches. Providers without etags therefore always fall through to the
// hash probe.
func classify(ctx context.Context, in classifyInput, probe hashProbe) []SyncAction {
	recordsByKey := make(map[string]*models.PhotoAssetRecord, len(in.Records))
	for i := range in.Records {
		recordsByKey[in.Records[i].StorageKey] = &in.Records[i]
	}

	seen := make(map[string]struct{})
	var actions []SyncAction

	for i := range in.Pairs {
		pair := &in.Pairs[i]
		seen[pair.Still.Key] = struct{}{}
		actions = append(actions, classifyPair(ctx, pair, recordsByKey[pair.Still.Key], probe))
	}

	for _, v := range in.UnpairedVideos {
		seen[v.Key] = struct{}{}
		actions = append(actions, SyncAction{
			Type:       ActionNoop,
			StorageKey: v.Key,
			Reason:     "video without still partner",
		})
	}

	for _, o := range in.Others {
		seen[o.Key] = struct{}{}
		actions = append(actions, SyncAction{
			Type:       ActionNoop,
			StorageKey: o.Key,
			Reason:     "unsupported file type",
		})
	}

	// Remaining DB rows have no storage object behind them anymore.
	for i := range in.Records {
		rec := &in.Records[i]
		if _, ok := seen[rec.StorageKey]; ok {
			continue
		}
		actions = append(actions, classifyOrphanRecord(rec))
	}

	// Stable apply order: inserts, then updates, then deletes.
	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].Type.rank() != actions[j].Type.rank() {
			return actions[i].Type.rank() < actions[j].Type.rank()
		}
		return actions[i].StorageKey < actions[j].StorageKey
	})

	return actions
}

// classifyPair handles a key present in storage (rec may be nil).
func classifyPair(ctx context.Context, pair *pairedObject, rec *models.PhotoAssetRecord, probe hashProbe) SyncAction {
	key := pair.Still.Key

	if rec == nil {
		return SyncAction{Type: ActionInsert, StorageKey: key, object: pair}
	}

	action := SyncAction{StorageKey: key, PhotoID: rec.ID, object: pair, record: rec}

	switch rec.SyncStatus {
	case models.StatusConflict:
		// Never auto-resolve a key with unresolved state: keep emitting the
		// conflict until a human picks a side.
		action.Type = ActionConflict
		action.Reason = "unresolved conflict"
		action.Conflict = buildConflict(rec, &pair.Still, "")
		return action

	case models.StatusPending:
		if signatureEqual(rec, &pair.Still) {
			// Same object as last time; resume the interrupted extraction.
			action.Type = ActionUpdate
			action.Reason = "resuming pending extraction"
			return action
		}
		// Storage moved underneath unresolved state.
		action.Type = ActionConflict
		action.Reason = "storage changed while row was pending"
		action.Conflict = buildConflict(rec, &pair.Still, "")
		return action

	case models.StatusError:
		action.Type = ActionUpdate
		action.Reason = "retrying failed extraction"
		return action
	}

	// Synced row: metadata signature first, content hash only on drift.
	if signatureEqual(rec, &pair.Still) {
		action.Type = ActionNoop
		return action
	}

	hash, err := probe(ctx, pair.Still)
	if err != nil {
		action.Type = ActionError
		action.Reason = (&ExtractionError{Key: key, Err: err}).Error()
		return action
	}

	if hash == rec.ContentHash {
		// Metadata-only drift: the same bytes were re-uploaded. Refresh the
		// stored signature so the next run short-circuits.
		action.Type = ActionNoop
		action.Reason = "metadata drift, content unchanged"
		action.freshHash = hash
		return action
	}

	action.Type = ActionUpdate
	action.freshHash = hash
	return action
}

// classifyOrphanRecord handles a DB row whose key vanished from storage.
func classifyOrphanRecord(rec *models.PhotoAssetRecord) SyncAction {
	action := SyncAction{StorageKey: rec.StorageKey, PhotoID: rec.ID, record: rec}

	switch rec.SyncStatus {
	case models.StatusSynced:
		action.Type = ActionDelete
		action.Reason = "object removed upstream"
	case models.StatusConflict:
		action.Type = ActionConflict
		action.Reason = "object removed while conflicted"
		action.Conflict = buildConflict(rec, nil, "")
	default:
		// Never-synced rows with no object behind them carry no manifest
		// worth deleting; report and leave them for inspection.
		action.Type = ActionNoop
		action.Reason = fmt.Sprintf("row is %s and object is gone", rec.SyncStatus)
	}
	return action
}

// signatureEqual compares the provider metadata signature of a row against
// the live object, in fixed precedence: size, etag, lastModified.
func signatureEqual(rec *models.PhotoAssetRecord, obj *storage.Object) bool {
	if rec.Size != obj.Size {
		return false
	}
	if rec.ETag != obj.ETag {
		return false
	}
	if rec.LastModified == nil {
		return obj.LastModified.IsZero()
	}
	return rec.LastModified.Equal(obj.LastModified)
}

// buildConflict snapshots both sides of a diverged key. obj may be nil when
// the object vanished from storage.
func buildConflict(rec *models.PhotoAssetRecord, obj *storage.Object, storageHash string) *models.Conflict {
	c := &models.Conflict{
		TenantID:           rec.TenantID,
		StorageKey:         rec.StorageKey,
		RecordSize:         rec.Size,
		RecordETag:         rec.ETag,
		RecordLastModified: rec.LastModified,
		RecordContentHash:  rec.ContentHash,
	}
	if obj != nil {
		c.StorageSize = obj.Size
		c.StorageETag = obj.ETag
		c.StorageContentHash = storageHash
		if !obj.LastModified.IsZero() {
			lm := obj.LastModified
			c.StorageLastModified = &lm
		}
	}
	return c
}
