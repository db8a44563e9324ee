package datasync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"photo-sync/core/storage"
	"photo-sync/core/workerpool"
	"photo-sync/feature/datasync/models"
	"photo-sync/feature/mediabuild"
	"photo-sync/feature/mediabuild/manifest"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Runner coordinates one reconciliation run: list storage, diff against
// asset rows, dispatch extraction to the worker pool, persist results, and
// stream progress. The pool is injected, never global; it is shared across
// all tenants' runs.
type Runner struct {
	backend    storage.Backend
	storageCfg storage.Config
	buildCfg   mediabuild.Config
	poolCfg    workerpool.Config
	cfg        Config

	assets    *AssetStore
	conflicts *ConflictStore
	pool      *workerpool.Pool
	quota     QuotaChecker
	logger    *zap.Logger
}

// NewRunner wires a coordinator.
func NewRunner(
	backend storage.Backend,
	storageCfg storage.Config,
	buildCfg mediabuild.Config,
	poolCfg workerpool.Config,
	cfg Config,
	assets *AssetStore,
	conflicts *ConflictStore,
	pool *workerpool.Pool,
	quota QuotaChecker,
	logger *zap.Logger,
) *Runner {
	if quota == nil {
		quota = NewMaxObjectsQuota(cfg.MaxObjects)
	}
	return &Runner{
		backend:    backend,
		storageCfg: storageCfg,
		buildCfg:   buildCfg,
		poolCfg:    poolCfg,
		cfg:        cfg,
		assets:     assets,
		conflicts:  conflicts,
		pool:       pool,
		quota:      quota,
		logger:     logger,
	}
}

// Run executes one reconciliation for a tenant under its advisory lock.
// Progress events stream through emit; the returned status summarizes the
// run. Run-level failures (listing, auth, quota, lock) surface as both an
// error event and the returned error; per-key failures never abort the run.
func (r *Runner) Run(ctx context.Context, tenantID string, opts RunOptions, emit EmitFunc) (*RunStatus, error) {
	if emit == nil {
		emit = func(ProgressEvent) {}
	}

	status := &RunStatus{StartedAt: time.Now(), DryRun: opts.DryRun}

	err := r.assets.WithTenantLock(ctx, tenantID, func() error {
		return r.run(ctx, tenantID, opts, emit, status)
	})

	status.CompletedAt = time.Now()
	if err != nil {
		emit(ProgressEvent{Type: EventError, Payload: map[string]any{"error": err.Error()}})
		return status, err
	}

	emit(ProgressEvent{Type: EventSummary, Payload: status})
	return status, nil
}

// runEnv is the backend and config set one run operates on. Per-run
// overrides from the request replace the configured defaults here, never on
// the Runner itself.
type runEnv struct {
	backend    storage.Backend
	storageCfg storage.Config
	buildCfg   mediabuild.Config
}

func (r *Runner) defaultEnv() *runEnv {
	return &runEnv{backend: r.backend, storageCfg: r.storageCfg, buildCfg: r.buildCfg}
}

func (r *Runner) envFor(opts RunOptions) (*runEnv, error) {
	env := r.defaultEnv()
	if opts.Builder != nil {
		env.buildCfg = *opts.Builder
	}
	if opts.Storage != nil {
		backend, err := storage.NewBackend(*opts.Storage)
		if err != nil {
			return nil, err
		}
		env.backend = backend
		env.storageCfg = *opts.Storage
	}
	return env, nil
}

func (r *Runner) run(ctx context.Context, tenantID string, opts RunOptions, emit EmitFunc, status *RunStatus) error {
	log := r.logger.With(zap.String("tenant", tenantID), zap.Bool("dry_run", opts.DryRun))
	log.Info("reconciliation started", zap.String("prefix", opts.Prefix))

	env, err := r.envFor(opts)
	if err != nil {
		return err
	}

	objects, err := env.backend.List(ctx, opts.Prefix).Drain()
	if err != nil {
		return err
	}

	if err := r.quota.Check(ctx, tenantID, len(objects)); err != nil {
		return err
	}

	records, err := r.assets.ListByTenant(ctx, tenantID)
	if err != nil {
		return err
	}

	status.Summary.StorageObjects = len(objects)
	status.Summary.DatabaseRecords = len(records)

	// Live/motion pairing must happen before classification so a pair is
	// one logical asset, not two actions.
	var media, others []storage.Object
	for _, obj := range objects {
		if _, isVideo := videoKind(obj.Key); isStill(obj.Key) || isVideo {
			media = append(media, obj)
		} else {
			others = append(others, obj)
		}
	}
	pairs, unpairedVideos := pairObjects(media, r.cfg.pairWindow())

	// The hash probe downloads under its own limiter (downloads are
	// I/O-bound; the decode bound is the pool size) and keeps the buffer
	// for the build pipeline so changed objects are fetched exactly once.
	buffers := newBufferCache()
	downloadSem := semaphore.NewWeighted(r.cfg.downloadConcurrency())
	probe := func(ctx context.Context, obj storage.Object) (string, error) {
		if err := downloadSem.Acquire(ctx, 1); err != nil {
			return "", err
		}
		defer downloadSem.Release(1)

		raw, err := env.backend.Fetch(ctx, obj.Key)
		if err != nil {
			return "", err
		}
		buffers.put(obj.Key, raw)
		return mediabuild.HashBytes(raw)
	}

	actions := classify(ctx, classifyInput{
		Pairs:          pairs,
		UnpairedVideos: unpairedVideos,
		Others:         others,
		Records:        records,
	}, probe)

	if opts.DryRun {
		for i := range actions {
			actions[i].Applied = false
			status.Summary.count(&actions[i])
			emit(ProgressEvent{Type: EventAction, Payload: &actions[i]})
		}
		log.Info("dry run complete", zap.Int("actions", len(actions)))
		return nil
	}

	r.applyExtractions(ctx, tenantID, actions, opts, env, buffers, emit, status, log)
	r.applyConflicts(ctx, actions, emit, status, log)
	r.applyDeletes(ctx, tenantID, actions, emit, status, log)
	r.applyNoops(ctx, actions, emit, status)

	log.Info("reconciliation finished",
		zap.Int("inserted", status.Summary.Inserted),
		zap.Int("updated", status.Summary.Updated),
		zap.Int("deleted", status.Summary.Deleted),
		zap.Int("conflicts", status.Summary.Conflicts),
		zap.Int("errors", status.Summary.Errors),
		zap.Int("skipped", status.Summary.Skipped),
	)
	return nil
}

// applyExtractions runs all insert/update actions through the worker pool.
// Inserts and updates touch disjoint keys, so they run concurrently; the
// insert-before-update-before-delete ordering is preserved because deletes
// only start after this phase drains.
func (r *Runner) applyExtractions(ctx context.Context, tenantID string, actions []SyncAction, opts RunOptions, env *runEnv, buffers *bufferCache, emit EmitFunc, status *RunStatus, log *zap.Logger) {
	var mu sync.Mutex // guards summary + emit ordering

	poolSize := r.poolCfg.Workers
	if poolSize <= 0 {
		poolSize = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(poolSize + int(r.cfg.downloadConcurrency()))

	for i := range actions {
		action := &actions[i]
		if action.Type != ActionInsert && action.Type != ActionUpdate {
			continue
		}
		if ctx.Err() != nil {
			// Canceled: stop dispatching. Unstarted actions are discarded,
			// never reported as applied.
			break
		}

		g.Go(func() error {
			r.runExtraction(gctx, tenantID, action, opts, env, buffers, log)
			mu.Lock()
			status.Summary.count(action)
			emit(ProgressEvent{Type: EventAction, Payload: action})
			action.reported = true
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

// runExtraction processes one insert/update action end to end. On any
// failure the action degrades to an error action; the caller continues with
// the rest of the run.
func (r *Runner) runExtraction(ctx context.Context, tenantID string, action *SyncAction, opts RunOptions, env *runEnv, buffers *bufferCache, log *zap.Logger) {
	pair := action.object
	key := action.StorageKey

	var existing *manifest.Item
	var existingHash string
	photoID := action.PhotoID
	if rec := action.record; rec != nil {
		existingHash = rec.ContentHash
		if len(rec.Manifest) > 0 {
			item, err := manifest.Decode(rec.Manifest, rec.ManifestVersion)
			if err != nil {
				// Corrupt manifests are excluded, not fatal: the rebuild
				// below replaces them wholesale.
				log.Warn("stored manifest corrupt, rebuilding", zap.String("key", key), zap.Error(err))
				action.Warnings = append(action.Warnings, "stored manifest corrupt, rebuilt")
			} else {
				existing = item
				action.ManifestBefore = item
			}
		}
	}
	if photoID == "" {
		photoID = uuid.NewString()
		action.PhotoID = photoID
	}

	// Mark the row pending before dispatch so an interrupted run is
	// resumable and a concurrent storage change is detectable.
	pendingRow := r.rowFromPair(tenantID, photoID, pair, action.record, models.StatusPending)
	if err := r.assets.Upsert(ctx, pendingRow); err != nil {
		r.degrade(action, err)
		return
	}

	payload := &mediabuild.ProcessPhotoPayload{
		Storage: env.storageCfg,
		Build:   env.buildCfg,
		Request: mediabuild.BuildRequest{
			PhotoID:      photoID,
			Object:       pair.Still,
			Buffer:       buffers.take(key),
			Existing:     existing,
			ExistingHash: existingHash,
			Video:        pair.videoInfo(env.backend.PublicURL),
			Force:        opts.Force,
		},
	}

	onLog := func(level, message string) {
		switch level {
		case "error":
			log.Error("worker: "+message, zap.String("key", key))
		case "warn":
			log.Warn("worker: "+message, zap.String("key", key))
		default:
			log.Debug("worker: "+message, zap.String("key", key))
		}
	}

	raw, err := r.pool.Do(ctx, workerpool.TypeProcessPhoto, payload, onLog)
	if err != nil {
		if ctx.Err() != nil {
			// Canceled mid-flight: the result (if any) is discarded and the
			// row stays pending for the next run to resume.
			r.degrade(action, ctx.Err())
			return
		}
		if errors.Is(err, workerpool.ErrWorkerUnavailable) {
			log.Warn("worker crashed during extraction", zap.String("key", key), zap.Error(err))
		}
		_ = r.assets.SetStatus(context.WithoutCancel(ctx), tenantID, key, models.StatusError)
		r.degrade(action, err)
		return
	}

	var result mediabuild.BuildResult
	if err := json.Unmarshal(raw, &result); err != nil {
		_ = r.assets.SetStatus(context.WithoutCancel(ctx), tenantID, key, models.StatusError)
		r.degrade(action, fmt.Errorf("decode build result: %w", err))
		return
	}

	if ctx.Err() != nil {
		// The worker finished but the caller is gone; do not commit.
		r.degrade(action, ctx.Err())
		return
	}

	manifestJSON, err := json.Marshal(result.Item)
	if err != nil {
		r.degrade(action, err)
		return
	}

	row := r.rowFromPair(tenantID, result.Item.ID, pair, action.record, models.StatusSynced)
	row.ContentHash = result.ContentHash
	row.Manifest = manifestJSON
	row.ManifestVersion = manifest.CurrentVersion

	if err := r.assets.Upsert(ctx, row); err != nil {
		r.degrade(action, err)
		return
	}

	action.ManifestAfter = result.Item
	action.Warnings = append(action.Warnings, result.Warnings...)
	action.Applied = true
}

func (r *Runner) rowFromPair(tenantID, photoID string, pair *pairedObject, prev *models.PhotoAssetRecord, syncStatus string) *models.PhotoAssetRecord {
	row := &models.PhotoAssetRecord{
		ID:         photoID,
		TenantID:   tenantID,
		StorageKey: pair.Still.Key,
		Size:       pair.Still.Size,
		ETag:       pair.Still.ETag,
		SyncStatus: syncStatus,
	}
	if !pair.Still.LastModified.IsZero() {
		lm := pair.Still.LastModified
		row.LastModified = &lm
	}
	if prev != nil {
		// Keep the previous manifest visible while the rebuild is pending.
		row.ContentHash = prev.ContentHash
		row.Manifest = prev.Manifest
		row.ManifestVersion = prev.ManifestVersion
	}
	return row
}

func (r *Runner) degrade(action *SyncAction, err error) {
	action.Type = ActionError
	action.Applied = false
	action.Reason = (&ExtractionError{Key: action.StorageKey, Err: err}).Error()
}

// applyConflicts persists conflict snapshots and flips rows to conflict
// status so the next run keeps re-emitting them until resolved.
func (r *Runner) applyConflicts(ctx context.Context, actions []SyncAction, emit EmitFunc, status *RunStatus, log *zap.Logger) {
	for i := range actions {
		action := &actions[i]
		if action.Type != ActionConflict {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		if action.Conflict != nil {
			if err := r.conflicts.Save(ctx, action.Conflict); err != nil {
				log.Error("failed to persist conflict", zap.String("key", action.StorageKey), zap.Error(err))
			}
		}
		if rec := action.record; rec != nil && rec.SyncStatus != models.StatusConflict {
			if err := r.assets.SetStatus(ctx, rec.TenantID, rec.StorageKey, models.StatusConflict); err != nil {
				log.Error("failed to flag row conflicted", zap.String("key", action.StorageKey), zap.Error(err))
			}
		}

		status.Summary.count(action)
		emit(ProgressEvent{Type: EventAction, Payload: action})
		action.reported = true
	}
}

// applyDeletes removes rows whose objects vanished. Runs strictly after the
// extraction phase so a delete can never race an insert/update.
func (r *Runner) applyDeletes(ctx context.Context, tenantID string, actions []SyncAction, emit EmitFunc, status *RunStatus, log *zap.Logger) {
	for i := range actions {
		action := &actions[i]
		if action.Type != ActionDelete {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		if err := r.assets.Delete(ctx, tenantID, action.StorageKey); err != nil {
			log.Error("failed to delete row", zap.String("key", action.StorageKey), zap.Error(err))
			r.degrade(action, err)
		} else {
			action.Applied = true
		}

		status.Summary.count(action)
		emit(ProgressEvent{Type: EventAction, Payload: action})
		action.reported = true
	}
}

// applyNoops reports noops and absorbs metadata-only drift by refreshing
// the stored signature, so the next run short-circuits on it. Error actions
// handled here are the ones produced at classification time; anything an
// earlier phase degraded was already reported there.
func (r *Runner) applyNoops(ctx context.Context, actions []SyncAction, emit EmitFunc, status *RunStatus) {
	for i := range actions {
		action := &actions[i]
		if action.Type != ActionNoop && action.Type != ActionError {
			continue
		}
		if action.reported {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		if action.Type == ActionNoop && action.freshHash != "" && action.record != nil && action.object != nil {
			refreshed := *action.record
			refreshed.Size = action.object.Still.Size
			refreshed.ETag = action.object.Still.ETag
			if !action.object.Still.LastModified.IsZero() {
				lm := action.object.Still.LastModified
				refreshed.LastModified = &lm
			}
			_ = r.assets.RefreshSignature(ctx, &refreshed)
		}

		status.Summary.count(action)
		emit(ProgressEvent{Type: EventAction, Payload: action})
	}
}

// bufferCache holds downloaded object bodies between the hash probe and the
// extraction dispatch. Entries are taken exactly once.
type bufferCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newBufferCache() *bufferCache {
	return &bufferCache{data: map[string][]byte{}}
}

func (c *bufferCache) put(key string, raw []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
}

func (c *bufferCache) take(key string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw := c.data[key]
	delete(c.data, key)
	return raw
}
