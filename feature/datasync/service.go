package datasync

import (
	"context"
	"sync"

	"photo-sync/feature/datasync/models"

	"go.uber.org/zap"
)

// StatusReport is what the status endpoint returns for one tenant.
type StatusReport struct {
	Running      bool             `json:"running"`
	LastRun      *RunStatus       `json:"lastRun,omitempty"`
	RecordCounts map[string]int64 `json:"recordCounts"`
}

// Service fronts the reconciliation subsystem for one deployment. It tracks
// per-tenant run state in memory; the durable truth lives in the asset rows
// and conflict table, so a restart only forgets the last summary.
type Service struct {
	runner    *Runner
	assets    *AssetStore
	conflicts *ConflictStore
	cfg       Config
	logger    *zap.Logger

	mu       sync.Mutex
	running  map[string]bool
	lastRuns map[string]*RunStatus
}

// NewService creates the service.
func NewService(runner *Runner, assets *AssetStore, conflicts *ConflictStore, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		runner:    runner,
		assets:    assets,
		conflicts: conflicts,
		cfg:       cfg,
		logger:    logger,
		running:   map[string]bool{},
		lastRuns:  map[string]*RunStatus{},
	}
}

// Run executes one reconciliation for the tenant, streaming progress through
// emit. Concurrent runs for the same tenant fail fast with ErrTenantBusy
// (the advisory lock is the cross-process guard; this flag only keeps the
// status endpoint honest).
func (s *Service) Run(ctx context.Context, tenantID string, opts RunOptions, emit EmitFunc) (*RunStatus, error) {
	s.mu.Lock()
	if s.running[tenantID] {
		s.mu.Unlock()
		// Rejected before the runner could report anything, so the stream
		// event comes from here. The runner emits its own when the advisory
		// lock rejects.
		if emit != nil {
			emit(ProgressEvent{Type: EventError, Payload: map[string]any{"error": ErrTenantBusy.Error()}})
		}
		return nil, ErrTenantBusy
	}
	s.running[tenantID] = true
	s.mu.Unlock()

	status, err := s.runner.Run(ctx, tenantID, opts, emit)

	s.mu.Lock()
	s.running[tenantID] = false
	if status != nil {
		s.lastRuns[tenantID] = status
	}
	s.mu.Unlock()

	return status, err
}

// Status reports the tenant's run state and per-status row counts.
func (s *Service) Status(ctx context.Context, tenantID string) (*StatusReport, error) {
	counts, err := s.assets.StatusCounts(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	report := &StatusReport{
		Running:      s.running[tenantID],
		LastRun:      s.lastRuns[tenantID],
		RecordCounts: counts,
	}
	s.mu.Unlock()

	return report, nil
}

// Conflicts lists the tenant's unresolved conflicts.
func (s *Service) Conflicts(ctx context.Context, tenantID string) ([]models.Conflict, error) {
	return s.conflicts.List(ctx, tenantID)
}

// Resolve applies a resolution strategy to one conflict.
func (s *Service) Resolve(ctx context.Context, tenantID, conflictID, strategy string, dryRun bool) (*SyncAction, error) {
	return s.runner.Resolve(ctx, tenantID, conflictID, strategy, dryRun)
}
