package datasync

import (
	"photo-sync/core/storage"
	"photo-sync/core/workerpool"
	"photo-sync/feature/mediabuild"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	handler *Handler
	assets  *AssetStore
	cfg     Config
}

// NewFeature wires the reconciliation feature: stores, runner, service and
// HTTP handler. The worker pool is shared with the rest of the process.
func NewFeature(
	backend storage.Backend,
	storageCfg storage.Config,
	buildCfg mediabuild.Config,
	poolCfg workerpool.Config,
	cfg Config,
	db *gorm.DB,
	pool *workerpool.Pool,
	logger *zap.Logger,
	defaultTenant string,
) *Feature {
	assets := NewAssetStore(db)
	conflicts := NewConflictStore(db)
	runner := NewRunner(backend, storageCfg, buildCfg, poolCfg, cfg, assets, conflicts, pool, nil, logger)
	svc := NewService(runner, assets, conflicts, cfg, logger)
	h := NewHandler(svc, defaultTenant)
	return &Feature{service: svc, handler: h, assets: assets, cfg: cfg}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "data-sync"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return f.cfg.Enabled
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}

// Migrate creates or updates the feature's tables.
func (f *Feature) Migrate() error {
	return f.assets.Migrate()
}

// Service exposes the underlying service for CLI commands.
func (f *Feature) Service() *Service {
	return f.service
}
