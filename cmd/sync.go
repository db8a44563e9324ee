package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"photo-sync/core/config"
	"photo-sync/core/database"
	"photo-sync/core/logger"
	"photo-sync/core/storage"
	"photo-sync/core/workerpool"
	"photo-sync/feature/datasync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	syncTenant string
	syncPrefix string
	syncDryRun bool
	syncForce  bool
)

// syncCmd runs one reconciliation from the command line.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one reconciliation for a tenant",
	Long: `Runs a single reconciliation pass: lists object storage, diffs it
against the tenant's asset rows and applies the resulting actions.

Examples:
  # Preview what a run would do
  photo-sync sync --dry-run

  # Reconcile a prefix for one tenant
  photo-sync sync --tenant acme --prefix 2024/

  # Rebuild all derived artifacts even when content is unchanged
  photo-sync sync --force`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncTenant, "tenant", "", "Tenant to reconcile (defaults to the configured tenant)")
	syncCmd.Flags().StringVar(&syncPrefix, "prefix", "", "Restrict the storage listing to a key prefix")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Classify only, apply nothing")
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "Bypass artifact reuse and rebuild everything")

	RootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer l.Sync()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	backend, err := storage.NewBackend(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}

	pool := workerpool.New(cfg.Pool, l)
	defer pool.Stop()

	feature := datasync.NewFeature(
		backend, cfg.Storage, cfg.Media, cfg.Pool, cfg.Sync,
		db, pool, l, cfg.Server.DefaultTenant,
	)
	if err := feature.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}

	tenant := syncTenant
	if tenant == "" {
		tenant = cfg.Server.DefaultTenant
	}

	// Ctrl-C cancels the run; applied actions stay, in-flight work is
	// abandoned and resumed by the next run.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := datasync.RunOptions{Prefix: syncPrefix, DryRun: syncDryRun, Force: syncForce}

	status, err := feature.Service().Run(ctx, tenant, opts, func(ev datasync.ProgressEvent) {
		logProgressEvent(l, ev)
	})
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	s := status.Summary
	l.Info("Reconciliation summary",
		zap.Int("storage_objects", s.StorageObjects),
		zap.Int("database_records", s.DatabaseRecords),
		zap.Int("inserted", s.Inserted),
		zap.Int("updated", s.Updated),
		zap.Int("deleted", s.Deleted),
		zap.Int("conflicts", s.Conflicts),
		zap.Int("errors", s.Errors),
		zap.Int("skipped", s.Skipped),
		zap.Bool("dry_run", status.DryRun),
		zap.Duration("took", status.CompletedAt.Sub(status.StartedAt)),
	)
	return nil
}

// logProgressEvent renders one progress event through the logger.
func logProgressEvent(l *zap.Logger, ev datasync.ProgressEvent) {
	action, ok := ev.Payload.(*datasync.SyncAction)
	if ev.Type != datasync.EventAction || !ok {
		return
	}

	switch action.Type {
	case datasync.ActionError:
		l.Error("Action failed",
			zap.String("key", action.StorageKey),
			zap.String("reason", action.Reason),
		)
	case datasync.ActionConflict:
		l.Warn("Conflict detected",
			zap.String("key", action.StorageKey),
			zap.String("reason", action.Reason),
		)
	case datasync.ActionNoop:
		l.Debug("No change",
			zap.String("key", action.StorageKey),
			zap.String("reason", action.Reason),
		)
	default:
		l.Info("Action",
			zap.String("type", string(action.Type)),
			zap.String("key", action.StorageKey),
			zap.Bool("applied", action.Applied),
			zap.String("reason", action.Reason),
		)
	}
}
