package cmd

import (
	"context"
	"errors"
	"fmt"

	"photo-sync/core/config"
	"photo-sync/core/database"
	"photo-sync/core/logger"
	"photo-sync/feature/datasync"
	"photo-sync/feature/datasync/models"
	"photo-sync/feature/mediabuild/manifest"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateManifestsDryRun bool

// migrateManifestsCmd eagerly rewrites stored manifests to the current
// schema version. Reads already migrate lazily; this sweep exists so old
// rows do not pay the migration cost forever.
var migrateManifestsCmd = &cobra.Command{
	Use:   "migrate-manifests",
	Short: "Rewrite stored manifests to the current schema version",
	Long: `Walks all asset rows and rewrites manifests stored at an older schema
version. Corrupt manifests are logged and skipped; the owning rows keep their
payload untouched so the next extraction can rebuild them.`,
	RunE: runMigrateManifests,
}

func init() {
	migrateManifestsCmd.Flags().BoolVar(&migrateManifestsDryRun, "dry-run", false, "Report without writing")
	RootCmd.AddCommand(migrateManifestsCmd)
}

func runMigrateManifests(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

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

	store := datasync.NewAssetStore(db)

	var scanned, migrated, corrupt int
	err = store.ForEachRecord(ctx, 500, func(rec *models.PhotoAssetRecord) error {
		scanned++
		if rec.ManifestVersion == manifest.CurrentVersion || len(rec.Manifest) == 0 {
			return nil
		}

		payload, version, err := manifest.Migrate(rec.Manifest, rec.ManifestVersion)
		if errors.Is(err, manifest.ErrCorrupt) {
			corrupt++
			l.Warn("Skipping corrupt manifest",
				zap.String("id", rec.ID),
				zap.String("tenant", rec.TenantID),
				zap.String("key", rec.StorageKey),
				zap.Error(err),
			)
			return nil
		}
		if err != nil {
			return fmt.Errorf("migrate manifest %s: %w", rec.ID, err)
		}

		migrated++
		if migrateManifestsDryRun {
			return nil
		}
		return store.UpdateManifest(ctx, rec.ID, payload, version)
	})
	if err != nil {
		return err
	}

	l.Info("Manifest migration complete",
		zap.Int("scanned", scanned),
		zap.Int("migrated", migrated),
		zap.Int("corrupt", corrupt),
		zap.Bool("dry_run", migrateManifestsDryRun),
	)
	return nil
}
