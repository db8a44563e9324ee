package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photo-sync/core/config"
	"photo-sync/core/database"
	"photo-sync/core/loader"
	"photo-sync/core/logger"
	"photo-sync/core/middleware/auth"
	"photo-sync/core/middleware/rayid"
	"photo-sync/core/storage"
	"photo-sync/core/workerpool"

	"photo-sync/feature/datasync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "photo-sync/docs/swagger"
)

// @title Photo Sync API
// @version 1.0
// @description API for reconciling photo storage with the gallery database.
// @host localhost:8080
// @BasePath /

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the photo sync server",
	Long:  `Starts the HTTP server, the media worker pool and all enabled features.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Connect to Database
		db, err := database.Connect(cfg.Database)
		if err != nil {
			logg.Fatal("Failed to connect to database", zap.Error(err))
		}

		// 4. Initialize Storage
		backend, err := storage.NewBackend(cfg.Storage)
		if err != nil {
			logg.Fatal("Failed to create storage backend", zap.Error(err))
		}

		// 5. Worker pool (shared across tenants, workers spawn lazily)
		pool := workerpool.New(cfg.Pool, logg)

		// 6. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true, // We will log our own startup message
		})

		// 7. Initialize Feature Loader
		mgr := loader.NewManager()

		syncFeature := datasync.NewFeature(
			backend, cfg.Storage, cfg.Media, cfg.Pool, cfg.Sync,
			db, pool, logg, cfg.Server.DefaultTenant,
		)
		if err := syncFeature.Migrate(); err != nil {
			logg.Fatal("Failed to migrate database schema", zap.Error(err))
		}
		mgr.Register(syncFeature)

		// Middleware Registration
		// RayID must be first to trace everything.
		app.Use(rayid.New())

		// Request logging with Zap + RayID.
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// Swagger Documentation (Public)
		app.Get("/swagger/*", swagger.HandlerDefault)

		// Auth (Protect API)
		app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey}))

		// Load Features
		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", cfg.Server.Port))
			if err := app.Listen(":" + cfg.Server.Port); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		_ = app.Shutdown()

		// Let in-flight extraction jobs finish before killing workers.
		drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := pool.Drain(drainCtx); err != nil {
			logg.Warn("Worker pool drain timed out", zap.Error(err))
		}
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
