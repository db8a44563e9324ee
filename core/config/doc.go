// Package config provides configuration management for photo-sync.
//
// It utilizes Viper for loading configuration from environment variables
// and an optional .env file.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP server settings (port, API key, default tenant)
//   - Database: MySQL connection details
//   - Storage: S3/MinIO credentials, bucket settings or a local root
//   - Log: Logging level and format
//   - Sync: reconciliation tuning (download concurrency, pair window, quota)
//   - Media: build pipeline settings (thumbnail size, cache directory)
//   - Pool: worker process pool sizing and job timeout
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port)
package config
