package datasync

import "time"

// Config holds configuration for the reconciliation coordinator.
type Config struct {
	// DownloadConcurrency bounds simultaneous object downloads. It is
	// deliberately separate from the worker pool size: downloads are
	// I/O-bound, decodes are CPU-bound.
	DownloadConcurrency int `mapstructure:"download_concurrency" default:"4"`
	// PairWindowSeconds is the max lastModified gap between a still and a
	// video for live/motion photo pairing.
	PairWindowSeconds int `mapstructure:"pair_window_seconds" default:"10"`
	// MaxObjects is the per-tenant object quota enforced by the default
	// quota checker.
	MaxObjects int `mapstructure:"max_objects" default:"10000"`
	// Enabled toggles the data-sync feature.
	Enabled bool `mapstructure:"enabled" default:"true"`
}

func (c Config) downloadConcurrency() int64 {
	if c.DownloadConcurrency <= 0 {
		return 4
	}
	return int64(c.DownloadConcurrency)
}

func (c Config) pairWindow() time.Duration {
	if c.PairWindowSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.PairWindowSeconds) * time.Second
}
