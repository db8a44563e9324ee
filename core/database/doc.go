// Package database provides the GORM database connection used by the
// photo-asset stores.
//
// MySQL is the production driver; sqlite is supported for tests and small
// self-hosted deployments. Connection pool limits and I/O timeouts are set
// on the underlying sql.DB so that a slow storage provider can never pin a
// connection for long.
package database
