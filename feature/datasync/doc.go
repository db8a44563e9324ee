// Package datasync reconciles a tenant's object storage with its photo
// asset rows. Storage is the source of truth for which photos exist; the
// database is the source of truth for extracted metadata.
//
// A run lists storage once, pairs live/motion photos, diffs the listing
// against the tenant's rows and applies per-key actions: inserts and updates
// go through the media worker pool, deletes remove orphaned rows, diverged
// keys are recorded as conflicts for manual resolution. Runs are serialized
// per tenant by an advisory lock and stream progress as server-sent events.
package datasync
