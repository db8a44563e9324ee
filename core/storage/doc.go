// Package storage abstracts the tenant's remote object storage.
//
// Two backends are provided: an S3-compatible one built on the minio client
// (plain endpoints and managed proxies alike) and a local-directory one for
// self-hosted galleries. Both expose the same Backend surface: a lazy,
// restartable listing plus stat/fetch/put for individual objects.
//
// # Error taxonomy
//
// Listing failures are split into two kinds. A ListingError is transient:
// the caller may retry the whole listing. An AuthError is fatal: the storage
// configuration itself is wrong and retrying cannot help. Both abort the
// reconciliation run that observed them; per-object fetch errors never do.
package storage
