// Package mediabuild is the per-object extraction pipeline: decode the
// image, compute the content hash over decoded pixels, extract EXIF, build
// the tone histogram, and generate the thumbnail plus its perceptual hash.
//
// The pipeline runs inside isolated worker processes (see core/workerpool)
// so a tenant's huge RAW file can never block the coordinator. Each derived
// artifact has an independent reuse check: when the content hash matches
// the stored record and the artifact already exists (EXIF/tone in the
// manifest, thumbnail on disk), that artifact is carried over instead of
// recomputed. The force flag bypasses all reuse.
//
// Sub-step failures (a photo without EXIF, a phash error) degrade to
// warnings on the build result and null fields on the item; only fetch and
// decode failures fail the job.
package mediabuild
