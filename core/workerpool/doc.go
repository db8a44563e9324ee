// Package workerpool isolates CPU-heavy media extraction in child
// processes and marshals jobs across the boundary.
//
// The host side (Pool) owns a fixed number of worker processes, spawned
// lazily and replaced lazily after a crash. Each job is one JSON line on
// the worker's stdin; the worker answers with a response line on stdout,
// optionally interleaved with log messages that the host forwards to the
// job's caller. Requests and responses are correlated by a generated id and
// delivered only to the in-flight caller, never broadcast.
//
// The worker side (Server) is run by the hidden "worker" subcommand of this
// same binary. It executes one job at a time; pool size is the concurrency
// bound.
//
// Failure semantics: a job error reported by a live worker is a
// *RemoteError and leaves the worker in the pool. A dead or out-of-sync
// worker fails the in-flight job with ErrWorkerUnavailable; no automatic
// retry happens, that policy belongs to the caller.
package workerpool
