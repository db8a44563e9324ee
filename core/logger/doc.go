// Package logger provides a structured logging facility based on Zap.
//
// It offers a configured logger instance that supports different environments
// (development vs production) and integrates with the Fiber web framework.
//
// # Context Awareness
//
// The logger is context-aware regarding RayIDs (request IDs). The WithRayID
// helper extracts the RayID from a Fiber context and attaches it to the log
// entry so that all logs related to a specific request can be correlated.
// Media worker processes forward their logs over the pool's side channel
// instead; see core/workerpool.
//
// # Configuration
//
// The package supports configuration for:
//   - Level: debug, info, warn, error
//   - Format: json (production) or console (development)
package logger
