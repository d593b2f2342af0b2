// Package services defines shared utilities consumed by the workflow engine,
// the HTTP layer, and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage codes, shop IDs, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the engine's error taxonomy (structural, validation, conflict,
//     upstream) so callers can decide whether to retry, override, or give up.
//
// Use these helpers when wiring new components so operational behaviour
// (error classification, observability) stays uniform across the engine.
package services
