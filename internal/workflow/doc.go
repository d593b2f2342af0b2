// Package workflow is the shop floor engine callers talk to.
//
// Engine composes the stage registry, the transition validator, the stage
// history ledger, the workload analyzer, the assignment planner, and the
// board projector over a job store. RequestTransition serializes work per
// job with an in-process keyed lock and relies on the store's
// compare-and-swap commit for safety across processes, so a stale request
// either fails validation or loses with a conflict; it never writes a second
// divergent ledger entry.
//
// Read-side operations (GetWorkload, GetTechnicianAssignments, GetBoard) are
// computed from snapshots and may serve data that is a few seconds old. The
// engine publishes stage, override, and bottleneck notifications through a
// fire-and-forget dispatcher; delivery failures are logged and never affect
// the transition that triggered them.
package workflow
