// Package api defines wire-format types and converters for the HTTP API and
// the CLI's --json output. It translates engine models into transport
// friendly DTOs so clients never couple to internal types.
//
// # Key Types
//
// Stage: one catalogue entry with its successors, requirements, time limit,
// and capacity.
//
// Job and TransitionRecord: a repair order and one row of its stage history.
//
// TransitionResponse / ValidationResult: the outcome of a transition request,
// including the validator verdict on rejection.
//
// WorkloadReport, TechnicianProjection, Board: read-side snapshots.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Stage
// codes, movement types, and requirement tags are exposed as lowercase
// strings. Timestamps use RFC3339 with milliseconds; durations are reported
// in whole minutes.
package api
