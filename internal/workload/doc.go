// Package workload aggregates a snapshot of active jobs into per-stage
// utilization, bottleneck flags, and overdue counts.
//
// Analyze is a pure function over its inputs: it never reads or writes the
// ledger, so it can run on cached or slightly stale snapshots.
package workload
