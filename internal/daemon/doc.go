// Package daemon coordinates the long-running shopflowd process.
//
// It wires configuration, the SQLite job store, the workflow engine, and the
// HTTP API into a single lifecycle with flock-based locking to prevent two
// daemons from serving the same data directory. Run is the process entry
// point used by cmd/shopflowd; Daemon is the lifecycle it drives.
//
// Keep orchestration logic here: transition rules live in workflow and wire
// handling lives in httpapi.
package daemon
