// Package main hosts the shopflow CLI entrypoint and command graph.
//
// The Cobra-based command tree opens the local job database directly and
// drives the same workflow engine the daemon serves over HTTP, so an operator
// can register jobs, move them between stages, and inspect shop workload from
// a terminal. Every read command accepts --json and emits the same payloads
// the HTTP API returns.
//
// Keep this package lean: add new functionality to the internal packages
// first, then surface it through dedicated commands or flags here.
package main
