// Package stages owns the immutable catalogue of production stages a repair
// job moves through.
//
// A Registry is built once at process start from a list of Definitions
// (the built-in DefaultCatalog or a TOML catalogue loaded with LoadCatalog)
// and never mutated afterwards. Construction is the only place a malformed
// stage graph is rejected: duplicate codes, duplicate ranks, allowed-next
// targets that do not exist, and self loops all fail NewRegistry. Every
// downstream component (validator, ledger, analyzers) assumes a validated
// registry and receives it by injection.
//
// Requirements are an enumerated vocabulary rather than free-form strings so
// the missing-requirements check is a well-defined set difference.
package stages
