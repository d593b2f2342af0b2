// Package transition decides whether a job may move between two stages.
//
// The Validator is a referentially transparent decision function over a
// stages.Registry: it never mutates state and is safe to call speculatively,
// for example to preview a drag-and-drop move before committing it. Rules are
// evaluated in order: unknown codes are structural and never overridable,
// backward moves and moves that skip the stage graph need an override, and a
// job must have satisfied the current stage's requirements before leaving it
// unless the caller overrides.
//
// Classify labels an accepted move as forward, skip, backward, or parallel
// for the ledger. The label depends only on the two stages, never on whether
// an override was needed.
package transition
