// Package preflight provides readiness checks for the filesystem paths,
// stage catalogue, and notification endpoint shopflow depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll before binding the API and refuses to start
//     when a required check fails.
//   - The CLI "shopflow config validate" command prints every result so an
//     operator can fix the configuration before starting the daemon.
//
// The ntfy check is skipped when no topic is configured.
package preflight
