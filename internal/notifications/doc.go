// Package notifications delivers shop floor events to people watching the
// board: stage changes, overrides, and newly detected bottlenecks.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Dispatcher wraps any Service so the engine can fire and forget:
// publishing never blocks a transition and failures are only logged.
package notifications
