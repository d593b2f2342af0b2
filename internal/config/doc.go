// Package config loads, normalizes, and validates shopflow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SHOPFLOW_API_TOKEN. The Config type centralizes every knob the daemon and
// CLI need: where the job database and logs live, which stage catalogue to
// load, the planner's reference hours, and notification toggles.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
