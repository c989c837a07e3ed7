// Package config loads, normalizes, and validates evalo configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// EVALO_IDENTITY_API_KEY. The Config type centralizes every knob the CLI
// needs, so the grading service location, identity provider credentials, and
// local state directories are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
