// Package config loads, normalizes, and validates NeuroFlow configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and centralizes every knob the CLI and the
// worker need: session/log directories, pipeline parameter defaults, and
// batch runner limits.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
