// Package config loads, normalizes, and validates director configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, applies a local .env file, and honours
// environment fallbacks such as GEMINI_API_KEY and ANTHROPIC_API_KEY. The
// Config type centralizes every knob the CLI and API server need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
