// Package config loads, normalizes, and validates clipforge configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// INPUT_BUCKET and the AWS credential variables. The Config type centralizes
// every knob the gateway, worker, and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical backend names, and clear validation errors.
package config
