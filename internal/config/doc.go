// Package config loads, validates, and normalizes sumika configuration.
//
// Configuration lives in a TOML file. Load applies repository defaults first,
// then the file, then environment fallbacks for secrets (API tokens, export
// DSN), so a minimal config file stays minimal. All path fields are expanded
// (~ and relative segments) before any other package sees them.
package config
