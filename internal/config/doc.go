// Package config loads, validates, and normalizes bookspool configuration
// from a TOML file.
package config
