// Package config loads journal configuration from file and environment.
//
// Precedence is built-in defaults, then the config file (JSON or YAML by
// extension), then SCRIBE_* environment variables.
package config
