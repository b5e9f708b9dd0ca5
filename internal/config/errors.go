package config

import "errors"

var (
	// ErrConfigNotFound indicates a configuration file was not found. Missing
	// YAML is not fatal on its own — only missing required env vars are.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidYAML indicates YAML parsing failed.
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// ErrMissingRequiredEnv indicates a required environment variable was unset.
	ErrMissingRequiredEnv = errors.New("missing required environment variable")
)
