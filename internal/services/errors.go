// Package services implements the process lifecycle operations the API
// collaborator consumes: start, stop, and status, plus the
// configuration validation that keeps a misconfigured process out of
// RUNNING.
package services

import "errors"

var (
	// ErrValidation wraps a configuration error surfaced at start() — the
	// process is marked FAILED and never reaches RUNNING.
	ErrValidation = errors.New("services: validation failed")

	// ErrNotFound indicates the referenced process does not exist.
	ErrNotFound = errors.New("services: not found")

	// ErrAlreadyExists indicates a uniqueness constraint would be violated.
	ErrAlreadyExists = errors.New("services: already exists")
)
