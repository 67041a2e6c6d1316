package launcher

import "errors"

var (
	// ErrExecutableNotFound is returned when the configured executable does
	// not exist in the work directory.
	ErrExecutableNotFound = errors.New("launcher: executable not found")

	// ErrPoolRequired is returned when a start request has no pool.
	ErrPoolRequired = errors.New("launcher: pool is required")
)
