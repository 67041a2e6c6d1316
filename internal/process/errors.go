package process

import (
	"errors"
	"fmt"
)

// Domain-specific errors for process supervision.
// Use errors.Is() / errors.As() to check for these errors in calling code.
var (
	// ErrNotSupervised is returned when an operation references a process id
	// that is not present in the registry.
	ErrNotSupervised = errors.New("process: not supervised")

	// ErrInvalidLaunchSpec is returned when a LaunchSpec has no binary.
	ErrInvalidLaunchSpec = errors.New("process: invalid launch spec")
)

// SpawnError reports that the operating system refused to create a process.
// Nothing is registered when a SpawnError is returned.
type SpawnError struct {
	Binary string
	Err    error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("process: spawning %s: %v", e.Binary, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
