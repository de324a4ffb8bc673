package migrate

import "fmt"

// ValidationError reports a malformed migration definition at registration
// time. The registry is left unchanged.
type ValidationError struct {
	Reason string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid migration: %s", e.Reason)
}

// NotConfiguredError reports that the engine was used before a store handle
// was bound.
type NotConfiguredError struct{}

// Error implements the error interface
func (e *NotConfiguredError) Error() string {
	return "engine is not configured with a store"
}

// NotFoundError reports that no migration carries the requested version.
type NotFoundError struct {
	Version int64
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no migration registered for version %d", e.Version)
}

// InvalidCommandError reports an empty or malformed migration command.
type InvalidCommandError struct {
	Command string
}

// Error implements the error interface
func (e *InvalidCommandError) Error() string {
	if e.Command == "" {
		return "empty migration command"
	}
	return fmt.Sprintf("invalid migration command %q", e.Command)
}

// DirectionUnsupportedError reports that a migration does not implement the
// requested direction. It is raised before the action is invoked.
type DirectionUnsupportedError struct {
	Version   int64
	Direction Direction
}

// Error implements the error interface
func (e *DirectionUnsupportedError) Error() string {
	return fmt.Sprintf("migration %d does not support direction %s", e.Version, e.Direction)
}

// StepExecutionError wraps the failure of a single up/down step. The control
// record stays at the last fully committed version.
type StepExecutionError struct {
	From      int64
	To        int64
	Direction Direction
	Err       error
}

// Error implements the error interface
func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("migration step %d -> %d (%s) failed: %v", e.From, e.To, e.Direction, e.Err)
}

// Unwrap returns the underlying action failure
func (e *StepExecutionError) Unwrap() error {
	return e.Err
}
