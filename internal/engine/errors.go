package engine

import (
	"errors"
	"fmt"
)

// ErrStopped is returned by command methods once the engine has stopped
// accepting commands.
var ErrStopped = errors.New("engine stopped")

// CommandError reports a command whose arguments cannot be decoded, for
// example a recorded command read back from the store.
type CommandError struct {
	// Op is the command operation.
	Op Op

	// Field names the offending argument. Empty when the op itself is bad.
	Field string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("command %s: %s: %s", e.Op, e.Field, e.Message)
	}
	return fmt.Sprintf("command %s: %s", e.Op, e.Message)
}

// IsCommandError returns true if the error is a CommandError.
// Uses errors.As to handle wrapped errors.
func IsCommandError(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce)
}
