package engine

import (
	"errors"
	"fmt"
)

// DispatchError reports a Command the server refused.
//
// Dispatch errors are transient by nature: the port vanished between
// evaluation and dispatch, or the link already existed (or was already
// gone). They are logged and never stop the Dispatcher.
type DispatchError struct {
	Command Command
	Err     error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	if e.Command.Batch != "" {
		return fmt.Sprintf("%s failed (batch=%s): %v", e.Command, e.Command.Batch, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// IsDispatchError returns true if err is a dispatch failure.
// Uses errors.As to handle wrapped errors.
func IsDispatchError(err error) bool {
	var de *DispatchError
	return errors.As(err, &de)
}

// ErrUnknownAction is returned for a Command whose Action is neither
// Connect nor Disconnect.
var ErrUnknownAction = errors.New("unknown command action")
