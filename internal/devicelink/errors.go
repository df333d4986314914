package devicelink

import (
	"errors"
	"fmt"
)

// ErrClosed is returned for commands issued after Close.
var ErrClosed = errors.New("device link closed")

// LinkError reports a transport failure: the port could not be opened,
// written or read.
type LinkError struct {
	Op   string
	Path string
	Err  error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("link %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }

// StateError reports a command issued in a state that does not accept it.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("link %s: not allowed in state %s", e.Op, e.State)
}

// ErrShortWrite is wrapped in a LinkError when the port accepts fewer bytes
// than the command.
var ErrShortWrite = errors.New("short write to serial port")
