package recorder

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrInvalidBaseName is returned by New when the base name cannot be used as a file name.
var ErrInvalidBaseName = errors.New("invalid recording base name")

// StateError reports a call that is illegal in the writer's current phase.
type StateError struct {
	Op    string
	Phase Phase
}

func (e *StateError) Error() string {
	return fmt.Sprintf("recorder: %s not allowed in phase %s", e.Op, e.Phase)
}

// DecodeError reports a media chunk that is not valid base64.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("recorder: decode chunk: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IOError reports a failure to create, write, patch or release the output file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	// a PathError already names the file
	var pathErr *fs.PathError
	if errors.As(e.Err, &pathErr) {
		return fmt.Sprintf("recorder: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("recorder: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsStateError checks if an error is a StateError
func IsStateError(err error) bool {
	var stateErr *StateError
	return errors.As(err, &stateErr)
}

// IsDecodeError checks if an error is a DecodeError
func IsDecodeError(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}

// IsIOError checks if an error is an IOError
func IsIOError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}

// Kind returns a short label for the error's category, used as a metric label.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsStateError(err):
		return "state"
	case IsDecodeError(err):
		return "decode"
	case IsIOError(err):
		return "io"
	default:
		return "other"
	}
}
