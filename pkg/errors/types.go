package errors

import (
	"fmt"
)

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// InvalidName represents a file name that can't be used inside a sync root,
// such as one containing a path separator.
type InvalidName struct {
	Name   string
	Reason string
}

func (err InvalidName) Error() string {
	return fmt.Sprintf("invalid file name %q: %s", err.Name, err.Reason)
}
