package audit

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidUTF8 is returned for candidate files that are not UTF-8 text.
	ErrInvalidUTF8 = errors.New("file is not valid UTF-8")

	// ErrUnsafeEdit is returned when an edit would change more than the one
	// inserted marker line.
	ErrUnsafeEdit = errors.New("edit is not a single marker insertion")
)

// FileError records why one file was abandoned during a run.
type FileError struct {
	Path string
	Op   string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }
