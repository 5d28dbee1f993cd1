package source

import (
	"errors"
	"fmt"
)

// ErrNoPages is returned when a document opens but has nothing to process
var ErrNoPages = errors.New("document has no pages")

// DocumentOpenError means the source document could not be opened at all.
// It is fatal: nothing is written when it occurs.
type DocumentOpenError struct {
	Path string
	Err  error
}

func (e *DocumentOpenError) Error() string {
	return fmt.Sprintf("open document %s: %v", e.Path, e.Err)
}

func (e *DocumentOpenError) Unwrap() error {
	return e.Err
}
