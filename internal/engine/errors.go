package engine

import "fmt"

// PageError means one page could not be laid out. The page is skipped.
type PageError struct {
	Page int // 1-based
	Op   string
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %s: %v", e.Page, e.Op, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// ImageError means one image could not be captioned, decoded or written.
// The image is skipped.
type ImageError struct {
	Page  int // 1-based
	Index int // 1-based, position among the page's images
	Op    string
	Err   error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("page %d image %d: %s: %v", e.Page, e.Index, e.Op, e.Err)
}

func (e *ImageError) Unwrap() error {
	return e.Err
}
