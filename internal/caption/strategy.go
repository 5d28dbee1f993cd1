package caption

import (
	"errors"
	"fmt"

	"github.com/ivlev/pdf2figures/internal/analyzer"
)

// ErrMalformedBlock is returned when an image block cannot be evaluated
var ErrMalformedBlock = errors.New("malformed image block")

// Caption is the outcome of caption association for one image
type Caption struct {
	Text     string
	Found    bool
	Distance float64 // position strategy only
}

// Strategy associates caption text with an image on a page
type Strategy interface {
	Name() string
	// NeedsPageText reports whether pages must carry their plain text
	NeedsPageText() bool
	// Permissive strategies extract every image, captioned or not, and
	// prefer embedded image data over cutting the region from the page
	Permissive() bool
	Find(page *analyzer.Page, imageIndex int, image analyzer.Block) (Caption, error)
}

// Options tune the strategies
type Options struct {
	MaxDistance float64
}

// DefaultOptions returns the standard tuning
func DefaultOptions() Options {
	return Options{MaxDistance: 50}
}

// NewStrategy creates a caption strategy by name
func NewStrategy(name string, opts Options) (Strategy, error) {
	switch name {
	case "position", "":
		if opts.MaxDistance <= 0 {
			opts.MaxDistance = DefaultOptions().MaxDistance
		}
		return &PositionStrategy{MaxDistance: opts.MaxDistance}, nil
	case "keyword":
		return &KeywordStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown caption strategy: %s", name)
	}
}

func checkImage(image analyzer.Block) error {
	if image.Kind != analyzer.KindImage {
		return fmt.Errorf("%w: block is %s", ErrMalformedBlock, image.Kind)
	}
	if !image.Rect.Valid() {
		return fmt.Errorf("%w: bbox %+v", ErrMalformedBlock, image.Rect)
	}
	return nil
}
