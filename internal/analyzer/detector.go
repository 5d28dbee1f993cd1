package analyzer

import (
	"context"
	"math"
	"strings"
)

// Kind tags a laid-out block
type Kind int

const (
	KindText Kind = iota
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

// Rect is a box in page coordinates (points, origin top-left, Y grows down)
type Rect struct {
	X0, Y0, X1, Y1 float64
}

func (r Rect) Top() float64    { return r.Y0 }
func (r Rect) Bottom() float64 { return r.Y1 }
func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Valid reports whether the rectangle has finite, non-inverted edges
func (r Rect) Valid() bool {
	for _, v := range []float64{r.X0, r.Y0, r.X1, r.Y1} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return r.X1 >= r.X0 && r.Y1 >= r.Y0
}

// Union returns the smallest rectangle containing both r and o
func (r Rect) Union(o Rect) Rect {
	return Rect{
		X0: math.Min(r.X0, o.X0),
		Y0: math.Min(r.Y0, o.Y0),
		X1: math.Max(r.X1, o.X1),
		Y1: math.Max(r.Y1, o.Y1),
	}
}

// Span is a contiguous styled run of text
type Span struct {
	Text string
}

// Line is an ordered sequence of spans
type Line struct {
	Rect  Rect
	Spans []Span
}

// Block represents one laid-out region of a page
type Block struct {
	Kind  Kind
	Rect  Rect
	Lines []Line // KindText only
	Data  []byte // KindImage only, embedded image bytes when the layer exposes them
}

// Text joins every span of the block, each followed by a space, and trims the result
func (b Block) Text() string {
	var sb strings.Builder
	for _, line := range b.Lines {
		for _, span := range line.Spans {
			sb.WriteString(span.Text)
			sb.WriteString(" ")
		}
	}
	return strings.TrimSpace(sb.String())
}

// Page is the layout of one document page
type Page struct {
	Index  int // 0-based
	Width  float64
	Height float64
	Blocks []Block
	Text   string // filled only when requested
}

// Number returns the 1-based page number
func (p *Page) Number() int {
	return p.Index + 1
}

// Images returns the image blocks in document order
func (p *Page) Images() []Block {
	var images []Block
	for _, b := range p.Blocks {
		if b.Kind == KindImage {
			images = append(images, b)
		}
	}
	return images
}

// Document is the subset of the document model the extractors need
type Document interface {
	Path() string
	GetPageDimensions(index int) (width, height float64, err error)
	PageHTML(index int) (string, error)
	PageText(index int) (string, error)
}

// Extractor is the interface for page layout strategies
type Extractor interface {
	Extract(ctx context.Context, doc Document, index int, withText bool) (*Page, error)
}
