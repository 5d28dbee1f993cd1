package renderer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ivlev/pdf2figures/internal/analyzer"
	"github.com/ivlev/pdf2figures/internal/system"
)

// ErrEmptyRegion is returned when an image box does not overlap the page raster
var ErrEmptyRegion = errors.New("image region is empty")

// PageRenderer rasterises whole pages
type PageRenderer interface {
	RenderPage(index int, dpi int) (image.Image, error)
}

// Clip describes an image file written to disk
type Clip struct {
	FileName string
	Path     string
	Width    int
	Height   int
	Size     int64
}

// Clipper cuts image regions out of rendered pages and persists them as PNG
type Clipper struct {
	Source       PageRenderer
	OutputDir    string
	DPI          int
	MaxDimension int // 0 keeps the native size

	cachedIndex int
	cachedPage  image.Image
}

// NewClipper creates a clipper writing into outputDir
func NewClipper(src PageRenderer, outputDir string, dpi, maxDimension int) *Clipper {
	if dpi <= 0 {
		dpi = 72
	}
	return &Clipper{
		Source:       src,
		OutputDir:    outputDir,
		DPI:          dpi,
		MaxDimension: maxDimension,
		cachedIndex:  -1,
	}
}

// FileName returns the deterministic name for an image, both numbers 1-based
func FileName(pageNumber, imageNumber int) string {
	return fmt.Sprintf("image_%d_%d.png", pageNumber, imageNumber)
}

// Clip extracts one image block. With useHandle set and embedded bytes
// available, the bytes are decoded directly; otherwise the region is cut
// from the page raster.
func (c *Clipper) Clip(page *analyzer.Page, imageIndex int, block analyzer.Block, useHandle bool) (*Clip, error) {
	name := FileName(page.Number(), imageIndex+1)
	if useHandle && len(block.Data) > 0 {
		return c.Decode(block.Data, name)
	}
	return c.ClipRegion(page.Index, block.Rect, name)
}

// ClipRegion renders the page (once per page) and copies the box out of it
func (c *Clipper) ClipRegion(pageIndex int, r analyzer.Rect, name string) (*Clip, error) {
	pageImg, err := c.page(pageIndex)
	if err != nil {
		return nil, err
	}

	scale := float64(c.DPI) / 72
	bounds := pageImg.Bounds()
	region := image.Rect(
		int(math.Floor(r.X0*scale)), int(math.Floor(r.Y0*scale)),
		int(math.Ceil(r.X1*scale)), int(math.Ceil(r.Y1*scale)),
	).Add(bounds.Min).Intersect(bounds)
	if region.Empty() {
		return nil, fmt.Errorf("%w: %+v", ErrEmptyRegion, r)
	}

	dst := system.GetImage(region.Size())
	defer system.PutImage(dst)
	draw.Copy(dst, image.Point{}, pageImg, region, draw.Src, nil)

	return c.save(c.limit(dst), name)
}

// Decode decodes embedded image bytes and re-encodes them as PNG
func (c *Clipper) Decode(data []byte, name string) (*Clip, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: decoded %s has no pixels", ErrEmptyRegion, format)
	}
	return c.save(c.limit(img), name)
}

// Reset drops the cached page raster
func (c *Clipper) Reset() {
	c.cachedIndex = -1
	c.cachedPage = nil
}

func (c *Clipper) page(index int) (image.Image, error) {
	if c.cachedIndex == index && c.cachedPage != nil {
		return c.cachedPage, nil
	}
	img, err := c.Source.RenderPage(index, c.DPI)
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	c.cachedIndex = index
	c.cachedPage = img
	return img, nil
}

// limit downsizes img so that its longest side fits MaxDimension
func (c *Clipper) limit(img image.Image) image.Image {
	size := img.Bounds().Size()
	longest := max(size.X, size.Y)
	if c.MaxDimension <= 0 || longest <= c.MaxDimension {
		return img
	}

	ratio := float64(c.MaxDimension) / float64(longest)
	w := max(1, int(math.Round(float64(size.X)*ratio)))
	h := max(1, int(math.Round(float64(size.Y)*ratio)))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// save writes a PNG and reads it back to report what actually landed on disk.
// A file that cannot be verified is removed.
func (c *Clipper) save(img image.Image, name string) (*Clip, error) {
	path := filepath.Join(c.OutputDir, name)

	if err := writePNG(path, img); err != nil {
		os.Remove(path)
		return nil, err
	}

	cfg, size, err := inspectFile(path)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("verify %s: %w", name, err)
	}

	return &Clip{
		FileName: name,
		Path:     path,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Size:     size,
	}, nil
}

// inspectFile returns the decoded dimensions and the byte size of an image file
var inspectFile = func(path string) (image.Config, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return image.Config{}, 0, err
	}

	info, err := f.Stat()
	if err != nil {
		return image.Config{}, 0, err
	}
	return cfg, info.Size(), nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}
