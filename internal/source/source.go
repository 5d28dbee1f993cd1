package source

import (
	"image"

	"github.com/gen2brain/go-fitz"
)

// Source is the document model: page geometry, layout layers and rasters
type Source interface {
	Path() string
	PageCount() int
	GetPageDimensions(index int) (width, height float64, err error)
	PageHTML(index int) (string, error)
	PageText(index int) (string, error)
	RenderPage(index int, dpi int) (image.Image, error)
	Close() error
}

type FitzPDFSource struct {
	doc  *fitz.Document
	path string
}

// Open opens a PDF (or any format MuPDF reads) through go-fitz
func Open(path string) (*FitzPDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, &DocumentOpenError{Path: path, Err: err}
	}
	if doc.NumPage() == 0 {
		doc.Close()
		return nil, &DocumentOpenError{Path: path, Err: ErrNoPages}
	}
	return &FitzPDFSource{doc: doc, path: path}, nil
}

func (f *FitzPDFSource) Path() string {
	return f.path
}

func (f *FitzPDFSource) PageCount() int {
	return f.doc.NumPage()
}

func (f *FitzPDFSource) GetPageDimensions(index int) (float64, float64, error) {
	rect, err := f.doc.Bound(index)
	if err != nil {
		return 0, 0, err
	}
	return float64(rect.Dx()), float64(rect.Dy()), nil
}

// PageHTML returns MuPDF's positioned HTML for one page, images inlined
func (f *FitzPDFSource) PageHTML(index int) (string, error) {
	return f.doc.HTML(index, false)
}

func (f *FitzPDFSource) PageText(index int) (string, error) {
	return f.doc.Text(index)
}

// RenderPage rasterises a whole page; 72 dpi maps one point to one pixel
func (f *FitzPDFSource) RenderPage(index int, dpi int) (image.Image, error) {
	return f.doc.ImageDPI(index, float64(dpi))
}

func (f *FitzPDFSource) Close() error {
	return f.doc.Close()
}
