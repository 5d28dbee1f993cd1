package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// StextExtractor reads page layout from MuPDF's structured-text JSON, produced by mutool
type StextExtractor struct {
	MutoolPath string
}

// NewStextExtractor creates an extractor that drives the given mutool binary
func NewStextExtractor(mutoolPath string) *StextExtractor {
	return &StextExtractor{MutoolPath: mutoolPath}
}

type stextJSON struct {
	Pages  []stextPage  `json:"pages"`
	Blocks []stextBlock `json:"blocks"`
}

type stextPage struct {
	Blocks []stextBlock `json:"blocks"`
}

type stextBlock struct {
	Type  string      `json:"type"`
	BBox  stextBBox   `json:"bbox"`
	Lines []stextLine `json:"lines"`
}

type stextBBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (b stextBBox) rect() Rect {
	return Rect{X0: b.X, Y0: b.Y, X1: b.X + b.W, Y1: b.Y + b.H}
}

type stextLine struct {
	WMode int       `json:"wmode"`
	BBox  stextBBox `json:"bbox"`
	Text  string    `json:"text"`
}

// Extract runs mutool for a single page and decodes its blocks
func (e *StextExtractor) Extract(ctx context.Context, doc Document, index int, withText bool) (*Page, error) {
	tmpDir, err := os.MkdirTemp("", "pdf2figures_")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	outPath := filepath.Join(tmpDir, "page.json")
	// the stext device drops images unless preserve-images is set
	cmd := exec.CommandContext(ctx, e.MutoolPath, "draw", "-q",
		"-F", "stext.json",
		"-O", "preserve-images",
		"-o", outPath,
		doc.Path(), strconv.Itoa(index+1),
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("mutool error: %w, output: %s", err, out.String())
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, err
	}

	blocks, err := parseStext(data)
	if err != nil {
		return nil, err
	}

	page := &Page{Index: index, Blocks: blocks}
	if w, h, err := doc.GetPageDimensions(index); err == nil {
		page.Width, page.Height = w, h
	}

	if withText {
		text, err := doc.PageText(index)
		if err != nil {
			return nil, fmt.Errorf("page text: %w", err)
		}
		page.Text = text
	}

	return page, nil
}

// parseStext decodes the blocks of the first page in a stext.json document
func parseStext(data []byte) ([]Block, error) {
	var doc stextJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode stext.json: %w", err)
	}

	raw := doc.Blocks
	if len(doc.Pages) > 0 {
		raw = doc.Pages[0].Blocks
	}

	blocks := make([]Block, 0, len(raw))
	for _, rb := range raw {
		switch rb.Type {
		case "text":
			block := Block{Kind: KindText, Rect: rb.BBox.rect()}
			for _, rl := range rb.Lines {
				block.Lines = append(block.Lines, Line{
					Rect:  rl.BBox.rect(),
					Spans: []Span{{Text: norm.NFKC.String(rl.Text)}},
				})
			}
			blocks = append(blocks, block)
		case "image":
			blocks = append(blocks, Block{Kind: KindImage, Rect: rb.BBox.rect()})
		}
	}
	return blocks, nil
}
