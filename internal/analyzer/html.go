package analyzer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

// HTMLExtractor reads page layout from the HTML layer go-fitz produces.
// MuPDF emits one absolutely positioned <p> per text line (in pt) and one
// <img> per image, placed by a CSS matrix in px over its intrinsic size.
// Lines are regrouped into blocks by vertical proximity.
type HTMLExtractor struct {
	// GapRatio is the largest gap between consecutive lines, relative to the
	// line height, that still keeps them in one block
	GapRatio float64
}

// NewHTMLExtractor creates an HTML extractor with default settings
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{GapRatio: 0.5}
}

// Extract parses the HTML layer of one page
func (e *HTMLExtractor) Extract(ctx context.Context, doc Document, index int, withText bool) (*Page, error) {
	markup, err := doc.PageHTML(index)
	if err != nil {
		return nil, fmt.Errorf("page html: %w", err)
	}

	page, err := e.parse(markup)
	if err != nil {
		return nil, err
	}
	page.Index = index

	if page.Width == 0 || page.Height == 0 {
		if w, h, err := doc.GetPageDimensions(index); err == nil {
			page.Width, page.Height = w, h
		}
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

func (e *HTMLExtractor) parse(markup string) (*Page, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	page := &Page{}
	var current *Block
	var lastLine Rect

	flush := func() {
		if current != nil {
			page.Blocks = append(page.Blocks, *current)
			current = nil
		}
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Div:
				if strings.HasPrefix(attr(n, "id"), "page") && page.Width == 0 {
					style := parseStyle(attr(n, "style"))
					page.Width = parseLength(style["width"])
					page.Height = parseLength(style["height"])
				}
			case atom.P:
				line, ok := parseLine(n)
				if !ok {
					return
				}
				height := line.Rect.Height()
				if current != nil && line.Rect.Y0-lastLine.Y1 <= height*e.GapRatio && line.Rect.Y0 >= lastLine.Y0 {
					current.Lines = append(current.Lines, line)
					current.Rect = current.Rect.Union(line.Rect)
				} else {
					flush()
					current = &Block{Kind: KindText, Rect: line.Rect, Lines: []Line{line}}
				}
				lastLine = line.Rect
				return
			case atom.Img:
				flush()
				if block, ok := parseImage(n); ok {
					page.Blocks = append(page.Blocks, block)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	flush()

	return page, nil
}

func parseLine(n *html.Node) (Line, bool) {
	style := parseStyle(attr(n, "style"))
	top, hasTop := style["top"]
	if !hasTop {
		return Line{}, false
	}
	y := parseLength(top)
	x := parseLength(style["left"])
	h := parseLength(style["line-height"])

	line := Line{Rect: Rect{X0: x, Y0: y, X1: x, Y1: y + h}}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		text := norm.NFKC.String(nodeText(c))
		if text == "" {
			continue
		}
		line.Spans = append(line.Spans, Span{Text: text})
	}
	return line, len(line.Spans) > 0
}

func parseImage(n *html.Node) (Block, bool) {
	style := parseStyle(attr(n, "style"))
	block := Block{Kind: KindImage, Data: decodeDataURI(attr(n, "src"))}

	if top, ok := style["top"]; ok {
		x := parseLength(style["left"])
		y := parseLength(top)
		block.Rect = Rect{X0: x, Y0: y, X1: x + parseLength(style["width"]), Y1: y + parseLength(style["height"])}
		return block, true
	}

	m, ok := parseMatrix(style["transform"])
	if !ok {
		return Block{}, false
	}
	w, h, ok := intrinsicSize(n, block.Data)
	if !ok {
		return Block{}, false
	}
	block.Rect = scaleRect(matrixBounds(m, w, h), ptPerPx)
	return block, true
}

// intrinsicSize returns the element size in CSS px: the width/height
// attributes when present, otherwise the pixel size of the embedded image
func intrinsicSize(n *html.Node, data []byte) (float64, float64, bool) {
	w, errW := strconv.ParseFloat(attr(n, "width"), 64)
	h, errH := strconv.ParseFloat(attr(n, "height"), 64)
	if errW == nil && errH == nil && w > 0 && h > 0 {
		return w, h, true
	}
	if len(data) == 0 {
		return 0, 0, false
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		return 0, 0, false
	}
	return float64(cfg.Width), float64(cfg.Height), true
}

// ptPerPx converts CSS px (96 per inch) into points (72 per inch)
const ptPerPx = 0.75

func scaleRect(r Rect, k float64) Rect {
	return Rect{X0: r.X0 * k, Y0: r.Y0 * k, X1: r.X1 * k, Y1: r.Y1 * k}
}

// matrixBounds returns the box covered by a w×h element under a CSS matrix
// transform applied around its centre, in the matrix units (CSS px)
func matrixBounds(m [6]float64, w, h float64) Rect {
	cx, cy := w/2, h/2
	corners := [][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}}

	r := Rect{X0: math.Inf(1), Y0: math.Inf(1), X1: math.Inf(-1), Y1: math.Inf(-1)}
	for _, p := range corners {
		dx, dy := p[0]-cx, p[1]-cy
		x := m[0]*dx + m[2]*dy + m[4] + cx
		y := m[1]*dx + m[3]*dy + m[5] + cy
		r.X0, r.X1 = math.Min(r.X0, x), math.Max(r.X1, x)
		r.Y0, r.Y1 = math.Min(r.Y0, y), math.Max(r.Y1, y)
	}
	return r
}

func parseMatrix(s string) ([6]float64, bool) {
	var m [6]float64
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "matrix(") || !strings.HasSuffix(s, ")") {
		return m, false
	}
	parts := strings.Split(s[len("matrix("):len(s)-1], ",")
	if len(parts) != 6 {
		return m, false
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return m, false
		}
		m[i] = v
	}
	return m, true
}

func decodeDataURI(src string) []byte {
	if !strings.HasPrefix(src, "data:") {
		return nil
	}
	meta, payload, ok := strings.Cut(src, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil
	}
	return data
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(nodeText(c))
	}
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func parseStyle(s string) map[string]string {
	style := make(map[string]string)
	for _, decl := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		style[strings.TrimSpace(strings.ToLower(k))] = strings.TrimSpace(v)
	}
	return style
}

// parseLength reads a CSS length in points; px values are converted
func parseLength(s string) float64 {
	s = strings.TrimSpace(s)
	k := 1.0
	if strings.HasSuffix(s, "px") {
		s, k = strings.TrimSuffix(s, "px"), ptPerPx
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "pt"), 64)
	if err != nil {
		return 0
	}
	return v * k
}
