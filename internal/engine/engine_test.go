package engine

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivlev/pdf2figures/internal/analyzer"
	"github.com/ivlev/pdf2figures/internal/caption"
	"github.com/ivlev/pdf2figures/internal/config"
	"github.com/ivlev/pdf2figures/internal/manifest"
	"github.com/ivlev/pdf2figures/internal/source"
)

// fakeSource is a document of blank 400x400 pt pages
type fakeSource struct {
	pages int
}

func (s *fakeSource) Path() string                                          { return "test.pdf" }
func (s *fakeSource) PageCount() int                                        { return s.pages }
func (s *fakeSource) GetPageDimensions(index int) (float64, float64, error) { return 400, 400, nil }
func (s *fakeSource) PageHTML(index int) (string, error)                    { return "", nil }
func (s *fakeSource) PageText(index int) (string, error)                    { return "", nil }
func (s *fakeSource) Close() error                                          { return nil }

func (s *fakeSource) RenderPage(index int, dpi int) (image.Image, error) {
	size := 400 * dpi / 72
	return image.NewRGBA(image.Rect(0, 0, size, size)), nil
}

// fakeExtractor returns prepared pages; a missing page fails to load
type fakeExtractor struct {
	pages map[int]*analyzer.Page
	calls int
}

func (e *fakeExtractor) Extract(ctx context.Context, doc analyzer.Document, index int, withText bool) (*analyzer.Page, error) {
	e.calls++
	page, ok := e.pages[index]
	if !ok {
		return nil, errors.New("cannot parse page")
	}
	page.Index = index
	return page, nil
}

func imageBlock(top, bottom float64) analyzer.Block {
	return analyzer.Block{Kind: analyzer.KindImage, Rect: analyzer.Rect{X0: 50, Y0: top, X1: 250, Y1: bottom}}
}

func textBlock(top float64, text string) analyzer.Block {
	return analyzer.Block{
		Kind:  analyzer.KindText,
		Rect:  analyzer.Rect{X0: 50, Y0: top, X1: 350, Y1: top + 12},
		Lines: []analyzer.Line{{Spans: []analyzer.Span{{Text: text}}}},
	}
}

func newTestProject(t *testing.T, src *fakeSource, ext *fakeExtractor, strategy string, logs *bytes.Buffer) *ExtractionProject {
	t.Helper()

	cfg := config.Default()
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")
	cfg.Strategy = strategy

	s, err := caption.NewStrategy(strategy, caption.Options{MaxDistance: cfg.CaptionDistance})
	if err != nil {
		t.Fatalf("NewStrategy failed: %v", err)
	}

	log := zerolog.Nop()
	if logs != nil {
		log = zerolog.New(logs)
	}

	p := NewExtractionProject(cfg, src, ext, s, log)
	p.Out = &bytes.Buffer{}
	p.Now = func() time.Time { return time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC) }
	return p
}

func TestThreePageScenario(t *testing.T) {
	ext := &fakeExtractor{pages: map[int]*analyzer.Page{
		0: {Blocks: []analyzer.Block{imageBlock(100, 250), textBlock(262, "Figure 1: A chart.")}},
		1: {Blocks: []analyzer.Block{imageBlock(100, 250)}},
		// page 3 fails to load
	}}
	var logs bytes.Buffer
	p := newTestProject(t, &fakeSource{pages: 3}, ext, "position", &logs)

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.ImagesFound != 2 || res.ImagesCaptioned != 1 || res.PagesFailed != 1 {
		t.Errorf("Unexpected counters: %+v", res)
	}
	if len(res.Records) != 1 {
		t.Fatalf("Expected exactly one record, got %d", len(res.Records))
	}

	rec := res.Records[0]
	if rec.Page != 1 || rec.FileName != "image_1_1.png" || rec.Caption != "Figure 1: A chart." {
		t.Errorf("Unexpected record: %+v", rec)
	}
	if rec.Width != 200 || rec.Height != 150 {
		t.Errorf("Expected 200x150, got %dx%d", rec.Width, rec.Height)
	}

	if !strings.Contains(logs.String(), `"page":3`) || !strings.Contains(logs.String(), "page skipped") {
		t.Errorf("Expected a warning for page 3, got logs: %s", logs.String())
	}

	data, err := os.ReadFile(res.ManifestPath)
	if err != nil {
		t.Fatalf("Expected manifest: %v", err)
	}
	if n := strings.Count(string(data), "Page: "); n != 1 {
		t.Errorf("Expected one manifest entry, got %d", n)
	}
}

func TestManifestMatchesFiles(t *testing.T) {
	ext := &fakeExtractor{pages: map[int]*analyzer.Page{
		0: {Blocks: []analyzer.Block{
			imageBlock(10, 100), textBlock(110, "Figure 1: First."),
			imageBlock(150, 250), textBlock(255, "Fig. 2: Second."),
		}},
	}}
	p := newTestProject(t, &fakeSource{pages: 1}, ext, "position", nil)

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(res.Records))
	}

	for _, rec := range res.Records {
		info, err := os.Stat(filepath.Join(p.Config.OutputDir, rec.FileName))
		if err != nil {
			t.Errorf("Missing file for %s: %v", rec.FileName, err)
			continue
		}
		if info.Size() != rec.Size {
			t.Errorf("%s: manifest says %d bytes, file has %d", rec.FileName, rec.Size, info.Size())
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	ext := &fakeExtractor{pages: map[int]*analyzer.Page{
		0: {Blocks: []analyzer.Block{imageBlock(100, 250), textBlock(262, "Figure 1: A chart.")}},
		1: {Blocks: []analyzer.Block{imageBlock(10, 60), textBlock(70, "FIGURE 2: Another.")}},
	}}
	p := newTestProject(t, &fakeSource{pages: 2}, ext, "position", nil)

	run := func() ([]byte, []string) {
		res, err := p.Run(context.Background())
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		data, err := os.ReadFile(res.ManifestPath)
		if err != nil {
			t.Fatal(err)
		}
		entries, _ := os.ReadDir(p.Config.OutputDir)
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		sort.Strings(names)
		return data, names
	}

	firstManifest, firstFiles := run()
	secondManifest, secondFiles := run()

	if !bytes.Equal(firstManifest, secondManifest) {
		t.Errorf("Manifests differ between runs:\n%s\n---\n%s", firstManifest, secondManifest)
	}
	if strings.Join(firstFiles, ",") != strings.Join(secondFiles, ",") {
		t.Errorf("File sets differ: %v vs %v", firstFiles, secondFiles)
	}
}

func TestFaultIsolation(t *testing.T) {
	ext := &fakeExtractor{pages: map[int]*analyzer.Page{
		0: {Blocks: []analyzer.Block{
			imageBlock(10, 60), textBlock(70, "Figure 1: Fine."),
			// outside the 400x400 page, clipping fails
			{Kind: analyzer.KindImage, Rect: analyzer.Rect{X0: 900, Y0: 900, X1: 950, Y1: 950}},
			textBlock(960, "Figure 2: Broken."),
			imageBlock(200, 260), textBlock(270, "Figure 3: Also fine."),
		}},
		1: {Blocks: []analyzer.Block{imageBlock(10, 60), textBlock(70, "Figure 4: Next page.")}},
	}}
	var logs bytes.Buffer
	p := newTestProject(t, &fakeSource{pages: 2}, ext, "position", &logs)

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var names []string
	for _, rec := range res.Records {
		names = append(names, rec.FileName)
	}
	want := "image_1_1.png,image_1_3.png,image_2_1.png"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
	if res.ImagesFailed != 1 {
		t.Errorf("Expected 1 failed image, got %d", res.ImagesFailed)
	}
	if !strings.Contains(logs.String(), `"image":2`) {
		t.Errorf("Expected a warning for image 2, got logs: %s", logs.String())
	}
}

func TestMalformedImageIsSkipped(t *testing.T) {
	ext := &fakeExtractor{pages: map[int]*analyzer.Page{
		0: {Blocks: []analyzer.Block{
			{Kind: analyzer.KindImage, Rect: analyzer.Rect{X0: 0, Y0: 200, X1: 10, Y1: 100}},
			imageBlock(10, 60), textBlock(70, "Figure 1: Fine."),
		}},
	}}
	p := newTestProject(t, &fakeSource{pages: 1}, ext, "position", nil)

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.ImagesFailed != 1 || len(res.Records) != 1 {
		t.Errorf("Expected one failure and one record, got %+v", res)
	}
	if res.Records[0].FileName != "image_1_2.png" {
		t.Errorf("Expected image_1_2.png, got %s", res.Records[0].FileName)
	}
}

func TestPageWithoutImages(t *testing.T) {
	ext := &fakeExtractor{pages: map[int]*analyzer.Page{
		0: {Blocks: []analyzer.Block{textBlock(10, "Figure 1: Caption without an image.")}},
	}}
	p := newTestProject(t, &fakeSource{pages: 1}, ext, "position", nil)

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.ImagesFound != 0 || res.ImagesCaptioned != 0 || len(res.Records) != 0 {
		t.Errorf("Expected an empty result, got %+v", res)
	}
}

func TestKeywordStrategyExtractsEveryImage(t *testing.T) {
	ext := &fakeExtractor{pages: map[int]*analyzer.Page{
		0: {
			Blocks: []analyzer.Block{imageBlock(10, 60), imageBlock(100, 160)},
			Text:   "Intro\nExhibit 1: Sales by region\n",
		},
		1: {Blocks: []analyzer.Block{imageBlock(10, 60)}, Text: "nothing here"},
	}}
	p := newTestProject(t, &fakeSource{pages: 2}, ext, "keyword", nil)
	p.Config.ManifestYAML = true

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(res.Records) != 3 || res.ImagesCaptioned != 2 {
		t.Fatalf("Expected 3 records and 2 captions, got %+v", res)
	}
	for _, rec := range res.Records[:2] {
		if rec.Caption != "Exhibit 1: Sales by region" {
			t.Errorf("%s: unexpected caption %q", rec.FileName, rec.Caption)
		}
	}
	if res.Records[2].Caption != caption.NoCaption {
		t.Errorf("Expected sentinel caption, got %q", res.Records[2].Caption)
	}

	m, err := manifest.ReadYAML(filepath.Join(p.Config.OutputDir, "image_list.yaml"))
	if err != nil {
		t.Fatalf("Expected YAML manifest: %v", err)
	}
	if len(m.Images) != 3 || m.ImagesExtracted != 3 {
		t.Errorf("Unexpected YAML manifest: %+v", m.Header)
	}
}

func TestProgressOutput(t *testing.T) {
	pages := map[int]*analyzer.Page{}
	for i := 0; i < 25; i++ {
		pages[i] = &analyzer.Page{}
	}
	p := newTestProject(t, &fakeSource{pages: 25}, &fakeExtractor{pages: pages}, "position", nil)
	out := &bytes.Buffer{}
	p.Out = out

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// pages 1, 11 and 21 report progress
	if n := strings.Count(out.String(), "[*] Страница "); n != 3 {
		t.Errorf("Expected 3 progress lines, got %d:\n%s", n, out.String())
	}
	if !strings.Contains(out.String(), "[+++]") {
		t.Error("Expected a final summary")
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")

	var err error = &PageError{Page: 2, Op: "extract", Err: cause}
	if !errors.Is(err, cause) || err.Error() != "page 2: extract: boom" {
		t.Errorf("Unexpected PageError: %v", err)
	}

	err = &ImageError{Page: 2, Index: 3, Op: "clip", Err: cause}
	if !errors.Is(err, cause) || err.Error() != "page 2 image 3: clip: boom" {
		t.Errorf("Unexpected ImageError: %v", err)
	}
}

func TestDecodeFailureIsIsolated(t *testing.T) {
	corrupt := imageBlock(100, 160)
	corrupt.Data = []byte("not an image")

	ext := &fakeExtractor{pages: map[int]*analyzer.Page{
		0: {
			Blocks: []analyzer.Block{imageBlock(10, 60), corrupt, imageBlock(200, 260)},
			Text:   "Figure 1: Overview",
		},
		1: {Blocks: []analyzer.Block{imageBlock(10, 60)}, Text: "Figure 2: Detail"},
	}}
	var logs bytes.Buffer
	p := newTestProject(t, &fakeSource{pages: 2}, ext, "keyword", &logs)

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var names []string
	for _, rec := range res.Records {
		names = append(names, rec.FileName)
	}
	want := "image_1_1.png,image_1_3.png,image_2_1.png"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
	if res.ImagesFailed != 1 || res.ImagesFound != 4 {
		t.Errorf("Unexpected counters: %+v", res)
	}
	if !strings.Contains(logs.String(), `"image":2`) || !strings.Contains(logs.String(), "decode image") {
		t.Errorf("Expected a decode warning for image 2, got logs: %s", logs.String())
	}
	if _, err := os.Stat(filepath.Join(p.Config.OutputDir, "image_1_2.png")); !os.IsNotExist(err) {
		t.Error("Expected no file for the undecodable image")
	}
}

func TestNoPagesLeavesNothingOnDisk(t *testing.T) {
	p := newTestProject(t, &fakeSource{pages: 0}, &fakeExtractor{}, "position", nil)

	if _, err := p.Run(context.Background()); !errors.Is(err, source.ErrNoPages) {
		t.Fatalf("Expected ErrNoPages, got %v", err)
	}
	if _, err := os.Stat(p.Config.OutputDir); !os.IsNotExist(err) {
		t.Errorf("Expected no output directory, got %v", err)
	}
}
