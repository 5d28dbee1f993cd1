package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivlev/pdf2figures/internal/analyzer"
	"github.com/ivlev/pdf2figures/internal/caption"
	"github.com/ivlev/pdf2figures/internal/config"
	"github.com/ivlev/pdf2figures/internal/manifest"
	"github.com/ivlev/pdf2figures/internal/renderer"
	"github.com/ivlev/pdf2figures/internal/source"
)

type ExtractionProject struct {
	Config    *config.Config
	Source    source.Source
	Extractor analyzer.Extractor
	Strategy  caption.Strategy
	Clipper   *renderer.Clipper
	Log       zerolog.Logger
	Out       io.Writer        // консольный прогресс
	Now       func() time.Time // метка времени в манифесте
}

func NewExtractionProject(cfg *config.Config, src source.Source, ext analyzer.Extractor, strategy caption.Strategy, log zerolog.Logger) *ExtractionProject {
	return &ExtractionProject{
		Config:    cfg,
		Source:    src,
		Extractor: ext,
		Strategy:  strategy,
		Clipper:   renderer.NewClipper(src, cfg.OutputDir, cfg.DPI, cfg.MaxDimension),
		Log:       log,
		Out:       os.Stdout,
		Now:       time.Now,
	}
}

// Result накапливает счётчики и записи одного прогона
type Result struct {
	Pages           int
	PagesFailed     int
	ImagesFound     int
	ImagesCaptioned int
	ImagesFailed    int
	Records         []manifest.Record
	ManifestPath    string
	Elapsed         time.Duration
}

func (r *Result) manifest(src string, at time.Time) *manifest.Manifest {
	return &manifest.Manifest{
		Header: manifest.Header{
			Source:          src,
			ExtractedAt:     at,
			Pages:           r.Pages,
			ImagesFound:     r.ImagesFound,
			ImagesCaptioned: r.ImagesCaptioned,
			ImagesExtracted: len(r.Records),
		},
		Images: r.Records,
	}
}

// Run обрабатывает документ страница за страницей. Ошибки страниц и
// изображений логируются и пропускаются; фатальны только ошибки вывода.
func (p *ExtractionProject) Run(ctx context.Context) (*Result, error) {
	startTime := time.Now()

	pageCount := p.Source.PageCount()
	if pageCount == 0 {
		return nil, source.ErrNoPages
	}

	if err := os.MkdirAll(p.Config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать папку вывода: %w", err)
	}

	res := &Result{Pages: pageCount}
	fmt.Fprintf(p.Out, "\n[*] Обработка PDF: %d стр. | Стратегия: %s\n", pageCount, p.Strategy.Name())

	for i := 0; i < pageCount; i++ {
		if i%p.Config.ProgressInterval == 0 {
			p.reportProgress(i, pageCount, res, time.Since(startTime))
		}

		if err := p.processPage(ctx, i, res); err != nil {
			res.PagesFailed++
			p.Log.Warn().Err(err).Int("page", i+1).Msg("page skipped")
		}
	}

	res.ManifestPath = filepath.Join(p.Config.OutputDir, p.Config.ManifestName)
	m := res.manifest(p.Source.Path(), p.Now())
	if err := manifest.Write(res.ManifestPath, m); err != nil {
		return nil, fmt.Errorf("ошибка записи списка: %w", err)
	}
	if p.Config.ManifestYAML {
		yamlPath := strings.TrimSuffix(res.ManifestPath, filepath.Ext(res.ManifestPath)) + ".yaml"
		if err := manifest.WriteYAML(yamlPath, m); err != nil {
			return nil, fmt.Errorf("ошибка записи YAML: %w", err)
		}
	}

	res.Elapsed = time.Since(startTime)
	p.reportSummary(res)
	return res, nil
}

func (p *ExtractionProject) processPage(ctx context.Context, index int, res *Result) error {
	defer p.Clipper.Reset()

	page, err := p.Extractor.Extract(ctx, p.Source, index, p.Strategy.NeedsPageText())
	if err != nil {
		return &PageError{Page: index + 1, Op: "extract", Err: err}
	}

	for i, block := range page.Images() {
		res.ImagesFound++
		if err := p.processImage(page, i, block, res); err != nil {
			res.ImagesFailed++
			p.Log.Warn().Err(err).
				Int("page", page.Number()).
				Int("image", i+1).
				Msg("image skipped")
		}
	}
	return nil
}

func (p *ExtractionProject) processImage(page *analyzer.Page, index int, block analyzer.Block, res *Result) error {
	found, err := p.Strategy.Find(page, index, block)
	if err != nil {
		return &ImageError{Page: page.Number(), Index: index + 1, Op: "caption", Err: err}
	}

	if found.Found {
		res.ImagesCaptioned++
	} else if !p.Strategy.Permissive() {
		return nil
	}

	clip, err := p.Clipper.Clip(page, index, block, p.Strategy.Permissive())
	if err != nil {
		return &ImageError{Page: page.Number(), Index: index + 1, Op: "clip", Err: err}
	}

	res.Records = append(res.Records, manifest.Record{
		Page:     page.Number(),
		FileName: clip.FileName,
		Caption:  found.Text,
		Width:    clip.Width,
		Height:   clip.Height,
		Size:     clip.Size,
		Path:     clip.Path,
	})
	return nil
}
