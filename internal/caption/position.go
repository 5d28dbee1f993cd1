package caption

import (
	"math"
	"strings"

	"github.com/ivlev/pdf2figures/internal/analyzer"
)

// PositionStrategy looks for a numbered figure caption in the text blocks
// right below the image
type PositionStrategy struct {
	MaxDistance float64 // page units between image bottom and block top
}

// Candidate is a caption found in one text block
type Candidate struct {
	Text     string
	Distance float64
	Block    int // index into page.Blocks
}

func (s *PositionStrategy) Name() string        { return "position" }
func (s *PositionStrategy) NeedsPageText() bool { return false }
func (s *PositionStrategy) Permissive() bool    { return false }

// Find selects the closest matching text block inside the proximity window
func (s *PositionStrategy) Find(page *analyzer.Page, imageIndex int, image analyzer.Block) (Caption, error) {
	if err := checkImage(image); err != nil {
		return Caption{}, err
	}

	best, ok := s.closest(s.Candidates(page, image))
	if !ok {
		return Caption{}, nil
	}

	text := extend(best.Text, page.Blocks[best.Block])
	return Caption{Text: text, Found: true, Distance: best.Distance}, nil
}

// Candidates returns every text block below the image, inside the window,
// whose text starts with a caption lead
func (s *PositionStrategy) Candidates(page *analyzer.Page, image analyzer.Block) []Candidate {
	imgBottom := image.Rect.Bottom()

	var candidates []Candidate
	for i, block := range page.Blocks {
		if block.Kind != analyzer.KindText {
			continue
		}
		top := block.Rect.Top()
		if top <= imgBottom || top-imgBottom >= s.MaxDistance {
			continue
		}
		lead, ok := MatchCaptionLead(block.Text())
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{Text: lead, Distance: top - imgBottom, Block: i})
	}
	return candidates
}

// closest keeps the first candidate on an exact tie
func (s *PositionStrategy) closest(candidates []Candidate) (Candidate, bool) {
	var best Candidate
	bestDistance := math.Inf(1)
	for _, c := range candidates {
		if c.Distance < bestDistance {
			best = c
			bestDistance = c.Distance
		}
	}
	return best, !math.IsInf(bestDistance, 1)
}

// extend appends the block's continuation spans that the lead match cut off
func extend(caption string, block analyzer.Block) string {
	for _, line := range block.Lines {
		for _, span := range line.Spans {
			text := strings.TrimSpace(span.Text)
			if text == "" || startsWithMarker(text) {
				continue
			}
			if !strings.HasSuffix(caption, text) {
				caption += " " + text
			}
		}
	}
	return caption
}
