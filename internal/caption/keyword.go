package caption

import (
	"strings"

	"github.com/ivlev/pdf2figures/internal/analyzer"
)

// KeywordStrategy takes the first caption-like line of the page text.
// Every image on a page gets the same line.
type KeywordStrategy struct{}

func (s *KeywordStrategy) Name() string        { return "keyword" }
func (s *KeywordStrategy) NeedsPageText() bool { return true }
func (s *KeywordStrategy) Permissive() bool    { return true }

func (s *KeywordStrategy) Find(page *analyzer.Page, imageIndex int, image analyzer.Block) (Caption, error) {
	if err := checkImage(image); err != nil {
		return Caption{}, err
	}

	for _, line := range strings.Split(page.Text, "\n") {
		for _, kw := range Keywords {
			if strings.Contains(line, kw) {
				return Caption{Text: strings.TrimSpace(line), Found: true}, nil
			}
		}
	}
	return Caption{Text: NoCaption}, nil
}
