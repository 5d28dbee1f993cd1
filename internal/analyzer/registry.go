package analyzer

import (
	"fmt"
	"os/exec"
)

// NewExtractor creates a page extractor for the specified variant
func NewExtractor(variant, mutoolPath string) (Extractor, error) {
	if mutoolPath == "" {
		mutoolPath = "mutool"
	}
	switch variant {
	case "stext":
		return NewStextExtractor(mutoolPath), nil
	case "html":
		return NewHTMLExtractor(), nil
	case "auto", "":
		if _, err := exec.LookPath(mutoolPath); err == nil {
			return NewStextExtractor(mutoolPath), nil
		}
		return NewHTMLExtractor(), nil
	default:
		return nil, fmt.Errorf("unknown block source: %s", variant)
	}
}
