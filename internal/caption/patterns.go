package caption

import (
	"regexp"
	"strings"
)

// NoCaption is recorded for images the keyword strategy could not caption
const NoCaption = "No caption found"

// LeadPatterns are tried in order; the first match is the caption lead.
var LeadPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:Figure|Fig\.)\s+\d+(?:\.\d+)?[\.:]\s*.*?[\.!?]`),
	regexp.MustCompile(`(?i)^FIGURE\s+\d+(?:\.\d+)?[\.:]\s*.*?[\.!?]`),
}

// LeadMarkers start a new caption (or table title) rather than continue one
var LeadMarkers = []string{"Figure", "Fig.", "Table"}

// Keywords mark a page text line as caption-like for the keyword strategy
var Keywords = []string{"Figure", "Image", "Exhibit", "Fig.", "Illustration"}

// MatchCaptionLead returns the caption lead at the start of text, if any
func MatchCaptionLead(text string) (string, bool) {
	for _, re := range LeadPatterns {
		if m := re.FindString(text); m != "" {
			return strings.TrimSpace(m), true
		}
	}
	return "", false
}

// startsWithMarker reports whether s begins with any lead marker, ignoring case
func startsWithMarker(s string) bool {
	lower := strings.ToLower(s)
	for _, m := range LeadMarkers {
		if strings.HasPrefix(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
