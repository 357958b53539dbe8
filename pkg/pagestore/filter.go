package pagestore

import (
	"regexp"
	"strings"
)

// Default thresholds for the index-page heuristic. Both are tunable through
// FilterConfig; ingestion and query time must share one config so a page is
// never embedded under one policy and excluded under another.
const (
	DefaultNumberLineRatio = 0.3
	DefaultHTTPOccurrences = 3
)

var leadingDigit = regexp.MustCompile(`^\s*\d`)

// FilterConfig tunes the index-page heuristic.
type FilterConfig struct {
	// NumberLineRatio is the minimum fraction of lines that start with a
	// digit (page numbers in a table of contents).
	NumberLineRatio float64
	// HTTPOccurrences is the minimum count of "http" substrings (link lists
	// in reference pages).
	HTTPOccurrences int
}

func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		NumberLineRatio: DefaultNumberLineRatio,
		HTTPOccurrences: DefaultHTTPOccurrences,
	}
}

// IsIndexPage flags tables-of-contents and reference-list pages: mostly
// digit-led lines AND enough "http" occurrences. Such pages pollute
// similarity search, so ingestion skips embedding them and the router
// re-checks retrieved pages against the same heuristic.
func IsIndexPage(text string, cfg FilterConfig) bool {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) == 0 || (len(lines) == 1 && lines[0] == "") {
		return false
	}

	numberLines := 0
	for _, line := range lines {
		if leadingDigit.MatchString(line) {
			numberLines++
		}
	}

	numberRatio := float64(numberLines) / float64(len(lines))
	httpCount := strings.Count(text, "http")

	return numberRatio >= cfg.NumberLineRatio && httpCount >= cfg.HTTPOccurrences
}
