package pagestore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// buildPage produces n lines, the first digitLines of them starting with a
// digit, with httpCount "http" occurrences spread over the body.
func buildPage(n, digitLines, httpCount int) string {
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if i < digitLines {
			lines = append(lines, "12 Chapter heading")
		} else {
			lines = append(lines, "plain prose line")
		}
	}
	if httpCount > 0 {
		lines = append(lines[:n-1], strings.Repeat("see http://example.com ", httpCount))
	}
	return strings.Join(lines, "\n")
}

func TestIsIndexPageRatioBoundary(t *testing.T) {
	cfg := FilterConfig{NumberLineRatio: 0.3, HTTPOccurrences: 3}

	// 10 lines, ceil(10*0.3)=3 digit-led lines, 3 http occurrences: flagged.
	assert.True(t, IsIndexPage(buildPage(10, 3, 3), cfg))

	// One fewer digit-led line: not flagged.
	assert.False(t, IsIndexPage(buildPage(10, 2, 3), cfg))

	// One fewer http occurrence: not flagged.
	assert.False(t, IsIndexPage(buildPage(10, 3, 2), cfg))
}

func TestIsIndexPageProseNotFlagged(t *testing.T) {
	cfg := DefaultFilterConfig()
	page := "The quarterly revenue grew 12%.\nManagement attributes the growth to new contracts.\nOutlook remains stable."
	assert.False(t, IsIndexPage(page, cfg))
}

func TestIsIndexPageTableOfContents(t *testing.T) {
	cfg := DefaultFilterConfig()
	page := strings.Join([]string{
		"1 Introduction ......... http://example.com/1",
		"2 Methods .............. http://example.com/2",
		"3 Results .............. http://example.com/3",
		"4 Discussion ........... http://example.com/4",
	}, "\n")
	assert.True(t, IsIndexPage(page, cfg))
}

func TestIsIndexPageEmptyInput(t *testing.T) {
	cfg := DefaultFilterConfig()
	assert.False(t, IsIndexPage("", cfg))
	assert.False(t, IsIndexPage("   \n\n  ", cfg))
}

func TestIsIndexPageLeadingWhitespaceBeforeDigit(t *testing.T) {
	cfg := FilterConfig{NumberLineRatio: 0.5, HTTPOccurrences: 1}
	page := "  3 Indented entry http://a\n  4 Another entry http://b"
	assert.True(t, IsIndexPage(page, cfg))
}
