package splitter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"ai-docqa-be/pkg/docqa/errs"
)

// DefaultSeparators orders split patterns from coarsest to finest. Each entry
// is a regular expression; alternation lets one level cover both CJK and
// Latin punctuation. The empty string is the terminal per-rune fallback and
// guarantees termination.
var DefaultSeparators = []string{
	"\n\n",
	"。|！|？",
	`\.\s|\!\s|\?\s`,
	`；|;\s`,
	`，|,\s`,
	"",
}

const (
	DefaultChunkSize    = 200
	DefaultChunkOverlap = 0
)

var multiNewline = regexp.MustCompile(`\n{2,}`)

// LengthFunc measures chunk size. The default counts runes so CJK text is
// not penalized by its UTF-8 byte width.
type LengthFunc func(string) int

// RecursiveSplitter splits text on an ordered separator list, recursing into
// finer separators whenever a segment alone exceeds the chunk size. Splitting
// is deterministic: identical input and parameters always produce identical
// chunks.
type RecursiveSplitter struct {
	chunkSize     int
	chunkOverlap  int
	keepSeparator bool
	separators    []*regexp.Regexp
	rawSeparators []string
	length        LengthFunc
}

// Option configures a RecursiveSplitter.
type Option func(*config)

type config struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
	keep         bool
	length       LengthFunc
}

func WithChunkSize(size int) Option {
	return func(c *config) { c.chunkSize = size }
}

func WithChunkOverlap(overlap int) Option {
	return func(c *config) { c.chunkOverlap = overlap }
}

func WithSeparators(separators []string) Option {
	return func(c *config) { c.separators = separators }
}

func WithKeepSeparator(keep bool) Option {
	return func(c *config) { c.keep = keep }
}

func WithLengthFunc(fn LengthFunc) Option {
	return func(c *config) { c.length = fn }
}

// NewRecursiveSplitter builds a splitter. Overlap must be strictly smaller
// than the chunk size; anything else is a configuration error rather than a
// silent clamp.
func NewRecursiveSplitter(opts ...Option) (*RecursiveSplitter, error) {
	cfg := &config{
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		separators:   DefaultSeparators,
		keep:         true,
		length:       utf8.RuneCountInString,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", errs.ErrConfig, cfg.chunkSize)
	}
	if cfg.chunkOverlap < 0 || cfg.chunkOverlap >= cfg.chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be in [0, chunk size %d)", errs.ErrConfig, cfg.chunkOverlap, cfg.chunkSize)
	}
	if len(cfg.separators) == 0 {
		return nil, fmt.Errorf("%w: separator list is empty", errs.ErrConfig)
	}

	compiled := make([]*regexp.Regexp, len(cfg.separators))
	for i, sep := range cfg.separators {
		if sep == "" {
			continue // terminal per-rune fallback
		}
		re, err := regexp.Compile(sep)
		if err != nil {
			return nil, fmt.Errorf("%w: separator %q: %v", errs.ErrConfig, sep, err)
		}
		compiled[i] = re
	}

	return &RecursiveSplitter{
		chunkSize:     cfg.chunkSize,
		chunkOverlap:  cfg.chunkOverlap,
		keepSeparator: cfg.keep,
		separators:    compiled,
		rawSeparators: cfg.separators,
		length:        cfg.length,
	}, nil
}

// Split segments text into chunks of at most the configured size (oversized
// remainders are emitted verbatim once every separator is exhausted).
func (s *RecursiveSplitter) Split(text string) []string {
	if text == "" {
		return nil
	}

	chunks := s.splitText(text, 0)

	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		chunk = strings.TrimSpace(multiNewline.ReplaceAllString(chunk, "\n"))
		if chunk == "" {
			continue
		}
		out = append(out, chunk)
	}
	return out
}

// splitText recurses over the separator list starting at index from.
// Recursion depth is bounded by the list length; the empty separator splits
// per rune so a single segment can never stay oversized forever.
func (s *RecursiveSplitter) splitText(text string, from int) []string {
	// Pick the first separator that actually occurs; fall back to the finest.
	sepIdx := len(s.rawSeparators) - 1
	next := len(s.rawSeparators)
	for i := from; i < len(s.rawSeparators); i++ {
		if s.separators[i] == nil {
			sepIdx = i
			next = i + 1
			break
		}
		if s.separators[i].MatchString(text) {
			sepIdx = i
			next = i + 1
			break
		}
	}

	splits := s.splitBySeparator(text, s.separators[sepIdx])

	var chunks []string
	var pending []string
	for _, part := range splits {
		if s.length(part) < s.chunkSize {
			pending = append(pending, part)
			continue
		}
		if len(pending) > 0 {
			chunks = append(chunks, s.merge(pending)...)
			pending = nil
		}
		if next >= len(s.rawSeparators) {
			// Separator list exhausted: accept the oversized segment rather
			// than looping.
			chunks = append(chunks, part)
			continue
		}
		chunks = append(chunks, s.splitText(part, next)...)
	}
	if len(pending) > 0 {
		chunks = append(chunks, s.merge(pending)...)
	}
	return chunks
}

// splitBySeparator cuts text on re, pairing each delimiter with the segment
// before it when keepSeparator is set so punctuation stays attached to its
// sentence. A nil re splits per rune.
func (s *RecursiveSplitter) splitBySeparator(text string, re *regexp.Regexp) []string {
	if re == nil {
		runes := []rune(text)
		parts := make([]string, 0, len(runes))
		for _, r := range runes {
			parts = append(parts, string(r))
		}
		return parts
	}

	matches := re.FindAllStringIndex(text, -1)
	parts := make([]string, 0, len(matches)+1)
	prev := 0
	for _, m := range matches {
		segment := text[prev:m[0]]
		if s.keepSeparator {
			segment += text[m[0]:m[1]]
		}
		if segment != "" {
			parts = append(parts, segment)
		}
		prev = m[1]
	}
	if tail := text[prev:]; tail != "" {
		parts = append(parts, tail)
	}
	return parts
}

// merge greedily packs adjacent segments into chunks up to chunkSize. When a
// chunk closes, the next one is seeded with the trailing chunkOverlap runes
// of the closed chunk, so consecutive chunks share a sliding window.
func (s *RecursiveSplitter) merge(segments []string) []string {
	var chunks []string
	var current strings.Builder
	seedLen := 0 // length of inherited overlap in current

	for _, seg := range segments {
		curLen := s.length(current.String())
		if curLen > seedLen && curLen+s.length(seg) > s.chunkSize {
			chunk := current.String()
			chunks = append(chunks, chunk)

			current.Reset()
			seed := tailRunes(chunk, s.chunkOverlap)
			current.WriteString(seed)
			seedLen = s.length(seed)
		}
		current.WriteString(seg)
	}

	// A final window holding only inherited overlap carries no new content.
	if s.length(current.String()) > seedLen {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func tailRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
