package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// CharsPerToken converts token budgets to character budgets.
const CharsPerToken = 4

// Defaults for chunk size and overlap, in tokens.
const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 50
)

// minChunkChars is the shortest passage kept on its own; shorter ones are glued to a neighbour.
const minChunkChars = 20

// DefaultSeparators lists split points from most to least preferred. The empty
// separator means character-level splitting.
var DefaultSeparators = []string{"\n\n", "\n", ". ", "? ", "! ", "; ", ", ", " ", ""}

var (
	spaceRun   = regexp.MustCompile(`[ \t]+`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// Splitter is a recursive separator-based text splitter with token-aware sizing.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithChunkSize sets the target chunk size in tokens.
func WithChunkSize(tokens int) Option {
	return func(s *Splitter) {
		if tokens > 0 {
			s.chunkSize = tokens
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in tokens.
func WithOverlap(tokens int) Option {
	return func(s *Splitter) {
		if tokens >= 0 {
			s.overlap = tokens
		}
	}
}

// NewSplitter creates a Splitter with default size, overlap and separators.
func NewSplitter(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}
	for _, o := range opts {
		o(s)
	}
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}
	return s
}

func (s *Splitter) chunkChars() int   { return s.chunkSize * CharsPerToken }
func (s *Splitter) overlapChars() int { return s.overlap * CharsPerToken }

// Split breaks text into passages. Empty or whitespace-only input yields nil.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	text = spaceRun.ReplaceAllString(text, " ")
	text = blankLines.ReplaceAllString(text, "\n\n")

	raw := s.split(strings.TrimSpace(text), s.separators)

	out := make([]string, 0, len(raw))
	var carry string
	for _, piece := range raw {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		if carry != "" {
			piece = carry + " " + piece
			carry = ""
		}
		if runeLen(piece) < minChunkChars {
			if len(out) > 0 {
				out[len(out)-1] += " " + piece
			} else {
				carry = piece
			}
			continue
		}
		out = append(out, piece)
	}
	if carry != "" {
		out = append(out, carry)
	}
	return out
}

// split picks the first separator present in text, greedily merges the pieces up to
// chunkChars and recurses with the remaining separators on oversized buffers.
func (s *Splitter) split(text string, separators []string) []string {
	sep, rest := pickSeparator(text, separators)

	var parts []string
	if sep == "" {
		parts = splitRunes(text)
	} else {
		parts = strings.Split(text, sep)
	}

	limit := s.chunkChars()
	sepLen := runeLen(sep)

	var (
		out    []string
		buf    []string
		bufLen int
	)

	flush := func() {
		merged := strings.Join(buf, sep)
		if runeLen(merged) > limit && len(rest) > 0 {
			out = append(out, s.split(merged, rest)...)
			return
		}
		out = append(out, merged)
	}

	for _, p := range parts {
		pLen := runeLen(p) + sepLen
		if bufLen+pLen > limit && len(buf) > 0 {
			flush()
			buf, bufLen = s.tail(buf, sepLen)
		}
		buf = append(buf, p)
		bufLen += pLen
	}
	if len(buf) > 0 {
		flush()
	}

	return out
}

// tail returns the trailing pieces of buf that fit into the overlap budget.
func (s *Splitter) tail(buf []string, sepLen int) ([]string, int) {
	budget := s.overlapChars()
	n, size := 0, 0
	for i := len(buf) - 1; i >= 0; i-- {
		l := runeLen(buf[i]) + sepLen
		if size+l > budget {
			break
		}
		size += l
		n++
	}
	kept := make([]string, n)
	copy(kept, buf[len(buf)-n:])
	return kept, size
}

func pickSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
