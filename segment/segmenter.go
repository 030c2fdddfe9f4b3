package segment

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Replacement is substituted for malformed byte sequences.
const Replacement = "\uFFFD"

// Segmenter produces fixed-size overlapping windows over streamed text.
// A Segmenter is immutable and safe for concurrent use.
type Segmenter struct {
	size    int
	overlap int
}

// New returns a Segmenter emitting windows of size characters, each
// repeating the trailing overlap characters of the previous window.
// It fails if size <= 0 or overlap is outside [0, size).
func New(size, overlap int) (*Segmenter, error) {
	if err := ValidateConfig(size, overlap); err != nil {
		return nil, err
	}
	return &Segmenter{size: size, overlap: overlap}, nil
}

// ValidateConfig checks segment size and overlap without building a Segmenter.
func ValidateConfig(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: segment size must be greater than 0, got %d", ErrInvalidConfig, size)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: overlap cannot be negative, got %d", ErrInvalidConfig, overlap)
	}
	if overlap >= size {
		return fmt.Errorf("%w: overlap (%d) must be smaller than segment size (%d)", ErrInvalidConfig, overlap, size)
	}
	return nil
}

// Size returns the window size in characters.
func (s *Segmenter) Size() int { return s.size }

// Overlap returns the number of characters shared by consecutive windows.
func (s *Segmenter) Overlap() int { return s.overlap }

// Split appends text to carry and cuts as many full windows as possible.
// It returns the trimmed, non-empty segments and the new carry.
func (s *Segmenter) Split(carry, text string) ([]string, string) {
	buf := []rune(Sanitize(carry + text))
	step := s.size - s.overlap

	var out []string
	for len(buf) >= s.size {
		if seg := strings.TrimSpace(string(buf[:s.size])); seg != "" {
			out = append(out, seg)
		}
		buf = buf[step:]
	}
	return out, string(buf)
}

// Flush returns the trimmed carry as a final segment.
// The boolean is false when nothing but whitespace remains.
func (s *Segmenter) Flush(carry string) (string, bool) {
	seg := strings.TrimSpace(Sanitize(carry))
	return seg, seg != ""
}

// SplitAll segments a complete document given as ordered blocks.
func (s *Segmenter) SplitAll(blocks ...string) []string {
	var (
		out   []string
		carry string
	)
	for _, block := range blocks {
		var segs []string
		segs, carry = s.Split(carry, block)
		out = append(out, segs...)
	}
	if last, ok := s.Flush(carry); ok {
		out = append(out, last)
	}
	return out
}

// Sanitize replaces invalid UTF-8 and NUL characters with Replacement.
func Sanitize(text string) string {
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, Replacement)
	}
	if strings.IndexByte(text, 0) >= 0 {
		text = strings.ReplaceAll(text, "\x00", Replacement)
	}
	return text
}
