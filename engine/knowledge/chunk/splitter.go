package chunk

import (
	"errors"
	"fmt"
	"strings"
)

var (
	errInvalidSize    = errors.New("chunk: size must be greater than zero")
	errNegativeOvl    = errors.New("chunk: overlap cannot be negative")
	errOverlapTooBig  = errors.New("chunk: overlap must be smaller than size")
	errEmptySeparator = errors.New("chunk: separator list must end with the empty string fallback or omit it entirely")
)

func validateSettings(s Settings) error {
	if s.Size <= 0 {
		return errInvalidSize
	}
	if s.Overlap < 0 {
		return errNegativeOvl
	}
	if s.Overlap >= s.Size {
		return fmt.Errorf("%w (overlap %d, size %d)", errOverlapTooBig, s.Overlap, s.Size)
	}
	for i, sep := range s.Separators {
		if sep == "" && i != len(s.Separators)-1 {
			return errEmptySeparator
		}
	}
	return nil
}

// Splitter lazily produces chunks of one text. It is a pull-based cursor:
// callers drain it with Next. A Splitter is single-use and not safe for
// concurrent use; create one per invocation.
type Splitter struct {
	runes    []rune
	settings Settings
	pos      int
	index    int
	done     bool
}

// NewSplitter validates settings eagerly and returns a cursor positioned at
// the start of text.
func NewSplitter(text string, settings Settings) (*Splitter, error) {
	if err := validateSettings(settings); err != nil {
		return nil, err
	}
	return &Splitter{runes: []rune(text), settings: settings}, nil
}

// Next returns the next non-blank chunk, or false when the text is exhausted.
func (s *Splitter) Next() (Chunk, bool) {
	for !s.done {
		if s.pos >= len(s.runes) {
			s.done = true
			break
		}
		start := s.pos
		cut := s.cutPoint(start)
		content := string(s.runes[start:cut])
		if cut >= len(s.runes) {
			s.done = true
		} else {
			// The +1 floor guarantees forward progress even when the
			// overlap swallows the whole step.
			next := cut - s.settings.Overlap
			if next <= start {
				next = start + 1
			}
			s.pos = next
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		ck := Chunk{
			Content: content,
			Index:   s.index,
			Metadata: Metadata{
				StartChar: start,
				EndChar:   cut,
			},
		}
		s.index++
		return ck, true
	}
	return Chunk{}, false
}

// cutPoint scans the window [start, start+size] for the highest-priority
// separator and returns the rune index to cut at (exclusive). The cut lands
// at the separator's end; when nothing matches the window is cut hard.
func (s *Splitter) cutPoint(start int) int {
	windowEnd := start + s.settings.Size
	if windowEnd >= len(s.runes) {
		return len(s.runes)
	}
	window := string(s.runes[start:windowEnd])
	for _, sep := range s.settings.separators() {
		if sep == "" {
			break
		}
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}
		end := len([]rune(window[:idx])) + len([]rune(sep))
		return start + end
	}
	return windowEnd
}

// Split collects every chunk of text in one call.
func Split(text string, settings Settings) ([]Chunk, error) {
	splitter, err := NewSplitter(text, settings)
	if err != nil {
		return nil, err
	}
	var chunks []Chunk
	for {
		ck, ok := splitter.Next()
		if !ok {
			return chunks, nil
		}
		chunks = append(chunks, ck)
	}
}
