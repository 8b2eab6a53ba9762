package chunk

import "strings"

// PageSplitter applies windowed splitting to each page independently so that
// no chunk ever spans a page boundary. Chunk indices increase monotonically
// across pages in page order.
type PageSplitter struct {
	pages    []PageContent
	settings Settings
	page     int
	index    int
	inner    *Splitter
}

// NewPageSplitter validates settings eagerly and returns a cursor over pages.
func NewPageSplitter(pages []PageContent, settings Settings) (*PageSplitter, error) {
	if err := validateSettings(settings); err != nil {
		return nil, err
	}
	return &PageSplitter{pages: pages, settings: settings}, nil
}

// Next returns the next chunk across all pages, or false when exhausted.
func (s *PageSplitter) Next() (Chunk, bool) {
	for {
		if s.inner != nil {
			ck, ok := s.inner.Next()
			if ok {
				return s.tagged(ck, s.pages[s.page-1]), true
			}
			s.inner = nil
		}
		if s.page >= len(s.pages) {
			return Chunk{}, false
		}
		page := s.pages[s.page]
		s.page++
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		if len([]rune(page.Text)) <= s.settings.Size {
			ck := s.tagged(Chunk{
				Content:  page.Text,
				Metadata: Metadata{StartChar: 0, EndChar: len([]rune(page.Text))},
			}, page)
			return ck, true
		}
		inner, err := NewSplitter(page.Text, s.settings)
		if err != nil {
			return Chunk{}, false
		}
		s.inner = inner
	}
}

func (s *PageSplitter) tagged(ck Chunk, page PageContent) Chunk {
	ck.Index = s.index
	s.index++
	ck.Metadata.PageNumber = page.PageNumber
	ck.Metadata.PageStart = page.PageNumber
	ck.Metadata.PageEnd = page.PageNumber
	if len(page.Extra) > 0 {
		extra := make(map[string]any, len(page.Extra))
		for k, v := range page.Extra {
			extra[k] = v
		}
		ck.Metadata.Extra = extra
	}
	return ck
}

// SplitPages collects every chunk of all pages in one call.
func SplitPages(pages []PageContent, settings Settings) ([]Chunk, error) {
	splitter, err := NewPageSplitter(pages, settings)
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
