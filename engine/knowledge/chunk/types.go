package chunk

// Metadata records where a chunk came from. Character offsets are rune
// positions within the source text (or within the page for page-aware
// splitting). Page fields are 1-based; zero means "not page-aware".
type Metadata struct {
	StartChar  int
	EndChar    int
	PageNumber int
	PageStart  int
	PageEnd    int
	Extra      map[string]any
}

// Chunk is a bounded, indexed substring of a document. Index is a zero-based,
// monotonically increasing per-document sequence number; together with the
// document id it is the chunk's sole identity.
type Chunk struct {
	Content  string
	Index    int
	Metadata Metadata
}

// PageContent is one source page, independent of all other pages.
type PageContent struct {
	Text       string
	PageNumber int
	Extra      map[string]any
}

// Settings configures a splitter. Size and Overlap are measured in runes.
type Settings struct {
	Size       int
	Overlap    int
	Separators []string
}

// DefaultSeparators is the priority-ordered separator list: paragraph break,
// line break, sentence punctuation, word boundary, then a hard cut.
var DefaultSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", " ", ""}

func (s Settings) separators() []string {
	if len(s.Separators) > 0 {
		return s.Separators
	}
	return DefaultSeparators
}
