package knowledge

// DocumentStatus tracks whether a document's collection is searchable.
type DocumentStatus string

const (
	StatusReady      DocumentStatus = "ready"
	StatusProcessing DocumentStatus = "processing"
	StatusFailed     DocumentStatus = "failed"
)

// Document identifies one searchable source document.
type Document struct {
	ID         string
	Name       string
	Status     DocumentStatus
	Collection string
	TotalPages int
}

// CollectionID returns the vector collection key for the document.
func (d Document) CollectionID() string {
	if d.Collection != "" {
		return d.Collection
	}
	return d.ID
}

// Ready reports whether the document can be searched.
func (d Document) Ready() bool {
	return d.Status == StatusReady
}

// Section describes a structural unit of a document, owned by an external
// structure-extraction collaborator and consumed read-only here.
type Section struct {
	ID        string
	Title     string
	Path      string
	Level     int
	PageStart int
	PageEnd   int
}

// Hit is one scored search result from a vector collection.
type Hit struct {
	DocumentID   string
	DocumentName string
	ChunkIndex   int
	Content      string
	Score        float64
	Metadata     map[string]any
}

// EnhancedHit augments a Hit with aggregation artifacts. AggregatedFrom holds
// the sorted original chunk indices merged into this hit; ContextBefore and
// ContextAfter carry neighboring chunk text without altering Content or Score.
type EnhancedHit struct {
	Hit
	Section        *Section
	AggregatedFrom []int
	ContextBefore  string
	ContextAfter   string
}

// Indices returns the original chunk indices backing the hit.
func (h *EnhancedHit) Indices() []int {
	if len(h.AggregatedFrom) > 0 {
		return h.AggregatedFrom
	}
	return []int{h.ChunkIndex}
}

// SectionGroup buckets hits sharing one document section.
type SectionGroup struct {
	DocumentID string
	Section    *Section
	Hits       []EnhancedHit
}

// SectionSummary collapses a section group into one coarse relevance record.
type SectionSummary struct {
	SectionID     string
	Title         string
	Path          string
	DocumentID    string
	AverageScore  float64
	MatchedChunks int
	Preview       string
}

// SearchMode selects the threshold/top-k policy for a query.
type SearchMode string

const (
	ModePrecise  SearchMode = "precise"
	ModeBroad    SearchMode = "broad"
	ModeOverview SearchMode = "overview"
)

// SearchOptions controls a single retrieval execution.
type SearchOptions struct {
	Mode               SearchMode
	TopK               int
	RelevanceThreshold float64
	PerDocumentK       int
	EnsureCoverage     bool
	AggregateAdjacent  bool
	GroupBySection     bool
	IncludeContext     bool
	ContextSize        int
	MaxContextTokens   int
}

// AggregationStats reports what the aggregation pass did to the raw hit set.
type AggregationStats struct {
	RawHits    int
	MergedHits int
	Sections   int
}

// SearchResult is the complete outcome of one query. A zero-hit result is
// valid and carries Suggestion text; it is never an error.
type SearchResult struct {
	Hits        []EnhancedHit
	Sections    []SectionGroup
	Context     string
	TotalHits   int
	QueryTimeMs int64
	Aggregation *AggregationStats
	Suggestion  string
}

// Defaults applied when SearchOptions fields are zero.
const (
	DefaultTopK             = 5
	DefaultThreshold        = 0.35
	DefaultMaxContextTokens = 2000
	DefaultContextSize      = 1
)
