package chunk

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Profile bundles the chunking settings chosen for a document type.
type Profile struct {
	Name     string
	Settings Settings
}

var (
	defaultProfile = Profile{
		Name:     "default",
		Settings: Settings{Size: 1000, Overlap: 200},
	}
	codeProfile = Profile{
		Name: "code",
		Settings: Settings{
			Size:    2000,
			Overlap: 200,
			Separators: []string{
				"\nfunc ", "\nclass ", "\ndef ", "\ntype ", "\n\n", "\n", " ", "",
			},
		},
	}
	tabularProfile = Profile{
		Name: "tabular",
		Settings: Settings{
			Size:       400,
			Overlap:    0,
			Separators: []string{"\n", ""},
		},
	}
	contractProfile = Profile{
		Name: "contract",
		Settings: Settings{
			Size:    1200,
			Overlap: 150,
			Separators: []string{
				"\n\nArticle ", "\n\nSection ", "\n\nClause ", "\n§", "\n\n", "\n", ". ", " ", "",
			},
		},
	}
	markdownProfile = Profile{
		Name: "markdown",
		Settings: Settings{
			Size:       1000,
			Overlap:    150,
			Separators: []string{"\n## ", "\n# ", "\n\n", "\n", ". ", " ", ""},
		},
	}
)

var codeExtensions = map[string]struct{}{
	".go": {}, ".py": {}, ".js": {}, ".ts": {}, ".java": {}, ".c": {}, ".h": {},
	".cpp": {}, ".rs": {}, ".rb": {}, ".php": {}, ".cs": {}, ".kt": {}, ".swift": {},
}

var contractHints = []string{"contract", "agreement", "terms", "policy", "license"}

// ProfileFor picks chunk settings from filename and content heuristics. It is
// a pure lookup: the same inputs always yield the same profile.
func ProfileFor(filename string, data []byte) Profile {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := codeExtensions[ext]; ok {
		return codeProfile
	}
	switch ext {
	case ".csv", ".tsv":
		return tabularProfile
	case ".md", ".markdown":
		return markdownProfile
	}
	lower := strings.ToLower(filepath.Base(filename))
	for _, hint := range contractHints {
		if strings.Contains(lower, hint) {
			return contractProfile
		}
	}
	if len(data) > 0 {
		mime := mimetype.Detect(data)
		switch {
		case mime.Is("text/csv"), mime.Is("text/tab-separated-values"):
			return tabularProfile
		case mime.Is("text/markdown"):
			return markdownProfile
		}
	}
	return defaultProfile
}
