package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docscope/docscope/engine/knowledge"
)

// catalog persists the document list and chunk contents across CLI runs so
// queries can resolve names and widen context without re-ingesting.
type catalog struct {
	path      string
	Documents []knowledge.Document `json:"documents"`
	Chunks    map[string][]string  `json:"chunks"`
}

func loadCatalog(path string) (*catalog, error) {
	cat := &catalog{path: path, Chunks: make(map[string][]string)}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cat, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, cat); err != nil {
		return nil, fmt.Errorf("catalog %q: %w", path, err)
	}
	if cat.Chunks == nil {
		cat.Chunks = make(map[string][]string)
	}
	return cat, nil
}

func (c *catalog) upsert(doc knowledge.Document, chunks []string) {
	for i := range c.Documents {
		if c.Documents[i].ID == doc.ID {
			c.Documents[i] = doc
			c.Chunks[doc.ID] = chunks
			return
		}
	}
	c.Documents = append(c.Documents, doc)
	c.Chunks[doc.ID] = chunks
}

func (c *catalog) byName(name string) (knowledge.Document, bool) {
	for _, doc := range c.Documents {
		if doc.Name == name {
			return doc, true
		}
	}
	return knowledge.Document{}, false
}

func (c *catalog) save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o640)
}
