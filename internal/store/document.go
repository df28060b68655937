package store

import (
	"encoding/json"
	"fmt"
)

// DocumentEntry is one value of the published configuration document.
type DocumentEntry struct {
	Segment  int    `json:"segment"`
	VersionA string `json:"version_a"`
	VersionB string `json:"version_b"`
}

// Document is the path-keyed configuration document read by the edge providers:
//
//	{ "/": { "segment": 80, "version_a": "/index.html", "version_b": "/index_b.html" } }
type Document map[string]DocumentEntry

// BuildDocument renders rules into the published document format.
func BuildDocument(rules []*Rule) Document {
	doc := make(Document, len(rules))
	for _, r := range rules {
		doc[r.Path] = DocumentEntry{
			Segment:  r.SplitThreshold,
			VersionA: r.VariantA,
			VersionB: r.VariantB,
		}
	}
	return doc
}

// Marshal encodes the document. Keys come out sorted, so equal documents
// produce identical bytes.
func (d Document) Marshal() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}
