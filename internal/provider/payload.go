package provider

import (
	"encoding/json"
	"errors"

	"github.com/rafaeljc/bifrost/internal/experiment"
)

// maxDocumentSize caps how much of a remote document is read.
const maxDocumentSize = 1 << 20

// wireEntry is one rule as stored by the backends. Pointers tell a missing
// field apart from a zero value.
type wireEntry struct {
	Segment  *int    `json:"segment" dynamodbav:"segment"`
	VersionA *string `json:"version_a" dynamodbav:"version_a"`
	VersionB *string `json:"version_b" dynamodbav:"version_b"`
}

func (w wireEntry) rule(source, path string) (experiment.SegmentationRule, error) {
	switch {
	case w.Segment == nil:
		return experiment.SegmentationRule{}, experiment.ParseFailure(source, path, errors.New("missing segment"))
	case w.VersionA == nil:
		return experiment.SegmentationRule{}, experiment.ParseFailure(source, path, errors.New("missing version_a"))
	case w.VersionB == nil:
		return experiment.SegmentationRule{}, experiment.ParseFailure(source, path, errors.New("missing version_b"))
	}

	rule := experiment.SegmentationRule{
		Path:           path,
		SplitThreshold: *w.Segment,
		VariantA:       *w.VersionA,
		VariantB:       *w.VersionB,
	}.Normalized()

	if err := rule.Validate(); err != nil {
		return experiment.SegmentationRule{}, experiment.ParseFailure(source, path, err)
	}
	return rule, nil
}

// ParseDocument extracts the rule for path from a path-keyed document:
//
//	{ "/": { "segment": 80, "version_a": "index.html", "version_b": "index_b.html" } }
func ParseDocument(source, path string, data []byte) (experiment.SegmentationRule, error) {
	var doc map[string]wireEntry
	if err := json.Unmarshal(data, &doc); err != nil {
		return experiment.SegmentationRule{}, experiment.ParseFailure(source, path, err)
	}
	if doc == nil {
		return experiment.SegmentationRule{}, experiment.ParseFailure(source, path, errors.New("document is null"))
	}
	entry, ok := doc[path]
	if !ok {
		return experiment.SegmentationRule{}, experiment.MissingFailure(source, path)
	}
	return entry.rule(source, path)
}
