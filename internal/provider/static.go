package provider

import (
	"context"
	"fmt"

	"github.com/rafaeljc/bifrost/internal/experiment"
)

// Static serves one configured rule for every path. It never fails.
type Static struct {
	rule experiment.SegmentationRule
}

// NewStatic builds a static provider splitting at threshold between a and b.
func NewStatic(threshold int, a, b string) (*Static, error) {
	rule := experiment.SegmentationRule{
		Path:           "/",
		SplitThreshold: threshold,
		VariantA:       a,
		VariantB:       b,
	}.Normalized()
	if err := rule.Validate(); err != nil {
		return nil, fmt.Errorf("invalid static rule: %w", err)
	}
	return &Static{rule: rule}, nil
}

func (s *Static) Name() string { return "static" }

func (s *Static) Fetch(_ context.Context, path string) (experiment.SegmentationRule, error) {
	rule := s.rule
	rule.Path = path
	return rule, nil
}
