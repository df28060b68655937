package provider

import (
	"context"
	"errors"

	"github.com/rafaeljc/bifrost/internal/experiment"
	"github.com/rafaeljc/bifrost/internal/store"
)

// Postgres reads rules straight from the rule table (or a read replica of it).
type Postgres struct {
	repo store.RuleRepository
}

// NewPostgres wraps a rule repository.
func NewPostgres(repo store.RuleRepository) *Postgres {
	if repo == nil {
		panic("provider: rule repository cannot be nil")
	}
	return &Postgres{repo: repo}
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) Fetch(ctx context.Context, path string) (experiment.SegmentationRule, error) {
	r, err := p.repo.GetRule(ctx, path)
	if errors.Is(err, store.ErrRuleNotFound) {
		return experiment.SegmentationRule{}, experiment.MissingFailure(p.Name(), path)
	}
	if err != nil {
		return experiment.SegmentationRule{}, experiment.FetchFailure(p.Name(), path, err)
	}

	rule := r.Segmentation().Normalized()
	if err := rule.Validate(); err != nil {
		return experiment.SegmentationRule{}, experiment.ParseFailure(p.Name(), path, err)
	}
	return rule, nil
}
