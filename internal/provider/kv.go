package provider

import (
	"context"
	"errors"

	"github.com/rafaeljc/bifrost/internal/experiment"
	"github.com/rafaeljc/bifrost/internal/kvstore"
)

// KeyValue reads the whole document from a single key of a KV store and picks
// the entry for the requested path.
type KeyValue struct {
	store kvstore.Store
	key   string
}

// NewKeyValue reads key from store.
func NewKeyValue(store kvstore.Store, key string) *KeyValue {
	if store == nil {
		panic("provider: kv store cannot be nil")
	}
	return &KeyValue{store: store, key: key}
}

func (k *KeyValue) Name() string { return "kv" }

func (k *KeyValue) Fetch(ctx context.Context, path string) (experiment.SegmentationRule, error) {
	data, err := k.store.Get(ctx, k.key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return experiment.SegmentationRule{}, experiment.MissingFailure(k.Name(), path)
	}
	if err != nil {
		return experiment.SegmentationRule{}, experiment.FetchFailure(k.Name(), path, err)
	}
	return ParseDocument(k.Name(), path, data)
}
