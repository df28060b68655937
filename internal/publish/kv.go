package publish

import (
	"context"
	"fmt"

	"github.com/rafaeljc/bifrost/internal/kvstore"
	"github.com/rafaeljc/bifrost/internal/store"
)

// KV stores the document under a single key.
type KV struct {
	store kvstore.Store
	key   string
}

// NewKV writes to key in s.
func NewKV(s kvstore.Store, key string) *KV {
	if s == nil {
		panic("publish: kv store cannot be nil")
	}
	return &KV{store: s, key: key}
}

func (k *KV) Name() string { return "kv" }

func (k *KV) Publish(ctx context.Context, doc store.Document) error {
	data, err := doc.Marshal()
	if err != nil {
		return err
	}
	if err := k.store.Set(ctx, k.key, data); err != nil {
		return fmt.Errorf("failed to write document to key %q: %w", k.key, err)
	}
	return nil
}
