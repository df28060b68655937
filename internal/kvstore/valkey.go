package kvstore

import (
	"context"
	"fmt"

	"github.com/valkey-io/valkey-go"
)

// ValkeyStore implements Store on top of valkey-go.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore wraps an existing valkey client.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if client == nil {
		panic("kvstore: valkey client cannot be nil")
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

func (s *ValkeyStore) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.client.B().Get().Key(namespaced(s.prefix, key)).Build()
	val, err := s.client.Do(ctx, cmd).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("valkey get %q: %w", key, err)
	}
	return val, nil
}

func (s *ValkeyStore) Set(ctx context.Context, key string, value []byte) error {
	cmd := s.client.B().Set().Key(namespaced(s.prefix, key)).Value(valkey.BinaryString(value)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set %q: %w", key, err)
	}
	return nil
}

func (s *ValkeyStore) Ping(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}

func (s *ValkeyStore) Close() error {
	s.client.Close()
	return nil
}
