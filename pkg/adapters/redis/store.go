// Package redis backs the storage and bus ports with Redis, letting several
// processes share one session: documents as JSON strings, change
// notifications and session traffic over pub/sub.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/evhart/bivouac/pkg/domain"
)

// Store implements ports.WatchableStorage on Redis. Every Save publishes the
// document key on the changes channel, so all watchers (this process
// included) hear about every write; self-write filtering happens upstream.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// StoreOption configures the Store.
type StoreOption func(*Store)

// WithTTL sets an expiration on document keys. Zero means no expiration.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix, isolating multiple sessions on one Redis.
func WithPrefix(prefix string) StoreOption {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// NewStore creates a Redis store with its own client.
func NewStore(address, password string, db int, opts ...StoreOption) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewStoreFromClient(client, opts...)
}

// NewStoreFromClient creates a Redis store on an existing client.
func NewStoreFromClient(client *backend.Client, opts ...StoreOption) *Store {
	s := &Store{
		client: client,
		prefix: "bivouac:session:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(name domain.DocName) string {
	return s.prefix + "doc:" + string(name)
}

func (s *Store) indexKey() string {
	return s.prefix + "docs"
}

func (s *Store) changesChannel() string {
	return s.prefix + "changes"
}

// Save persists the blob and announces the change.
func (s *Store) Save(ctx context.Context, name domain.DocName, blob map[string]any) error {
	data, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("marshal document %q: %w", name, err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(name), data, s.ttl)
	pipe.SAdd(ctx, s.indexKey(), string(name))
	pipe.Publish(ctx, s.changesChannel(), string(name))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save document %q: %w", name, err)
	}
	return nil
}

// Load retrieves the blob for a document key.
func (s *Store) Load(ctx context.Context, name domain.DocName) (map[string]any, error) {
	val, err := s.client.Get(ctx, s.key(name)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("get document %q: %w", name, err)
	}

	var blob map[string]any
	if err := json.Unmarshal([]byte(val), &blob); err != nil {
		return nil, fmt.Errorf("unmarshal document %q: %w", name, err)
	}
	return blob, nil
}

// List returns the document keys present. Keys whose value expired are
// pruned from the index lazily.
func (s *Store) List(ctx context.Context) ([]domain.DocName, error) {
	members, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var names []domain.DocName
	for _, m := range members {
		exists, err := s.client.Exists(ctx, s.key(domain.DocName(m))).Result()
		if err != nil {
			return nil, fmt.Errorf("check document %q: %w", m, err)
		}
		if exists == 0 {
			s.client.SRem(ctx, s.indexKey(), m)
			continue
		}
		names = append(names, domain.DocName(m))
	}
	return names, nil
}

// Watch subscribes to the changes channel. The returned channel closes when
// ctx is done.
func (s *Store) Watch(ctx context.Context) (<-chan domain.DocName, error) {
	pubsub := s.client.Subscribe(ctx, s.changesChannel())
	// Force the subscription to be established before returning, so a
	// Save immediately after Watch is never missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe changes: %w", err)
	}

	out := make(chan domain.DocName, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- domain.DocName(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close releases the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
