package valkey

import (
	"context"
	"time"

	"github.com/valkey-io/valkey-go"
)

const opTimeout = 2 * time.Second

// SessionStorage implements fiber.Storage on top of the cache client so
// that sessions survive API restarts. Keys are namespaced by prefix.
type SessionStorage struct {
	cache  *Cache
	prefix string
}

// NewSessionStorage creates a storage writing keys under prefix.
func NewSessionStorage(cache *Cache, prefix string) *SessionStorage {
	return &SessionStorage{cache: cache, prefix: prefix}
}

func (s *SessionStorage) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

// Get returns nil, nil for a missing key as fiber.Storage requires.
func (s *SessionStorage) Get(key string) ([]byte, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	b, err := s.cache.Get(ctx, s.prefix+key)
	if valkey.IsValkeyNil(err) {
		return nil, nil
	}
	return b, err
}

func (s *SessionStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	ctx, cancel := s.ctx()
	defer cancel()
	c := s.cache.client
	if exp <= 0 {
		return c.Do(ctx, c.B().Set().Key(s.prefix+key).Value(valkey.BinaryString(val)).Build()).Error()
	}
	return c.Do(ctx, c.B().Set().Key(s.prefix+key).Value(valkey.BinaryString(val)).Px(exp).Build()).Error()
}

func (s *SessionStorage) Delete(key string) error {
	ctx, cancel := s.ctx()
	defer cancel()
	return s.cache.Delete(ctx, s.prefix+key)
}

// Reset deletes every key under the prefix.
func (s *SessionStorage) Reset() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	c := s.cache.client

	var cursor uint64
	for {
		entry, err := c.Do(ctx, c.B().Scan().Cursor(cursor).Match(s.prefix+"*").Count(100).Build()).AsScanEntry()
		if err != nil {
			return err
		}
		if len(entry.Elements) > 0 {
			if err := c.Do(ctx, c.B().Del().Key(entry.Elements...).Build()).Error(); err != nil {
				return err
			}
		}
		if entry.Cursor == 0 {
			return nil
		}
		cursor = entry.Cursor
	}
}

// Close is a no-op; the Cache owns the connection.
func (s *SessionStorage) Close() error {
	return nil
}
