// Package cache stores upstream responses for a limited time so repeated listings do not hit the data source.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// Error codes.
var (
	ErrNotFound     = errors.New("key not found")
	ErrEncodeFailed = errors.New("failed to encode entry")
	ErrDecodeFailed = errors.New("failed to decode entry")
)

// Entry is a cached upstream response.
type Entry struct {
	Body   []byte `msgpack:"b"`
	Stored int64  `msgpack:"s"`
}

// Cache defines the methods a response cache must implement.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, error)
	Set(ctx context.Context, key string, body []byte, ttl time.Duration) error
	Close() error
}

// Redis implements Cache on a redis server. Entries are msgpack encoded.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to the redis server at url (ie. redis://localhost:6379/0). Keys are stored under prefix.
func NewRedis(url, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	return NewRedisClient(redis.NewClient(opts), prefix), nil
}

// NewRedisClient returns a Redis cache using an existing client.
func NewRedisClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(k string) string {
	if r.prefix == "" {
		return k
	}

	return r.prefix + ":" + k
}

// Get returns the entry stored at key or ErrNotFound.
func (r *Redis) Get(ctx context.Context, key string) (Entry, error) {
	var e Entry

	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return e, ErrNotFound
		}

		return e, err
	}

	if err = msgpack.Unmarshal(data, &e); err != nil {
		return e, errors.Join(ErrDecodeFailed, err)
	}

	return e, nil
}

// Set stores body at key for ttl. A zero ttl never expires.
func (r *Redis) Set(ctx context.Context, key string, body []byte, ttl time.Duration) error {
	data, err := msgpack.Marshal(Entry{Body: body, Stored: time.Now().Unix()})
	if err != nil {
		return errors.Join(ErrEncodeFailed, err)
	}

	return r.client.Set(ctx, r.key(key), data, ttl).Err()
}

// Ping checks the connection to the server.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
