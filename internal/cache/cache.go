// Package cache keeps backend responses keyed by request. The attack
// dataset is historical, so entries only expire by age.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// Entry is one cached response body.
type Entry struct {
	Body        []byte    `msgpack:"body"`
	ContentType string    `msgpack:"content_type"`
	Fetched     time.Time `msgpack:"fetched"`
}

type Store interface {
	Get(ctx context.Context, key string) (Entry, bool)
	Set(ctx context.Context, key string, e Entry)
}

// Memory is an in-process LRU with a fixed TTL.
type Memory struct {
	lru *expirable.LRU[string, Entry]
}

func NewMemory(size int, ttl time.Duration) *Memory {
	if size < 1 {
		size = 1
	}
	return &Memory{lru: expirable.NewLRU[string, Entry](size, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, key string) (Entry, bool) {
	return m.lru.Get(key)
}

func (m *Memory) Set(_ context.Context, key string, e Entry) {
	m.lru.Add(key, e)
}

func (m *Memory) Len() int { return m.lru.Len() }

// Redis shares responses between dashboard sessions. Failures are logged
// and treated as misses.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, log *zap.Logger) *Redis {
	if log == nil {
		log = zap.NewNop()
	}
	return &Redis{client: client, prefix: "sshdash:", ttl: ttl, log: log}
}

// DialRedis connects to addr and pings it once.
func DialRedis(ctx context.Context, addr string, ttl time.Duration, log *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedis(client, ttl, log), nil
}

func (r *Redis) Get(ctx context.Context, key string) (Entry, bool) {
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("redis cache get failed", zap.String("key", key), zap.Error(err))
		}
		return Entry{}, false
	}
	var e Entry
	if err := msgpack.Unmarshal(b, &e); err != nil {
		r.log.Warn("redis cache entry corrupt", zap.String("key", key), zap.Error(err))
		return Entry{}, false
	}
	return e, true
}

func (r *Redis) Set(ctx context.Context, key string, e Entry) {
	b, err := msgpack.Marshal(&e)
	if err != nil {
		r.log.Warn("redis cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := r.client.Set(ctx, r.prefix+key, b, r.ttl).Err(); err != nil {
		r.log.Warn("redis cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (r *Redis) Close() error { return r.client.Close() }

// Tiered reads the local store first and fills it from the remote one.
type Tiered struct {
	Local  Store
	Remote Store
}

func (t Tiered) Get(ctx context.Context, key string) (Entry, bool) {
	if e, ok := t.Local.Get(ctx, key); ok {
		return e, true
	}
	e, ok := t.Remote.Get(ctx, key)
	if ok {
		t.Local.Set(ctx, key, e)
	}
	return e, ok
}

func (t Tiered) Set(ctx context.Context, key string, e Entry) {
	t.Local.Set(ctx, key, e)
	t.Remote.Set(ctx, key, e)
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) (Entry, bool) { return Entry{}, false }
func (Nop) Set(context.Context, string, Entry)        {}
