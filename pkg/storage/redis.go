package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore initializes Redis storage.
// Keys are prefix + "<chain>:<contract>"; prefix defaults to "namer:".
func NewRedisStore(addr, password string, db int, prefix string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	if prefix == "" {
		prefix = "namer:"
	}

	return &RedisStore{
		client: rdb,
		prefix: prefix,
	}, nil
}

// WithTTL expires records after d. Zero keeps them forever.
func (r *RedisStore) WithTTL(d time.Duration) *RedisStore {
	r.ttl = d
	return r
}

func (r *RedisStore) Save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.prefix+rec.Key(), data, r.ttl).Err()
}

func (r *RedisStore) Load(ctx context.Context, chain, contract string) (*Record, error) {
	fullKey := r.prefix + Key(chain, contract)

	data, err := r.client.Get(ctx, fullKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", fullKey, err)
	}
	return &rec, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
