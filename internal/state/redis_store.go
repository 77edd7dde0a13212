package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix   = "smartsoil:state:"
	maxUpdateRetries = 10
)

// Sealer encrypts stored values. *crypto.Sealer implements it.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// RedisStore keeps sessions in Redis as JSON documents with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	sealer Sealer
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// WithSealer makes the store encrypt every value it writes and decrypt every
// value it reads.
func (r *RedisStore) WithSealer(s Sealer) *RedisStore {
	r.sealer = s
	return r
}

// ConnectRedis parses a redis:// URL (or a bare host:port) and pings the
// server with exponential backoff until it answers or retries run out.
func ConnectRedis(ctx context.Context, redisURL string, maxRetries uint64) (*redis.Client, error) {
	var opt *redis.Options
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opt = parsed
	} else {
		opt = &redis.Options{Addr: redisURL}
	}
	client := redis.NewClient(opt)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	err := backoff.Retry(func() error {
		return client.Ping(ctx).Err()
	}, backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

func (r *RedisStore) Load(ctx context.Context, id string) (*AppState, error) {
	raw, err := r.client.Get(ctx, redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("load state: %w", err)
	}
	return r.decode(raw)
}

func (r *RedisStore) Save(ctx context.Context, s *AppState) error {
	raw, err := r.encode(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, redisKey(s.ID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Update runs fn inside an optimistic WATCH/MULTI transaction and retries
// when another writer touched the key in between.
func (r *RedisStore) Update(ctx context.Context, id string, fn func(*AppState) error) (*AppState, error) {
	key := redisKey(id)
	var out *AppState

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrStateNotFound
			}
			return err
		}
		s, err := r.decode(raw)
		if err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}
		next, err := r.encode(s)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		out = s
		return nil
	}

	for range maxUpdateRetries {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("update state %s: too much contention", id)
}

func (r *RedisStore) encode(s *AppState) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	if r.sealer == nil {
		return raw, nil
	}
	sealed, err := r.sealer.Seal(raw)
	if err != nil {
		return nil, fmt.Errorf("seal state: %w", err)
	}
	return sealed, nil
}

func (r *RedisStore) decode(raw []byte) (*AppState, error) {
	if r.sealer != nil {
		opened, err := r.sealer.Open(raw)
		if err != nil {
			return nil, fmt.Errorf("open state: %w", err)
		}
		raw = opened
	}
	var s AppState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &s, nil
}
