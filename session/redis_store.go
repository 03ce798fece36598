package session

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	brokererrors "github.com/idbroker/broker/internal/errors"
)

const keyPrefix = "session:"

func redisKey(id string) string {
	return keyPrefix + id
}

// RedisStore is a Redis-backed Store. One key per session, TTL managed by
// Redis, value is the record's JSON encoding.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a RedisStore from a redis:// or rediss:// URL and
// pings it to fail fast on a bad connection.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks connectivity to Redis, used by the broker's liveness check.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Put(ctx context.Context, id string, record Record, ttl time.Duration) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}

	ok, err := s.client.SetNX(ctx, redisKey(id), raw, ttl).Result()
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session id collision: %s", id)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Record, error) {
	raw, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if err == redis.Nil {
		return Record{}, brokererrors.ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("unmarshal session record: %w", err)
	}
	return rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// VerifyAndConsume uses an optimistic WATCH/MULTI transaction around the
// key: the record is read, the code compared in Go with a constant-time
// comparison, and the DEL issued only on match, inside the same
// transaction the WATCH guards. If another client mutated the key between
// WATCH and EXEC, go-redis reports redis.TxFailedErr and the whole
// operation is retried — this is what makes the compare-then-delete
// atomic relative to a concurrent verify_and_consume or put.
func (s *RedisStore) VerifyAndConsume(ctx context.Context, id, code string) (Record, error) {
	key := redisKey(id)

	for attempt := 0; attempt < 5; attempt++ {
		var rec Record
		var mismatch bool

		txErr := s.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err == redis.Nil {
				return brokererrors.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("get session: %w", err)
			}
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("unmarshal session record: %w", err)
			}

			if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
				mismatch = true
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}, key)

		if txErr == redis.TxFailedErr {
			continue
		}
		if brokererrors.Is(txErr, brokererrors.ErrNotFound) {
			return Record{}, brokererrors.ErrNotFound
		}
		if txErr != nil {
			return Record{}, txErr
		}
		if mismatch {
			return Record{}, brokererrors.ErrMismatch
		}
		return rec, nil
	}

	return Record{}, fmt.Errorf("verify_and_consume: too many retries for session %s", id)
}
